package scratchpad

import (
	"strings"
	"time"
)

// FocusedCell addresses a single cell by workspace ids.
type FocusedCell struct {
	RecordWsID string `json:"recordWsId"`
	ColumnWsID string `json:"columnWsId"`
}

// Column is one column of a snapshot table.
type Column struct {
	WsID string `json:"wsId"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	// Scratch marks columns the agent may create and remove; upstream-synced
	// columns are structural and off limits.
	Scratch bool `json:"scratch,omitempty"`
}

// TableSpec identifies a table and its columns.
type TableSpec struct {
	WsID    string   `json:"wsId"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// TableContext carries the per-table view state the service maintains.
type TableContext struct {
	IgnoredColumns     []string `json:"ignoredColumns,omitempty"`
	ReadOnlyColumns    []string `json:"readOnlyColumns,omitempty"`
	HiddenColumns      []string `json:"hiddenColumns,omitempty"`
	ActiveRecordFilter string   `json:"activeRecordFilter,omitempty"`
	PageSize           int      `json:"pageSize,omitempty"`
}

// SnapshotTable is one table's worth of state as currently known to the agent.
type SnapshotTable struct {
	Spec    TableSpec    `json:"spec"`
	Context TableContext `json:"context"`
}

// Workbook is a user's working container of snapshot tables plus a file tree.
type Workbook struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Tables []SnapshotTable `json:"tables"`
}

// TableByID returns the snapshot table with the given ws-id, or nil.
func (w *Workbook) TableByID(wsID string) *SnapshotTable {
	for i := range w.Tables {
		if w.Tables[i].Spec.WsID == wsID {
			return &w.Tables[i]
		}
	}
	return nil
}

// TableByName returns the snapshot table with the given display name, or nil.
// Matching is case-insensitive to be forgiving of model output.
func (w *Workbook) TableByName(name string) *SnapshotTable {
	for i := range w.Tables {
		if strings.EqualFold(w.Tables[i].Spec.Name, name) {
			return &w.Tables[i]
		}
	}
	return nil
}

// ColumnByName resolves a column by display name, case-insensitively.
func (t *SnapshotTable) ColumnByName(name string) *Column {
	for i := range t.Spec.Columns {
		if strings.EqualFold(t.Spec.Columns[i].Name, name) {
			return &t.Spec.Columns[i]
		}
	}
	return nil
}

// ColumnByID resolves a column by its ws-id.
func (t *SnapshotTable) ColumnByID(wsID string) *Column {
	for i := range t.Spec.Columns {
		if t.Spec.Columns[i].WsID == wsID {
			return &t.Spec.Columns[i]
		}
	}
	return nil
}

// RecordID identifies a record. RemoteID is present only once the record has
// synced upstream.
type RecordID struct {
	WsID     string  `json:"wsId"`
	RemoteID *string `json:"remoteId,omitempty"`
}

// Record is one row. Fields holds applied values keyed by column ws-id;
// SuggestedFields holds agent-proposed edits awaiting user approval.
type Record struct {
	ID              RecordID               `json:"id"`
	Fields          map[string]interface{} `json:"fields"`
	SuggestedFields map[string]interface{} `json:"suggestedFields,omitempty"`
	EditedFields    map[string]interface{} `json:"editedFields,omitempty"`
	Dirty           bool                   `json:"dirty,omitempty"`
}

// DisplayValue returns the value the agent should see for a column: a pending
// suggestion shadows the applied field value.
func (r *Record) DisplayValue(columnID string) interface{} {
	if v, ok := r.SuggestedFields[columnID]; ok && v != nil {
		return v
	}
	return r.Fields[columnID]
}

// RecordPage is one page of records plus paging metadata.
type RecordPage struct {
	Records       []Record `json:"records"`
	NextCursor    *string  `json:"nextCursor,omitempty"`
	PrevCursor    *string  `json:"prevCursor,omitempty"`
	Count         int      `json:"count"`
	FilteredCount int      `json:"filteredCount"`
	StartIndex    int      `json:"startIndex"`
	EndIndex      int      `json:"endIndex"`
}

// BulkOpType enumerates the record mutation operations.
type BulkOpType string

const (
	// BulkOpCreate proposes a new record.
	BulkOpCreate BulkOpType = "create"
	// BulkOpUpdate proposes field edits on an existing record.
	BulkOpUpdate BulkOpType = "update"
	// BulkOpDelete proposes deleting a record.
	BulkOpDelete BulkOpType = "delete"
	// BulkOpUndelete withdraws a pending delete suggestion.
	BulkOpUndelete BulkOpType = "undelete"
)

// BulkOp is one entry in a bulk_suggest_record_updates call. Create ops carry
// agent-supplied temp ws-ids; the service assigns final ids server-side.
type BulkOp struct {
	Op   BulkOpType             `json:"op"`
	WsID string                 `json:"wsId,omitempty"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// FileInfo describes one entry in a workbook's file space.
type FileInfo struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	IsDir      bool      `json:"isDir"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// GrepMatch is one matching line from a grep over workbook files.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

