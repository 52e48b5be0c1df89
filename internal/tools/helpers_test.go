package tools

import (
	"context"
	"fmt"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

// fakeAPI records every call the tools make and serves canned data.
type fakeAPI struct {
	records map[string]*scratchpad.Record
	pages   map[string]*scratchpad.RecordPage

	bulkOps    [][]scratchpad.BulkOp
	callLog    []string
	failBulk   error
	setFilters []*string

	files       []scratchpad.FileInfo
	grepMatches []scratchpad.GrepMatch
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		records: map[string]*scratchpad.Record{},
		pages:   map[string]*scratchpad.RecordPage{},
	}
}

func (f *fakeAPI) logCall(format string, args ...interface{}) {
	f.callLog = append(f.callLog, fmt.Sprintf(format, args...))
}

func (f *fakeAPI) ListRecordsForAI(ctx context.Context, user, workbookID, tableID string, cursor *string, take int) (*scratchpad.RecordPage, error) {
	f.logCall("list:%s", tableID)
	if page, ok := f.pages[tableID]; ok {
		return page, nil
	}
	return &scratchpad.RecordPage{}, nil
}

func (f *fakeAPI) GetRecordsByIDs(ctx context.Context, user, workbookID, tableID string, wsIDs []string) ([]scratchpad.Record, error) {
	f.logCall("getByIDs:%s", tableID)
	var out []scratchpad.Record
	for _, id := range wsIDs {
		if rec, ok := f.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetRecord(ctx context.Context, user, workbookID, tableID, wsID string) (*scratchpad.Record, error) {
	f.logCall("get:%s", wsID)
	rec, ok := f.records[wsID]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeAPI) BulkSuggestRecordUpdates(ctx context.Context, user, workbookID, tableID string, ops []scratchpad.BulkOp) error {
	f.logCall("bulk:%s", tableID)
	if f.failBulk != nil {
		return f.failBulk
	}
	f.bulkOps = append(f.bulkOps, ops)
	// Mirror the service: updates land in suggested_fields.
	for _, op := range ops {
		if op.Op != scratchpad.BulkOpUpdate {
			continue
		}
		rec, ok := f.records[op.WsID]
		if !ok {
			continue
		}
		if rec.SuggestedFields == nil {
			rec.SuggestedFields = map[string]interface{}{}
		}
		for k, v := range op.Data {
			rec.SuggestedFields[k] = v
		}
		rec.Dirty = true
	}
	return nil
}

func (f *fakeAPI) AddScratchColumn(ctx context.Context, user, workbookID, tableID, name, columnType string) (*scratchpad.Column, error) {
	f.logCall("addColumn:%s", name)
	return &scratchpad.Column{WsID: "col-" + name, Name: name, Type: columnType, Scratch: true}, nil
}

func (f *fakeAPI) RemoveScratchColumn(ctx context.Context, user, workbookID, tableID, columnID string) error {
	f.logCall("removeColumn:%s", columnID)
	return nil
}

func (f *fakeAPI) SetActiveRecordsFilter(ctx context.Context, user, workbookID, tableID string, whereClause *string) error {
	f.logCall("setFilter:%s", tableID)
	f.setFilters = append(f.setFilters, whereClause)
	return nil
}

func (f *fakeAPI) AddRecordsToActiveFilter(ctx context.Context, user, workbookID, tableID string, wsIDs []string) error {
	f.logCall("addToFilter:%s", tableID)
	return nil
}

func (f *fakeAPI) ClearActiveRecordFilter(ctx context.Context, user, workbookID, tableID string) error {
	f.logCall("clearFilter:%s", tableID)
	f.setFilters = append(f.setFilters, nil)
	return nil
}

func (f *fakeAPI) ListFilesByPath(ctx context.Context, user, workbookID, path string) ([]scratchpad.FileInfo, error) {
	f.logCall("ls:%s", path)
	return f.files, nil
}

func (f *fakeAPI) GetFileByPath(ctx context.Context, user, workbookID, path string) (string, error) {
	f.logCall("cat:%s", path)
	return "file content", nil
}

func (f *fakeAPI) FindFiles(ctx context.Context, user, workbookID, pattern, path string, recursive bool) ([]scratchpad.FileInfo, error) {
	f.logCall("find:%s", pattern)
	return f.files, nil
}

func (f *fakeAPI) GrepFiles(ctx context.Context, user, workbookID, pattern, path string) ([]scratchpad.GrepMatch, error) {
	f.logCall("grep:%s", pattern)
	return f.grepMatches, nil
}

func (f *fakeAPI) WriteFile(ctx context.Context, user, workbookID, path, content string) error {
	f.logCall("write:%s", path)
	return nil
}

func (f *fakeAPI) DeleteFile(ctx context.Context, user, workbookID, path string) error {
	f.logCall("rm:%s", path)
	return nil
}

func (f *fakeAPI) GetUploadContent(ctx context.Context, user, uploadID string) (string, error) {
	f.logCall("upload:%s", uploadID)
	return "upload content", nil
}

// notesWorkbook is a workbook with one table t1 carrying a "Notes" column c1.
func notesWorkbook() *scratchpad.Workbook {
	return &scratchpad.Workbook{
		ID:   "wb1",
		Name: "Test Workbook",
		Tables: []scratchpad.SnapshotTable{{
			Spec: scratchpad.TableSpec{
				WsID: "t1",
				Name: "Contacts",
				Columns: []scratchpad.Column{
					{WsID: "c1", Name: "Notes", Type: "text"},
					{WsID: "c2", Name: "Status", Type: "text"},
				},
			},
		}},
	}
}

func notesRunContext(api *fakeAPI) *agent.RunContext {
	record := scratchpad.Record{
		ID:     scratchpad.RecordID{WsID: "r1"},
		Fields: map[string]interface{}{"c1": "hello"},
	}
	api.records["r1"] = &record

	return &agent.RunContext{
		UserID:        "u1",
		Workbook:      notesWorkbook(),
		ActiveTableID: "t1",
		Scope:         agent.ScopeTable,
		Preloaded:     map[string][]scratchpad.Record{"t1": {record}},
		RunID:         "run1",
		Runs:          agent.NewRunStateManager(),
	}
}

func toolByName(descriptors []agent.ToolDescriptor, name string) *agent.ToolDescriptor {
	for i := range descriptors {
		if descriptors[i].Name == name {
			return &descriptors[i]
		}
	}
	return nil
}
