package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
	"github.com/scratchpad-ai/agent-server/pkg/ptrs"
)

// fetchPayload is the JSON shape of a data-fetch tool return. The history
// processor prunes only the data key of old returns, keeping the rest.
type fetchPayload struct {
	Summary       string              `json:"summary"`
	Data          []scratchpad.Record `json:"data"`
	NextCursor    *string             `json:"nextCursor,omitempty"`
	PrevCursor    *string             `json:"prevCursor,omitempty"`
	Count         int                 `json:"count"`
	FilteredCount int                 `json:"filteredCount"`
}

func fetchReturn(payload fetchPayload) agent.ToolReturn {
	bs, err := json.Marshal(payload)
	if err != nil {
		return errReturn("encoding fetched records failed: %v", err)
	}
	return agent.ToolReturn{
		Value:       string(bs),
		Content:     string(bs),
		Metadata:    map[string]interface{}{"is_data_fetch": true},
		IsDataFetch: true,
	}
}

func (r *Registry) fetchAdditionalRecordsTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name: "fetch_additional_records",
		Description: "Page through the active filter's records. Fetched records join the " +
			"snapshot for the rest of the turn.",
		Schema: objectSchema(map[string]interface{}{
			"table_id": stringProp("Table wsId; defaults to the active table."),
			"cursor":   stringProp("Opaque cursor from a prior fetch; omit for the first page."),
			"take": map[string]interface{}{
				"type":        "integer",
				"description": "Page size; capped server-side.",
			},
		}),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeFetchAdditionalRecords,
	}
}

func (r *Registry) invokeFetchAdditionalRecords(
	ctx context.Context, rc *agent.RunContext, raw json.RawMessage,
) agent.ToolReturn {
	var args struct {
		TableID string `json:"table_id"`
		Cursor  string `json:"cursor"`
		Take    int    `json:"take"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errReturn("invalid arguments: %v", err)
	}

	table, msg := resolveTable(rc, args.TableID)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}

	var cursor *string
	if args.Cursor != "" {
		cursor = ptrs.Ptr(args.Cursor)
	}
	page, err := r.api.ListRecordsForAI(ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, cursor, args.Take)
	if err != nil {
		return errReturn("fetching records failed: %v", err)
	}

	added := rc.AddPreloaded(table.Spec.WsID, page.Records)
	return fetchReturn(fetchPayload{
		Summary: fmt.Sprintf("Fetched %d record(s) from table '%s' (%d new to this turn).",
			len(page.Records), table.Spec.Name, added),
		Data:          page.Records,
		NextCursor:    page.NextCursor,
		PrevCursor:    page.PrevCursor,
		Count:         page.Count,
		FilteredCount: page.FilteredCount,
	})
}

func (r *Registry) fetchRecordsByIDsTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "fetch_records_by_ids",
		Description: "Fetch specific records by wsId. Unknown ids are omitted from the result.",
		Schema: objectSchema(map[string]interface{}{
			"table_id": stringProp("Table wsId; defaults to the active table."),
			"ws_ids": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "The wsIds to fetch.",
			},
		}, "ws_ids"),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeFetchRecordsByIDs,
	}
}

func (r *Registry) invokeFetchRecordsByIDs(
	ctx context.Context, rc *agent.RunContext, raw json.RawMessage,
) agent.ToolReturn {
	var args struct {
		TableID string   `json:"table_id"`
		WsIDs   []string `json:"ws_ids"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errReturn("invalid arguments: %v", err)
	}
	if len(args.WsIDs) == 0 {
		return errReturn("No record wsIds supplied.")
	}

	table, msg := resolveTable(rc, args.TableID)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}

	records, err := r.api.GetRecordsByIDs(ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, args.WsIDs)
	if err != nil {
		return errReturn("fetching records failed: %v", err)
	}

	added := rc.AddPreloaded(table.Spec.WsID, records)
	missing := len(args.WsIDs) - len(records)
	summary := fmt.Sprintf("Fetched %d record(s) from table '%s' (%d new to this turn).",
		len(records), table.Spec.Name, added)
	if missing > 0 {
		summary += fmt.Sprintf(" %d requested id(s) were not found.", missing)
	}
	return fetchReturn(fetchPayload{
		Summary: summary,
		Data:    records,
		Count:   len(records),
	})
}
