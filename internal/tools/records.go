package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

type recordUpdate struct {
	WsID   string                 `json:"ws_id"`
	Fields map[string]interface{} `json:"fields"`
}

func (r *Registry) updateRecordsTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name: "update_records",
		Description: "Suggest field changes on existing records. Reference records by wsId and " +
			"fields by display name; only include fields that change.",
		Schema: objectSchema(map[string]interface{}{
			"table_id": stringProp("Table wsId; defaults to the active table."),
			"updates": map[string]interface{}{
				"type":        "array",
				"description": "One entry per record to change.",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"ws_id":  stringProp("The record's wsId."),
						"fields": map[string]interface{}{"type": "object", "description": "Field display name to new string value."},
					},
					"required": []string{"ws_id", "fields"},
				},
			},
		}, "updates"),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeUpdateRecords,
	}
}

func (r *Registry) invokeUpdateRecords(
	ctx context.Context, rc *agent.RunContext, raw json.RawMessage,
) agent.ToolReturn {
	var args struct {
		TableID string         `json:"table_id"`
		Updates []recordUpdate `json:"updates"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errReturn("invalid arguments: %v", err)
	}
	if len(args.Updates) == 0 {
		return errReturn("No updates supplied.")
	}

	table, msg := resolveTable(rc, args.TableID)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}

	ops := make([]scratchpad.BulkOp, 0, len(args.Updates))
	for _, update := range args.Updates {
		if update.WsID == "" {
			return errReturn("Record wsId must be a non-empty string.")
		}
		data, ret := buildFieldData(rc, table, update.WsID, update.Fields)
		if ret != nil {
			return *ret
		}
		ops = append(ops, scratchpad.BulkOp{Op: scratchpad.BulkOpUpdate, WsID: update.WsID, Data: data})
	}

	if err := r.api.BulkSuggestRecordUpdates(
		ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, ops); err != nil {
		return errReturn("updating records failed: %v", err)
	}
	return okReturn("Successfully suggested updates to %d record(s) in table '%s'.",
		len(ops), table.Spec.Name)
}

// buildFieldData maps display-name keyed values to a column-id keyed payload,
// enforcing the string-value invariant and write-focus discipline.
func buildFieldData(
	rc *agent.RunContext,
	table *scratchpad.SnapshotTable,
	recordWsID string,
	fields map[string]interface{},
) (map[string]interface{}, *agent.ToolReturn) {
	if len(fields) == 0 {
		ret := errReturn("Record '%s' has no fields to change.", recordWsID)
		return nil, &ret
	}
	data := map[string]interface{}{}
	for name, value := range fields {
		col, msg := resolveColumn(table, name)
		if msg != "" {
			ret := agent.ToolReturn{Value: msg}
			return nil, &ret
		}
		str, ok := stringValue(value)
		if !ok {
			ret := errReturn("Field '%s' value must be a string; got %T.", name, value)
			return nil, &ret
		}
		if recordWsID != "" && !rc.WriteFocusAllows(recordWsID, col.WsID) {
			ret := errReturn("Field '%s' is not in write focus.", name)
			return nil, &ret
		}
		data[col.WsID] = str
	}
	return data, nil
}

func (r *Registry) createRecordsTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name: "create_records",
		Description: "Suggest new records. Supply field values by display name; the service " +
			"assigns real record ids when the user accepts.",
		Schema: objectSchema(map[string]interface{}{
			"table_id": stringProp("Table wsId; defaults to the active table."),
			"records": map[string]interface{}{
				"type":        "array",
				"description": "One entry per record to create.",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"fields": map[string]interface{}{"type": "object", "description": "Field display name to string value."},
					},
					"required": []string{"fields"},
				},
			},
		}, "records"),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeCreateRecords,
	}
}

func (r *Registry) invokeCreateRecords(
	ctx context.Context, rc *agent.RunContext, raw json.RawMessage,
) agent.ToolReturn {
	var args struct {
		TableID string `json:"table_id"`
		Records []struct {
			Fields map[string]interface{} `json:"fields"`
		} `json:"records"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errReturn("invalid arguments: %v", err)
	}
	if len(args.Records) == 0 {
		return errReturn("No records supplied.")
	}

	table, msg := resolveTable(rc, args.TableID)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}

	ops := make([]scratchpad.BulkOp, 0, len(args.Records))
	tempIDs := make([]string, 0, len(args.Records))
	for _, record := range args.Records {
		// Creates are exempt from write focus; the record does not exist yet.
		data, ret := buildFieldData(rc, table, "", record.Fields)
		if ret != nil {
			return *ret
		}
		tempID := fmt.Sprintf("temp_%s", uuid.NewString())
		tempIDs = append(tempIDs, tempID)
		ops = append(ops, scratchpad.BulkOp{Op: scratchpad.BulkOpCreate, WsID: tempID, Data: data})
	}

	if err := r.api.BulkSuggestRecordUpdates(
		ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, ops); err != nil {
		return errReturn("creating records failed: %v", err)
	}
	return okReturn("Successfully suggested %d new record(s) in table '%s' with temporary ids: %v.",
		len(ops), table.Spec.Name, tempIDs)
}

func (r *Registry) deleteRecordsTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "delete_records",
		Description: "Suggest deleting records by wsId. Deletions are staged until the user accepts.",
		Schema: objectSchema(map[string]interface{}{
			"table_id": stringProp("Table wsId; defaults to the active table."),
			"ws_ids": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "The wsIds of the records to delete.",
			},
		}, "ws_ids"),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeDeleteRecords,
	}
}

func (r *Registry) invokeDeleteRecords(
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

	ops := make([]scratchpad.BulkOp, 0, len(args.WsIDs))
	for _, wsID := range args.WsIDs {
		if wsID == "" {
			return errReturn("Record wsId must be a non-empty string.")
		}
		ops = append(ops, scratchpad.BulkOp{Op: scratchpad.BulkOpDelete, WsID: wsID})
	}

	if err := r.api.BulkSuggestRecordUpdates(
		ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, ops); err != nil {
		return errReturn("deleting records failed: %v", err)
	}
	return okReturn("Successfully suggested deleting %d record(s) from table '%s'.",
		len(ops), table.Spec.Name)
}
