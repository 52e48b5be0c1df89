package tools

import (
	"context"
	"encoding/json"

	"github.com/scratchpad-ai/agent-server/internal/agent"
)

func (r *Registry) setFilterTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name: "set_filter",
		Description: "Replace the table's active record filter with a SQL where clause over " +
			"column wsIds. Pass null to clear the filter.",
		Schema: objectSchema(map[string]interface{}{
			"table_id": stringProp("Table wsId; defaults to the active table."),
			"where_clause": map[string]interface{}{
				"type":        []string{"string", "null"},
				"description": "SQL where clause, or null to clear.",
			},
		}),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeSetFilter,
	}
}

func (r *Registry) invokeSetFilter(
	ctx context.Context, rc *agent.RunContext, raw json.RawMessage,
) agent.ToolReturn {
	var args struct {
		TableID     string  `json:"table_id"`
		WhereClause *string `json:"where_clause"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errReturn("invalid arguments: %v", err)
	}

	table, msg := resolveTable(rc, args.TableID)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}

	if args.WhereClause == nil || *args.WhereClause == "" {
		if err := r.api.ClearActiveRecordFilter(
			ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID); err != nil {
			return errReturn("clearing filter failed: %v", err)
		}
		table.Context.ActiveRecordFilter = ""
		return okReturn("Successfully cleared the active filter on table '%s'.", table.Spec.Name)
	}

	if err := r.api.SetActiveRecordsFilter(
		ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, args.WhereClause); err != nil {
		return errReturn("setting filter failed: %v", err)
	}
	table.Context.ActiveRecordFilter = *args.WhereClause
	return okReturn("Successfully set the active filter on table '%s' to: %s",
		table.Spec.Name, *args.WhereClause)
}
