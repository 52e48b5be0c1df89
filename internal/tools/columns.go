package tools

import (
	"context"
	"encoding/json"

	"github.com/scratchpad-ai/agent-server/internal/agent"
)

func (r *Registry) addColumnTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "add_column",
		Description: "Add a scratch column to the table. Only scratch columns can be created.",
		Schema: objectSchema(map[string]interface{}{
			"table_id": stringProp("Table wsId; defaults to the active table."),
			"name":     stringProp("Display name for the new column."),
			"type":     stringProp("Column type; defaults to text."),
		}, "name"),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeAddColumn,
	}
}

func (r *Registry) invokeAddColumn(
	ctx context.Context, rc *agent.RunContext, raw json.RawMessage,
) agent.ToolReturn {
	var args struct {
		TableID string `json:"table_id"`
		Name    string `json:"name"`
		Type    string `json:"type"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errReturn("invalid arguments: %v", err)
	}
	if args.Name == "" {
		return errReturn("Column name must be a non-empty string.")
	}
	if args.Type == "" {
		args.Type = "text"
	}

	table, msg := resolveTable(rc, args.TableID)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}
	if existing := table.ColumnByName(args.Name); existing != nil {
		return errReturn("Column '%s' already exists in table '%s'.", args.Name, table.Spec.Name)
	}

	col, err := r.api.AddScratchColumn(ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, args.Name, args.Type)
	if err != nil {
		return errReturn("adding column failed: %v", err)
	}

	// Keep the in-context spec current so later calls resolve the column.
	table.Spec.Columns = append(table.Spec.Columns, *col)
	return okReturn("Successfully added scratch column '%s' (%s) to table '%s'.",
		col.Name, col.WsID, table.Spec.Name)
}

func (r *Registry) removeColumnTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "remove_column",
		Description: "Remove a scratch column from the table. Synced columns cannot be removed.",
		Schema: objectSchema(map[string]interface{}{
			"table_id":    stringProp("Table wsId; defaults to the active table."),
			"column_name": stringProp("Display name of the column to remove."),
		}, "column_name"),
		TakesContext: true,
		Async:        true,
		Invoke:       r.invokeRemoveColumn,
	}
}

func (r *Registry) invokeRemoveColumn(
	ctx context.Context, rc *agent.RunContext, raw json.RawMessage,
) agent.ToolReturn {
	var args struct {
		TableID    string `json:"table_id"`
		ColumnName string `json:"column_name"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errReturn("invalid arguments: %v", err)
	}
	if args.ColumnName == "" {
		return errReturn("Column name must be a non-empty string.")
	}

	table, msg := resolveTable(rc, args.TableID)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}
	col, msg := resolveColumn(table, args.ColumnName)
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}
	if !col.Scratch {
		return errReturn("Column '%s' is synced from upstream and cannot be removed.", col.Name)
	}

	if err := r.api.RemoveScratchColumn(
		ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, col.WsID); err != nil {
		return errReturn("removing column failed: %v", err)
	}

	for i := range table.Spec.Columns {
		if table.Spec.Columns[i].WsID == col.WsID {
			table.Spec.Columns = append(table.Spec.Columns[:i], table.Spec.Columns[i+1:]...)
			break
		}
	}
	return okReturn("Successfully removed scratch column '%s' from table '%s'.",
		args.ColumnName, table.Spec.Name)
}
