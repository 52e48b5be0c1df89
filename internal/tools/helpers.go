package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

// errReturn wraps a descriptive failure as a normal tool result. The model
// sees tool errors as string returns and may self-correct; they are never
// elevated to turn failures.
func errReturn(format string, args ...interface{}) agent.ToolReturn {
	return agent.ToolReturn{Value: "Error: " + fmt.Sprintf(format, args...)}
}

func okReturn(format string, args ...interface{}) agent.ToolReturn {
	return agent.ToolReturn{Value: fmt.Sprintf(format, args...)}
}

// decodeArgs unmarshals tool-call arguments, tolerating an empty payload.
func decodeArgs(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}

// objectSchema builds the JSON schema for a tool's argument object.
func objectSchema(properties map[string]interface{}, required ...string) json.RawMessage {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	bs, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("building tool schema: %v", err))
	}
	return bs
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// resolveTable resolves a table by ws-id, falling back to the run context's
// active table when id is empty. Unknown tables produce a formatted message
// listing what is available.
func resolveTable(rc *agent.RunContext, tableID string) (*scratchpad.SnapshotTable, string) {
	if tableID == "" {
		tableID = rc.ActiveTableID
	}
	if tableID == "" {
		return nil, "Error: No table specified and no active table is set."
	}
	if table := rc.Workbook.TableByID(tableID); table != nil {
		return table, ""
	}
	// Legacy table-scope callers pass display names.
	if table := rc.Workbook.TableByName(tableID); table != nil {
		return table, ""
	}
	return nil, missingTableMessage(rc.Workbook, tableID)
}

func missingTableMessage(wb *scratchpad.Workbook, tableID string) string {
	names := make([]string, 0, len(wb.Tables))
	for _, t := range wb.Tables {
		names = append(names, fmt.Sprintf("%s (%s)", t.Spec.Name, t.Spec.WsID))
	}
	sort.Strings(names)
	return fmt.Sprintf("Error: Table '%s' not found. Available tables: %s.",
		tableID, strings.Join(names, ", "))
}

// resolveColumn resolves a column by display name, case-insensitively.
func resolveColumn(table *scratchpad.SnapshotTable, name string) (*scratchpad.Column, string) {
	if col := table.ColumnByName(name); col != nil {
		return col, ""
	}
	names := make([]string, 0, len(table.Spec.Columns))
	for _, c := range table.Spec.Columns {
		names = append(names, c.Name)
	}
	return nil, fmt.Sprintf("Error: Field '%s' not found in table '%s'. Available fields: %s.",
		name, table.Spec.Name, strings.Join(names, ", "))
}

// stringValue enforces the value-string-only invariant: field mutation tools
// accept only string values; JSON coercion is the model's job.
func stringValue(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// displayString renders a record's current display value for a column as a
// string for field-tool composition.
func displayString(record *scratchpad.Record, columnID string) string {
	v := record.DisplayValue(columnID)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(bs)
}
