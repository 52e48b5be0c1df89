package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

// fieldTools returns the four field-level mutation tools with the arity that
// matches the scope: (wsId, field_name, …) at table scope, (field_name, …) at
// record scope, (…) at column scope. One invoker per scope is selected here,
// at construction; tool bodies never dispatch on scope.
func (r *Registry) fieldTools(scope agent.DataScope) []agent.ToolDescriptor {
	return []agent.ToolDescriptor{
		r.setFieldValueTool(scope),
		r.appendFieldValueTool(scope),
		r.insertValueTool(scope),
		r.searchAndReplaceTool(scope),
	}
}

// fieldTarget is the fully resolved destination of a field mutation.
type fieldTarget struct {
	recordWsID string
	fieldName  string
}

// fieldArgs is the superset of arguments across scopes; schemas restrict what
// the model may send.
type fieldArgs struct {
	WsID         string      `json:"ws_id"`
	FieldName    string      `json:"field_name"`
	Value        interface{} `json:"value"`
	SearchValue  interface{} `json:"search_value"`
	ReplaceValue interface{} `json:"replace_value"`
}

// targetResolver produces the mutation target for one scope's arity. The
// missing arguments are read from the run context.
type targetResolver func(rc *agent.RunContext, args fieldArgs) (fieldTarget, string)

func tableScopeTarget(rc *agent.RunContext, args fieldArgs) (fieldTarget, string) {
	if args.WsID == "" {
		return fieldTarget{}, "Error: Record wsId must be a non-empty string."
	}
	if args.FieldName == "" {
		return fieldTarget{}, "Error: Field name must be a non-empty string."
	}
	return fieldTarget{recordWsID: args.WsID, fieldName: args.FieldName}, ""
}

func recordScopeTarget(rc *agent.RunContext, args fieldArgs) (fieldTarget, string) {
	if rc.ActiveRecordID == "" {
		return fieldTarget{}, "Error: No active record is set for this session."
	}
	if args.FieldName == "" {
		return fieldTarget{}, "Error: Field name must be a non-empty string."
	}
	return fieldTarget{recordWsID: rc.ActiveRecordID, fieldName: args.FieldName}, ""
}

func columnScopeTarget(rc *agent.RunContext, args fieldArgs) (fieldTarget, string) {
	if rc.ActiveRecordID == "" {
		return fieldTarget{}, "Error: No active record is set for this session."
	}
	if rc.ActiveColumnID == "" {
		return fieldTarget{}, "Error: No active column is set for this session."
	}
	return fieldTarget{recordWsID: rc.ActiveRecordID}, ""
}

func resolverFor(scope agent.DataScope) targetResolver {
	switch scope {
	case agent.ScopeRecord:
		return recordScopeTarget
	case agent.ScopeColumn:
		return columnScopeTarget
	default:
		return tableScopeTarget
	}
}

// fieldSchema assembles the per-scope argument schema for a field tool.
func fieldSchema(scope agent.DataScope, valueProps map[string]interface{}, valueRequired ...string) json.RawMessage {
	props := map[string]interface{}{}
	var required []string
	switch scope {
	case agent.ScopeTable:
		props["ws_id"] = stringProp("The record's wsId.")
		props["field_name"] = stringProp("The field's display name.")
		required = []string{"ws_id", "field_name"}
	case agent.ScopeRecord:
		props["field_name"] = stringProp("The field's display name.")
		required = []string{"field_name"}
	}
	for k, v := range valueProps {
		props[k] = v
	}
	required = append(required, valueRequired...)
	return objectSchema(props, required...)
}

// transform computes the new field value from the current one. A non-empty
// second return is an error message shown to the model.
type transform func(current string) (string, string)

// runFieldMutation is the shared body of all field-level tools.
func (r *Registry) runFieldMutation(
	ctx context.Context,
	rc *agent.RunContext,
	target fieldTarget,
	change transform,
	successFmt string,
) agent.ToolReturn {
	table, msg := resolveTable(rc, "")
	if msg != "" {
		return agent.ToolReturn{Value: msg}
	}

	var col *scratchpad.Column
	if target.fieldName != "" {
		col, msg = resolveColumn(table, target.fieldName)
		if msg != "" {
			return agent.ToolReturn{Value: msg}
		}
	} else {
		col = table.ColumnByID(rc.ActiveColumnID)
		if col == nil {
			return errReturn("Active column '%s' not found in table '%s'.",
				rc.ActiveColumnID, table.Spec.Name)
		}
	}

	// Write-focus discipline comes before any service call.
	if !rc.WriteFocusAllows(target.recordWsID, col.WsID) {
		return errReturn("Field '%s' is not in write focus.", col.Name)
	}

	record := rc.PreloadedRecord(table.Spec.WsID, target.recordWsID)
	if record == nil {
		fresh, err := r.api.GetRecord(ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, target.recordWsID)
		if err != nil {
			return errReturn("reading record '%s' failed: %v", target.recordWsID, err)
		}
		if fresh == nil {
			return errReturn("Record '%s' not found in table '%s'.", target.recordWsID, table.Spec.Name)
		}
		record = fresh
	}

	newValue, errMsg := change(displayString(record, col.WsID))
	if errMsg != "" {
		return agent.ToolReturn{Value: errMsg}
	}

	op := scratchpad.BulkOp{
		Op:   scratchpad.BulkOpUpdate,
		WsID: target.recordWsID,
		Data: map[string]interface{}{col.WsID: newValue},
	}
	if err := r.api.BulkSuggestRecordUpdates(
		ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, []scratchpad.BulkOp{op}); err != nil {
		return errReturn("updating field '%s' failed: %v", col.Name, err)
	}

	// Re-read so later tool calls within the turn see server state.
	if fresh, err := r.api.GetRecord(
		ctx, rc.UserID, rc.Workbook.ID, table.Spec.WsID, target.recordWsID); err != nil {
		r.log.WithError(err).Warn("re-reading record after field mutation")
	} else if fresh != nil {
		rc.ReplacePreloaded(table.Spec.WsID, *fresh)
	}

	return okReturn(successFmt, col.Name, target.recordWsID)
}

func (r *Registry) setFieldValueTool(scope agent.DataScope) agent.ToolDescriptor {
	resolve := resolverFor(scope)
	return agent.ToolDescriptor{
		Name:        "set_field_value",
		Description: "Replace a field's value outright. Values are always strings.",
		Schema: fieldSchema(scope, map[string]interface{}{
			"value": stringProp("The new value."),
		}, "value"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args fieldArgs
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			value, ok := stringValue(args.Value)
			if !ok {
				return errReturn("Field value must be a string; got %T.", args.Value)
			}
			target, msg := resolve(rc, args)
			if msg != "" {
				return agent.ToolReturn{Value: msg}
			}
			return r.runFieldMutation(ctx, rc, target,
				func(string) (string, string) { return value, "" },
				"Successfully set field '%s' on record '%s'.")
		},
	}
}

func (r *Registry) appendFieldValueTool(scope agent.DataScope) agent.ToolDescriptor {
	resolve := resolverFor(scope)
	return agent.ToolDescriptor{
		Name:        "append_field_value",
		Description: "Append text to the end of a field's current value, separated by a space.",
		Schema: fieldSchema(scope, map[string]interface{}{
			"value": stringProp("The text to append."),
		}, "value"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args fieldArgs
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			value, ok := stringValue(args.Value)
			if !ok {
				return errReturn("Field value must be a string; got %T.", args.Value)
			}
			target, msg := resolve(rc, args)
			if msg != "" {
				return agent.ToolReturn{Value: msg}
			}
			return r.runFieldMutation(ctx, rc, target,
				func(current string) (string, string) {
					if current == "" {
						return value, ""
					}
					return current + " " + value, ""
				},
				"Successfully appended to field '%s' on record '%s'.")
		},
	}
}

func (r *Registry) insertValueTool(scope agent.DataScope) agent.ToolDescriptor {
	resolve := resolverFor(scope)
	return agent.ToolDescriptor{
		Name: "insert_value",
		Description: "Substitute the value into each `@@` placeholder in the field's current " +
			"value. Fails if the field has no placeholders.",
		Schema: fieldSchema(scope, map[string]interface{}{
			"value": stringProp("The text substituted for each @@ placeholder."),
		}, "value"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args fieldArgs
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			value, ok := stringValue(args.Value)
			if !ok {
				return errReturn("Field value must be a string; got %T.", args.Value)
			}
			target, msg := resolve(rc, args)
			if msg != "" {
				return agent.ToolReturn{Value: msg}
			}
			return r.runFieldMutation(ctx, rc, target,
				func(current string) (string, string) {
					if !strings.Contains(current, "@@") {
						return "", "Error: The field value contains no @@ placeholders."
					}
					return strings.ReplaceAll(current, "@@", value), ""
				},
				"Successfully inserted value into field '%s' on record '%s'.")
		},
	}
}

func (r *Registry) searchAndReplaceTool(scope agent.DataScope) agent.ToolDescriptor {
	resolve := resolverFor(scope)
	return agent.ToolDescriptor{
		Name: "search_and_replace_field_value",
		Description: "Replace whole-word matches of the search value within the field. " +
			"Fails if nothing matches.",
		Schema: fieldSchema(scope, map[string]interface{}{
			"search_value":  stringProp("The text to search for; matched as a whole word."),
			"replace_value": stringProp("The replacement text."),
		}, "search_value", "replace_value"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args fieldArgs
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			search, ok := stringValue(args.SearchValue)
			if !ok || search == "" {
				return errReturn("Search value must be a non-empty string.")
			}
			replace, ok := stringValue(args.ReplaceValue)
			if !ok {
				return errReturn("Replace value must be a string; got %T.", args.ReplaceValue)
			}
			target, msg := resolve(rc, args)
			if msg != "" {
				return agent.ToolReturn{Value: msg}
			}

			pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(search) + `\b`)
			if err != nil {
				return errReturn("invalid search value: %v", err)
			}

			count := 0
			return r.runFieldMutationCounted(ctx, rc, target,
				func(current string) (string, string) {
					replaced := pattern.ReplaceAllStringFunc(current, func(string) string {
						count++
						return replace
					})
					if count == 0 {
						return "", fmt.Sprintf("Error: '%s' was not found in the field value.", search)
					}
					return replaced, ""
				}, &count)
		},
	}
}

// runFieldMutationCounted is runFieldMutation with the replacement count in
// the success message.
func (r *Registry) runFieldMutationCounted(
	ctx context.Context,
	rc *agent.RunContext,
	target fieldTarget,
	change transform,
	count *int,
) agent.ToolReturn {
	ret := r.runFieldMutation(ctx, rc, target, change,
		"Successfully replaced matches in field '%s' on record '%s'.")
	if strings.HasPrefix(ret.Value, "Successfully") {
		ret.Value = fmt.Sprintf("%s Replacements made: %d.", ret.Value, *count)
	}
	return ret
}
