package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scratchpad-ai/agent-server/internal/agent"
)

func toolNames(descriptors []agent.ToolDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}

func TestToolsetTableScopeFullCapabilities(t *testing.T) {
	r := NewRegistry(newFakeAPI())
	toolset := r.Toolset(agent.AllCapabilities(), agent.ScopeTable, nil)

	assert.Equal(t, []string{
		"update_records",
		"create_records",
		"delete_records",
		"add_column",
		"remove_column",
		"set_field_value",
		"append_field_value",
		"insert_value",
		"search_and_replace_field_value",
		"fetch_additional_records",
		"fetch_records_by_ids",
		"set_filter",
		"url_content_load",
		"upload_content",
	}, toolNames(toolset))
}

func TestToolsetIsDeterministic(t *testing.T) {
	r := NewRegistry(newFakeAPI())
	caps := []agent.Capability{agent.CapDataFieldTools, agent.CapDataFetchTools}

	first := toolNames(r.Toolset(caps, agent.ScopeTable, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, toolNames(r.Toolset(caps, agent.ScopeTable, nil)))
	}
}

func TestToolsetRecordScopeExcludesTableTools(t *testing.T) {
	r := NewRegistry(newFakeAPI())
	names := toolNames(r.Toolset(agent.AllCapabilities(), agent.ScopeRecord, nil))

	assert.NotContains(t, names, "update_records")
	assert.NotContains(t, names, "create_records")
	assert.NotContains(t, names, "delete_records")
	assert.NotContains(t, names, "add_column")
	assert.NotContains(t, names, "remove_column")
	assert.Contains(t, names, "set_field_value")
	assert.Contains(t, names, "fetch_additional_records")
}

func TestToolsetFileScope(t *testing.T) {
	r := NewRegistry(newFakeAPI())
	names := toolNames(r.Toolset(agent.AllCapabilities(), agent.ScopeFile, nil))

	for _, want := range []string{"ls", "cat", "find", "grep", "write", "rm"} {
		assert.Contains(t, names, want)
	}
	assert.NotContains(t, names, "set_field_value")
	assert.NotContains(t, names, "update_records")
}

func TestToolsetNoCapabilities(t *testing.T) {
	r := NewRegistry(newFakeAPI())
	assert.Empty(t, r.Toolset(nil, agent.ScopeTable, nil))
}

func TestFieldSchemaArityPerScope(t *testing.T) {
	r := NewRegistry(newFakeAPI())
	caps := []agent.Capability{agent.CapDataFieldTools}

	requiredOf := func(scope agent.DataScope) []string {
		d := toolByName(r.Toolset(caps, scope, nil), "set_field_value")
		require.NotNil(t, d)
		var schema struct {
			Required []string `json:"required"`
		}
		require.NoError(t, json.Unmarshal(d.Schema, &schema))
		return schema.Required
	}

	assert.ElementsMatch(t, []string{"ws_id", "field_name", "value"}, requiredOf(agent.ScopeTable))
	assert.ElementsMatch(t, []string{"field_name", "value"}, requiredOf(agent.ScopeRecord))
	assert.ElementsMatch(t, []string{"value"}, requiredOf(agent.ScopeColumn))
}

func TestApplyOverrides(t *testing.T) {
	r := NewRegistry(newFakeAPI())
	overridden := json.RawMessage(`{"type":"object"}`)
	toolset := r.Toolset([]agent.Capability{agent.CapDataFieldTools}, agent.ScopeTable, []Override{
		{Name: "set_field_value", Description: "Custom description.", Schema: overridden},
		{Name: "no_such_tool", Description: "ignored"},
	})

	d := toolByName(toolset, "set_field_value")
	require.NotNil(t, d)
	assert.Equal(t, "Custom description.", d.Description)
	assert.Equal(t, overridden, d.Schema)

	// Tools without an override keep their original surface.
	other := toolByName(toolset, "append_field_value")
	require.NotNil(t, other)
	assert.NotEqual(t, "Custom description.", other.Description)
}
