package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

func TestUpdateRecordsMapsDisplayNamesToColumnIDs(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	r := NewRegistry(api)
	toolset := r.Toolset([]agent.Capability{agent.CapDataUpdate}, agent.ScopeTable, nil)

	ret := invoke(t, toolByName(toolset, "update_records"), rc,
		`{"updates":[{"ws_id":"r1","fields":{"Notes":"revised","Status":"done"}}]}`)
	assert.Contains(t, ret.Value, "Successfully suggested updates to 1 record(s)")

	require.Len(t, api.bulkOps, 1)
	op := api.bulkOps[0][0]
	assert.Equal(t, scratchpad.BulkOpUpdate, op.Op)
	assert.Equal(t, "r1", op.WsID)
	assert.Equal(t, map[string]interface{}{"c1": "revised", "c2": "done"}, op.Data)
}

func TestUpdateRecordsRejectsNonStringValue(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	r := NewRegistry(api)
	toolset := r.Toolset([]agent.Capability{agent.CapDataUpdate}, agent.ScopeTable, nil)

	ret := invoke(t, toolByName(toolset, "update_records"), rc,
		`{"updates":[{"ws_id":"r1","fields":{"Notes":7}}]}`)
	assert.Contains(t, ret.Value, "must be a string")
	assert.Empty(t, api.bulkOps)
}

func TestUpdateRecordsHonorsWriteFocus(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	rc.WriteFocus = []scratchpad.FocusedCell{{RecordWsID: "r1", ColumnWsID: "c1"}}
	r := NewRegistry(api)
	toolset := r.Toolset([]agent.Capability{agent.CapDataUpdate}, agent.ScopeTable, nil)

	ret := invoke(t, toolByName(toolset, "update_records"), rc,
		`{"updates":[{"ws_id":"r1","fields":{"Status":"done"}}]}`)
	assert.Equal(t, "Error: Field 'Status' is not in write focus.", ret.Value)
	assert.Empty(t, api.bulkOps)
}

func TestCreateRecordsUsesTemporaryIDs(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	// Creates bypass write focus regardless of its contents.
	rc.WriteFocus = []scratchpad.FocusedCell{{RecordWsID: "r1", ColumnWsID: "c2"}}
	r := NewRegistry(api)
	toolset := r.Toolset([]agent.Capability{agent.CapDataCreate}, agent.ScopeTable, nil)

	ret := invoke(t, toolByName(toolset, "create_records"), rc,
		`{"records":[{"fields":{"Notes":"first"}},{"fields":{"Notes":"second"}}]}`)
	assert.Contains(t, ret.Value, "Successfully suggested 2 new record(s)")

	require.Len(t, api.bulkOps, 1)
	require.Len(t, api.bulkOps[0], 2)
	for _, op := range api.bulkOps[0] {
		assert.Equal(t, scratchpad.BulkOpCreate, op.Op)
		assert.Contains(t, op.WsID, "temp_")
	}
}

func TestDeleteRecords(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	r := NewRegistry(api)
	toolset := r.Toolset([]agent.Capability{agent.CapDataDelete}, agent.ScopeTable, nil)

	ret := invoke(t, toolByName(toolset, "delete_records"), rc,
		`{"ws_ids":["r1","r2"]}`)
	assert.Contains(t, ret.Value, "Successfully suggested deleting 2 record(s)")

	require.Len(t, api.bulkOps, 1)
	assert.Equal(t, scratchpad.BulkOpDelete, api.bulkOps[0][0].Op)
	assert.Equal(t, "r1", api.bulkOps[0][0].WsID)
}

func TestDeleteRecordsRequiresIDs(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	r := NewRegistry(api)
	toolset := r.Toolset([]agent.Capability{agent.CapDataDelete}, agent.ScopeTable, nil)

	ret := invoke(t, toolByName(toolset, "delete_records"), rc, `{"ws_ids":[]}`)
	assert.Equal(t, "Error: No record wsIds supplied.", ret.Value)
}

func TestUpdateRecordsUnknownTable(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	r := NewRegistry(api)
	toolset := r.Toolset([]agent.Capability{agent.CapDataUpdate}, agent.ScopeTable, nil)

	ret := invoke(t, toolByName(toolset, "update_records"), rc,
		`{"table_id":"nope","updates":[{"ws_id":"r1","fields":{"Notes":"x"}}]}`)
	assert.Contains(t, ret.Value, "Table 'nope' not found")
	assert.Contains(t, ret.Value, "Contacts (t1)")
}
