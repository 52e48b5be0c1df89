// Package agent contains the run orchestration core: the per-turn runner,
// the run-state and task managers, message-history processing, and token
// accounting.
package agent

// Capability gates which tools and prompt sections a turn receives.
type Capability string

// The known capability flags.
const (
	CapDataUpdate        Capability = "data:update"
	CapDataCreate        Capability = "data:create"
	CapDataDelete        Capability = "data:delete"
	CapDataFieldTools    Capability = "data:field-tools"
	CapDataFetchTools    Capability = "data:fetch-tools"
	CapViewsFiltering    Capability = "views:filtering"
	CapTableAddColumn    Capability = "table:add-column"
	CapTableRemoveColumn Capability = "table:remove-column"
	CapLoadURLContent    Capability = "other:load-url-content"
	CapUploadContent     Capability = "other:upload-content"
)

// Valid reports whether c is a known capability flag.
func (c Capability) Valid() bool {
	switch c {
	case CapDataUpdate, CapDataCreate, CapDataDelete, CapDataFieldTools,
		CapDataFetchTools, CapViewsFiltering, CapTableAddColumn,
		CapTableRemoveColumn, CapLoadURLContent, CapUploadContent:
		return true
	}
	return false
}

// AllCapabilities lists every capability the server knows, in the order they
// are advertised to clients.
func AllCapabilities() []Capability {
	return []Capability{
		CapDataUpdate,
		CapDataCreate,
		CapDataDelete,
		CapDataFieldTools,
		CapDataFetchTools,
		CapViewsFiltering,
		CapTableAddColumn,
		CapTableRemoveColumn,
		CapLoadURLContent,
		CapUploadContent,
	}
}

// DataScope is the granularity of the agent's remit in a turn.
type DataScope string

// The known data scopes.
const (
	ScopeTable  DataScope = "table"
	ScopeRecord DataScope = "record"
	ScopeColumn DataScope = "column"
	ScopeFile   DataScope = "file"
)

// Valid reports whether s is a known scope.
func (s DataScope) Valid() bool {
	switch s {
	case ScopeTable, ScopeRecord, ScopeColumn, ScopeFile:
		return true
	}
	return false
}
