// Package tools declares the capability-gated tool registry and the tool
// invokers that mediate between the agent and the Scratchpad service.
package tools

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
	"github.com/scratchpad-ai/agent-server/pkg/set"
)

// API is the slice of the Scratchpad client the tools invoke.
type API interface {
	ListRecordsForAI(ctx context.Context, user, workbookID, tableID string, cursor *string, take int) (*scratchpad.RecordPage, error)
	GetRecordsByIDs(ctx context.Context, user, workbookID, tableID string, wsIDs []string) ([]scratchpad.Record, error)
	GetRecord(ctx context.Context, user, workbookID, tableID, wsID string) (*scratchpad.Record, error)
	BulkSuggestRecordUpdates(ctx context.Context, user, workbookID, tableID string, ops []scratchpad.BulkOp) error
	AddScratchColumn(ctx context.Context, user, workbookID, tableID, name, columnType string) (*scratchpad.Column, error)
	RemoveScratchColumn(ctx context.Context, user, workbookID, tableID, columnID string) error
	SetActiveRecordsFilter(ctx context.Context, user, workbookID, tableID string, whereClause *string) error
	AddRecordsToActiveFilter(ctx context.Context, user, workbookID, tableID string, wsIDs []string) error
	ClearActiveRecordFilter(ctx context.Context, user, workbookID, tableID string) error
	ListFilesByPath(ctx context.Context, user, workbookID, path string) ([]scratchpad.FileInfo, error)
	GetFileByPath(ctx context.Context, user, workbookID, path string) (string, error)
	FindFiles(ctx context.Context, user, workbookID, pattern, path string, recursive bool) ([]scratchpad.FileInfo, error)
	GrepFiles(ctx context.Context, user, workbookID, pattern, path string) ([]scratchpad.GrepMatch, error)
	WriteFile(ctx context.Context, user, workbookID, path, content string) error
	DeleteFile(ctx context.Context, user, workbookID, path string) error
	GetUploadContent(ctx context.Context, user, uploadID string) (string, error)
}

// Override is a client-supplied adjustment to a tool's surface, carried on
// the turn request and merged at construction time.
type Override = agent.ToolOverride

// Registry builds per-scope tool descriptor sets. It is safe for concurrent
// use; descriptors are bound per agent instance.
type Registry struct {
	log  *logrus.Entry
	api  API
	http *http.Client
}

// NewRegistry builds a registry over the given Scratchpad API slice.
func NewRegistry(api API) *Registry {
	return &Registry{
		log:  logrus.WithField("component", "tool-registry"),
		api:  api,
		http: cleanhttp.DefaultPooledClient(),
	}
}

// Toolset returns the descriptors for a (capabilities, scope) tuple. The
// result is a deterministic function of its inputs: same flags, same scope,
// same tools in the same order.
func (r *Registry) Toolset(
	caps []agent.Capability, scope agent.DataScope, overrides []Override,
) []agent.ToolDescriptor {
	enabled := set.FromSlice(caps)

	var out []agent.ToolDescriptor
	if scope == agent.ScopeFile {
		out = append(out, r.fileTools()...)
	} else {
		if scope == agent.ScopeTable {
			if enabled.Contains(agent.CapDataUpdate) {
				out = append(out, r.updateRecordsTool())
			}
			if enabled.Contains(agent.CapDataCreate) {
				out = append(out, r.createRecordsTool())
			}
			if enabled.Contains(agent.CapDataDelete) {
				out = append(out, r.deleteRecordsTool())
			}
			if enabled.Contains(agent.CapTableAddColumn) {
				out = append(out, r.addColumnTool())
			}
			if enabled.Contains(agent.CapTableRemoveColumn) {
				out = append(out, r.removeColumnTool())
			}
		}
		if enabled.Contains(agent.CapDataFieldTools) {
			out = append(out, r.fieldTools(scope)...)
		}
	}

	if enabled.Contains(agent.CapDataFetchTools) {
		out = append(out, r.fetchAdditionalRecordsTool(), r.fetchRecordsByIDsTool())
	}
	if enabled.Contains(agent.CapViewsFiltering) {
		out = append(out, r.setFilterTool())
	}
	if enabled.Contains(agent.CapLoadURLContent) {
		out = append(out, r.urlContentLoadTool())
	}
	if enabled.Contains(agent.CapUploadContent) {
		out = append(out, r.uploadContentTool())
	}

	return applyOverrides(out, overrides)
}

func applyOverrides(descriptors []agent.ToolDescriptor, overrides []Override) []agent.ToolDescriptor {
	if len(overrides) == 0 {
		return descriptors
	}
	byName := map[string]Override{}
	for _, o := range overrides {
		byName[o.Name] = o
	}
	for i := range descriptors {
		o, ok := byName[descriptors[i].Name]
		if !ok {
			continue
		}
		if o.Description != "" {
			descriptors[i].Description = o.Description
		}
		if len(o.Schema) > 0 {
			descriptors[i].Schema = o.Schema
		}
	}
	return descriptors
}
