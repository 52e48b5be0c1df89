package tools

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

func fileToolset(api *fakeAPI) []agent.ToolDescriptor {
	return NewRegistry(api).Toolset(nil, agent.ScopeFile, nil)
}

func TestLsFormatsDirectoriesAndFiles(t *testing.T) {
	api := newFakeAPI()
	api.files = []scratchpad.FileInfo{
		{Path: "reports", Name: "reports", IsDir: true},
		{Path: "notes.txt", Name: "notes.txt", Size: 42},
	}
	rc := notesRunContext(api)

	ret := invoke(t, toolByName(fileToolset(api), "ls"), rc, `{}`)
	assert.Equal(t, "reports/\nnotes.txt (42 bytes)", ret.Value)
}

func TestLsEmptyDirectory(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)

	ret := invoke(t, toolByName(fileToolset(api), "ls"), rc, `{}`)
	assert.Equal(t, "No files under '/'.", ret.Value)
}

func TestCatRequiresPath(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)

	ret := invoke(t, toolByName(fileToolset(api), "cat"), rc, `{}`)
	assert.Equal(t, "Error: File path must be a non-empty string.", ret.Value)

	ret = invoke(t, toolByName(fileToolset(api), "cat"), rc, `{"path":"notes.txt"}`)
	assert.Equal(t, "file content", ret.Value)
}

func TestGrepFormatsMatches(t *testing.T) {
	api := newFakeAPI()
	api.grepMatches = []scratchpad.GrepMatch{
		{Path: "notes.txt", Line: 3, Text: "call the vendor"},
		{Path: "todo.md", Line: 1, Text: "vendor follow-up"},
	}
	rc := notesRunContext(api)

	ret := invoke(t, toolByName(fileToolset(api), "grep"), rc, `{"pattern":"vendor"}`)
	assert.Equal(t, "notes.txt:3: call the vendor\ntodo.md:1: vendor follow-up", ret.Value)
}

func TestGrepNoMatches(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)

	ret := invoke(t, toolByName(fileToolset(api), "grep"), rc, `{"pattern":"absent","path":"docs"}`)
	assert.Equal(t, "No matches for 'absent' under 'docs'.", ret.Value)
}

func TestWriteAndRm(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	toolset := fileToolset(api)

	ret := invoke(t, toolByName(toolset, "write"), rc, `{"path":"out.txt","content":"hello"}`)
	assert.Equal(t, "Successfully wrote 5 bytes to 'out.txt'.", ret.Value)
	assert.Contains(t, api.callLog, "write:out.txt")

	ret = invoke(t, toolByName(toolset, "rm"), rc, `{"path":"out.txt"}`)
	assert.Equal(t, "Successfully deleted 'out.txt'.", ret.Value)
	assert.Contains(t, api.callLog, "rm:out.txt")
}

func TestURLContentLoadRejectsBadURLs(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	toolset := NewRegistry(api).Toolset(
		[]agent.Capability{agent.CapLoadURLContent}, agent.ScopeTable, nil)

	for _, bad := range []string{"", "ftp://example.com/x", "not a url", "file:///etc/passwd"} {
		ret := invoke(t, toolByName(toolset, "url_content_load"), rc,
			`{"url":"`+bad+`"}`)
		assert.Contains(t, ret.Value, "is not a valid http(s) URL", bad)
	}
}

func TestURLContentLoadFetchesAndTruncates(t *testing.T) {
	big := strings.Repeat("a", maxURLContentBytes+100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small":
			_, _ = w.Write([]byte("page body"))
		case "/big":
			_, _ = w.Write([]byte(big))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api := newFakeAPI()
	rc := notesRunContext(api)
	toolset := NewRegistry(api).Toolset(
		[]agent.Capability{agent.CapLoadURLContent}, agent.ScopeTable, nil)
	tool := toolByName(toolset, "url_content_load")

	ret := invoke(t, tool, rc, `{"url":"`+srv.URL+`/small"}`)
	assert.Equal(t, "page body", ret.Value)

	ret = invoke(t, tool, rc, `{"url":"`+srv.URL+`/big"}`)
	assert.Contains(t, ret.Value, "[Content truncated at")
	require.LessOrEqual(t, len(ret.Value), maxURLContentBytes+100)

	ret = invoke(t, tool, rc, `{"url":"`+srv.URL+`/missing"}`)
	assert.Contains(t, ret.Value, "returned status 404")
}

func TestUploadContentTool(t *testing.T) {
	api := newFakeAPI()
	rc := notesRunContext(api)
	toolset := NewRegistry(api).Toolset(
		[]agent.Capability{agent.CapUploadContent}, agent.ScopeTable, nil)
	tool := toolByName(toolset, "upload_content")

	ret := invoke(t, tool, rc, `{"upload_id":"up1"}`)
	assert.Equal(t, "upload content", ret.Value)

	ret = invoke(t, tool, rc, `{"upload_id":""}`)
	assert.Contains(t, ret.Value, "upload_id must be a non-empty string")
}
