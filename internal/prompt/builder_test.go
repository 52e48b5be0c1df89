package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder()
	require.NoError(t, err)
	return b
}

func TestBuilderLoadsAllTemplates(t *testing.T) {
	b := newTestBuilder(t)
	assert.Len(t, b.templates, len(requiredTemplates))
}

func TestBuildTableScopeBaseline(t *testing.T) {
	b := newTestBuilder(t)
	out := b.Build(Params{Scope: "table"})

	assert.Contains(t, out, "Your remit for\nthis conversation is an entire table")
	assert.Contains(t, out, "# IDENTIFYING RECORDS")
	assert.Contains(t, out, "# CHANGING DATA")
	// Capability-gated sections stay out with no flags set.
	assert.NotContains(t, out, "## Field tools")
	assert.NotContains(t, out, "# FILTERING")
	assert.NotContains(t, out, "# TABLE STRUCTURE")
	assert.NotContains(t, out, "# SUPPORTING TOOLS")
	assert.NotContains(t, out, "# FILE OPERATIONS")
	assert.NotContains(t, out, "# ASSETS")
}

func TestBuildCapabilityGating(t *testing.T) {
	b := newTestBuilder(t)
	out := b.Build(Params{Scope: "table", Capabilities: map[string]bool{
		capDataFieldTools: true,
		capDataUpdate:     true,
		capViewsFiltering: true,
		capTableAddCol:    true,
		capLoadURL:        true,
	}})

	assert.Contains(t, out, "## Field tools")
	assert.Contains(t, out, "## Updating records")
	assert.Contains(t, out, "# FILTERING")
	assert.Contains(t, out, "# TABLE STRUCTURE")
	assert.Contains(t, out, "# SUPPORTING TOOLS")
	assert.NotContains(t, out, "## Creating records")
	assert.NotContains(t, out, "## Deleting records")
}

func TestBuildFileScope(t *testing.T) {
	b := newTestBuilder(t)
	out := b.Build(Params{Scope: "file", Capabilities: map[string]bool{
		capDataFieldTools: true,
		capDataUpdate:     true,
	}})

	assert.Contains(t, out, "file assistant")
	assert.Contains(t, out, "# FILE OPERATIONS")
	// Tabular manipulation sections never reach the file scope, whatever the
	// flags say.
	assert.NotContains(t, out, "# CHANGING DATA")
	assert.NotContains(t, out, "## Field tools")
}

func TestBuildAssetsAppendedInOrder(t *testing.T) {
	b := newTestBuilder(t)
	out := b.Build(Params{Scope: "table", Assets: []Asset{
		{Name: "Tone guide", Content: "Keep answers brief.\n"},
		{Name: "Glossary", Content: "wsId means workspace id."},
	}})

	idx := strings.Index(out, "# ASSETS")
	require.GreaterOrEqual(t, idx, 0)
	assert.Contains(t, out, "## Tone guide\n\nKeep answers brief.")
	assert.Contains(t, out, "## Glossary\n\nwsId means workspace id.")
	assert.Less(t, strings.Index(out, "## Tone guide"), strings.Index(out, "## Glossary"))
}

func TestBuildSectionsSeparatedByBlankLines(t *testing.T) {
	b := newTestBuilder(t)
	out := b.Build(Params{Scope: "record"})
	assert.NotContains(t, out, "\n\n\n")
	assert.False(t, strings.HasSuffix(out, "\n"))
}
