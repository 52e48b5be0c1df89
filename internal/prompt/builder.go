// Package prompt assembles the system prompt from an embedded library of
// markdown templates, gated by capability flags and data scope.
package prompt

import (
	"embed"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

//go:embed templates/*.md
var templatesFS embed.FS

// Capability flag names this package gates sections on. They mirror the
// agent package's flags; plain strings avoid an import cycle with the runner.
const (
	capDataCreate     = "data:create"
	capDataUpdate     = "data:update"
	capDataDelete     = "data:delete"
	capDataFieldTools = "data:field-tools"
	capDataFetchTools = "data:fetch-tools"
	capViewsFiltering = "views:filtering"
	capTableAddCol    = "table:add-column"
	capTableRemoveCol = "table:remove-column"
	capLoadURL        = "other:load-url-content"
	capUploadContent  = "other:upload-content"
)

// requiredTemplates is the manifest checked at startup. A missing template is
// a configuration error, caught in the constructor rather than at request
// time.
var requiredTemplates = []string{
	"base_table",
	"base_record",
	"base_column",
	"base_file",
	"identifying_records",
	"manipulation_table",
	"manipulation_record",
	"manipulation_column",
	"manipulation_create",
	"manipulation_update",
	"manipulation_delete",
	"manipulation_field_tools",
	"file_operations",
	"final_response",
	"data_formatting",
	"data_structure",
	"mentions",
	"views_filtering",
	"data_fetch_tools",
	"supporting_tools",
	"table_structure",
}

// Asset is a free-form named prompt section appended under the ASSETS header.
type Asset struct {
	Name    string
	Content string
}

// Params select which sections the built prompt contains.
type Params struct {
	// Scope is one of table, record, column, file.
	Scope string
	// Capabilities is the turn's enabled capability flags.
	Capabilities map[string]bool
	// Assets are appended verbatim, in order, under "# ASSETS".
	Assets []Asset
}

// Builder holds the loaded template library. Templates are immutable text;
// building is ordered concatenation with blank-line separators, no markdown
// processing.
type Builder struct {
	templates map[string]string
}

// NewBuilder loads the template library once and fails fast if any required
// template is missing or empty.
func NewBuilder() (*Builder, error) {
	b := &Builder{templates: map[string]string{}}
	for _, name := range requiredTemplates {
		bs, err := templatesFS.ReadFile(fmt.Sprintf("templates/%s.md", name))
		if err != nil {
			return nil, errors.Wrapf(err, "prompt template %q missing", name)
		}
		text := strings.TrimSpace(string(bs))
		if text == "" {
			return nil, errors.Errorf("prompt template %q is empty", name)
		}
		b.templates[name] = text
	}
	return b, nil
}

// Build assembles the system prompt for the given parameters.
func (b *Builder) Build(p Params) string {
	caps := p.Capabilities
	if caps == nil {
		caps = map[string]bool{}
	}

	var sections []string
	add := func(name string) {
		if text, ok := b.templates[name]; ok {
			sections = append(sections, text)
		}
	}

	add("base_" + p.Scope)
	add("identifying_records")

	if p.Scope == "file" {
		add("file_operations")
	} else {
		add("manipulation_" + p.Scope)
		if caps[capDataCreate] {
			add("manipulation_create")
		}
		if caps[capDataUpdate] {
			add("manipulation_update")
		}
		if caps[capDataDelete] {
			add("manipulation_delete")
		}
		if caps[capDataFieldTools] {
			add("manipulation_field_tools")
		}
	}

	add("final_response")
	add("data_formatting")
	add("data_structure")
	add("mentions")

	if caps[capViewsFiltering] {
		add("views_filtering")
	}
	if caps[capDataFetchTools] {
		add("data_fetch_tools")
	}
	if caps[capLoadURL] || caps[capUploadContent] {
		add("supporting_tools")
	}
	if caps[capTableAddCol] || caps[capTableRemoveCol] {
		add("table_structure")
	}

	if len(p.Assets) > 0 {
		var assets strings.Builder
		assets.WriteString("# ASSETS")
		for _, asset := range p.Assets {
			assets.WriteString(fmt.Sprintf("\n\n## %s\n\n%s", asset.Name, strings.TrimSpace(asset.Content)))
		}
		sections = append(sections, assets.String())
	}

	return strings.Join(sections, "\n\n")
}
