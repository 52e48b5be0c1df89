package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scratchpad-ai/agent-server/internal/agent"
)

// fileTools is the always-on toolset for file-scope agents.
func (r *Registry) fileTools() []agent.ToolDescriptor {
	return []agent.ToolDescriptor{
		r.lsTool(),
		r.catTool(),
		r.findTool(),
		r.grepTool(),
		r.writeTool(),
		r.rmTool(),
	}
}

func (r *Registry) lsTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "ls",
		Description: "List the files and directories under a path in the workbook file space.",
		Schema: objectSchema(map[string]interface{}{
			"path": stringProp("Directory path; defaults to the workbook root."),
		}),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args struct {
				Path string `json:"path"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			files, err := r.api.ListFilesByPath(ctx, rc.UserID, rc.Workbook.ID, args.Path)
			if err != nil {
				return errReturn("listing files failed: %v", err)
			}
			if len(files) == 0 {
				return okReturn("No files under '%s'.", displayPath(args.Path))
			}
			var b strings.Builder
			for _, f := range files {
				if f.IsDir {
					fmt.Fprintf(&b, "%s/\n", f.Path)
				} else {
					fmt.Fprintf(&b, "%s (%d bytes)\n", f.Path, f.Size)
				}
			}
			return agent.ToolReturn{Value: strings.TrimRight(b.String(), "\n")}
		},
	}
}

func (r *Registry) catTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "cat",
		Description: "Read a file's content.",
		Schema: objectSchema(map[string]interface{}{
			"path": stringProp("The file path."),
		}, "path"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args struct {
				Path string `json:"path"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			if args.Path == "" {
				return errReturn("File path must be a non-empty string.")
			}
			content, err := r.api.GetFileByPath(ctx, rc.UserID, rc.Workbook.ID, args.Path)
			if err != nil {
				return errReturn("reading file '%s' failed: %v", args.Path, err)
			}
			return agent.ToolReturn{Value: content}
		},
	}
}

func (r *Registry) findTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "find",
		Description: "Find files by name pattern.",
		Schema: objectSchema(map[string]interface{}{
			"pattern": stringProp("Glob-style name pattern."),
			"path":    stringProp("Directory to search; defaults to the workbook root."),
			"recursive": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether to descend into subdirectories; defaults to true.",
			},
		}, "pattern"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			args := struct {
				Pattern   string `json:"pattern"`
				Path      string `json:"path"`
				Recursive *bool  `json:"recursive"`
			}{}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			if args.Pattern == "" {
				return errReturn("Pattern must be a non-empty string.")
			}
			recursive := args.Recursive == nil || *args.Recursive
			files, err := r.api.FindFiles(ctx, rc.UserID, rc.Workbook.ID, args.Pattern, args.Path, recursive)
			if err != nil {
				return errReturn("finding files failed: %v", err)
			}
			if len(files) == 0 {
				return okReturn("No files matching '%s' under '%s'.", args.Pattern, displayPath(args.Path))
			}
			paths := make([]string, 0, len(files))
			for _, f := range files {
				paths = append(paths, f.Path)
			}
			return agent.ToolReturn{Value: strings.Join(paths, "\n")}
		},
	}
}

func (r *Registry) grepTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "grep",
		Description: "Search file contents for a pattern.",
		Schema: objectSchema(map[string]interface{}{
			"pattern": stringProp("The text or regular expression to search for."),
			"path":    stringProp("Directory to search; defaults to the workbook root."),
		}, "pattern"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args struct {
				Pattern string `json:"pattern"`
				Path    string `json:"path"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			if args.Pattern == "" {
				return errReturn("Pattern must be a non-empty string.")
			}
			matches, err := r.api.GrepFiles(ctx, rc.UserID, rc.Workbook.ID, args.Pattern, args.Path)
			if err != nil {
				return errReturn("searching files failed: %v", err)
			}
			if len(matches) == 0 {
				return okReturn("No matches for '%s' under '%s'.", args.Pattern, displayPath(args.Path))
			}
			var b strings.Builder
			for _, m := range matches {
				fmt.Fprintf(&b, "%s:%d: %s\n", m.Path, m.Line, m.Text)
			}
			return agent.ToolReturn{Value: strings.TrimRight(b.String(), "\n")}
		},
	}
}

func (r *Registry) writeTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "write",
		Description: "Create or overwrite a file with the given content.",
		Schema: objectSchema(map[string]interface{}{
			"path":    stringProp("The file path."),
			"content": stringProp("The full file content."),
		}, "path", "content"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			if args.Path == "" {
				return errReturn("File path must be a non-empty string.")
			}
			if err := r.api.WriteFile(ctx, rc.UserID, rc.Workbook.ID, args.Path, args.Content); err != nil {
				return errReturn("writing file '%s' failed: %v", args.Path, err)
			}
			return okReturn("Successfully wrote %d bytes to '%s'.", len(args.Content), args.Path)
		},
	}
}

func (r *Registry) rmTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "rm",
		Description: "Delete a file from the workbook file space.",
		Schema: objectSchema(map[string]interface{}{
			"path": stringProp("The file path."),
		}, "path"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args struct {
				Path string `json:"path"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			if args.Path == "" {
				return errReturn("File path must be a non-empty string.")
			}
			if err := r.api.DeleteFile(ctx, rc.UserID, rc.Workbook.ID, args.Path); err != nil {
				return errReturn("deleting file '%s' failed: %v", args.Path, err)
			}
			return okReturn("Successfully deleted '%s'.", args.Path)
		},
	}
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
