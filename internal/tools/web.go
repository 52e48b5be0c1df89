package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/scratchpad-ai/agent-server/internal/agent"
)

// maxURLContentBytes bounds how much of a fetched page is handed to the
// model; anything past the cap is dropped with a truncation notice.
const maxURLContentBytes = 256 * 1024

func (r *Registry) urlContentLoadTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "url_content_load",
		Description: "Fetch the content of a public http(s) URL as text.",
		Schema: objectSchema(map[string]interface{}{
			"url": stringProp("The absolute http or https URL to fetch."),
		}, "url"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args struct {
				URL string `json:"url"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			parsed, err := url.Parse(args.URL)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
				return errReturn("'%s' is not a valid http(s) URL.", args.URL)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
			if err != nil {
				return errReturn("building request for '%s' failed: %v", args.URL, err)
			}
			resp, err := r.http.Do(req)
			if err != nil {
				return errReturn("fetching '%s' failed: %v", args.URL, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return errReturn("fetching '%s' returned status %d.", args.URL, resp.StatusCode)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxURLContentBytes+1))
			if err != nil {
				return errReturn("reading response from '%s' failed: %v", args.URL, err)
			}
			content := string(body)
			if len(body) > maxURLContentBytes {
				content = content[:maxURLContentBytes] +
					fmt.Sprintf("\n[Content truncated at %d bytes]", maxURLContentBytes)
			}
			if strings.TrimSpace(content) == "" {
				return okReturn("The URL '%s' returned no content.", args.URL)
			}
			return agent.ToolReturn{Value: content}
		},
	}
}

func (r *Registry) uploadContentTool() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:        "upload_content",
		Description: "Load the extracted text of a previously uploaded file by its upload id.",
		Schema: objectSchema(map[string]interface{}{
			"upload_id": stringProp("The id of the upload to load."),
		}, "upload_id"),
		TakesContext: true,
		Async:        true,
		Invoke: func(ctx context.Context, rc *agent.RunContext, raw json.RawMessage) agent.ToolReturn {
			var args struct {
				UploadID string `json:"upload_id"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return errReturn("invalid arguments: %v", err)
			}
			if args.UploadID == "" {
				return errReturn("upload_id must be a non-empty string.")
			}
			content, err := r.api.GetUploadContent(ctx, rc.UserID, args.UploadID)
			if err != nil {
				return errReturn("loading upload '%s' failed: %v", args.UploadID, err)
			}
			if content == "" {
				return okReturn("Upload '%s' has no extracted content.", args.UploadID)
			}
			return agent.ToolReturn{Value: content}
		},
	}
}
