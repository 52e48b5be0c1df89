// Package scratchpad is a typed client for the remote Scratchpad data
// service. The agent acts on behalf of a user, proven by a service-level
// secret plus the user id carried on every request.
package scratchpad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"
)

const (
	// maxListTake bounds a single list-records page.
	maxListTake = 100
	// maxBodyBytes bounds how much of an error body we retain for surfacing.
	maxBodyBytes = 64 * 1024
)

// ClientError is the single failure type for all client calls. The client
// performs no retries; the caller decides.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("scratchpad service returned %d: %s", e.StatusCode, e.Body)
}

// surfaceBodyLimit bounds the upstream body echoed in client-facing errors.
const surfaceBodyLimit = 512

// TrimmedBody is the upstream body prepared for a client-facing message.
func (e *ClientError) TrimmedBody() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("scratchpad service returned %d", e.StatusCode)
	}
	if len(body) > surfaceBodyLimit {
		body = body[:surfaceBodyLimit]
	}
	return body
}

// Client talks to the Scratchpad service. It is stateless and safe for
// concurrent use; pooling is the HTTP library's concern.
type Client struct {
	log          *logrus.Entry
	cl           *http.Client
	baseURL      string
	serviceToken string
}

// NewClient builds a client against the given base URL using the service
// secret for the Agent-Token scheme.
func NewClient(baseURL, serviceToken string) *Client {
	return &Client{
		log:          logrus.WithField("component", "scratchpad-client"),
		cl:           cleanhttp.DefaultPooledClient(),
		baseURL:      baseURL,
		serviceToken: serviceToken,
	}
}

func (c *Client) do(
	ctx context.Context, user, method, path string, query url.Values, body, out interface{},
) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Agent-Token %s:%s", c.serviceToken, user))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.cl.Do(req)
	if err != nil {
		return &ClientError{StatusCode: 0, Body: err.Error()}
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			c.log.WithError(cErr).Warn("closing response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bs, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return &ClientError{StatusCode: resp.StatusCode, Body: string(bs)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ClientError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("decoding response: %v", err)}
		}
	}
	return nil
}

// notFound reports whether err is a ClientError with a 404 status.
func notFound(err error) bool {
	cErr, ok := err.(*ClientError)
	return ok && cErr.StatusCode == http.StatusNotFound
}

// GetWorkbook fetches a workbook including its snapshot tables.
func (c *Client) GetWorkbook(ctx context.Context, user, workbookID string) (*Workbook, error) {
	var wb Workbook
	path := fmt.Sprintf("/api/workbooks/%s", url.PathEscape(workbookID))
	if err := c.do(ctx, user, http.MethodGet, path, nil, nil, &wb); err != nil {
		return nil, err
	}
	return &wb, nil
}

// ListRecordsForAI pages through a table's records as the agent should see
// them. Take is clamped to the service's page bound.
func (c *Client) ListRecordsForAI(
	ctx context.Context, user, workbookID, tableID string, cursor *string, take int,
) (*RecordPage, error) {
	if take <= 0 || take > maxListTake {
		take = maxListTake
	}
	query := url.Values{"take": []string{strconv.Itoa(take)}}
	if cursor != nil && *cursor != "" {
		query.Set("cursor", *cursor)
	}

	var page RecordPage
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/records/list-for-ai",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	if err := c.do(ctx, user, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetRecordsByIDs fetches records by ws-id. Missing ids are silently omitted
// from the result, not errors.
func (c *Client) GetRecordsByIDs(
	ctx context.Context, user, workbookID, tableID string, wsIDs []string,
) ([]Record, error) {
	var out struct {
		Records []Record `json:"records"`
	}
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/records/by-ids",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	body := map[string]interface{}{"wsIds": wsIDs}
	if err := c.do(ctx, user, http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// GetRecord fetches a single record, returning nil (no error) if it does not
// exist. Field-level tools use this for fresh reads under concurrency.
func (c *Client) GetRecord(
	ctx context.Context, user, workbookID, tableID, wsID string,
) (*Record, error) {
	var rec Record
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/records/%s",
		url.PathEscape(workbookID), url.PathEscape(tableID), url.PathEscape(wsID))
	if err := c.do(ctx, user, http.MethodGet, path, nil, nil, &rec); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// BulkSuggestRecordUpdates submits suggested mutations. Updates land in
// suggested_fields; nothing writes to applied fields directly. Read-only
// column edits are dropped silently by the service.
func (c *Client) BulkSuggestRecordUpdates(
	ctx context.Context, user, workbookID, tableID string, ops []BulkOp,
) error {
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/records/bulk-suggest",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	body := map[string]interface{}{"operations": ops}
	return c.do(ctx, user, http.MethodPost, path, nil, body, nil)
}

// AddScratchColumn creates a user-owned scratch column on the table.
func (c *Client) AddScratchColumn(
	ctx context.Context, user, workbookID, tableID, name, columnType string,
) (*Column, error) {
	var col Column
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/columns/scratch",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	body := map[string]string{"name": name, "type": columnType}
	if err := c.do(ctx, user, http.MethodPost, path, nil, body, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// RemoveScratchColumn deletes a scratch column.
func (c *Client) RemoveScratchColumn(
	ctx context.Context, user, workbookID, tableID, columnID string,
) error {
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/columns/scratch/%s",
		url.PathEscape(workbookID), url.PathEscape(tableID), url.PathEscape(columnID))
	return c.do(ctx, user, http.MethodDelete, path, nil, nil, nil)
}

// SetActiveRecordsFilter replaces the table's server-side record filter with
// the given SQL where clause; nil clears it.
func (c *Client) SetActiveRecordsFilter(
	ctx context.Context, user, workbookID, tableID string, whereClause *string,
) error {
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/active-filter",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	body := map[string]interface{}{"where": whereClause}
	return c.do(ctx, user, http.MethodPut, path, nil, body, nil)
}

// AddRecordsToActiveFilter widens the active filter to include the given records.
func (c *Client) AddRecordsToActiveFilter(
	ctx context.Context, user, workbookID, tableID string, wsIDs []string,
) error {
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/active-filter/records",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	body := map[string]interface{}{"wsIds": wsIDs}
	return c.do(ctx, user, http.MethodPost, path, nil, body, nil)
}

// ClearActiveRecordFilter removes the table's active record filter.
func (c *Client) ClearActiveRecordFilter(
	ctx context.Context, user, workbookID, tableID string,
) error {
	path := fmt.Sprintf("/api/workbooks/%s/tables/%s/active-filter",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	return c.do(ctx, user, http.MethodDelete, path, nil, nil, nil)
}

// ListFilesByPath lists the file-space entries under a path.
func (c *Client) ListFilesByPath(
	ctx context.Context, user, workbookID, path string,
) ([]FileInfo, error) {
	var out struct {
		Files []FileInfo `json:"files"`
	}
	query := url.Values{"path": []string{path}}
	apiPath := fmt.Sprintf("/api/workbooks/%s/files", url.PathEscape(workbookID))
	if err := c.do(ctx, user, http.MethodGet, apiPath, query, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// GetFileByPath returns a file's content.
func (c *Client) GetFileByPath(
	ctx context.Context, user, workbookID, path string,
) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	query := url.Values{"path": []string{path}}
	apiPath := fmt.Sprintf("/api/workbooks/%s/files/content", url.PathEscape(workbookID))
	if err := c.do(ctx, user, http.MethodGet, apiPath, query, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// FindFiles returns file entries whose names match the pattern under path.
func (c *Client) FindFiles(
	ctx context.Context, user, workbookID, pattern, path string, recursive bool,
) ([]FileInfo, error) {
	var out struct {
		Files []FileInfo `json:"files"`
	}
	apiPath := fmt.Sprintf("/api/workbooks/%s/files/find", url.PathEscape(workbookID))
	body := map[string]interface{}{"pattern": pattern, "path": path, "recursive": recursive}
	if err := c.do(ctx, user, http.MethodPost, apiPath, nil, body, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// GrepFiles searches file contents for the pattern under path.
func (c *Client) GrepFiles(
	ctx context.Context, user, workbookID, pattern, path string,
) ([]GrepMatch, error) {
	var out struct {
		Matches []GrepMatch `json:"matches"`
	}
	apiPath := fmt.Sprintf("/api/workbooks/%s/files/grep", url.PathEscape(workbookID))
	body := map[string]interface{}{"pattern": pattern, "path": path}
	if err := c.do(ctx, user, http.MethodPost, apiPath, nil, body, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// WriteFile creates or overwrites a file in the workbook's file space.
func (c *Client) WriteFile(
	ctx context.Context, user, workbookID, path, content string,
) error {
	apiPath := fmt.Sprintf("/api/workbooks/%s/files/content", url.PathEscape(workbookID))
	body := map[string]string{"path": path, "content": content}
	return c.do(ctx, user, http.MethodPut, apiPath, nil, body, nil)
}

// DeleteFile removes a file from the workbook's file space.
func (c *Client) DeleteFile(ctx context.Context, user, workbookID, path string) error {
	query := url.Values{"path": []string{path}}
	apiPath := fmt.Sprintf("/api/workbooks/%s/files", url.PathEscape(workbookID))
	return c.do(ctx, user, http.MethodDelete, apiPath, query, nil, nil)
}

// GetUploadContent fetches the extracted content of a prior user upload.
func (c *Client) GetUploadContent(ctx context.Context, user, uploadID string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	path := fmt.Sprintf("/api/uploads/%s/content", url.PathEscape(uploadID))
	if err := c.do(ctx, user, http.MethodGet, path, nil, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// SaveAgentSession persists an opaque session blob.
func (c *Client) SaveAgentSession(
	ctx context.Context, user, sessionID string, blob json.RawMessage,
) error {
	path := fmt.Sprintf("/api/agent-sessions/%s", url.PathEscape(sessionID))
	return c.do(ctx, user, http.MethodPut, path, nil, map[string]interface{}{"blob": blob}, nil)
}

// GetAgentSession loads a session blob, returning nil (no error) on a miss.
func (c *Client) GetAgentSession(
	ctx context.Context, user, sessionID string,
) (json.RawMessage, error) {
	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	path := fmt.Sprintf("/api/agent-sessions/%s", url.PathEscape(sessionID))
	if err := c.do(ctx, user, http.MethodGet, path, nil, nil, &out); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out.Blob, nil
}

// ListAgentSessionsByWorkbook returns the persisted session blobs for a workbook.
func (c *Client) ListAgentSessionsByWorkbook(
	ctx context.Context, user, workbookID string,
) ([]json.RawMessage, error) {
	var out struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	path := fmt.Sprintf("/api/workbooks/%s/agent-sessions", url.PathEscape(workbookID))
	if err := c.do(ctx, user, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// DeleteAgentSession removes a persisted session blob.
func (c *Client) DeleteAgentSession(ctx context.Context, user, sessionID string) error {
	path := fmt.Sprintf("/api/agent-sessions/%s", url.PathEscape(sessionID))
	return c.do(ctx, user, http.MethodDelete, path, nil, nil, nil)
}
