// Package backend is the HTTP client for the external analysis backend that
// owns durable application records.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/JaimeStill/creditdesk/internal/applications"
)

const maxErrorBody = 64 << 10

// Client issues typed requests against the analysis backend. Every request is
// bounded by the configured timeout.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a Client from a finalized Config.
func New(cfg *Config, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:  logger.With("system", "backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Application fetches the full application record.
func (c *Client) Application(ctx context.Context, id string) (*applications.Application, error) {
	var app applications.Application
	if err := c.do(ctx, http.MethodGet, appPath(id, ""), nil, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Applications lists the most recent applications.
func (c *Client) Applications(ctx context.Context, limit int) ([]applications.Summary, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var list []applications.Summary
	if err := c.do(ctx, http.MethodGet, "/api/applications", q, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Stats returns queue-wide counters.
func (c *Client) Stats(ctx context.Context) (*applications.Stats, error) {
	var stats applications.Stats
	if err := c.do(ctx, http.MethodGet, "/api/applications/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Status fetches the lightweight status report for an application.
func (c *Client) Status(ctx context.Context, id string) (*applications.StatusReport, error) {
	var report applications.StatusReport
	if err := c.do(ctx, http.MethodGet, "/api/status/"+url.PathEscape(id), nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Verify records a reviewer decision.
func (c *Client) Verify(ctx context.Context, id string, req VerifyRequest) (*VerifyResult, error) {
	var result VerifyResult
	if err := c.do(ctx, http.MethodPost, appPath(id, "/verify"), nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LockDecision irreversibly locks the recorded decision.
func (c *Client) LockDecision(ctx context.Context, id, reviewer string) (*LockResult, error) {
	var result LockResult
	body := reviewerBody{ReviewerName: reviewer}
	if err := c.do(ctx, http.MethodPost, appPath(id, "/lock-decision"), nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendEmail triggers the decision notification for a locked application.
func (c *Client) SendEmail(ctx context.Context, id, reviewer string) (*EmailResult, error) {
	var result EmailResult
	body := reviewerBody{ReviewerName: reviewer}
	if err := c.do(ctx, http.MethodPost, appPath(id, "/send-email"), nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Comment replaces the reviewer annotation.
func (c *Client) Comment(ctx context.Context, id, comment string) error {
	return c.do(ctx, http.MethodPost, appPath(id, "/comment"), nil, commentBody{Comment: comment}, nil)
}

// Navigate resolves the neighbouring application in queue order. The second
// return value is false when the backend reports no neighbour.
func (c *Client) Navigate(ctx context.Context, id string, dir applications.Direction) (string, bool, error) {
	q := url.Values{"direction": {string(dir)}}
	var result navigateResult
	if err := c.do(ctx, http.MethodGet, appPath(id, "/navigate"), q, nil, &result); err != nil {
		return "", false, err
	}
	if result.ApplicationID == nil || *result.ApplicationID == "" {
		return "", false, nil
	}
	return *result.ApplicationID, true, nil
}

// Retry re-queues analysis for a failed application.
func (c *Client) Retry(ctx context.Context, id string) (*RetryResult, error) {
	var result RetryResult
	if err := c.do(ctx, http.MethodPost, appPath(id, "/retry"), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes an application and its documents.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, appPath(id, ""), nil, nil, nil)
}

// Ask forwards a copilot question about one application.
func (c *Client) Ask(ctx context.Context, id, question string) (*Answer, error) {
	var answer Answer
	body := askBody{Question: question, ApplicationID: id}
	if err := c.do(ctx, http.MethodPost, "/api/copilot/ask", nil, body, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Upload submits the documents of a new application as a multipart form.
func (c *Client) Upload(ctx context.Context, files []UploadFile) (*UploadResult, error) {
	body, contentType, err := multipartBody(files)
	if err != nil {
		return nil, err
	}
	var result UploadResult
	if err := c.send(ctx, http.MethodPost, "/api/upload", nil, body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadBatch submits a CSV manifest, or a ZIP holding one, that queues
// several applications at once. The file is sent as the "file" field.
func (c *Client) UploadBatch(ctx context.Context, file UploadFile) (*BatchResult, error) {
	file.Field = "file"
	body, contentType, err := multipartBody([]UploadFile{file})
	if err != nil {
		return nil, err
	}
	var result BatchResult
	if err := c.send(ctx, http.MethodPost, "/api/upload/batch", nil, body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Settings fetches the risk policy and its audit trail.
func (c *Client) Settings(ctx context.Context) (*applications.Settings, error) {
	var settings applications.Settings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &settings); err != nil {
		return nil, err
	}
	if settings.AuditLogs == nil {
		settings.AuditLogs = []applications.PolicyAudit{}
	}
	return &settings, nil
}

// UpdateSettings replaces the risk policy.
func (c *Client) UpdateSettings(ctx context.Context, policy applications.Policy) error {
	return c.do(ctx, http.MethodPost, "/api/settings", nil, policy, nil)
}

// Analytics returns the portfolio analytics summary. Its shape belongs to the
// backend and is passed through untouched.
func (c *Client) Analytics(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/analytics/summary", nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Export streams the CSV export of every application into w and returns the
// number of bytes copied.
func (c *Client) Export(ctx context.Context, w io.Writer) (int64, error) {
	res, err := c.open(ctx, http.MethodGet, "/api/export/applications", nil, nil, "", "text/csv")
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	n, err := io.Copy(w, res.Body)
	if err != nil {
		return n, fmt.Errorf("%w: export interrupted after %d bytes: %w", ErrUnavailable, n, err)
	}
	return n, nil
}

func multipartBody(files []UploadFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, query, reader, contentType, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	res, err := c.open(ctx, method, path, query, body, contentType, "application/json")
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// open performs the request and returns the response of a 2xx call. The
// caller closes the body. Any other status is decoded into a *StatusError.
func (c *Client) open(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType, accept string) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}

	c.logger.Debug("backend call",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"duration", time.Since(start),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		return nil, decodeError(res)
	}
	return res, nil
}

func decodeError(res *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	se := &StatusError{StatusCode: res.StatusCode}

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != nil {
		switch d := body.Detail.(type) {
		case string:
			se.Detail = d
		default:
			if raw, err := json.Marshal(d); err == nil {
				se.Detail = string(raw)
			}
		}
		return se
	}

	se.Detail = string(bytes.TrimSpace(data))
	return se
}

func appPath(id, suffix string) string {
	return "/api/application/" + url.PathEscape(id) + suffix
}
