// Package client talks to a running lettarag API server. The CLI uses it for
// search, stats, upload and reindex so that a single serve process owns the
// index.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/H0NEYP0T-466/lettaXrag/api"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/sse"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/upload"
)

const defaultTimeout = 5 * time.Minute

// Client is an HTTP client for the lettarag API.
type Client struct {
	target *url.URL
	http   *http.Client
}

// New parses target and returns a Client for it. A nil httpClient gets a
// client with a timeout long enough for a full rebuild.
func New(target string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", target)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{target: u, http: httpClient}, nil
}

// Retrieve calls GET /v1/retrieve.
func (c *Client) Retrieve(ctx context.Context, query string, k int) (*api.RetrieveResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}

	var out api.RetrieveResponse
	if err := c.do(ctx, http.MethodGet, "/v1/retrieve", q, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats calls GET /v1/stats.
func (c *Client) Stats(ctx context.Context) (*indexstate.Stats, error) {
	var out indexstate.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reindex calls POST /v1/reindex.
func (c *Client) Reindex(ctx context.Context, force bool) (*indexsync.Result, error) {
	q := url.Values{}
	q.Set("force", strconv.FormatBool(force))

	var out indexsync.Result
	if err := c.do(ctx, http.MethodPost, "/v1/reindex", q, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile sends the file at path as the multipart "file" field of
// POST /v1/upload.
func (c *Client) UploadFile(ctx context.Context, path string) (*upload.Result, error) {
	// Fail locally on names the server would refuse anyway.
	if _, err := upload.Validate(filepath.Base(path)); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	var out upload.Result
	if err := c.do(ctx, http.MethodPost, "/v1/upload", nil, &body, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events subscribes to GET /v1/events and calls fn for each committed sync
// pass until ctx is cancelled, fn returns an error or the server ends the
// stream. Cancellation returns ctx.Err(); a server-side close returns nil.
func (c *Client) Events(ctx context.Context, fn func(*eventstream.IndexSyncedEvent) error) error {
	u := *c.target
	u.Path = "/v1/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is open ended, so the request timeout must not apply.
	streaming := *c.http
	streaming.Timeout = 0

	resp, err := streaming.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to connect to lettarag API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, data)
	}

	r := sse.NewReader(resp.Body)
	for {
		ev, err := r.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading event stream: %w", err)
		}
		if ev == nil {
			return nil
		}
		if ev.Type != eventstream.EventTypeIndexSynced {
			continue
		}

		var event eventstream.IndexSyncedEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			return fmt.Errorf("failed to parse event %s: %w", ev.ID, err)
		}
		if err := fn(&event); err != nil {
			return err
		}
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (HTTP %d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := *c.target
	u.Path = path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to lettarag API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// statusError prefers the API's JSON error message over the raw body.
func statusError(code int, body []byte) *StatusError {
	msg := string(body)
	var apiErr api.ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return &StatusError{StatusCode: code, Message: msg}
}

// IsUnavailable reports whether err is a 503 from the server.
func IsUnavailable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
}
