package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pageforge-dev/pageforge/internal/reliability"
)

// SaveRequest is the persistence endpoint payload.
type SaveRequest struct {
	Title        string `json:"title"`
	DocumentBody string `json:"documentBody"`
	Version      int64  `json:"version"`
}

// SaveResult reports the version the server accepted.
type SaveResult struct {
	Version int64 `json:"version"`
}

// PublishResult carries the externally reachable URL of the published page.
type PublishResult struct {
	PublishedURL string `json:"publishedUrl"`
}

// Client consumes the save and publish endpoints over HTTP. It holds no
// session state; the session manager owns the single-writer discipline.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Save sends the current title, document, and version to the persistence
// endpoint. 401 and 409 map to distinct errors; the caller's in-memory state
// is never touched here.
func (c *Client) Save(ctx context.Context, pageID string, req SaveRequest) (SaveResult, error) {
	var out SaveResult
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/pages/%s", pageID), req, &out, func(status int) string {
		switch status {
		case http.StatusUnauthorized:
			return CodeSessionExpired
		case http.StatusConflict:
			return CodeVersionConflict
		default:
			return CodeSaveFailed
		}
	})
	if err != nil {
		return SaveResult{}, err
	}
	return out, nil
}

type publishRequest struct {
	Action string `json:"action"`
	Slug   string `json:"slug,omitempty"`
}

// Publish invokes the publish endpoint; the server side performs the whole
// transition atomically.
func (c *Client) Publish(ctx context.Context, pageID, slug string) (PublishResult, error) {
	var out PublishResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/pages/%s/publish", pageID), publishRequest{Action: "publish", Slug: slug}, &out, func(status int) string {
		switch status {
		case http.StatusUnauthorized:
			return CodeSessionExpired
		case http.StatusConflict:
			return CodeSlugConflict
		default:
			return CodePublishFailed
		}
	})
	if err != nil {
		return PublishResult{}, err
	}
	return out, nil
}

const (
	maxAttempts  = 3
	retryBase    = 200 * time.Millisecond
	retryCeiling = 2 * time.Second
)

// do issues one request with bounded retries. Requests here are idempotent:
// a save carries its version and a publish carries its slug, so replaying a
// transiently failed call cannot double-apply. Conflict and auth responses
// are terminal and never retried.
func (c *Client) do(ctx context.Context, method, path string, in, out any, codeFor func(int) string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &Error{Code: codeFor(0), Detail: ctx.Err().Error()}
			case <-time.After(reliability.ExponentialBackoff(attempt-1, retryBase, retryCeiling)):
			}
		}

		retryable, err := c.doOnce(ctx, method, path, payload, out, codeFor)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any, codeFor func(int) string) (retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return false, &Error{Code: codeFor(0), Detail: err.Error()}
		}
		return true, &Error{Code: codeFor(0), Detail: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return reliability.IsRetryableHTTPStatus(res.StatusCode), &Error{
			Code:   codeFor(res.StatusCode),
			Status: res.StatusCode,
			Detail: strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return false, &Error{Code: codeFor(0), Detail: fmt.Sprintf("malformed response: %v", err)}
	}
	return false, nil
}
