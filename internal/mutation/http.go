package mutation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient forwards requests to the mutation service over HTTP.
type HTTPClient struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		url:     strings.TrimSpace(url),
		timeout: timeout,
		// The per-call deadline comes from the request context; no extra
		// transport timeout that could fire first and muddy classification.
		client: &http.Client{},
	}
}

func (c *HTTPClient) Mutate(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, &Error{Code: CodeRequestTimedOut, Detail: err.Error()}
		}
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}
		return Response{}, &Error{Code: CodeNetworkUnavailable, Detail: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Response{}, &Error{
			Code:   classifyStatus(res.StatusCode),
			Status: res.StatusCode,
			Detail: strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, &Error{Code: CodeRequestTimedOut, Detail: err.Error()}
		}
		return Response{}, &Error{Code: CodeNetworkUnavailable, Detail: err.Error()}
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return Response{}, &Error{Code: CodeMutationFailed, Detail: fmt.Sprintf("malformed response: %v", err)}
	}
	return Normalize(obj), nil
}
