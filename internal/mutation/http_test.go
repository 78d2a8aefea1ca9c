package mutation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"explanation":"done","updatedDocument":"<p>new</p>","editsApplied":1}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	resp, err := c.Mutate(context.Background(), Request{Instruction: "bold it", DocumentContext: "<p>old</p>"})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if !resp.HasDocument || resp.UpdatedDocument != "<p>new</p>" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHTTPClientClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		code   string
	}{
		{401, CodeSessionExpired},
		{429, CodeRateLimited},
		{500, CodeServiceError},
		{503, CodeServiceError},
		{422, CodeMutationFailed},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))

		c := NewHTTPClient(srv.URL, time.Second)
		_, err := c.Mutate(context.Background(), Request{Instruction: "x"})
		srv.Close()

		var merr *Error
		if !errors.As(err, &merr) {
			t.Fatalf("status %d: error = %v, want *mutation.Error", tc.status, err)
		}
		if merr.Code != tc.code {
			t.Fatalf("status %d: code = %q, want %q", tc.status, merr.Code, tc.code)
		}
		if merr.UserMessage() == "" {
			t.Fatalf("status %d: empty user message", tc.status)
		}
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client going away.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL, 30*time.Millisecond)
	_, err := c.Mutate(context.Background(), Request{Instruction: "slow"})

	var merr *Error
	if !errors.As(err, &merr) {
		t.Fatalf("error = %v, want *mutation.Error", err)
	}
	if merr.Code != CodeRequestTimedOut {
		t.Fatalf("code = %q, want %q", merr.Code, CodeRequestTimedOut)
	}
	if !merr.Retryable() {
		t.Fatalf("timeout must be retryable")
	}
}

func TestHTTPClientUnreachableHost(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1/mutate", time.Second)
	_, err := c.Mutate(context.Background(), Request{Instruction: "x"})

	var merr *Error
	if !errors.As(err, &merr) {
		t.Fatalf("error = %v, want *mutation.Error", err)
	}
	if merr.Code != CodeNetworkUnavailable {
		t.Fatalf("code = %q, want %q", merr.Code, CodeNetworkUnavailable)
	}
}

func TestHTTPClientCancellationPassesThrough(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := NewHTTPClient(srv.URL, time.Minute)
	_, err := c.Mutate(ctx, Request{Instruction: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestMockClientEditsDocument(t *testing.T) {
	c := NewMockClient()
	resp, err := c.Mutate(context.Background(), Request{
		Instruction:     "Make the headline bolder",
		DocumentContext: "<html><body><h1>Hi</h1></body></html>",
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if !resp.HasDocument || resp.EditCount != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}
