package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pageforge-dev/pageforge/internal/config"
	"github.com/pageforge-dev/pageforge/internal/mutation"
	"github.com/pageforge-dev/pageforge/internal/observability"
	"github.com/pageforge-dev/pageforge/internal/sandbox"
	"github.com/pageforge-dev/pageforge/internal/session"
	"github.com/pageforge-dev/pageforge/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		PublicBaseURL:            "https://pages.example.com",
	}
	metrics := observability.NewMetrics(fmt.Sprintf("pageforge_test_api_%d", time.Now().UnixNano()))
	st := store.NewInMemoryStore()
	sessions := session.NewManager(mutation.NewMockClient(), store.NewPersister(st, cfg.PublicBaseURL), metrics, cfg.SessionInactivityTimeout, 0, 0)
	srv := New(cfg, sessions, st, metrics)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	res := postJSON(t, ts.URL+"/v1/sessions", map[string]string{
		"page_id": "page-1",
		"title":   "Landing",
		"body":    "<html><body><h1>Hi</h1></body></html>",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	created := decodeBody(t, res)
	id, _ := created["session_id"].(string)
	if id == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	return id
}

func TestCreateAndEndSession(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	// A session opened with a client-supplied body has never been saved, so
	// ending it without force is refused until the first save runs.
	refused := postJSON(t, ts.URL+"/v1/sessions/"+id+"/end", nil)
	refused.Body.Close()
	if refused.StatusCode != http.StatusConflict {
		t.Fatalf("end before save status = %d, want %d", refused.StatusCode, http.StatusConflict)
	}

	saveRes := postJSON(t, ts.URL+"/v1/sessions/"+id+"/save", nil)
	saveRes.Body.Close()
	if saveRes.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d, want %d", saveRes.StatusCode, http.StatusOK)
	}

	res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/end", nil)
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	gone, err := http.Get(ts.URL + "/v1/sessions/" + id)
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	defer gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Fatalf("status after end = %d, want %d", gone.StatusCode, http.StatusNotFound)
	}
}

func TestInstructionAdvancesVersion(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/instruction", map[string]string{
		"text": "Make the headline bolder",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("instruction status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	snap := decodeBody(t, res)
	if snap["version"].(float64) != 1 {
		t.Fatalf("version = %v, want 1", snap["version"])
	}
	if snap["can_undo"] != true {
		t.Fatalf("can_undo = %v, want true", snap["can_undo"])
	}
}

func TestInstructionRejectsEmpty(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/instruction", map[string]string{"text": "  "})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestUndoRedoEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/instruction", map[string]string{"text": "change"})
	res.Body.Close()

	undoRes := postJSON(t, ts.URL+"/v1/sessions/"+id+"/undo", nil)
	undo := decodeBody(t, undoRes)
	if undo["applied"] != true {
		t.Fatalf("undo applied = %v, want true", undo["applied"])
	}

	// A second undo has nothing left to step back to.
	again := decodeBody(t, postJSON(t, ts.URL+"/v1/sessions/"+id+"/undo", nil))
	if again["applied"] != false {
		t.Fatalf("second undo applied = %v, want false", again["applied"])
	}

	redo := decodeBody(t, postJSON(t, ts.URL+"/v1/sessions/"+id+"/redo", nil))
	if redo["applied"] != true {
		t.Fatalf("redo applied = %v, want true", redo["applied"])
	}
}

func TestSaveAndPublishFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/instruction", map[string]string{"text": "add hero"})
	res.Body.Close()

	saveRes := postJSON(t, ts.URL+"/v1/sessions/"+id+"/save", nil)
	if saveRes.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d, want %d", saveRes.StatusCode, http.StatusOK)
	}
	saved := decodeBody(t, saveRes)
	if saved["dirty"] != false {
		t.Fatalf("dirty = %v after save, want false", saved["dirty"])
	}

	pubRes := postJSON(t, ts.URL+"/v1/sessions/"+id+"/publish", map[string]string{"slug": "my-page-2"})
	if pubRes.StatusCode != http.StatusOK {
		t.Fatalf("publish status = %d, want %d", pubRes.StatusCode, http.StatusOK)
	}
	pub := decodeBody(t, pubRes)
	if pub["published_url"] != "https://pages.example.com/p/my-page-2" {
		t.Fatalf("published_url = %v", pub["published_url"])
	}

	// The page store now holds the published record.
	pageRes, err := http.Get(ts.URL + "/v1/pages/page-1")
	if err != nil {
		t.Fatalf("GET page error = %v", err)
	}
	page := decodeBody(t, pageRes)
	if page["status"] != "published" || page["slug"] != "my-page-2" {
		t.Fatalf("page record = %+v", page)
	}
}

func TestPublishInvalidSlug(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/publish", map[string]string{"slug": "My Page!"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestEndRefusesDirtySession(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/instruction", map[string]string{"text": "edit"})
	res.Body.Close()

	refused := postJSON(t, ts.URL+"/v1/sessions/"+id+"/end", nil)
	defer refused.Body.Close()
	if refused.StatusCode != http.StatusConflict {
		t.Fatalf("end status = %d, want %d", refused.StatusCode, http.StatusConflict)
	}

	forced := postJSON(t, ts.URL+"/v1/sessions/"+id+"/end?force=true", nil)
	defer forced.Body.Close()
	if forced.StatusCode != http.StatusOK {
		t.Fatalf("forced end status = %d, want %d", forced.StatusCode, http.StatusOK)
	}
}

func TestPreviewHostPage(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res, err := http.Get(ts.URL + "/v1/sessions/" + id + "/preview?viewport=mobile")
	if err != nil {
		t.Fatalf("GET preview error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("preview status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(res.Body); err != nil {
		t.Fatalf("reading preview body: %v", err)
	}
	html := body.String()
	if !strings.Contains(html, `sandbox="allow-scripts"`) {
		t.Fatalf("host page missing sandbox attribute")
	}
	if strings.Contains(html, "allow-same-origin") {
		t.Fatalf("host page must not grant allow-same-origin")
	}
	if !strings.Contains(html, "width: 375px") {
		t.Fatalf("mobile viewport width missing from host page")
	}
}

func TestPreviewContentCarriesPolicy(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	res, err := http.Get(ts.URL + "/v1/sessions/" + id + "/preview/content")
	if err != nil {
		t.Fatalf("GET preview content error = %v", err)
	}
	defer res.Body.Close()
	if got := res.Header.Get("Content-Security-Policy"); got != sandbox.ContentSecurityPolicy {
		t.Fatalf("policy header = %q", got)
	}
	if got := res.Header.Get("Cache-Control"); got != "no-store" {
		t.Fatalf("cache-control = %q, want no-store", got)
	}
}

func TestPagesEndpointVersionConflict(t *testing.T) {
	ts := newTestServer(t)

	put := func(version int64) *http.Response {
		body, _ := json.Marshal(map[string]any{"title": "t", "documentBody": "<p>b</p>", "version": version})
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/pages/p9", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT page error = %v", err)
		}
		return res
	}

	first := put(3)
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first save status = %d, want %d", first.StatusCode, http.StatusOK)
	}

	stale := put(2)
	stale.Body.Close()
	if stale.StatusCode != http.StatusConflict {
		t.Fatalf("stale save status = %d, want %d", stale.StatusCode, http.StatusConflict)
	}
}

func TestHealthAndPerfEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/perf/latency"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
