package httpapi

import (
	"fmt"
	"net/http"

	"github.com/pageforge-dev/pageforge/internal/sandbox"
)

// handlePreview serves the host page that embeds the session's document in a
// sandboxed iframe at the requested viewport width.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	snap := e.Snapshot()
	viewport := sandbox.ParseViewport(r.URL.Query().Get("viewport"))

	page, err := sandbox.HostPage(sandbox.Frame{
		SessionID:  snap.ID,
		Title:      snap.Title,
		Viewport:   viewport,
		ContentURL: fmt.Sprintf("/v1/sessions/%s/preview/content", snap.ID),
		StateURL:   fmt.Sprintf("/v1/sessions/%s/preview/state", snap.ID),
		Version:    snap.Version,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "render_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(page))
}

// handlePreviewContent serves the AI-authored document itself. The response
// carries the restrictive policy header and is never cached: the iframe
// reloads it on every version change.
func (s *Server) handlePreviewContent(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	doc := sandbox.PrepareDocument(e.Snapshot().DocumentBody)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", sandbox.ContentSecurityPolicy)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(doc))
}

// handlePreviewState is the lightweight poll target the host page uses to
// detect new document versions.
func (s *Server) handlePreviewState(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	snap := e.Snapshot()
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version,
		"status":  snap.Status,
	})
}
