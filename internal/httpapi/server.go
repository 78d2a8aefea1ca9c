package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pageforge-dev/pageforge/internal/config"
	"github.com/pageforge-dev/pageforge/internal/mutation"
	"github.com/pageforge-dev/pageforge/internal/observability"
	"github.com/pageforge-dev/pageforge/internal/persist"
	"github.com/pageforge-dev/pageforge/internal/session"
	"github.com/pageforge-dev/pageforge/internal/store"
)

// starterDocument is what a brand-new page opens with before the first
// instruction.
const starterDocument = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Untitled page</title></head>
<body>
<section><h1>Untitled page</h1><p>Describe the page you want and the edits will appear here.</p></section>
</body>
</html>`

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	pages    store.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, pages store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		pages:    pages,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections may drive a session;
				// another site must not be able to edit the user's page.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions/ws", s.handleSessionWS)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Post("/v1/sessions/{id}/instruction", s.handleInstruction)
	r.Post("/v1/sessions/{id}/undo", s.handleUndo)
	r.Post("/v1/sessions/{id}/redo", s.handleRedo)
	r.Post("/v1/sessions/{id}/save", s.handleSave)
	r.Post("/v1/sessions/{id}/publish", s.handlePublish)
	r.Post("/v1/sessions/{id}/title", s.handleSetTitle)

	r.Get("/v1/sessions/{id}/preview", s.handlePreview)
	r.Get("/v1/sessions/{id}/preview/content", s.handlePreviewContent)
	r.Get("/v1/sessions/{id}/preview/state", s.handlePreviewState)

	r.Get("/v1/pages/{id}", s.handleGetPage)
	r.Put("/v1/pages/{id}", s.handleSavePage)
	r.Post("/v1/pages/{id}/publish", s.handlePublishPage)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if strings.TrimSpace(req.PageID) == "" {
		req.PageID = uuid.NewString()
	}
	persisted := false
	if strings.TrimSpace(req.Body) == "" {
		// Resume an existing page when one is stored; otherwise open the
		// starter document. A client-supplied body is not the stored
		// document even when a record exists, so only the resumed case
		// opens clean.
		if rec, err := s.pages.Get(r.Context(), req.PageID); err == nil {
			req.Body = rec.Body
			persisted = true
			if strings.TrimSpace(req.Title) == "" {
				req.Title = rec.Title
			}
		} else {
			req.Body = starterDocument
		}
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "Untitled page"
	}

	e := s.sessions.Open(req.PageID, req.Title, req.Body, persisted)
	snap := e.Snapshot()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       snap.ID,
		PageID:          snap.PageID,
		Title:           snap.Title,
		Status:          snap.Status,
		Version:         snap.Version,
		StartedAt:       snap.StartedAt,
		LastActivityAt:  snap.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, e.Snapshot())
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force := queryBool(r, "force")

	err := s.sessions.End(id, force)
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrUnsavedChanges):
		respondError(w, http.StatusConflict, "unsaved_changes", "session has unsaved changes; pass force=true to discard them")
	case err != nil:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]any{"ended": true})
	}
}

type instructionRequest struct {
	Text        string                `json:"text"`
	Attachments []mutation.Attachment `json:"attachments,omitempty"`
}

func (s *Server) handleInstruction(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req instructionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := e.SendInstruction(r.Context(), req.Text, req.Attachments); err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e.Snapshot())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	applied := e.Undo()
	respondJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"session": e.Snapshot(),
	})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	applied := e.Redo()
	respondJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"session": e.Snapshot(),
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	if err := e.Save(r.Context()); err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e.Snapshot())
}

type publishRequest struct {
	Slug string `json:"slug"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	publishedURL, err := e.Publish(r.Context(), req.Slug)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"published_url": publishedURL,
		"session":       e.Snapshot(),
	})
}

type setTitleRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleSetTitle(w http.ResponseWriter, r *http.Request) {
	e, ok := s.editorFor(w, r)
	if !ok {
		return
	}
	var req setTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "invalid_title", "title must not be empty")
		return
	}

	e.SetTitle(req.Title)
	respondJSON(w, http.StatusOK, e.Snapshot())
}

func (s *Server) editorFor(w http.ResponseWriter, r *http.Request) (*session.Editor, bool) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return nil, false
	}
	e, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return nil, false
	}
	return e, true
}

func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	var perr *persist.Error
	var serr *persist.SlugError
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrSessionClosed):
		respondError(w, http.StatusGone, "session_closed", err.Error())
	case errors.Is(err, session.ErrEmptyInstruction):
		respondError(w, http.StatusBadRequest, "empty_instruction", "provide text or at least one attachment")
	case errors.As(err, &serr):
		respondError(w, http.StatusBadRequest, "invalid_slug", serr.Error())
	case errors.As(err, &perr):
		status := perr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		respondError(w, status, perr.Code, perr.UserMessage())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}
