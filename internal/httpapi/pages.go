package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pageforge-dev/pageforge/internal/persist"
	"github.com/pageforge-dev/pageforge/internal/store"
)

// The /v1/pages endpoints are the persistence side of the service: the editor
// saves and publishes through them, and they are the only writers of the page
// store.

type savePageRequest struct {
	Title        string `json:"title"`
	DocumentBody string `json:"documentBody"`
	Version      int64  `json:"version"`
}

type publishPageRequest struct {
	Action string `json:"action"`
	Slug   string `json:"slug"`
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.pages.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "page_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSavePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req savePageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	version, err := s.pages.Save(r.Context(), id, req.Title, req.DocumentBody, req.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		respondError(w, http.StatusConflict, "version_conflict", "a newer version of this page is already stored")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"version": version})
}

func (s *Server) handlePublishPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req publishPageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Action != "" && req.Action != "publish" {
		respondError(w, http.StatusBadRequest, "invalid_action", "only the publish action is supported")
		return
	}
	if err := persist.ValidateSlug(req.Slug); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_slug", err.Error())
		return
	}

	publishedURL := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/p/" + req.Slug
	rec, err := s.pages.Publish(r.Context(), id, req.Slug, publishedURL)
	if errors.Is(err, store.ErrSlugTaken) {
		respondError(w, http.StatusConflict, "slug_conflict", "that address is already in use")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "page_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "publish_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"publishedUrl": rec.PublishedURL})
}
