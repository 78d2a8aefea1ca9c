package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process page store for local/dev use.
type InMemoryStore struct {
	mu    sync.RWMutex
	pages map[string]PageRecord
	slugs map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		pages: make(map[string]PageRecord),
		slugs: make(map[string]string),
	}
}

func (s *InMemoryStore) Get(_ context.Context, id string) (PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.pages[id]
	if !ok {
		return PageRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) Save(_ context.Context, id, title, body string, version int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.pages[id]
	if !ok {
		rec = PageRecord{ID: id, Status: StatusDraft}
	} else if version < rec.Version {
		// A save at the stored version is a resave of the same revision
		// (title-only edits do not advance the document version); only an
		// older version is a stale writer.
		return 0, ErrVersionConflict
	}

	rec.Title = title
	rec.Body = body
	rec.Version = version
	rec.UpdatedAt = time.Now().UTC()
	s.pages[id] = rec
	return rec.Version, nil
}

func (s *InMemoryStore) Publish(_ context.Context, id, slug, publishedURL string) (PageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.pages[id]
	if !ok {
		return PageRecord{}, ErrNotFound
	}
	if owner, taken := s.slugs[slug]; taken && owner != id {
		return PageRecord{}, ErrSlugTaken
	}

	if rec.Slug != "" && rec.Slug != slug {
		delete(s.slugs, rec.Slug)
	}
	s.slugs[slug] = id
	rec.Slug = slug
	rec.Status = StatusPublished
	rec.PublishedURL = publishedURL
	rec.UpdatedAt = time.Now().UTC()
	s.pages[id] = rec
	return rec, nil
}

func (s *InMemoryStore) Close() error { return nil }
