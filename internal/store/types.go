package store

import (
	"context"
	"errors"
	"time"
)

// PageRecord is the persisted state of one landing page.
type PageRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Version      int64     `json:"version"`
	Status       string    `json:"status"`
	Slug         string    `json:"slug,omitempty"`
	PublishedURL string    `json:"published_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

var (
	ErrNotFound = errors.New("page not found")
	// ErrVersionConflict means another writer recorded a newer version
	// since the caller last saved.
	ErrVersionConflict = errors.New("page version conflict")
	ErrSlugTaken       = errors.New("slug already in use")
)

// Store is the backing state behind the persistence and publish endpoints.
type Store interface {
	Get(ctx context.Context, id string) (PageRecord, error)
	// Save upserts title/body at the given version and returns the accepted
	// version. A version below the stored one fails with ErrVersionConflict
	// and leaves the record untouched; an equal version is a resave of the
	// same revision and is accepted.
	Save(ctx context.Context, id, title, body string, version int64) (int64, error)
	// Publish atomically records slug, published status, and URL. A slug held
	// by a different page fails with ErrSlugTaken and changes nothing.
	Publish(ctx context.Context, id, slug, publishedURL string) (PageRecord, error)
	Close() error
}
