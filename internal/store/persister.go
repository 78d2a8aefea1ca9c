package store

import (
	"context"
	"errors"
	"strings"

	"github.com/pageforge-dev/pageforge/internal/persist"
)

// Persister adapts a Store to the editor's persistence interface for
// deployments where the save/publish endpoints live in this process. The
// error mapping matches what the HTTP client would produce against the
// /v1/pages endpoints, so the editor behaves identically either way.
type Persister struct {
	store         Store
	publicBaseURL string
}

func NewPersister(s Store, publicBaseURL string) *Persister {
	return &Persister{
		store:         s,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

func (p *Persister) Save(ctx context.Context, pageID string, req persist.SaveRequest) (persist.SaveResult, error) {
	version, err := p.store.Save(ctx, pageID, req.Title, req.DocumentBody, req.Version)
	if errors.Is(err, ErrVersionConflict) {
		return persist.SaveResult{}, &persist.Error{Code: persist.CodeVersionConflict, Status: 409, Detail: err.Error()}
	}
	if err != nil {
		return persist.SaveResult{}, &persist.Error{Code: persist.CodeSaveFailed, Detail: err.Error()}
	}
	return persist.SaveResult{Version: version}, nil
}

func (p *Persister) Publish(ctx context.Context, pageID, slug string) (persist.PublishResult, error) {
	publishedURL := p.publicBaseURL + "/p/" + slug
	rec, err := p.store.Publish(ctx, pageID, slug, publishedURL)
	if errors.Is(err, ErrSlugTaken) {
		return persist.PublishResult{}, &persist.Error{Code: persist.CodeSlugConflict, Status: 409, Detail: err.Error()}
	}
	if err != nil {
		return persist.PublishResult{}, &persist.Error{Code: persist.CodePublishFailed, Detail: err.Error()}
	}
	return persist.PublishResult{PublishedURL: rec.PublishedURL}, nil
}
