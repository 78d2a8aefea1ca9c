package session

import (
	"errors"
	"time"

	"github.com/pageforge-dev/pageforge/internal/mutation"
)

// Status is the session save/publish state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSaving    Status = "saving"
	StatusPublished Status = "published"
)

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrSessionClosed    = errors.New("session closed")
	ErrEmptyInstruction = errors.New("instruction is empty")
	// ErrUnsavedChanges guards the close path: ending a dirty session
	// requires an explicit force from the caller.
	ErrUnsavedChanges = errors.New("session has unsaved changes")
)

// Turn is one conversation entry. Turns are append-only; they are never
// mutated after creation.
type Turn struct {
	Role                    Role                  `json:"role"`
	Content                 string                `json:"content"`
	Timestamp               time.Time             `json:"timestamp"`
	Attachments             []mutation.Attachment `json:"attachments,omitempty"`
	ThinkingDurationSeconds float64               `json:"thinking_duration_seconds,omitempty"`
	EditSummary             string                `json:"edit_summary,omitempty"`
	SuggestedOptions        []mutation.Option     `json:"suggested_options,omitempty"`
}

// Session is a point-in-time view of an editor, safe to hand out.
type Session struct {
	ID                   string    `json:"session_id"`
	PageID               string    `json:"page_id"`
	Title                string    `json:"title"`
	DocumentBody         string    `json:"document_body"`
	Status               Status    `json:"status"`
	Version              int64     `json:"version"`
	Conversation         []Turn    `json:"conversation"`
	SuggestedNextActions []string  `json:"suggested_next_actions,omitempty"`
	PublishedURL         string    `json:"published_url,omitempty"`
	CanUndo              bool      `json:"can_undo"`
	CanRedo              bool      `json:"can_redo"`
	Dirty                bool      `json:"dirty"`
	StartedAt            time.Time `json:"started_at"`
	LastActivityAt       time.Time `json:"last_activity_at"`
}

// CreateRequest defines the payload for opening a new editing session.
type CreateRequest struct {
	PageID string `json:"page_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// CreateResponse returns opened session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	PageID          string    `json:"page_id"`
	Title           string    `json:"title"`
	Status          Status    `json:"status"`
	Version         int64     `json:"version"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
