package persist

import "fmt"

// Failure codes for save and publish calls.
const (
	CodeSessionExpired  = "session_expired"
	CodeVersionConflict = "version_conflict"
	CodeSlugConflict    = "slug_conflict"
	CodeSaveFailed      = "save_failed"
	CodePublishFailed   = "publish_failed"
)

// Error classifies a failed persistence call. The in-memory document is never
// altered by any of these; the caller decides whether to reload or overwrite.
type Error struct {
	Code   string
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("persist %s (status %d): %s", e.Code, e.Status, e.Detail)
	}
	return fmt.Sprintf("persist %s: %s", e.Code, e.Detail)
}

// UserMessage is a safe notification text for save/publish failures.
func (e *Error) UserMessage() string {
	switch e.Code {
	case CodeSessionExpired:
		return "Your session has expired, so the page could not be saved. Sign in again to keep editing."
	case CodeVersionConflict:
		return "Someone else saved a newer version of this page. Reload to pick up their changes, or save again to overwrite."
	case CodeSlugConflict:
		return "That address is already taken. Pick a different slug and publish again."
	case CodePublishFailed:
		return "Publishing didn't go through. Your draft is safe — please try again."
	default:
		return "Saving didn't go through. Your edits are still here — please try again."
	}
}
