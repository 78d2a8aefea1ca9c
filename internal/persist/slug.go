package persist

import "fmt"

const (
	slugMinLen = 3
	slugMaxLen = 50
)

// SlugError is a local validation failure; it never reaches the server.
type SlugError struct {
	Reason string
}

func (e *SlugError) Error() string {
	return fmt.Sprintf("invalid slug: %s", e.Reason)
}

// ValidateSlug enforces the published-URL slug rules: non-empty, length in
// [3, 50], lowercase letters, digits, and hyphens only.
func ValidateSlug(slug string) error {
	if slug == "" {
		return &SlugError{Reason: "slug is empty"}
	}
	if len(slug) < slugMinLen {
		return &SlugError{Reason: fmt.Sprintf("slug must be at least %d characters", slugMinLen)}
	}
	if len(slug) > slugMaxLen {
		return &SlugError{Reason: fmt.Sprintf("slug must be at most %d characters", slugMaxLen)}
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return &SlugError{Reason: "slug may only contain lowercase letters, digits, and hyphens"}
		}
	}
	return nil
}
