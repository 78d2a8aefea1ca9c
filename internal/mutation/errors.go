package mutation

import (
	"fmt"

	"github.com/pageforge-dev/pageforge/internal/reliability"
)

// Failure codes for mutation calls. All of them are recoverable: the session
// stays usable and the user may retry.
const (
	CodeRequestTimedOut    = "request_timed_out"
	CodeNetworkUnavailable = "network_unavailable"
	CodeRateLimited        = "rate_limited"
	CodeSessionExpired     = "session_expired"
	CodeServiceError       = "service_error"
	CodeMutationFailed     = "mutation_failed"
)

// Error classifies a failed mutation call. Detail is operator-facing; use
// UserMessage for anything shown in the conversation.
type Error struct {
	Code   string
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("mutation %s (status %d): %s", e.Code, e.Status, e.Detail)
	}
	return fmt.Sprintf("mutation %s: %s", e.Code, e.Detail)
}

// Retryable reports whether a plain retry can succeed.
func (e *Error) Retryable() bool {
	return reliability.IsRecoverableFailureCode(e.Code) || e.Code == CodeServiceError
}

// UserMessage is a safe explanation appended to the conversation when the
// call fails.
func (e *Error) UserMessage() string {
	switch e.Code {
	case CodeRequestTimedOut:
		return "That took longer than expected and I had to stop waiting. The page was not changed on this side — please try again."
	case CodeNetworkUnavailable:
		return "I couldn't reach the editing service. Check your connection and try again."
	case CodeRateLimited:
		return "The editing service is handling too many requests right now. Give it a moment and try again."
	case CodeSessionExpired:
		return "Your session has expired. Please sign in again, then retry the edit."
	case CodeServiceError:
		return "The editing service hit an internal problem. Your page is unchanged — please try again."
	default:
		return "I couldn't apply that edit. Your page is unchanged — please try rephrasing or retrying."
	}
}

// classifyStatus maps a non-success HTTP status to a failure code.
func classifyStatus(status int) string {
	switch {
	case status == 401:
		return CodeSessionExpired
	case status == 429:
		return CodeRateLimited
	case status >= 500:
		return CodeServiceError
	default:
		return CodeMutationFailed
	}
}
