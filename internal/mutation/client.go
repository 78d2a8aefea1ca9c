package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Turn is one conversation entry forwarded to the mutation service for
// context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment references an image the user supplied with an instruction.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Option is a clarifying-question choice proposed by the service.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Request carries one instruction plus the document and conversation context.
type Request struct {
	SessionID           string       `json:"sessionId"`
	DocumentContext     string       `json:"documentContext"`
	Instruction         string       `json:"instruction"`
	ConversationHistory []Turn       `json:"conversationHistory"`
	Attachments         []Attachment `json:"attachments,omitempty"`
}

// Response is the canonical internal shape every service response variant is
// normalized into.
type Response struct {
	Explanation       string
	UpdatedDocument   string
	HasDocument       bool
	SuggestedActions  []string
	ClarifyingOptions []Option
	EditCount         int
}

// Client calls the external AI mutation service.
type Client interface {
	Mutate(ctx context.Context, req Request) (Response, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	HTTPURL string
	Timeout time.Duration
}

// DefaultTimeout is the hard deadline for one mutation call.
const DefaultTimeout = 120 * time.Second

func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPClient(cfg.HTTPURL, cfg.Timeout), nil
		}
		return NewMockClient(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, fmt.Errorf("mutation service url is required for http mode")
		}
		return NewHTTPClient(cfg.HTTPURL, cfg.Timeout), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported mutation client mode %q", cfg.Mode)
	}
}
