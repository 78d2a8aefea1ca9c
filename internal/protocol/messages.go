package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client commands.
	TypeSendInstruction MessageType = "send_instruction"
	TypeSelectOption    MessageType = "select_option"
	TypeUndo            MessageType = "undo"
	TypeRedo            MessageType = "redo"
	TypeSave            MessageType = "save"
	TypePublish         MessageType = "publish"
	TypeSetTitle        MessageType = "set_title"

	// Server events.
	TypeSessionState    MessageType = "session_state"
	TypeTurnAppended    MessageType = "turn_appended"
	TypeDocumentUpdated MessageType = "document_updated"
	TypeSaveState       MessageType = "save_state"
	TypePublished       MessageType = "published"
	TypeErrorEvent      MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type SendInstruction struct {
	Type        MessageType  `json:"type"`
	SessionID   string       `json:"session_id"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type SelectOption struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	OptionID  string      `json:"option_id"`
	Label     string      `json:"label"`
}

type Undo struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type Redo struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type Save struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type Publish struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Slug      string      `json:"slug,omitempty"`
}

type SetTitle struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Title     string      `json:"title"`
}

// SessionState is a full snapshot event sent on connect and after operations
// that change several fields at once.
type SessionState struct {
	Type                 MessageType `json:"type"`
	SessionID            string      `json:"session_id"`
	Title                string      `json:"title"`
	Status               string      `json:"status"`
	Version              int64       `json:"version"`
	TurnCount            int         `json:"turn_count"`
	CanUndo              bool        `json:"can_undo"`
	CanRedo              bool        `json:"can_redo"`
	Dirty                bool        `json:"dirty"`
	PublishedURL         string      `json:"published_url,omitempty"`
	SuggestedNextActions []string    `json:"suggested_next_actions,omitempty"`
}

type TurnAppended struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	TSMs      int64       `json:"ts_ms"`
}

type DocumentUpdated struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Version   int64       `json:"version"`
	ByteSize  int         `json:"byte_size"`
	Origin    string      `json:"origin"`
}

type SaveState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Status    string      `json:"status"`
	Version   int64       `json:"version"`
	Dirty     bool        `json:"dirty"`
}

type Published struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	Slug         string      `json:"slug"`
	PublishedURL string      `json:"published_url"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates one inbound command.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeSendInstruction:
		var msg SendInstruction
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid send_instruction")
		}
		return msg, nil
	case TypeSelectOption:
		var msg SelectOption
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Label == "" {
			return nil, errors.New("invalid select_option")
		}
		return msg, nil
	case TypeUndo:
		var msg Undo
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid undo")
		}
		return msg, nil
	case TypeRedo:
		var msg Redo
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid redo")
		}
		return msg, nil
	case TypeSave:
		var msg Save
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid save")
		}
		return msg, nil
	case TypePublish:
		var msg Publish
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid publish")
		}
		return msg, nil
	case TypeSetTitle:
		var msg SetTitle
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid set_title")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
