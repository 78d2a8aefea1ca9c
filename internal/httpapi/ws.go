package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pageforge-dev/pageforge/internal/mutation"
	"github.com/pageforge-dev/pageforge/internal/protocol"
	"github.com/pageforge-dev/pageforge/internal/session"
)

// handleSessionWS attaches a websocket to one editing session. Editor events
// flow out; client commands flow in and are dispatched concurrently so a
// long-running mutation never blocks the read loop. The editor's own gating
// makes concurrent dispatch safe: overlapping instructions and saves are
// no-ops, not races.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	e, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := e.Subscribe()
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		// Full snapshot first so a reconnecting client can rebuild its view.
		snap := e.Snapshot()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(sessionStateOf(snap)); err != nil {
			cancel()
			return
		}
		s.metrics.WSMessages.WithLabelValues("outbound", string(protocol.TypeSessionState)).Inc()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = conn.WriteJSON(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Detail:    err.Error(),
			})
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		go s.dispatchCommand(ctx, e, parsed)
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) dispatchCommand(ctx context.Context, e *session.Editor, msg any) {
	switch m := msg.(type) {
	case protocol.SendInstruction:
		_ = e.SendInstruction(ctx, m.Text, attachmentsOf(m.Attachments))
	case protocol.SelectOption:
		_ = e.SelectClarifyingOption(ctx, m.OptionID, m.Label)
	case protocol.Undo:
		e.Undo()
	case protocol.Redo:
		e.Redo()
	case protocol.Save:
		_ = e.Save(ctx)
	case protocol.Publish:
		_, _ = e.Publish(ctx, m.Slug)
	case protocol.SetTitle:
		e.SetTitle(m.Title)
	}
}

func attachmentsOf(in []protocol.Attachment) []mutation.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]mutation.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, mutation.Attachment{URL: a.URL, Name: a.Name})
	}
	return out
}

func sessionStateOf(snap session.Session) protocol.SessionState {
	return protocol.SessionState{
		Type:                 protocol.TypeSessionState,
		SessionID:            snap.ID,
		Title:                snap.Title,
		Status:               string(snap.Status),
		Version:              snap.Version,
		TurnCount:            len(snap.Conversation),
		CanUndo:              snap.CanUndo,
		CanRedo:              snap.CanRedo,
		Dirty:                snap.Dirty,
		PublishedURL:         snap.PublishedURL,
		SuggestedNextActions: snap.SuggestedNextActions,
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.SendInstruction:
		return m.Type, true
	case protocol.SelectOption:
		return m.Type, true
	case protocol.Undo:
		return m.Type, true
	case protocol.Redo:
		return m.Type, true
	case protocol.Save:
		return m.Type, true
	case protocol.Publish:
		return m.Type, true
	case protocol.SetTitle:
		return m.Type, true
	case protocol.SessionState:
		return m.Type, true
	case protocol.TurnAppended:
		return m.Type, true
	case protocol.DocumentUpdated:
		return m.Type, true
	case protocol.SaveState:
		return m.Type, true
	case protocol.Published:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
