package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pageforge-dev/pageforge/internal/history"
	"github.com/pageforge-dev/pageforge/internal/mutation"
	"github.com/pageforge-dev/pageforge/internal/observability"
	"github.com/pageforge-dev/pageforge/internal/persist"
	"github.com/pageforge-dev/pageforge/internal/protocol"
)

// Persister is the slice of the persistence client the editor needs.
type Persister interface {
	Save(ctx context.Context, pageID string, req persist.SaveRequest) (persist.SaveResult, error)
	Publish(ctx context.Context, pageID, slug string) (persist.PublishResult, error)
}

// conversationContextLimit bounds how many prior turns are forwarded to the
// mutation service with each instruction.
const conversationContextLimit = 12

// flightState is the discriminated in-flight state of one operation
// category. A bare boolean hides cancellation races; carrying the cancel
// func with the pending state keeps them well-defined.
type flightState int

const (
	flightIdle flightState = iota
	flightPending
)

type flight struct {
	state  flightState
	cancel context.CancelFunc
	done   chan struct{}
}

func (f *flight) begin(cancel context.CancelFunc) {
	f.state = flightPending
	f.cancel = cancel
	f.done = make(chan struct{})
}

func (f *flight) settle() {
	f.state = flightIdle
	f.cancel = nil
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
}

func (f *flight) pending() bool { return f.state == flightPending }

// Editor owns all mutable state of one editing session: the document, title,
// status, version counter, conversation log, and undo history. Every
// operation goes through it; nothing else retains document state between
// calls.
type Editor struct {
	mu sync.Mutex

	id     string
	pageID string

	title        string
	doc          string
	status       Status
	version      int64
	dirty        bool
	changeSeq    uint64
	publishedURL string

	conversation []Turn
	suggested    []string
	hist         *history.Buffer

	mutationFlight flight
	saveFlight     flight

	mutator       mutation.Client
	persister     Persister
	metrics       *observability.Metrics
	autosaveDelay time.Duration
	autosaveTimer *time.Timer

	subscribers map[int]chan any
	nextSubID   int

	closed         bool
	startedAt      time.Time
	lastActivityAt time.Time
}

func newEditor(pageID, title, body string, persisted bool, mutator mutation.Client, persister Persister, metrics *observability.Metrics, historyBudget int64, autosaveDelay time.Duration) *Editor {
	now := time.Now().UTC()
	e := &Editor{
		id:             uuid.NewString(),
		pageID:         pageID,
		title:          title,
		doc:            body,
		status:         StatusDraft,
		hist:           history.New(historyBudget),
		mutator:        mutator,
		persister:      persister,
		metrics:        metrics,
		autosaveDelay:  autosaveDelay,
		subscribers:    make(map[int]chan any),
		startedAt:      now,
		lastActivityAt: now,
	}
	// A page with no stored record has no last save to be clean against:
	// the session starts dirty so the first save creates the record and
	// ending without force is refused.
	e.dirty = !persisted
	// Seed the history so the first undo returns to the opening state.
	e.hist.Push(body)
	return e
}

func (e *Editor) ID() string     { return e.id }
func (e *Editor) PageID() string { return e.pageID }

// Snapshot returns a copy of the session state.
func (e *Editor) Snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Editor) snapshotLocked() Session {
	conv := make([]Turn, len(e.conversation))
	copy(conv, e.conversation)
	suggested := make([]string, len(e.suggested))
	copy(suggested, e.suggested)

	return Session{
		ID:                   e.id,
		PageID:               e.pageID,
		Title:                e.title,
		DocumentBody:         e.doc,
		Status:               e.status,
		Version:              e.version,
		Conversation:         conv,
		SuggestedNextActions: suggested,
		PublishedURL:         e.publishedURL,
		CanUndo:              e.hist.CanUndo(),
		CanRedo:              e.hist.CanRedo(),
		Dirty:                e.dirty,
		StartedAt:            e.startedAt,
		LastActivityAt:       e.lastActivityAt,
	}
}

// SendInstruction runs one conversational turn against the mutation service.
// Both text and attachments empty is a local validation error. A second call
// while one mutation is in flight is a silent no-op: no turn is appended and
// no network call is issued.
func (e *Editor) SendInstruction(ctx context.Context, text string, attachments []mutation.Attachment) error {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return ErrEmptyInstruction
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrSessionClosed
	}
	if e.mutationFlight.pending() {
		e.mu.Unlock()
		return nil
	}

	e.touchLocked()
	e.appendTurnLocked(Turn{
		Role:        RoleUser,
		Content:     text,
		Timestamp:   time.Now().UTC(),
		Attachments: attachments,
	})

	req := mutation.Request{
		SessionID:           e.id,
		DocumentContext:     e.doc,
		Instruction:         text,
		ConversationHistory: e.contextTurnsLocked(),
		Attachments:         attachments,
	}

	callCtx, cancel := context.WithCancel(ctx)
	e.mutationFlight.begin(cancel)
	e.mu.Unlock()

	start := time.Now()
	resp, err := e.mutator.Mutate(callCtx, req)
	cancel()
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.mutationFlight.settle()
	e.metrics.ObserveOpLatency(observability.StageMutationCall, elapsed)

	if err != nil {
		e.metrics.MutationRequests.WithLabelValues("error").Inc()
		e.recordMutationFailureLocked(err)
		// The session stays usable; the failure already surfaced as a turn.
		return nil
	}
	e.metrics.MutationRequests.WithLabelValues("ok").Inc()

	turn := Turn{
		Role:                    RoleAssistant,
		Content:                 resp.Explanation,
		Timestamp:               time.Now().UTC(),
		ThinkingDurationSeconds: elapsed.Seconds(),
		SuggestedOptions:        resp.ClarifyingOptions,
	}
	if resp.HasDocument {
		if resp.EditCount == 1 {
			turn.EditSummary = "1 edit applied"
		} else if resp.EditCount > 1 {
			turn.EditSummary = fmt.Sprintf("%d edits applied", resp.EditCount)
		}
	}
	e.appendTurnLocked(turn)

	// The service may answer without editing; the document only moves when a
	// new body came back.
	if resp.HasDocument {
		e.applyDocumentLocked(resp.UpdatedDocument, "mutation")
	}
	if len(resp.SuggestedActions) > 0 {
		e.suggested = resp.SuggestedActions
	}
	e.emitLocked(e.stateEventLocked())
	e.metrics.ObserveOpLatency(observability.StageTurnTotal, time.Since(start))
	return nil
}

// SelectClarifyingOption resolves a clarifying question: the chosen label is
// just a pre-filled instruction.
func (e *Editor) SelectClarifyingOption(ctx context.Context, optionID, label string) error {
	_ = optionID
	return e.SendInstruction(ctx, label, nil)
}

// Undo steps the document back one snapshot. At the oldest entry it is a
// no-op with no version bump. A successful undo is itself a versioned
// mutation: the counter stays monotonic for optimistic-concurrency checks.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	snap, ok := e.hist.Undo()
	if !ok {
		return false
	}
	e.touchLocked()
	e.doc = snap
	e.version++
	e.markDirtyLocked()
	e.emitLocked(protocol.DocumentUpdated{
		Type:      protocol.TypeDocumentUpdated,
		SessionID: e.id,
		Version:   e.version,
		ByteSize:  len(e.doc),
		Origin:    "undo",
	})
	e.emitLocked(e.stateEventLocked())
	return true
}

// Redo steps forward again after an undo, until a new mutation overwrites
// the forward tail.
func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	snap, ok := e.hist.Redo()
	if !ok {
		return false
	}
	e.touchLocked()
	e.doc = snap
	e.version++
	e.markDirtyLocked()
	e.emitLocked(protocol.DocumentUpdated{
		Type:      protocol.TypeDocumentUpdated,
		SessionID: e.id,
		Version:   e.version,
		ByteSize:  len(e.doc),
		Origin:    "redo",
	})
	e.emitLocked(e.stateEventLocked())
	return true
}

// SetTitle records a new page title. Title edits are persisted by autosave
// but do not advance the document version.
func (e *Editor) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || title == e.title {
		return
	}
	e.touchLocked()
	e.title = title
	e.markDirtyLocked()
	e.emitLocked(e.stateEventLocked())
}

// Save persists the current title, document, and version. While another save
// is in flight the call is a no-op; callers must not queue saves. Failures
// never alter in-memory state.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrSessionClosed
	}
	if e.saveFlight.pending() {
		e.mu.Unlock()
		return nil
	}
	if !e.dirty {
		e.mu.Unlock()
		return nil
	}

	prevStatus := e.statusAtRestLocked()
	seq := e.changeSeq
	req := persist.SaveRequest{
		Title:        e.title,
		DocumentBody: e.doc,
		Version:      e.version,
	}
	e.status = StatusSaving
	e.saveFlight.begin(func() {})
	e.emitLocked(e.saveStateEventLocked())
	e.mu.Unlock()

	start := time.Now()
	_, err := e.persister.Save(ctx, e.pageID, req)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saveFlight.settle()
	e.status = prevStatus
	e.metrics.ObserveOpLatency(observability.StageSaveCall, elapsed)

	if err != nil {
		e.metrics.SaveRequests.WithLabelValues(saveOutcome(err)).Inc()
		e.emitLocked(e.saveStateEventLocked())
		e.emitErrorLocked(err, "persist")
		return err
	}

	e.metrics.SaveRequests.WithLabelValues("ok").Inc()
	// Only clear dirty when nothing changed while the request was on the
	// wire; a mid-flight edit still needs its own save.
	if e.changeSeq == seq {
		e.dirty = false
	} else {
		e.rearmAutosaveLocked()
	}
	e.emitLocked(e.saveStateEventLocked())
	return nil
}

// Publish moves the page to its public URL. Any pending save is drained
// first and a fresh save runs before the transition; a failed save stops the
// publish before it reaches the endpoint.
func (e *Editor) Publish(ctx context.Context, slug string) (string, error) {
	if err := persist.ValidateSlug(slug); err != nil {
		return "", err
	}

	// An autosave can claim the save flight between the drain and the save,
	// which would turn the save below into a no-op while that write is still
	// on the wire. Loop until the flight is idle and the session is clean.
	for {
		e.drainSave()
		if err := e.Save(ctx); err != nil {
			return "", err
		}
		e.mu.Lock()
		settled := !e.saveFlight.pending() && !e.dirty
		e.mu.Unlock()
		if settled {
			break
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrSessionClosed
	}
	prevStatus := e.statusAtRestLocked()
	e.status = StatusSaving
	e.emitLocked(e.saveStateEventLocked())
	e.mu.Unlock()

	start := time.Now()
	res, err := e.persister.Publish(ctx, e.pageID, slug)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.ObserveOpLatency(observability.StagePublishCall, elapsed)

	if err != nil {
		e.metrics.PublishRequests.WithLabelValues(saveOutcome(err)).Inc()
		e.status = prevStatus
		e.emitLocked(e.saveStateEventLocked())
		e.emitErrorLocked(err, "publish")
		return "", err
	}

	e.metrics.PublishRequests.WithLabelValues("ok").Inc()
	e.status = StatusPublished
	e.publishedURL = res.PublishedURL
	e.emitLocked(protocol.Published{
		Type:         protocol.TypePublished,
		SessionID:    e.id,
		Slug:         slug,
		PublishedURL: res.PublishedURL,
	})
	e.emitLocked(e.saveStateEventLocked())
	return res.PublishedURL, nil
}

// Dirty reports whether the in-memory document differs from the last
// successful save.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Subscribe registers an event channel. The returned func unsubscribes.
// Events are dropped, not blocked on, when a subscriber falls behind.
func (e *Editor) Subscribe() (<-chan any, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSubID
	e.nextSubID++
	ch := make(chan any, 64)
	e.subscribers[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(sub)
		}
	}
}

func (e *Editor) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.autosaveTimer != nil {
		e.autosaveTimer.Stop()
		e.autosaveTimer = nil
	}
	if e.mutationFlight.pending() && e.mutationFlight.cancel != nil {
		e.mutationFlight.cancel()
	}
	for id, ch := range e.subscribers {
		delete(e.subscribers, id)
		close(ch)
	}
}

func (e *Editor) lastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivityAt
}

// --- internals; all *Locked funcs require e.mu held ---

func (e *Editor) touchLocked() {
	e.lastActivityAt = time.Now().UTC()
}

func (e *Editor) statusAtRestLocked() Status {
	// Published is sticky: later saves return to published, not draft.
	if e.status == StatusPublished || e.publishedURL != "" {
		return StatusPublished
	}
	return StatusDraft
}

func (e *Editor) appendTurnLocked(t Turn) {
	e.conversation = append(e.conversation, t)
	e.emitLocked(protocol.TurnAppended{
		Type:      protocol.TypeTurnAppended,
		SessionID: e.id,
		Role:      string(t.Role),
		Content:   t.Content,
		TSMs:      t.Timestamp.UnixMilli(),
	})
}

func (e *Editor) contextTurnsLocked() []mutation.Turn {
	startIdx := 0
	if len(e.conversation) > conversationContextLimit {
		startIdx = len(e.conversation) - conversationContextLimit
	}
	out := make([]mutation.Turn, 0, len(e.conversation)-startIdx)
	for _, t := range e.conversation[startIdx:] {
		out = append(out, mutation.Turn{Role: string(t.Role), Content: t.Content})
	}
	return out
}

func (e *Editor) applyDocumentLocked(body, origin string) {
	e.doc = body
	e.version++
	if evicted := e.hist.Push(body); evicted > 0 {
		e.metrics.HistoryEvictions.Add(float64(evicted))
	}
	e.metrics.HistoryBytes.Observe(float64(e.hist.TotalBytes()))
	e.markDirtyLocked()
	e.emitLocked(protocol.DocumentUpdated{
		Type:      protocol.TypeDocumentUpdated,
		SessionID: e.id,
		Version:   e.version,
		ByteSize:  len(body),
		Origin:    origin,
	})
}

func (e *Editor) recordMutationFailureLocked(err error) {
	content := "Something went wrong applying that edit. Your page is unchanged — please try again."
	var merr *mutation.Error
	if errors.As(err, &merr) {
		content = merr.UserMessage()
	} else if errors.Is(err, context.Canceled) {
		content = "That request was cancelled before it finished. The page was not changed."
	}
	e.appendTurnLocked(Turn{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	e.emitErrorLocked(err, "mutation")
}

func (e *Editor) emitErrorLocked(err error, source string) {
	ev := protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: e.id,
		Source:    source,
		Detail:    err.Error(),
	}
	var merr *mutation.Error
	var perr *persist.Error
	switch {
	case errors.As(err, &merr):
		ev.Code = merr.Code
		ev.Retryable = merr.Retryable()
	case errors.As(err, &perr):
		ev.Code = perr.Code
		ev.Retryable = perr.Code == persist.CodeSaveFailed || perr.Code == persist.CodePublishFailed
	default:
		ev.Code = "internal"
	}
	e.emitLocked(ev)
}

// markDirtyLocked notes a document/title change and (re)arms the autosave
// debounce: a burst of edits collapses into one save after quiescence.
func (e *Editor) markDirtyLocked() {
	e.dirty = true
	e.changeSeq++
	e.rearmAutosaveLocked()
}

func (e *Editor) rearmAutosaveLocked() {
	if e.autosaveDelay <= 0 || e.closed {
		return
	}
	if e.autosaveTimer != nil {
		e.autosaveTimer.Stop()
	}
	e.autosaveTimer = time.AfterFunc(e.autosaveDelay, e.autosaveFire)
}

func (e *Editor) autosaveFire() {
	e.mu.Lock()
	if e.closed || !e.dirty {
		e.mu.Unlock()
		return
	}
	// Autosave stands down entirely while a mutation or save is in flight;
	// racing a write against an AI-driven update is worse than saving late.
	if e.mutationFlight.pending() || e.saveFlight.pending() {
		e.metrics.ObserveIndicator("autosave_suppressed")
		e.rearmAutosaveLocked()
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	_ = e.Save(context.Background())
}

func (e *Editor) drainSave() {
	e.mu.Lock()
	var done chan struct{}
	if e.saveFlight.pending() {
		done = e.saveFlight.done
	}
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (e *Editor) stateEventLocked() protocol.SessionState {
	return protocol.SessionState{
		Type:                 protocol.TypeSessionState,
		SessionID:            e.id,
		Title:                e.title,
		Status:               string(e.status),
		Version:              e.version,
		TurnCount:            len(e.conversation),
		CanUndo:              e.hist.CanUndo(),
		CanRedo:              e.hist.CanRedo(),
		Dirty:                e.dirty,
		PublishedURL:         e.publishedURL,
		SuggestedNextActions: append([]string(nil), e.suggested...),
	}
}

func (e *Editor) saveStateEventLocked() protocol.SaveState {
	return protocol.SaveState{
		Type:      protocol.TypeSaveState,
		SessionID: e.id,
		Status:    string(e.status),
		Version:   e.version,
		Dirty:     e.dirty,
	}
}

func (e *Editor) emitLocked(msg any) {
	for _, ch := range e.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow subscriber; drop rather than stall the session.
		}
	}
}

func saveOutcome(err error) string {
	var perr *persist.Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return "error"
}
