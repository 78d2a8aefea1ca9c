package session

import (
	"context"
	"sync"
	"time"

	"github.com/pageforge-dev/pageforge/internal/mutation"
	"github.com/pageforge-dev/pageforge/internal/observability"
)

// Manager owns the open editors. Gating flags live inside each Editor and
// are never shared across sessions; the manager only tracks lifecycle.
type Manager struct {
	mu                sync.RWMutex
	editors           map[string]*Editor
	inactivityTimeout time.Duration
	onExpire          func(*Editor)

	mutator       mutation.Client
	persister     Persister
	metrics       *observability.Metrics
	historyBudget int64
	autosaveDelay time.Duration
}

func NewManager(mutator mutation.Client, persister Persister, metrics *observability.Metrics, inactivityTimeout time.Duration, historyBudget int64, autosaveDelay time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		editors:           make(map[string]*Editor),
		inactivityTimeout: inactivityTimeout,
		mutator:           mutator,
		persister:         persister,
		metrics:           metrics,
		historyBudget:     historyBudget,
		autosaveDelay:     autosaveDelay,
	}
}

func (m *Manager) SetExpireHook(hook func(*Editor)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Open creates an editor for one page. persisted reports whether the page
// already has a stored record with this document; a session opened without
// one starts dirty. The editor is discarded when the session ends; no state
// outlives it except what was saved.
func (m *Manager) Open(pageID, title, body string, persisted bool) *Editor {
	e := newEditor(pageID, title, body, persisted, m.mutator, m.persister, m.metrics, m.historyBudget, m.autosaveDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.editors[e.id] = e
	m.metrics.ActiveSessions.Set(float64(len(m.editors)))
	m.metrics.SessionEvents.WithLabelValues("open").Inc()
	return e
}

func (m *Manager) Get(sessionID string) (*Editor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.editors[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// End closes a session. A dirty session is refused unless force is set; this
// is the navigate-away guard for unsaved changes.
func (m *Manager) End(sessionID string, force bool) error {
	m.mu.Lock()
	e, ok := m.editors[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if !force && e.Dirty() {
		m.mu.Unlock()
		return ErrUnsavedChanges
	}
	delete(m.editors, sessionID)
	m.metrics.ActiveSessions.Set(float64(len(m.editors)))
	m.metrics.SessionEvents.WithLabelValues("end").Inc()
	m.mu.Unlock()

	e.close()
	return nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.editors)
}

// StartJanitor expires editors whose last activity is older than the
// inactivity timeout.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Editor

	m.mu.Lock()
	for id, e := range m.editors {
		if now.Sub(e.lastActivity()) < m.inactivityTimeout {
			continue
		}
		delete(m.editors, id)
		expired = append(expired, e)
		m.metrics.SessionEvents.WithLabelValues("expired").Inc()
	}
	m.metrics.ActiveSessions.Set(float64(len(m.editors)))
	hook := m.onExpire
	m.mu.Unlock()

	for _, e := range expired {
		e.close()
		if hook != nil {
			hook(e)
		}
	}
}
