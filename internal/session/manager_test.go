package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pageforge-dev/pageforge/internal/mutation"
)

func newTestManager(t *testing.T, timeout time.Duration) (*Manager, *scriptedMutator, *fakePersister) {
	t.Helper()
	mut := &scriptedMutator{resp: mutation.Response{Explanation: "ok", UpdatedDocument: "<p>x</p>", HasDocument: true}}
	p := &fakePersister{}
	m := NewManager(mut, p, testMetrics(), timeout, 0, 0)
	return m, mut, p
}

func TestManagerOpenAndGet(t *testing.T) {
	m, _, _ := newTestManager(t, time.Minute)

	e := m.Open("page-1", "Landing", "<p>hi</p>", true)
	if e.ID() == "" {
		t.Fatalf("editor must get an id")
	}

	got, err := m.Get(e.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != e {
		t.Fatalf("Get() returned a different editor")
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", m.ActiveCount())
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m, _, _ := newTestManager(t, time.Minute)
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestManagerEndRefusesDirtyWithoutForce(t *testing.T) {
	m, _, _ := newTestManager(t, time.Minute)
	e := m.Open("page-1", "Landing", "<p>hi</p>", true)
	_ = e.SendInstruction(context.Background(), "edit", nil)

	if err := m.End(e.ID(), false); !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("error = %v, want ErrUnsavedChanges", err)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("session must survive a refused end")
	}

	if err := m.End(e.ID(), true); err != nil {
		t.Fatalf("forced End() error = %v", err)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d after forced end", m.ActiveCount())
	}
}

func TestManagerEndRefusesNeverSavedSession(t *testing.T) {
	m, _, p := newTestManager(t, time.Minute)
	e := m.Open("page-1", "Landing", "<p>hi</p>", false)

	if err := m.End(e.ID(), false); !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("error = %v, want ErrUnsavedChanges for a never-saved page", err)
	}

	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if p.saveCount() != 1 {
		t.Fatalf("saves = %d, want 1", p.saveCount())
	}
	if err := m.End(e.ID(), false); err != nil {
		t.Fatalf("End() after save error = %v", err)
	}
}

func TestManagerEndCleanSession(t *testing.T) {
	m, _, _ := newTestManager(t, time.Minute)
	e := m.Open("page-1", "Landing", "<p>hi</p>", true)

	if err := m.End(e.ID(), false); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if _, err := m.Get(e.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ended session still reachable")
	}
	if err := e.SendInstruction(context.Background(), "late", nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("error = %v, want ErrSessionClosed after end", err)
	}
}

func TestManagerExpiresInactiveSessions(t *testing.T) {
	m, _, _ := newTestManager(t, 10*time.Millisecond)
	e := m.Open("page-1", "Landing", "<p>hi</p>", true)

	expired := make(chan string, 1)
	m.SetExpireHook(func(ed *Editor) { expired <- ed.ID() })

	time.Sleep(20 * time.Millisecond)
	m.expireInactive()

	select {
	case id := <-expired:
		if id != e.ID() {
			t.Fatalf("expired id = %q, want %q", id, e.ID())
		}
	default:
		t.Fatalf("expire hook not called")
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d after expiry", m.ActiveCount())
	}
}

func TestManagerJanitorKeepsActiveSessions(t *testing.T) {
	m, _, _ := newTestManager(t, time.Hour)
	m.Open("page-1", "Landing", "<p>hi</p>", true)

	m.expireInactive()
	if m.ActiveCount() != 1 {
		t.Fatalf("active session expired too early")
	}
}
