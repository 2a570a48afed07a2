package notify

import (
	"sync"
	"testing"
	"time"
)

// recMount records Append / Remove calls.
type recMount struct {
	mu      sync.Mutex
	shown   []Notification
	removed []uint64
}

func (m *recMount) Append(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, n)
}

func (m *recMount) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
}

func (m *recMount) removals() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.removed...)
}

func TestAutoDismiss(t *testing.T) {
	m := &recMount{}
	p := NewPresenter(m, 20*time.Millisecond)
	h := p.Show("Saved", Info)

	if st := h.State(); !st.Visible || st.Kind != Info || st.Message != "Saved" {
		t.Fatalf("state = %+v", st)
	}
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("notification never auto-dismissed")
	}
	if h.State().Visible {
		t.Fatal("removed notification still visible")
	}
	if got := m.removals(); len(got) != 1 || got[0] != h.State().ID {
		t.Fatalf("removals = %v", got)
	}
}

func TestDismissCancelsTimerAndRemovesOnce(t *testing.T) {
	m := &recMount{}
	p := NewPresenter(m, 30*time.Millisecond)
	h := p.Show("Oops", Error)

	if !h.Dismiss() {
		t.Fatal("first Dismiss should remove")
	}
	if h.Dismiss() {
		t.Fatal("second Dismiss must be a no-op")
	}
	time.Sleep(60 * time.Millisecond) // past the original timeout
	if got := m.removals(); len(got) != 1 {
		t.Fatalf("removal count = %d, want exactly 1", len(got))
	}
}

func TestNotificationsCoexist(t *testing.T) {
	m := &recMount{}
	p := NewPresenter(m, time.Minute)
	a := p.Show("one", "")
	b := p.Show("two", Error)
	defer a.Dismiss()
	defer b.Dismiss()

	if a.State().ID == b.State().ID {
		t.Fatal("ids must be unique")
	}
	if a.State().Kind != Info {
		t.Fatal("empty kind defaults to info")
	}
	a.Dismiss()
	if !b.State().Visible {
		t.Fatal("dismissing one must not affect the other")
	}
}

func TestDefaultTimeout(t *testing.T) {
	if p := NewPresenter(&recMount{}, 0); p.timeout != DefaultTimeout {
		t.Fatalf("timeout = %v", p.timeout)
	}
}
