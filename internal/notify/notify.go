// internal/notify/notify.go
//
// Transient notifications.
//
// Context
// -------
// A Presenter mounts a short message (info or error) on a Mount supplied by
// the presentation layer and removes it again after a fixed timeout.  Each
// shown message gets its own Handle, which owns exactly one auto-dismiss
// timer.  Dismiss stops that timer before tearing down, and removal happens
// once no matter how the two paths race.
//
// Notes
// -----
// • Notifications are independent; dismissing one never touches another.
// • Oxford commas, two spaces after periods.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanizio/lessonforms/internal/metrics"
)

// DefaultTimeout is how long a notification stays up without interaction.
const DefaultTimeout = 5 * time.Second

// Kind classifies a notification.
type Kind string

const (
	Info  Kind = "info"
	Error Kind = "error"
)

// Notification is the state the mount point renders.
type Notification struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
	Visible bool   `json:"visible"`
}

// Mount is the presentation-layer surface notifications attach to.
// Implementations must tolerate Remove being called from a timer goroutine.
type Mount interface {
	Append(n Notification)
	Remove(id uint64)
}

// Presenter creates notifications on one Mount.
type Presenter struct {
	mount   Mount
	timeout time.Duration
	seq     atomic.Uint64
}

// NewPresenter returns a Presenter.  timeout ≤ 0 selects DefaultTimeout.
func NewPresenter(m Mount, timeout time.Duration) *Presenter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Presenter{mount: m, timeout: timeout}
}

// Show mounts message and arms its auto-dismiss timer.
func (p *Presenter) Show(message string, kind Kind) *Handle {
	if kind == "" {
		kind = Info
	}
	h := &Handle{
		mount: p.mount,
		n: Notification{
			ID:      p.seq.Add(1),
			Message: message,
			Kind:    kind,
			Visible: true,
		},
		done: make(chan struct{}),
	}

	p.mount.Append(h.n)
	metrics.NotificationsShown.WithLabelValues(string(kind)).Inc()

	h.mu.Lock()
	h.timer = time.AfterFunc(p.timeout, func() { h.remove() })
	h.mu.Unlock()
	return h
}

// Handle controls one shown notification.
type Handle struct {
	mount Mount

	mu    sync.Mutex
	n     Notification
	timer *time.Timer
	once  sync.Once
	done  chan struct{}
}

// State returns a snapshot of the notification.
func (h *Handle) State() Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// Dismiss cancels the pending auto-dismiss and removes the notification.
// It reports whether this call performed the removal.
func (h *Handle) Dismiss() bool {
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()
	return h.remove()
}

// Done is closed once the notification has been removed.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) remove() bool {
	removed := false
	h.once.Do(func() {
		h.mu.Lock()
		h.n.Visible = false
		id := h.n.ID
		h.mu.Unlock()

		h.mount.Remove(id)
		close(h.done)
		removed = true
	})
	return removed
}
