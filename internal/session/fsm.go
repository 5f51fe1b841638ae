package session

import (
	"sync"
	"time"
)

// ConnState is the live-subscription connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Timer is a cancelable pending-reconnect handle.
type Timer interface {
	Stop() bool
}

// Scheduler abstracts timer creation so the reconnect loop can be driven
// synchronously in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Reconnector is the explicit finite state machine behind the push
// channel's resilience: connected, disconnected, reconnecting, driven by
// subscribed / channel-error / thread-changed / teardown events. It decides
// when to attempt; the attempt itself is the injected callback.
type Reconnector struct {
	mu       sync.Mutex
	state    ConnState
	backoff  *Backoff
	sched    Scheduler
	pending  Timer
	attempt  func(threadID string)
	threadID string
	torn     bool
}

func NewReconnector(base, max time.Duration, attempt func(threadID string)) *Reconnector {
	return &Reconnector{
		backoff: NewBackoff(base, max),
		sched:   realScheduler{},
		attempt: attempt,
	}
}

// WithScheduler swaps the timer source. For tests.
func (r *Reconnector) WithScheduler(s Scheduler) *Reconnector {
	r.sched = s
	return r
}

// State returns the current connection state.
func (r *Reconnector) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetThread tears down any pending attempt for the previous thread and
// starts a fresh attempt sequence at the base interval.
func (r *Reconnector) SetThread(threadID string) {
	r.mu.Lock()
	r.cancelPending()
	r.threadID = threadID
	r.torn = false
	r.backoff.Reset()
	r.state = StateDisconnected
	r.mu.Unlock()

	if threadID != "" {
		r.attempt(threadID)
	}
}

// OnSubscribed records a confirmed subscription.
func (r *Reconnector) OnSubscribed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn || r.threadID == "" {
		return
	}
	r.state = StateConnected
	r.backoff.Reset()
}

// OnChannelError schedules the next reconnect attempt with exponential
// backoff. Safe to call from any prior state.
func (r *Reconnector) OnChannelError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn || r.threadID == "" {
		return
	}

	r.state = StateDisconnected
	r.cancelPending()

	delay := r.backoff.Next()
	threadID := r.threadID
	r.pending = r.sched.AfterFunc(delay, func() {
		r.mu.Lock()
		stale := r.torn || r.threadID != threadID
		r.mu.Unlock()
		if !stale {
			r.attempt(threadID)
		}
	})
	r.state = StateReconnecting
}

// Teardown cancels any pending attempt permanently.
func (r *Reconnector) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelPending()
	r.torn = true
	r.threadID = ""
	r.state = StateDisconnected
}

func (r *Reconnector) cancelPending() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}
