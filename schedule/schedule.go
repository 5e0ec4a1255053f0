// Package schedule provides cancellable delayed actions, backed either by the
// wall clock or by a virtual clock that tests advance by hand.
package schedule

import (
	"sync"
	"time"
)

// Handle cancels a scheduled action.
type Handle interface {
	// Cancel prevents the action from running. It reports whether the action
	// was still pending.
	Cancel() bool
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
}

// Real schedules actions on the wall clock. Actions run on their own goroutine.
type Real struct{}

// Schedule implements Scheduler.
func (Real) Schedule(delay time.Duration, fn func()) Handle {
	h := &realHandle{}
	h.mu.Lock()
	h.timer = time.AfterFunc(delay, func() {
		h.mu.Lock()
		if h.done {
			h.mu.Unlock()
			return
		}
		h.done = true
		h.mu.Unlock()
		fn()
	})
	h.mu.Unlock()
	return h
}

type realHandle struct {
	mu    sync.Mutex
	timer *time.Timer
	done  bool
}

func (h *realHandle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return false
	}
	h.done = true
	h.timer.Stop()
	return true
}
