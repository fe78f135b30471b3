// Package throttle coalesces bursts of calls into a bounded rate of
// executions without losing the most recently requested action.
package throttle

import (
	"sync"
	"time"
)

// DefaultDelay is the coalescing window used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// Throttle runs the last action handed to Run once the calls stop arriving
// for a full delay window. With a burst limit configured, every maxBurst-th
// call also runs immediately so a steady stream of calls cannot postpone
// execution forever.
//
// Safe for concurrent use. Actions, forced ones included, run on their own
// goroutines and never on the caller of Run.
type Throttle struct {
	mu       sync.Mutex
	delay    time.Duration
	maxBurst int // 0 disables forced executions

	action  func()
	pending int // scheduled checks not yet fired
	burst   int

	afterFunc func(time.Duration, func()) // time.AfterFunc, swappable in tests
	goFunc    func(func())                // starts forced executions
}

// New creates a Throttle with the given window and burst limit.
func New(delay time.Duration, maxBurst int) *Throttle {
	t := &Throttle{
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		goFunc:    func(f func()) { go f() },
	}
	t.Configure(delay, maxBurst)
	return t
}

// Configure changes the window and burst limit. Checks already scheduled
// keep their original deadline.
func (t *Throttle) Configure(delay time.Duration, maxBurst int) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if maxBurst < 0 {
		maxBurst = 0
	}
	t.mu.Lock()
	t.delay = delay
	t.maxBurst = maxBurst
	t.burst = 0
	t.mu.Unlock()
}

// Run records action as the pending action, replacing any earlier one.
func (t *Throttle) Run(action func()) {
	if action == nil {
		return
	}

	t.mu.Lock()
	t.pending++
	t.action = action

	var forced func()
	if t.maxBurst > 0 {
		t.burst++
		if t.burst >= t.maxBurst {
			t.burst = 0
			forced = action
		}
	}
	delay := t.delay
	t.mu.Unlock()

	if forced != nil {
		t.goFunc(forced)
	}

	t.afterFunc(delay, t.check)
}

// check fires once per Run call. The last check of a burst runs whatever
// action is stored at that moment.
func (t *Throttle) check() {
	t.mu.Lock()
	t.pending--
	if t.pending > 0 {
		t.mu.Unlock()
		return
	}
	t.pending = 0
	action := t.action
	t.action = nil
	t.mu.Unlock()

	if action != nil {
		action()
	}
}

// Invalidate drops the pending action without running it.
func (t *Throttle) Invalidate() {
	t.mu.Lock()
	t.action = nil
	t.mu.Unlock()
}

// Pending reports whether an action is waiting to run.
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.action != nil
}
