package core

import (
	"sync"
	"time"
)

// DefaultResizeDelay is the quiescence window used for viewport resizes.
const DefaultResizeDelay = 100 * time.Millisecond

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d. time.AfterFunc satisfies it
// through StdAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// StdAfterFunc wraps time.AfterFunc.
func StdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer collapses bursts of Trigger calls into a single call of fn,
// made once delay has passed without a new Trigger. fn receives the value
// of the most recent Trigger.
type Debouncer[T any] struct {
	delay     time.Duration
	fn        func(T)
	afterFunc AfterFunc

	mu        sync.Mutex
	timer     Timer
	seq       uint64
	cancelled bool
}

// NewDebouncer creates a trailing-edge debouncer. A non-positive delay
// falls back to DefaultResizeDelay; a nil afterFunc uses the real clock.
func NewDebouncer[T any](delay time.Duration, afterFunc AfterFunc, fn func(T)) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultResizeDelay
	}
	if afterFunc == nil {
		afterFunc = StdAfterFunc
	}
	return &Debouncer[T]{delay: delay, fn: fn, afterFunc: afterFunc}
}

// Delay returns the quiescence window.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}

// Trigger cancels any pending call and schedules a new one carrying v.
// Does nothing after Cancel.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancelled {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.afterFunc(d.delay, func() {
		d.fire(seq, v)
	})
}

// fire runs fn only if no newer Trigger or Cancel happened since seq was
// issued. A timer whose Stop lost the race lands here and is dropped.
func (d *Debouncer[T]) fire(seq uint64, v T) {
	d.mu.Lock()
	if d.cancelled || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Pending reports whether a call is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel stops the pending call, if any, and disables the debouncer.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelled = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
