package search

import (
	"sync"
	"time"
)

// Default debounce windows
const (
	DefaultDelay = 300 * time.Millisecond
	TextDelay    = 500 * time.Millisecond
)

// Timer is the part of *time.Timer the debouncer needs
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests swap it for a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc wraps time.AfterFunc
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer runs only the last function triggered within the delay window.
type Debouncer struct {
	mu        sync.Mutex
	delay     time.Duration
	afterFunc AfterFunc
	timer     Timer
	pending   func()
	seq       uint64
}

// NewDebouncer creates a debouncer. Zero delay uses DefaultDelay.
func NewDebouncer(delay time.Duration, afterFunc AfterFunc) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if afterFunc == nil {
		afterFunc = RealAfterFunc
	}
	return &Debouncer{delay: delay, afterFunc: afterFunc}
}

// Trigger (re)starts the window; f replaces any pending function.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = f
	d.timer = d.afterFunc(d.delay, func() { d.fire(seq) })
}

// Flush runs the pending function now. Returns false if nothing was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	f := d.take()
	d.mu.Unlock()

	if f == nil {
		return false
	}
	f()
	return true
}

// Stop drops the pending function
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.take()
}

// Pending reports whether a function is waiting for the window to close
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Delay returns the window length
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A timer that lost the race with Stop may still call in.
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	f := d.take()
	d.mu.Unlock()

	if f != nil {
		f()
	}
}

// take must be called with mu held
func (d *Debouncer) take() func() {
	f := d.pending
	d.pending = nil
	d.timer = nil
	d.seq++
	return f
}
