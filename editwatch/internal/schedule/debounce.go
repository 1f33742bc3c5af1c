package schedule

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period after the last edit signal before a
// capture runs.
const DefaultWindow = 700 * time.Millisecond

// Debouncer holds at most one pending task. Each Schedule cancels and
// replaces the pending one; the task runs once the window passes with no
// further signal.
//
// The Debouncer shares its owner's lock: Schedule, Cancel and Pending must
// be called with that lock held, and a task runs with the lock held. A
// timer that fires after being cancelled or replaced finds a newer
// generation and does nothing.
type Debouncer struct {
	clock  Clock
	window time.Duration
	lock   sync.Locker

	gen     uint64
	timer   Timer
	pending bool
}

// NewDebouncer creates a Debouncer. A nil clock selects SystemClock;
// window <= 0 selects DefaultWindow.
func NewDebouncer(clock Clock, window time.Duration, lock sync.Locker) *Debouncer {
	if clock == nil {
		clock = SystemClock{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{clock: clock, window: window, lock: lock}
}

// Schedule replaces any pending task with task.
func (d *Debouncer) Schedule(task func()) {
	d.stop()
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = d.clock.AfterFunc(d.window, func() {
		d.lock.Lock()
		defer d.lock.Unlock()
		if gen != d.gen || !d.pending {
			return
		}
		d.pending = false
		d.timer = nil
		task()
	})
}

// Cancel drops the pending task, if any. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	was := d.pending
	d.stop()
	d.gen++
	return was
}

// Pending reports whether a task is waiting for its window to pass.
func (d *Debouncer) Pending() bool { return d.pending }

// Window returns the debounce window.
func (d *Debouncer) Window() time.Duration { return d.window }

func (d *Debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
}
