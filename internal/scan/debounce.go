package scan

import (
	"sync"
	"time"
)

// DefaultCooldown is how long the debouncer stays busy after a scan finishes.
const DefaultCooldown = 1500 * time.Millisecond

// Debouncer is the single-flight guard in front of the scan pipeline.
// Camera decode callbacks fire many times per second for one physical code;
// the debouncer admits the first payload and drops the rest until the
// pipeline finishes and the cool-down elapses.
type Debouncer struct {
	mu       sync.Mutex
	cooldown time.Duration
	busy     bool
	closed   bool
	timer    *time.Timer
}

// NewDebouncer creates an idle debouncer with the given cool-down.
func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Debouncer{cooldown: cooldown}
}

// TryAcquire attempts the Idle to Busy transition. It reports whether the
// caller won the slot; losers must drop their payload, not queue it.
func (d *Debouncer) TryAcquire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.busy {
		return false
	}
	d.busy = true
	return true
}

// Release schedules the return to Idle after the cool-down. Called once the
// downstream pipeline has completed, whether it succeeded or failed.
func (d *Debouncer) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.busy {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.cooldown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return
		}
		d.busy = false
		d.timer = nil
	})
}

// Reset forces Idle immediately, cancelling any pending cool-down. Used for
// manual recovery when the operator resets the camera.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.busy = false
}

// Close cancels pending timers and rejects all further acquisitions. A timer
// that fires after Close is a no-op.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
