package feedback

import (
	"io"
	"sync"
	"time"
)

// DefaultTTL bounds how long a transient message or overlay stays visible.
const DefaultTTL = 4 * time.Second

// Alerter plays the failure cue. Implementations must restart from the
// beginning on every call: stop in-flight playback, rewind, replay.
type Alerter interface {
	Play()
}

// Bell is an Alerter that writes the terminal bell to a writer. Stations
// without a sound device still get an audible cue from the attached console.
type Bell struct {
	W io.Writer
}

// Play emits the bell. Writing is inherently restart-from-beginning.
func (b Bell) Play() {
	if b.W != nil {
		_, _ = b.W.Write([]byte("\a"))
	}
}

// Silent is an Alerter for tests and headless deployments.
type Silent struct{}

func (Silent) Play() {}

// Snapshot is the transient state rendered by the operator UI.
type Snapshot struct {
	Message string `json:"message"`
	Overlay string `json:"overlay"`
}

// Presenter owns the operator-facing transient state: an error message with
// an audio cue on failure, a payload overlay on success. Both self-clear
// after the TTL so the UI returns to a scan-ready look without operator
// action.
type Presenter struct {
	mu           sync.Mutex
	alerter      Alerter
	ttl          time.Duration
	message      string
	overlay      string
	messageTimer *time.Timer
	overlayTimer *time.Timer
	closed       bool
}

// NewPresenter creates a presenter with the given alerter and clear timeout.
func NewPresenter(alerter Alerter, ttl time.Duration) *Presenter {
	if alerter == nil {
		alerter = Silent{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Presenter{alerter: alerter, ttl: ttl}
}

// Failure plays the audio alert and shows the message until the TTL elapses.
func (p *Presenter) Failure(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.alerter.Play()
	p.message = message
	if p.messageTimer != nil {
		p.messageTimer.Stop()
	}
	p.messageTimer = time.AfterFunc(p.ttl, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		p.message = ""
		p.messageTimer = nil
	})
}

// Success shows the decoded payload as a transient overlay. Silence is the
// success signal, so no audio plays.
func (p *Presenter) Success(overlay string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.overlay = overlay
	if p.overlayTimer != nil {
		p.overlayTimer.Stop()
	}
	p.overlayTimer = time.AfterFunc(p.ttl, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		p.overlay = ""
		p.overlayTimer = nil
	})
}

// Snapshot returns the current transient state.
func (p *Presenter) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{Message: p.message, Overlay: p.overlay}
}

// Close cancels pending clear timers; a timer firing afterwards is a no-op.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.messageTimer != nil {
		p.messageTimer.Stop()
		p.messageTimer = nil
	}
	if p.overlayTimer != nil {
		p.overlayTimer.Stop()
		p.overlayTimer = nil
	}
	p.message = ""
	p.overlay = ""
}
