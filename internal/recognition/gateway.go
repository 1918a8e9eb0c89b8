package recognition

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/snaptext/internal/ir"
)

// ErrUnavailable is returned when no recognition engine is compiled in or
// its model data is missing.
var ErrUnavailable = errors.New("recognition engine unavailable")

// Readiness is a point-in-time view of the engine's model state.
type Readiness struct {
	Ready    bool    `json:"ready"`
	Progress float64 `json:"progress"`
}

// Gateway wraps a recognition engine.
//
// Recognize must not be called while Readiness().Ready is false. It may
// block for seconds and should return promptly once ctx is done.
type Gateway interface {
	Readiness() Readiness
	Recognize(ctx context.Context, img ir.ImageRef) ([]ir.TextRegion, error)
}

// Tracker records readiness and notifies an optional listener on change.
//
// Thread-safety: safe for concurrent use; the listener is called outside the lock.
type Tracker struct {
	mu       sync.Mutex
	state    Readiness
	onChange func(Readiness)
}

// NewTracker creates a not-ready tracker at progress 0.
// onChange may be nil.
func NewTracker(onChange func(Readiness)) *Tracker {
	return &Tracker{onChange: onChange}
}

// Readiness returns the current state.
func (t *Tracker) Readiness() Readiness {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetProgress records download progress, clamped to [0,1].
// Progress never moves backwards while a download is running.
func (t *Tracker) SetProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	t.mu.Lock()
	if p <= t.state.Progress || t.state.Ready {
		t.mu.Unlock()
		return
	}
	t.state.Progress = p
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
}

// MarkReady flips the tracker to ready with full progress.
func (t *Tracker) MarkReady() {
	t.mu.Lock()
	if t.state.Ready {
		t.mu.Unlock()
		return
	}
	t.state = Readiness{Ready: true, Progress: 1}
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
}

// Reset returns the tracker to not-ready, e.g. after a failed download.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = Readiness{}
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
}

func (t *Tracker) notify(r Readiness) {
	if t.onChange != nil {
		t.onChange(r)
	}
}
