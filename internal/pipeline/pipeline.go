package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/snaptext/internal/acquire"
	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/recognition"
)

// DefaultMaxImageBytes is the largest image accepted by Acquire (2 MiB).
const DefaultMaxImageBytes int64 = 2 * 1024 * 1024

// DefaultRecognizeTimeout bounds a single recognition call.
const DefaultRecognizeTimeout = 30 * time.Second

// Recorder persists recognized text. Implemented by *registry.Registry.
type Recorder interface {
	Add(ctx context.Context, text string) (ir.TextRecord, error)
}

// Pipeline is the capture-to-store state machine.
//
// Thread-safety: all methods are safe for concurrent use. The gateway is
// called without holding the mutex.
type Pipeline struct {
	gateway  recognition.Gateway
	recorder Recorder
	logger   *slog.Logger
	observer func(Transition)
	maxBytes int64
	timeout  time.Duration

	mu       sync.Mutex
	state    State
	image    *ir.ImageRef
	regions  []ir.TextRegion
	record   *ir.TextRecord
	message  string
	reason   Reason
	inFlight bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxImageBytes sets the acquisition byte ceiling.
// Default: DefaultMaxImageBytes.
func WithMaxImageBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithRecognizeTimeout bounds each recognition call.
// Default: DefaultRecognizeTimeout.
func WithRecognizeTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithObserver registers fn to receive every state transition.
// fn is called outside the pipeline's lock and may call Snapshot.
func WithObserver(fn func(Transition)) Option {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

// WithLogger sets the pipeline's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates an idle pipeline.
func New(gateway recognition.Gateway, recorder Recorder, opts ...Option) *Pipeline {
	p := &Pipeline{
		gateway:  gateway,
		recorder: recorder,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBytes: DefaultMaxImageBytes,
		timeout:  DefaultRecognizeTimeout,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire hands an image to an idle pipeline.
//
// An image larger than the ceiling is rejected with ErrCodeImageTooLarge and
// the pipeline stays Idle. Acquire from any other state is an
// ErrCodeInvalidTransition error; Clear first.
func (p *Pipeline) Acquire(ref ir.ImageRef) error {
	p.mu.Lock()
	if p.state != StateIdle {
		s := p.state
		p.mu.Unlock()
		return newTransitionError("acquire an image while one is loaded", s)
	}
	if ref.Size > p.maxBytes {
		p.mu.Unlock()
		p.logger.Info("image rejected", "path", ref.Path, "size", ref.Size, "limit", p.maxBytes)
		return newTooLargeError(ref.Size, p.maxBytes)
	}

	img := ref
	p.image = &img
	t := p.transition(StateImageReady, ReasonNone)
	p.mu.Unlock()

	p.logger.Debug("image acquired", "path", ref.Path, "size", ref.Size, "source", ref.Source)
	p.emit(t)
	return nil
}

// AcquireFrom pulls an image from src and hands it to Acquire.
// Source failures are ErrCodeAcquire errors wrapping the cause; the
// pipeline stays Idle.
func (p *Pipeline) AcquireFrom(ctx context.Context, src acquire.Source) error {
	p.mu.Lock()
	s := p.state
	p.mu.Unlock()
	if s != StateIdle {
		return newTransitionError("acquire an image while one is loaded", s)
	}

	ref, err := src.Acquire(ctx)
	if err != nil {
		p.logger.Info("acquisition failed", "error", err)
		return &Error{
			Code:    ErrCodeAcquire,
			Message: "could not acquire image",
			State:   StateIdle,
			Err:     err,
		}
	}
	return p.Acquire(ref)
}

// Confirm runs recognition on the loaded image and blocks until it settles.
//
// Recognition failure and empty results are outcomes, not errors. Confirm
// returns an error when the pipeline cannot start (no image, model not
// ready) or when recognized text could not be stored. A Confirm while
// another is in flight returns Outcome{Skipped: true} immediately.
func (p *Pipeline) Confirm(ctx context.Context) (Outcome, error) {
	img, skipped, err := p.begin()
	if err != nil {
		return Outcome{}, err
	}
	if skipped {
		return Outcome{State: StateRecognizing, Skipped: true}, nil
	}
	out := p.run(ctx, img)
	return out, out.Err
}

// ConfirmAsync is Confirm with recognition on its own goroutine.
//
// Start-up errors are returned synchronously, and by the time ConfirmAsync
// returns the pipeline is already Recognizing. The channel receives exactly
// one Outcome and is then closed.
func (p *Pipeline) ConfirmAsync(ctx context.Context) (<-chan Outcome, error) {
	img, skipped, err := p.begin()
	if err != nil {
		return nil, err
	}

	ch := make(chan Outcome, 1)
	if skipped {
		ch <- Outcome{State: StateRecognizing, Skipped: true}
		close(ch)
		return ch, nil
	}

	go func() {
		defer close(ch)
		ch <- p.run(ctx, img)
	}()
	return ch, nil
}

// Clear drops the image and any result and returns to Idle.
// Clear while recognizing is an ErrCodeBusy error. Clear when Idle does nothing.
func (p *Pipeline) Clear() error {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.mu.Unlock()
		return nil
	case StateRecognizing:
		p.mu.Unlock()
		return &Error{
			Code:    ErrCodeBusy,
			Message: "recognition in progress",
			State:   StateRecognizing,
		}
	}

	p.image = nil
	p.regions = nil
	p.record = nil
	p.message = ""
	t := p.transition(StateIdle, ReasonNone)
	p.mu.Unlock()

	p.emit(t)
	return nil
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns a copy of the pipeline's current view.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		State:    p.state,
		Message:  p.message,
		Reason:   p.reason,
		InFlight: p.inFlight,
	}
	if p.image != nil {
		img := *p.image
		snap.Image = &img
	}
	if p.regions != nil {
		snap.Regions = append([]ir.TextRegion(nil), p.regions...)
	}
	if p.record != nil {
		rec := *p.record
		snap.Record = &rec
	}
	return snap
}

// begin moves ImageReady to Recognizing under the lock.
func (p *Pipeline) begin() (ir.ImageRef, bool, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		p.logger.Debug("confirm ignored, recognition in flight")
		return ir.ImageRef{}, true, nil
	}
	if p.state != StateImageReady {
		s := p.state
		p.mu.Unlock()
		return ir.ImageRef{}, false, newTransitionError("confirm without a loaded image", s)
	}
	if r := p.gateway.Readiness(); !r.Ready {
		p.mu.Unlock()
		return ir.ImageRef{}, false, &Error{
			Code:    ErrCodeNotReady,
			Message: fmt.Sprintf("recognition model not ready (%.0f%%)", r.Progress*100),
			State:   StateImageReady,
		}
	}

	p.inFlight = true
	img := *p.image
	t := p.transition(StateRecognizing, ReasonNone)
	p.mu.Unlock()

	p.emit(t)
	return img, false, nil
}

// run performs recognition and classifies its result. Must follow a
// successful begin.
func (p *Pipeline) run(ctx context.Context, img ir.ImageRef) Outcome {
	start := time.Now()
	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	regions, err := p.recognize(rctx, img)
	timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		reason := ReasonEngine
		switch {
		case timedOut || errors.Is(err, context.DeadlineExceeded):
			reason = ReasonTimeout
		case errors.Is(err, context.Canceled):
			reason = ReasonCanceled
		}
		p.logger.Warn("recognition failed", "path", img.Path, "reason", reason, "error", err)
		return p.finish(StateFailed, reason, nil, nil, MessageFailed)
	}

	p.logger.Debug("recognition finished", "path", img.Path, "regions", len(regions), "elapsed", time.Since(start))

	if len(regions) == 0 {
		return p.finish(StateEmptyResult, ReasonNone, nil, nil, MessageNoText)
	}

	rec, err := p.recorder.Add(ctx, ir.JoinRegions(regions))
	if err != nil && rec.ID == "" {
		p.logger.Error("recognized text not saved", "error", err)
		out := p.finish(StateFailed, ReasonPersistence, regions, nil, MessageFailed)
		out.Err = PersistenceError(err)
		return out
	}
	if err != nil {
		// Stored, but the recorder could not refresh its view.
		p.logger.Warn("record saved, view refresh failed", "id", rec.ID, "error", err)
	}

	return p.finish(StateRecognized, ReasonNone, regions, &rec, "")
}

// recognize calls the gateway on its own goroutine and stops waiting once
// ctx is done, so a gateway that ignores ctx cannot keep the pipeline in
// Recognizing. A late result from an abandoned call is dropped.
func (p *Pipeline) recognize(ctx context.Context, img ir.ImageRef) ([]ir.TextRegion, error) {
	type result struct {
		regions []ir.TextRegion
		err     error
	}
	done := make(chan result, 1)

	go func() {
		regions, err := p.gateway.Recognize(ctx, img)
		done <- result{regions: regions, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.regions, r.err
	}
}

func (p *Pipeline) finish(to State, reason Reason, regions []ir.TextRegion, rec *ir.TextRecord, msg string) Outcome {
	p.mu.Lock()
	p.inFlight = false
	p.regions = regions
	p.record = rec
	p.message = msg
	t := p.transition(to, reason)
	p.mu.Unlock()

	p.emit(t)

	out := Outcome{
		State:   to,
		Regions: regions,
		Message: msg,
		Reason:  reason,
	}
	if rec != nil {
		r := *rec
		out.Record = &r
	}
	return out
}

// transition must be called with p.mu held.
func (p *Pipeline) transition(to State, reason Reason) Transition {
	t := Transition{From: p.state, To: to, Reason: reason}
	p.state = to
	p.reason = reason
	return t
}

func (p *Pipeline) emit(t Transition) {
	p.logger.Debug("state change", "from", t.From, "to", t.To, "reason", t.Reason)
	if p.observer != nil {
		p.observer(t)
	}
}
