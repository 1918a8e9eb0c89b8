package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/pipeline"
	"github.com/roach88/snaptext/internal/recognition"
	"github.com/roach88/snaptext/internal/registry"
	"github.com/roach88/snaptext/internal/store"
	"github.com/roach88/snaptext/internal/testutil"
)

// RecognizeTimeout bounds every scenario recognition. Steps with hang use it
// to reach the timeout outcome quickly.
const RecognizeTimeout = 50 * time.Millisecond

// Harness executes one scenario. It owns the fresh store, the scripted
// engine and the trace.
type Harness struct {
	store    *store.Store
	registry *registry.Registry
	gateway  *testutil.ScriptedGateway
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	mu     sync.Mutex
	trace  []TraceEvent
	seq    int64
	step   int
	result *Result

	// pending is the outcome of an async confirm awaiting release.
	pending <-chan pipeline.Outcome
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and sequential record ids, so repeated runs produce identical
// traces. Step expectations and assertions that fail are collected in
// Result.Errors; the returned error is reserved for harness failures.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewDeterministicClock()),
		store.WithIDGenerator(testutil.NewSequenceIDGenerator("rec")),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		registry: registry.New(st, registry.WithLogger(logger)),
		gateway:  testutil.NewScriptedGateway(),
		logger:   logger,
		result:   NewResult(),
	}

	opts := []pipeline.Option{
		pipeline.WithRecognizeTimeout(RecognizeTimeout),
		pipeline.WithObserver(h.observe),
		pipeline.WithLogger(logger),
	}
	if scenario.MaxImageBytes > 0 {
		opts = append(opts, pipeline.WithMaxImageBytes(scenario.MaxImageBytes))
	}
	h.pipeline = pipeline.New(h.gateway, tracingRecorder{h}, opts...)

	ctx := context.Background()
	if err := h.registry.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	for i, step := range scenario.Steps {
		h.setStep(i)
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Action, err)
		}
	}

	// A scenario that ends with an async confirm still in flight must not
	// leak its goroutine past the store close.
	if h.pending != nil {
		h.gateway.Release()
		<-h.pending
		h.pending = nil
	}

	return h.finish(ctx, scenario)
}

func (h *Harness) finish(ctx context.Context, scenario *Scenario) (*Result, error) {
	records, err := h.store.ListOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	result := h.result
	result.Trace = h.snapshotTrace()
	result.Records = records
	result.Listed = h.registry.List()
	result.FinalState = string(h.pipeline.State())

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. Expected failures (pipeline errors) are recorded
// in the trace and checked against Expect; only harness faults are returned.
func (h *Harness) execute(ctx context.Context, step Step) error {
	var (
		outcome pipeline.Outcome
		stepErr error
	)

	switch step.Action {
	case ActionAcquire:
		stepErr = h.pipeline.Acquire(ir.ImageRef{
			Path:   step.Image.Path,
			Size:   step.Image.Size,
			Source: imageSource(step.Image.Source),
		})

	case ActionConfirm:
		outcome, stepErr = h.confirm(ctx, step)

	case ActionRelease:
		if h.pending == nil {
			return errors.New("release without a held confirm")
		}
		h.gateway.Release()
		outcome = <-h.pending
		h.pending = nil
		stepErr = outcome.Err

	case ActionClear:
		stepErr = h.pipeline.Clear()

	case ActionSetReady:
		progress := step.Progress
		if step.Ready && progress == 0 {
			progress = 100
		}
		h.gateway.SetReadiness(recognition.Readiness{
			Ready:    step.Ready,
			Progress: float64(progress) / 100,
		})
		h.record(TraceEvent{Type: EventReadiness, Ready: step.Ready, Progress: progress})

	case ActionRemove:
		if err := h.registry.Remove(ctx, step.ID); err != nil {
			return err
		}
		h.record(TraceEvent{Type: EventRemoved, ID: step.ID})

	case ActionRefresh:
		if err := h.registry.Refresh(ctx); err != nil {
			return err
		}
		h.record(TraceEvent{Type: EventRefreshed, Count: len(h.registry.List())})
	}

	var pe *pipeline.Error
	if stepErr != nil {
		if !errors.As(stepErr, &pe) {
			return stepErr
		}
		h.record(TraceEvent{Type: EventError, Code: string(pe.Code)})
	}
	if outcome.Skipped {
		h.record(TraceEvent{Type: EventSkipped})
	}

	if step.Expect != nil {
		h.check(step, *step.Expect, outcome, pe)
	}
	return nil
}

// confirm scripts the engine and confirms. Async confirms hold the engine
// and return once recognition has actually started.
func (h *Harness) confirm(ctx context.Context, step Step) (pipeline.Outcome, error) {
	var engineErr error
	if step.Fail != "" {
		engineErr = errors.New(step.Fail)
	}
	h.gateway.SetResult(testutil.Regions(step.Regions...), engineErr)

	if step.Hang {
		h.gateway.Hold()
		defer h.gateway.Release()
		return h.pipeline.Confirm(ctx)
	}

	if !step.Async {
		return h.pipeline.Confirm(ctx)
	}

	if h.pending != nil {
		return pipeline.Outcome{}, errors.New("async confirm while another is held")
	}
	h.drainStarted()
	h.gateway.Hold()
	ch, err := h.pipeline.ConfirmAsync(ctx)
	if err != nil {
		h.gateway.Release()
		return pipeline.Outcome{}, err
	}
	// Wait until the engine has captured its scripted result so later
	// steps may script a different one.
	<-h.gateway.Started
	h.pending = ch
	return pipeline.Outcome{State: pipeline.StateRecognizing}, nil
}

func (h *Harness) drainStarted() {
	for {
		select {
		case <-h.gateway.Started:
		default:
			return
		}
	}
}

func (h *Harness) check(step Step, want Expect, outcome pipeline.Outcome, pe *pipeline.Error) {
	fail := func(format string, args ...any) {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: ", h.currentStep(), step.Action) + fmt.Sprintf(format, args...))
	}

	switch {
	case want.Error != "" && pe == nil:
		fail("expected error %s, got none", want.Error)
	case want.Error != "" && string(pe.Code) != want.Error:
		fail("expected error %s, got %s", want.Error, pe.Code)
	case want.Error == "" && pe != nil:
		fail("unexpected error: %v", pe)
	}

	snap := h.pipeline.Snapshot()
	if want.State != "" && string(snap.State) != want.State {
		fail("expected state %s, got %s", want.State, snap.State)
	}
	if want.Message != "" && snap.Message != want.Message {
		fail("expected message %q, got %q", want.Message, snap.Message)
	}
	if want.Reason != "" && string(snap.Reason) != want.Reason {
		fail("expected reason %s, got %q", want.Reason, snap.Reason)
	}
	if want.Skipped && !outcome.Skipped {
		fail("expected confirm to be skipped")
	}
	if want.Listed != nil {
		if n := len(h.registry.List()); n != *want.Listed {
			fail("expected %d listed records, got %d", *want.Listed, n)
		}
	}
}

// observe is the pipeline observer. It may run on the recognition goroutine.
func (h *Harness) observe(t pipeline.Transition) {
	h.record(TraceEvent{
		Type:   EventTransition,
		From:   string(t.From),
		To:     string(t.To),
		Reason: string(t.Reason),
	})
}

func (h *Harness) record(event TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	event.Seq = h.seq
	event.Step = h.step
	h.trace = append(h.trace, event)
}

func (h *Harness) setStep(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.step = i
}

func (h *Harness) currentStep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.step
}

func (h *Harness) snapshotTrace() []TraceEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TraceEvent{}, h.trace...)
}

// tracingRecorder records inserted events for the pipeline's writes.
type tracingRecorder struct {
	h *Harness
}

func (r tracingRecorder) Add(ctx context.Context, text string) (ir.TextRecord, error) {
	rec, err := r.h.registry.Add(ctx, text)
	if rec.ID != "" {
		r.h.record(TraceEvent{Type: EventInserted, ID: rec.ID, Text: rec.Text})
	}
	return rec, err
}

func imageSource(s string) ir.Source {
	if s == string(ir.SourceCamera) {
		return ir.SourceCamera
	}
	return ir.SourceLibrary
}
