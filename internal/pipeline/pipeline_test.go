package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/recognition"
	"github.com/roach88/snaptext/internal/registry"
	"github.com/roach88/snaptext/internal/store"
	"github.com/roach88/snaptext/internal/testutil"
)

type fixture struct {
	gw       *testutil.ScriptedGateway
	reg      *registry.Registry
	store    *store.Store
	pipeline *Pipeline

	mu          sync.Mutex
	transitions []Transition
}

func (f *fixture) seen() []Transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Transition(nil), f.transitions...)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "pipeline.db"),
		store.WithClock(testutil.NewDeterministicClock()),
		store.WithIDGenerator(testutil.NewSequenceIDGenerator("")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		gw:    testutil.NewScriptedGateway(),
		reg:   registry.New(s),
		store: s,
	}
	opts = append([]Option{WithObserver(func(tr Transition) {
		f.mu.Lock()
		f.transitions = append(f.transitions, tr)
		f.mu.Unlock()
	})}, opts...)
	f.pipeline = New(f.gw, f.reg, opts...)
	return f
}

func image(size int64) ir.ImageRef {
	return ir.ImageRef{Path: "/tmp/page.jpg", Size: size, Source: ir.SourceLibrary}
}

func count(t *testing.T, s *store.Store) int {
	t.Helper()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestAcquire_SizeCeiling(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{"empty", 0, false},
		{"at limit", DefaultMaxImageBytes, false},
		{"one over", DefaultMaxImageBytes + 1, true},
		{"3 MiB", 3 * 1024 * 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.pipeline.Acquire(image(tt.size))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsImageTooLarge(err))
				assert.Equal(t, StateIdle, f.pipeline.State())
				assert.Nil(t, f.pipeline.Snapshot().Image)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateImageReady, f.pipeline.State())
		})
	}
}

func TestAcquire_CustomCeiling(t *testing.T) {
	f := newFixture(t, WithMaxImageBytes(10))

	err := f.pipeline.Acquire(image(11))
	assert.True(t, IsImageTooLarge(err))
	require.NoError(t, f.pipeline.Acquire(image(10)))
}

func TestAcquire_OnlyFromIdle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pipeline.Acquire(image(1)))

	err := f.pipeline.Acquire(image(1))
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, StateImageReady, f.pipeline.State())
}

type stubSource struct {
	ref ir.ImageRef
	err error
}

func (s stubSource) Acquire(context.Context) (ir.ImageRef, error) { return s.ref, s.err }

func TestAcquireFrom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	boom := errors.New("no camera")
	err := f.pipeline.AcquireFrom(ctx, stubSource{err: boom})
	require.Error(t, err)
	assert.True(t, IsAcquireError(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, f.pipeline.State())

	err = f.pipeline.AcquireFrom(ctx, stubSource{ref: image(DefaultMaxImageBytes + 1)})
	assert.True(t, IsImageTooLarge(err))

	require.NoError(t, f.pipeline.AcquireFrom(ctx, stubSource{ref: image(5)}))
	assert.Equal(t, StateImageReady, f.pipeline.State())
}

func TestConfirm_RecognizedPersistsJoinedText(t *testing.T) {
	f := newFixture(t)
	f.gw.SetResult(testutil.Regions("HELLO", "WORLD"), nil)
	ctx := context.Background()

	require.NoError(t, f.pipeline.Acquire(image(100)))
	out, err := f.pipeline.Confirm(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateRecognized, out.State)
	require.NotNil(t, out.Record)
	assert.Equal(t, "HELLO\tWORLD", out.Record.Text)
	assert.Len(t, out.Regions, 2)

	list := f.reg.List()
	require.Len(t, list, 1, "registry refreshed by Add")
	assert.Equal(t, "HELLO\tWORLD", list[0].Text)

	assert.Equal(t, []Transition{
		{From: StateIdle, To: StateImageReady},
		{From: StateImageReady, To: StateRecognizing},
		{From: StateRecognizing, To: StateRecognized},
	}, f.seen())
}

func TestConfirm_EmptyResult(t *testing.T) {
	f := newFixture(t)
	f.gw.SetResult(nil, nil)

	require.NoError(t, f.pipeline.Acquire(image(100)))
	out, err := f.pipeline.Confirm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateEmptyResult, out.State)
	assert.Equal(t, MessageNoText, out.Message)
	assert.Nil(t, out.Record)
	assert.Equal(t, 0, count(t, f.store))

	snap := f.pipeline.Snapshot()
	assert.NotNil(t, snap.Image, "image kept until Clear")
	assert.False(t, snap.InFlight)
}

func TestConfirm_EngineError(t *testing.T) {
	f := newFixture(t)
	f.gw.SetResult(nil, errors.New("tesseract crashed"))

	require.NoError(t, f.pipeline.Acquire(image(100)))
	out, err := f.pipeline.Confirm(context.Background())
	require.NoError(t, err, "recognition failure is an outcome")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ReasonEngine, out.Reason)
	assert.Equal(t, MessageFailed, out.Message)
	assert.Equal(t, 0, count(t, f.store))
}

func TestConfirm_Timeout(t *testing.T) {
	f := newFixture(t, WithRecognizeTimeout(20*time.Millisecond))
	f.gw.Hold()
	t.Cleanup(f.gw.Release)

	require.NoError(t, f.pipeline.Acquire(image(100)))
	out, err := f.pipeline.Confirm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Equal(t, 0, count(t, f.store))
}

// stuckGateway never returns until unblocked and ignores ctx.
type stuckGateway struct {
	unblock chan struct{}
	started chan struct{}
}

func (g *stuckGateway) Readiness() recognition.Readiness {
	return recognition.Readiness{Ready: true, Progress: 1}
}

func (g *stuckGateway) Recognize(ctx context.Context, img ir.ImageRef) ([]ir.TextRegion, error) {
	close(g.started)
	<-g.unblock
	return testutil.Regions("too late"), nil
}

func TestConfirm_TimeoutWithGatewayIgnoringContext(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "stuck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	gw := &stuckGateway{unblock: make(chan struct{}), started: make(chan struct{})}
	t.Cleanup(func() { close(gw.unblock) })

	p := New(gw, registry.New(s), WithRecognizeTimeout(20*time.Millisecond))
	require.NoError(t, p.Acquire(image(100)))

	ch, err := p.ConfirmAsync(context.Background())
	require.NoError(t, err)
	<-gw.started

	var out Outcome
	select {
	case out = <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("confirm still pending, state %s", p.State())
	}

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.False(t, p.Snapshot().InFlight)
	require.NoError(t, p.Clear())
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, 0, count(t, s))
}

func TestConfirm_Canceled(t *testing.T) {
	f := newFixture(t)
	f.gw.Hold()
	t.Cleanup(f.gw.Release)

	require.NoError(t, f.pipeline.Acquire(image(100)))
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.pipeline.ConfirmAsync(ctx)
	require.NoError(t, err)

	<-f.gw.Started
	cancel()
	out := <-ch

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ReasonCanceled, out.Reason)
}

func TestConfirm_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.gw.SetResult(testutil.Regions("once"), nil)
	f.gw.Hold()

	require.NoError(t, f.pipeline.Acquire(image(100)))
	ch, err := f.pipeline.ConfirmAsync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRecognizing, f.pipeline.State(), "flag flipped before ConfirmAsync returns")

	for i := 0; i < 3; i++ {
		out, err := f.pipeline.Confirm(context.Background())
		require.NoError(t, err)
		assert.True(t, out.Skipped)
	}

	dup, err := f.pipeline.ConfirmAsync(context.Background())
	require.NoError(t, err)
	assert.True(t, (<-dup).Skipped)

	f.gw.Release()
	out := <-ch
	require.NoError(t, out.Err)
	assert.Equal(t, StateRecognized, out.State)

	assert.Len(t, f.gw.Calls(), 1, "exactly one recognition")
	assert.Equal(t, 1, count(t, f.store), "exactly one insert")
}

func TestConfirm_ConcurrentTriggers(t *testing.T) {
	f := newFixture(t)
	f.gw.SetResult(testutil.Regions("race"), nil)
	f.gw.Hold()
	require.NoError(t, f.pipeline.Acquire(image(100)))

	var wg sync.WaitGroup
	results := make(chan Outcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.pipeline.Confirm(context.Background())
			assert.NoError(t, err)
			results <- out
		}()
	}

	<-f.gw.Started
	// The other seven see the in-flight flag and return without blocking.
	for i := 0; i < 7; i++ {
		out := <-results
		assert.True(t, out.Skipped)
	}
	f.gw.Release()
	wg.Wait()
	close(results)

	var ran int
	for out := range results {
		assert.False(t, out.Skipped)
		assert.Equal(t, StateRecognized, out.State)
		ran++
	}
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, count(t, f.store))
}

func TestConfirm_NotReady(t *testing.T) {
	f := newFixture(t)
	f.gw.SetReadiness(recognition.Readiness{Ready: false, Progress: 0.4})

	require.NoError(t, f.pipeline.Acquire(image(100)))
	_, err := f.pipeline.Confirm(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotReady(err))
	assert.Contains(t, err.Error(), "40%")
	assert.Equal(t, StateImageReady, f.pipeline.State())
	assert.Empty(t, f.gw.Calls())

	_, err = f.pipeline.ConfirmAsync(context.Background())
	assert.True(t, IsNotReady(err))

	f.gw.SetReadiness(recognition.Readiness{Ready: true, Progress: 1})
	out, err := f.pipeline.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateEmptyResult, out.State)
}

func TestConfirm_WithoutImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Confirm(context.Background())
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, StateIdle, f.pipeline.State())
}

type brokenRecorder struct{ err error }

func (b brokenRecorder) Add(context.Context, string) (ir.TextRecord, error) {
	return ir.TextRecord{}, b.err
}

func TestConfirm_PersistenceFailure(t *testing.T) {
	gw := testutil.NewScriptedGateway(testutil.Regions("lost")...)
	boom := errors.New("database is locked")
	p := New(gw, brokenRecorder{err: boom})

	require.NoError(t, p.Acquire(image(100)))
	out, err := p.Confirm(context.Background())
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ReasonPersistence, out.Reason)
	assert.Equal(t, StateFailed, p.State())
}

type staleRecorder struct{}

func (staleRecorder) Add(_ context.Context, text string) (ir.TextRecord, error) {
	return ir.TextRecord{ID: "rec-1", Text: text}, errors.New("refresh registry: locked")
}

func TestConfirm_RefreshFailureStillRecognized(t *testing.T) {
	gw := testutil.NewScriptedGateway(testutil.Regions("kept")...)
	p := New(gw, staleRecorder{})

	require.NoError(t, p.Acquire(image(100)))
	out, err := p.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRecognized, out.State)
	assert.Equal(t, "rec-1", out.Record.ID)
}

func TestClear(t *testing.T) {
	t.Run("idle is a no-op", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.pipeline.Clear())
		assert.Equal(t, StateIdle, f.pipeline.State())
		assert.Empty(t, f.seen())
	})

	t.Run("from image ready", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.pipeline.Acquire(image(1)))
		require.NoError(t, f.pipeline.Clear())
		assert.Equal(t, Snapshot{State: StateIdle}, f.pipeline.Snapshot())
	})

	t.Run("from result states", func(t *testing.T) {
		for _, regions := range [][]ir.TextRegion{testutil.Regions("x"), nil} {
			f := newFixture(t)
			f.gw.SetResult(regions, nil)
			require.NoError(t, f.pipeline.Acquire(image(1)))
			_, err := f.pipeline.Confirm(context.Background())
			require.NoError(t, err)

			require.NoError(t, f.pipeline.Clear())
			assert.Equal(t, Snapshot{State: StateIdle}, f.pipeline.Snapshot())
		}
	})

	t.Run("from failed", func(t *testing.T) {
		f := newFixture(t)
		f.gw.SetResult(nil, errors.New("boom"))
		require.NoError(t, f.pipeline.Acquire(image(1)))
		_, err := f.pipeline.Confirm(context.Background())
		require.NoError(t, err)

		require.NoError(t, f.pipeline.Clear())
		assert.Equal(t, Snapshot{State: StateIdle}, f.pipeline.Snapshot())
		require.NoError(t, f.pipeline.Acquire(image(1)), "pipeline reusable after clear")
	})

	t.Run("rejected while recognizing", func(t *testing.T) {
		f := newFixture(t)
		f.gw.SetResult(testutil.Regions("late"), nil)
		f.gw.Hold()
		require.NoError(t, f.pipeline.Acquire(image(1)))
		ch, err := f.pipeline.ConfirmAsync(context.Background())
		require.NoError(t, err)

		err = f.pipeline.Clear()
		assert.True(t, IsBusy(err))
		assert.Equal(t, StateRecognizing, f.pipeline.State())

		f.gw.Release()
		out := <-ch
		assert.Equal(t, StateRecognized, out.State)
		assert.Equal(t, 1, count(t, f.store))
	})
}

func TestSnapshot_IsACopy(t *testing.T) {
	f := newFixture(t)
	f.gw.SetResult(testutil.Regions("a", "b"), nil)
	require.NoError(t, f.pipeline.Acquire(image(1)))
	_, err := f.pipeline.Confirm(context.Background())
	require.NoError(t, err)

	snap := f.pipeline.Snapshot()
	snap.Regions[0].Text = "changed"
	snap.Image.Path = "changed"
	snap.Record.Text = "changed"

	again := f.pipeline.Snapshot()
	assert.Equal(t, "a", again.Regions[0].Text)
	assert.Equal(t, "/tmp/page.jpg", again.Image.Path)
	assert.Equal(t, "a\tb", again.Record.Text)
}

func TestError_Format(t *testing.T) {
	err := newTooLargeError(3, 2)
	assert.Equal(t, "IMAGE_TOO_LARGE: image is 3 bytes, limit is 2 (state=idle)", err.Error())

	wrapped := PersistenceError(errors.New("disk full"))
	assert.Equal(t, "PERSISTENCE_FAILED: recognized text was not saved (state=failed): disk full", wrapped.Error())
	assert.False(t, IsBusy(errors.New("plain")))
}
