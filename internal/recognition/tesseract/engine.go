//go:build cgo

package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/recognition"
)

// Engine implements recognition.Gateway with a fresh gosseract client per call.
type Engine struct {
	clientFactory func() *gosseract.Client
	lang          string
	fetcher       *recognition.ModelFetcher
	tracker       *recognition.Tracker
}

// New constructs an Engine. Call Prepare before Recognize.
func New(cfg Config) *Engine {
	return &Engine{
		clientFactory: gosseract.NewClient,
		lang:          cfg.language(),
		fetcher:       cfg.fetcher(),
		tracker:       recognition.NewTracker(cfg.OnReadiness),
	}
}

// Name identifies the backend.
func (e *Engine) Name() string { return "tesseract" }

// Version returns the linked libtesseract version.
func (e *Engine) Version() string {
	c := e.clientFactory()
	defer c.Close()
	return c.Version()
}

// Prepare makes the model data available, downloading it if needed.
func (e *Engine) Prepare(ctx context.Context) error {
	return e.fetcher.Ensure(ctx, e.lang, e.tracker)
}

// Readiness implements recognition.Gateway.
func (e *Engine) Readiness() recognition.Readiness {
	return e.tracker.Readiness()
}

// Recognize implements recognition.Gateway.
//
// gosseract calls are not cancellable, so the work runs on its own goroutine
// and Recognize returns as soon as ctx is done. The abandoned call finishes in
// the background and its result is dropped.
func (e *Engine) Recognize(ctx context.Context, img ir.ImageRef) ([]ir.TextRegion, error) {
	if !e.tracker.Readiness().Ready {
		return nil, fmt.Errorf("model %s not loaded: %w", e.lang, recognition.ErrUnavailable)
	}

	type result struct {
		regions []ir.TextRegion
		err     error
	}
	done := make(chan result, 1)

	go func() {
		regions, err := e.recognize(img)
		done <- result{regions: regions, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.regions, r.err
	}
}

func (e *Engine) recognize(img ir.ImageRef) ([]ir.TextRegion, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetTessdataPrefix(e.fetcher.Dir); err != nil {
		return nil, fmt.Errorf("set tessdata path: %w", err)
	}
	if err := c.SetLanguage(e.lang); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetImage(img.Path); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	regions := make([]ir.TextRegion, 0, len(boxes))
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		regions = append(regions, ir.TextRegion{
			Text:       word,
			Confidence: box.Confidence / 100.0,
			Bounds: ir.Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return regions, nil
}

var _ recognition.Gateway = (*Engine)(nil)
