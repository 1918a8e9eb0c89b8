//go:build !cgo

package tesseract

import (
	"context"
	"fmt"

	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/recognition"
)

// Engine is the placeholder used when snaptext is built without cgo.
type Engine struct {
	tracker *recognition.Tracker
}

// New constructs an Engine that can never become ready.
func New(cfg Config) *Engine {
	return &Engine{tracker: recognition.NewTracker(cfg.OnReadiness)}
}

// Name identifies the backend.
func (e *Engine) Name() string { return "tesseract (disabled: built without cgo)" }

// Version returns an empty string; no library is linked.
func (e *Engine) Version() string { return "" }

// Prepare always fails.
func (e *Engine) Prepare(ctx context.Context) error {
	return fmt.Errorf("tesseract requires cgo: %w", recognition.ErrUnavailable)
}

// Readiness implements recognition.Gateway.
func (e *Engine) Readiness() recognition.Readiness {
	return e.tracker.Readiness()
}

// Recognize implements recognition.Gateway.
func (e *Engine) Recognize(ctx context.Context, img ir.ImageRef) ([]ir.TextRegion, error) {
	return nil, fmt.Errorf("tesseract requires cgo: %w", recognition.ErrUnavailable)
}

var _ recognition.Gateway = (*Engine)(nil)
