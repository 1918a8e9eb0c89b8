package testutil

import (
	"context"
	"sync"

	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/recognition"
)

// ScriptedGateway is a recognition.Gateway that returns configured results.
//
// By default it is ready and returns no regions. Hold() makes every
// subsequent call block until Release() (or ctx is done), which lets tests
// observe the Recognizing state and fire extra triggers mid-flight.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedGateway struct {
	mu        sync.Mutex
	readiness recognition.Readiness
	regions   []ir.TextRegion
	err       error
	hold      chan struct{}
	calls     []ir.ImageRef

	// Started receives the image of each call as it begins (buffered, non-blocking).
	Started chan ir.ImageRef
}

// NewScriptedGateway creates a ready gateway returning regions.
func NewScriptedGateway(regions ...ir.TextRegion) *ScriptedGateway {
	return &ScriptedGateway{
		readiness: recognition.Readiness{Ready: true, Progress: 1},
		regions:   regions,
		Started:   make(chan ir.ImageRef, 16),
	}
}

// Regions builds TextRegions from plain strings.
func Regions(texts ...string) []ir.TextRegion {
	out := make([]ir.TextRegion, len(texts))
	for i, text := range texts {
		out[i] = ir.TextRegion{Text: text}
	}
	return out
}

// SetReadiness replaces the readiness signal.
func (g *ScriptedGateway) SetReadiness(r recognition.Readiness) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readiness = r
}

// SetResult makes subsequent calls return regions and err.
func (g *ScriptedGateway) SetResult(regions []ir.TextRegion, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.regions = regions
	g.err = err
}

// Hold makes subsequent calls block until Release.
func (g *ScriptedGateway) Hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hold = make(chan struct{})
}

// Release unblocks held calls. Safe to call without Hold.
func (g *ScriptedGateway) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hold != nil {
		close(g.hold)
		g.hold = nil
	}
}

// Calls returns the images passed to Recognize, in order.
func (g *ScriptedGateway) Calls() []ir.ImageRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ir.ImageRef, len(g.calls))
	copy(out, g.calls)
	return out
}

// Readiness implements recognition.Gateway.
func (g *ScriptedGateway) Readiness() recognition.Readiness {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readiness
}

// Recognize implements recognition.Gateway.
func (g *ScriptedGateway) Recognize(ctx context.Context, img ir.ImageRef) ([]ir.TextRegion, error) {
	g.mu.Lock()
	g.calls = append(g.calls, img)
	hold := g.hold
	regions := append([]ir.TextRegion(nil), g.regions...)
	err := g.err
	g.mu.Unlock()

	select {
	case g.Started <- img:
	default:
	}

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return regions, nil
}

var _ recognition.Gateway = (*ScriptedGateway)(nil)
