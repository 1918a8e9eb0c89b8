package harness

import "github.com/roach88/snaptext/internal/ir"

// Trace event types.
const (
	EventTransition = "transition"
	EventError      = "error"
	EventSkipped    = "skipped"
	EventInserted   = "inserted"
	EventRemoved    = "removed"
	EventRefreshed  = "refreshed"
	EventReadiness  = "readiness"
)

// TraceEvent is one observable effect of a step.
// Only the fields relevant to Type are set.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Step int    `json:"step"`
	Type string `json:"type"`

	// transition
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`

	// error
	Code string `json:"code,omitempty"`

	// inserted, removed
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`

	// refreshed
	Count int `json:"count,omitempty"`

	// readiness
	Ready    bool `json:"ready,omitempty"`
	Progress int  `json:"progress,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds events in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Records is the store's content after the last step, newest first.
	Records []ir.TextRecord `json:"records"`

	// Listed is the registry's cached view after the last step.
	Listed []ir.TextRecord `json:"listed"`

	// FinalState is the pipeline state after the last step.
	FinalState string `json:"final_state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Records: []ir.TextRecord{},
		Listed:  []ir.TextRecord{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
