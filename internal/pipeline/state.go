package pipeline

import "github.com/roach88/snaptext/internal/ir"

// State is the pipeline's position in the capture flow.
type State string

const (
	StateIdle        State = "idle"
	StateImageReady  State = "image_ready"
	StateRecognizing State = "recognizing"
	StateRecognized  State = "recognized"
	StateEmptyResult State = "empty_result"
	StateFailed      State = "failed"
)

// Reason explains a Failed state.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEngine      Reason = "engine"
	ReasonTimeout     Reason = "timeout"
	ReasonCanceled    Reason = "canceled"
	ReasonPersistence Reason = "persistence"
)

// User-facing result messages.
const (
	MessageNoText = "No text detected"
	MessageFailed = "Failed to recognize text"
)

// Transition is reported to the observer on every state change.
type Transition struct {
	From   State  `json:"from"`
	To     State  `json:"to"`
	Reason Reason `json:"reason,omitempty"`
}

// Outcome is the result of one Confirm.
//
// Skipped is set when recognition was already in flight and the call did
// nothing. Record is set only in StateRecognized.
type Outcome struct {
	State   State           `json:"state"`
	Regions []ir.TextRegion `json:"regions,omitempty"`
	Record  *ir.TextRecord  `json:"record,omitempty"`
	Message string          `json:"message,omitempty"`
	Reason  Reason          `json:"reason,omitempty"`
	Skipped bool            `json:"skipped,omitempty"`

	// Err is the error Confirm returned, carried for ConfirmAsync receivers.
	Err error `json:"-"`
}

// Snapshot is a point-in-time copy of the pipeline.
type Snapshot struct {
	State    State           `json:"state"`
	Image    *ir.ImageRef    `json:"image,omitempty"`
	Regions  []ir.TextRegion `json:"regions,omitempty"`
	Record   *ir.TextRecord  `json:"record,omitempty"`
	Message  string          `json:"message,omitempty"`
	Reason   Reason          `json:"reason,omitempty"`
	InFlight bool            `json:"in_flight"`
}
