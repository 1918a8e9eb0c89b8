package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a capture scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxImageBytes overrides the pipeline's size ceiling when positive.
	MaxImageBytes int64 `yaml:"max_image_bytes,omitempty"`

	// Steps run in order against one pipeline.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action against the pipeline or registry.
type Step struct {
	Action string `yaml:"action"`

	// Image is the reference handed over by acquire.
	Image *ImageSpec `yaml:"image,omitempty"`

	// Regions is the scripted engine result for confirm.
	Regions []string `yaml:"regions,omitempty"`

	// Fail makes the engine return this error for confirm.
	Fail string `yaml:"fail,omitempty"`

	// Hang makes the engine block until the recognition timeout.
	Hang bool `yaml:"hang,omitempty"`

	// Async holds the engine and returns while recognizing. Pair with release.
	Async bool `yaml:"async,omitempty"`

	// Ready and Progress (percent) are used by set_ready.
	Ready    bool `yaml:"ready,omitempty"`
	Progress int  `yaml:"progress,omitempty"`

	// ID is the record id for remove.
	ID string `yaml:"id,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// ImageSpec describes an image reference. No file is read.
type ImageSpec struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	Source string `yaml:"source,omitempty"`
}

// Expect is checked right after a step runs. Empty fields are not checked.
type Expect struct {
	// State is the pipeline state after the step.
	State string `yaml:"state,omitempty"`

	// Error is the pipeline error code the step must fail with.
	Error string `yaml:"error,omitempty"`

	Message string `yaml:"message,omitempty"`
	Reason  string `yaml:"reason,omitempty"`

	// Skipped requires the confirm to have been ignored as in flight.
	Skipped bool `yaml:"skipped,omitempty"`

	// Listed is the expected size of the registry view.
	Listed *int `yaml:"listed,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is the trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Field matchers for trace_contains. Empty means any.
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
	Reason string `yaml:"reason,omitempty"`
	Code   string `yaml:"code,omitempty"`

	// Count is the expected number (trace_count, record_count).
	Count int `yaml:"count,omitempty"`

	// States is the expected transition order (trace_order).
	States []string `yaml:"states,omitempty"`

	// Texts are the expected record texts, newest first (records, listed).
	Texts []string `yaml:"texts,omitempty"`

	// State is the expected final pipeline state (final_state).
	State string `yaml:"state,omitempty"`
}

// Step action constants.
const (
	ActionAcquire  = "acquire"
	ActionConfirm  = "confirm"
	ActionRelease  = "release"
	ActionClear    = "clear"
	ActionSetReady = "set_ready"
	ActionRemove   = "remove"
	ActionRefresh  = "refresh"
)

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRecordCount   = "record_count"
	AssertRecords       = "records"
	AssertListed        = "listed"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Action {
	case ActionAcquire:
		if s.Image == nil {
			return fmt.Errorf("steps[%d]: image is required for acquire", index)
		}
		if s.Image.Size < 0 {
			return fmt.Errorf("steps[%d]: image size must be non-negative", index)
		}
	case ActionConfirm:
		if s.Hang && s.Async {
			return fmt.Errorf("steps[%d]: hang and async are exclusive", index)
		}
		if s.Fail != "" && len(s.Regions) > 0 {
			return fmt.Errorf("steps[%d]: fail and regions are exclusive", index)
		}
	case ActionSetReady:
		if s.Progress < 0 || s.Progress > 100 {
			return fmt.Errorf("steps[%d]: progress must be 0-100", index)
		}
	case ActionRemove:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for remove", index)
		}
	case ActionRelease, ActionClear, ActionRefresh:
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
	case AssertRecords, AssertListed:
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
