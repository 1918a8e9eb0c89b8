package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/snaptext/internal/ir"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	FinalState   string          `json:"final_state"`
	Records      []ir.TextRecord `json:"records"`
	Trace        []TraceEvent    `json:"trace"`
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// accepts maps, slices and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	records := make([]any, len(s.Records))
	for i, rec := range s.Records {
		records[i] = map[string]any{
			"id":         rec.ID,
			"text":       rec.Text,
			"created_at": ir.FormatTimestamp(rec.CreatedAt),
		}
	}

	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":  event.Seq,
			"step": event.Step,
			"type": event.Type,
		}
		switch event.Type {
		case EventTransition:
			m["from"] = event.From
			m["to"] = event.To
			if event.Reason != "" {
				m["reason"] = event.Reason
			}
		case EventError:
			m["code"] = event.Code
		case EventInserted:
			m["id"] = event.ID
			m["text"] = event.Text
		case EventRemoved:
			m["id"] = event.ID
		case EventRefreshed:
			m["count"] = event.Count
		case EventReadiness:
			m["ready"] = event.Ready
			m["progress"] = event.Progress
		}
		trace[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"final_state":   s.FinalState,
		"records":       records,
		"trace":         trace,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// SnapshotJSON renders result in golden file form.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		FinalState:   result.FinalState,
		Records:      result.Records,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
