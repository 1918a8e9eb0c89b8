package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/snaptext/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] step %d %s\n", event.Seq, event.Step, describeEvent(event))
	}

	return buf.String()
}

func describeEvent(e TraceEvent) string {
	switch e.Type {
	case EventTransition:
		if e.Reason != "" {
			return fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Reason)
		}
		return fmt.Sprintf("%s -> %s", e.From, e.To)
	case EventError:
		return "error " + e.Code
	case EventInserted:
		return fmt.Sprintf("inserted %s %q", e.ID, e.Text)
	case EventRemoved:
		return "removed " + e.ID
	case EventRefreshed:
		return fmt.Sprintf("refreshed (%d)", e.Count)
	case EventReadiness:
		return fmt.Sprintf("readiness ready=%t %d%%", e.Ready, e.Progress)
	default:
		return e.Type
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertRecordCount:
			err = assertRecordCount(result, assertion)
		case AssertRecords:
			err = assertTexts(AssertRecords, result.Records, assertion.Texts, result.Trace)
		case AssertListed:
			err = assertTexts(AssertListed, result.Listed, assertion.Texts, result.Trace)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertTraceContains checks for an event of the given type whose set
// matchers all agree.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type != a.Event {
			continue
		}
		if matches(a.From, event.From) && matches(a.To, event.To) &&
			matches(a.Reason, event.Reason) && matches(a.Code, event.Code) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeMatcher(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func matches(want, got string) bool {
	return want == "" || want == got
}

func describeMatcher(a Assertion) string {
	parts := []string{a.Event}
	for _, kv := range [][2]string{{"from", a.From}, {"to", a.To}, {"reason", a.Reason}, {"code", a.Code}} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, " ")
}

// assertTraceOrder checks that transition targets appear in the given
// order. Other transitions may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(a.States) {
			break
		}
		if event.Type == EventTransition && event.To == a.States[next] {
			next++
		}
	}
	if next == len(a.States) {
		return nil
	}

	var seen []string
	for _, event := range trace {
		if event.Type == EventTransition {
			seen = append(seen, event.To)
		}
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(a.States, " -> "),
		Actual:   fmt.Sprintf("%s (missing %s)", strings.Join(seen, " -> "), a.States[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks the exact number of events of a type.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == a.Event {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
		Actual:   fmt.Sprintf("%d %s events", count, a.Event),
		Trace:    trace,
	}
}

func assertRecordCount(result *Result, a Assertion) error {
	if len(result.Records) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRecordCount,
		Expected: fmt.Sprintf("%d records", a.Count),
		Actual:   fmt.Sprintf("%d records", len(result.Records)),
		Trace:    result.Trace,
	}
}

// assertTexts compares record texts in order. An empty want means no records.
func assertTexts(kind string, records []ir.TextRecord, want []string, trace []TraceEvent) error {
	got := make([]string, len(records))
	for i, rec := range records {
		got[i] = rec.Text
	}

	equal := len(got) == len(want)
	for i := 0; equal && i < len(got); i++ {
		equal = got[i] == want[i]
	}
	if equal {
		return nil
	}

	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", got),
		Trace:    trace,
	}
}

func assertFinalState(result *Result, a Assertion) error {
	if result.FinalState == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: a.State,
		Actual:   result.FinalState,
		Trace:    result.Trace,
	}
}
