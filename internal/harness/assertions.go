package harness

import (
	"fmt"
	"strings"
)

// AssertionError is a failed assertion with the trace for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", ev.Seq, ev.ApplyID, ev.Stages, ev.Sections)
		}
	}
	return buf.String()
}

func assertApplyCount(result *Result, a Assertion) error {
	if len(result.Trace) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertApplyCount,
		Expected: fmt.Sprintf("%d applies", a.Count),
		Actual:   fmt.Sprintf("%d applies", len(result.Trace)),
		Trace:    result.Trace,
	}
}

func assertFinalSections(result *Result, a Assertion) error {
	want := normalizeSections(a.Sections)
	if want == result.Sections {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalSections,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", result.Sections),
		Trace:    result.Trace,
	}
}

func assertTransactions(result *Result, a Assertion) error {
	if result.Transactions == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTransactions,
		Expected: fmt.Sprintf("%d non-animated transactions", a.Count),
		Actual:   fmt.Sprintf("%d non-animated transactions", result.Transactions),
	}
}

func assertAllSettled(result *Result) error {
	for _, ev := range result.Trace {
		if !ev.Settled {
			return &AssertionError{
				Type:     AssertAllSettled,
				Expected: "every apply settled",
				Actual:   fmt.Sprintf("apply %s (seq %d) did not settle", ev.ApplyID, ev.Seq),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertStageCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Trace {
		for _, name := range ev.Stages {
			if name == a.Stage {
				count++
			}
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStageCount,
		Expected: fmt.Sprintf("%d %q stages", a.Count, a.Stage),
		Actual:   fmt.Sprintf("%d stages", count),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertApplyCount:
			err = assertApplyCount(result, a)
		case AssertFinalSections:
			err = assertFinalSections(result, a)
		case AssertTransactions:
			err = assertTransactions(result, a)
		case AssertAllSettled:
			err = assertAllSettled(result)
		case AssertStageCount:
			err = assertStageCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
