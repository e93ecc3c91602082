package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/diffable/internal/ir"
)

// TraceSnapshot is the golden form of a run: the scenario name and the
// trace, serialized as canonical JSON.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// Canonical returns the snapshot in the ir value model. Counts are left
// out; the stage names carry the same information at golden granularity.
func (s TraceSnapshot) Canonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, ev := range s.Trace {
		stages := make(ir.Array, len(ev.Stages))
		for j, name := range ev.Stages {
			stages[j] = ir.String(name)
		}
		trace[i] = ir.Object{
			"step":     ir.Int(ev.Step),
			"seq":      ir.Int(ev.Seq),
			"apply_id": ir.String(ev.ApplyID),
			"stages":   stages,
			"sections": ir.String(ev.Sections),
			"animated": ir.Bool(ev.Animated),
			"view":     ir.Bool(ev.View),
			"settled":  ir.Bool(ev.Settled),
		}
	}
	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         trace,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(TraceSnapshot{ScenarioName: name, Trace: result.Trace}.Canonical())
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with
//
//	go test ./internal/harness -update
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

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalTrace(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
