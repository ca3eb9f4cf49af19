package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/splitledger/internal/kvp"
)

// Snapshot renders a run as canonical JSON: trace, journal tags and final
// state. Two runs of the same scenario produce identical bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(kvp.List, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = kvp.NewFrame(
			kvp.P("seq", kvp.Int(ev.Seq)),
			kvp.P("op", kvp.String(ev.Op)),
			kvp.P("target", kvp.String(ev.Target)),
			kvp.P("outcome", kvp.String(ev.Outcome)),
		)
	}
	state := result.State
	if state == nil {
		state = kvp.Frame{}
	}
	return kvp.MarshalCanonical(kvp.NewFrame(
		kvp.P("scenario_name", kvp.String(scenarioName)),
		kvp.P("trace", trace),
		kvp.P("journal", kvp.String(result.Journal)),
		kvp.P("state", state),
	))
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
