package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tlcomm/internal/ir"
)

// Snapshot renders a result as stable text for golden comparison: a header,
// the optimized module as printed IR, then one line per pass run. A failed
// compile renders its errors instead of the module.
//
// Call IDs and stored hashes are not included, so a snapshot only changes
// when the printed program or the pass statistics do.
func Snapshot(scenarioName string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# scenario: %s\n", scenarioName)

	if len(result.CompileErrors) > 0 {
		for _, ce := range result.CompileErrors {
			fmt.Fprintf(&b, "error: %s\n", ce.Error())
		}
		return []byte(b.String())
	}

	if result.Module != nil {
		var names ir.Namer
		if result.Registry != nil {
			names = result.Registry
		}
		_ = ir.PrintModule(&b, result.Module, names)
	}

	if len(result.Passes) > 0 {
		b.WriteByte('\n')
		for _, p := range result.Passes {
			fmt.Fprintf(&b, "# %s %s: removed=%d merged=%d moved=%d\n",
				p.Kernel, p.Pass, p.Stats.Removed, p.Stats.Merged, p.Stats.Moved)
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
