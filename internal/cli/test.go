package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diffable/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // glob over scenario names
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Pass    bool     `json:"pass"`
	Applies int      `json:"applies"`
	Errors  []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// String renders one line per scenario and a summary.
func (r TestResult) String() string {
	var b strings.Builder
	if r.Total == 0 {
		b.WriteString("No scenarios found.")
		return b.String()
	}
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(&b, "✓ %s (%d applies)\n", s.Name, s.Applies)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "    %s\n", strings.ReplaceAll(strings.TrimSpace(e), "\n", "\n    "))
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run harness scenarios",
		Long: `Run YAML scenarios through a real coordinator and check their
step expectations and assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenarios)

Examples:
  diffable test ./scenarios
  diffable test ./scenarios --filter "todo_*"
  diffable test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name (glob pattern)")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	scenarios, paths, err := harness.LoadDir(dir)
	if err != nil {
		_ = f.Error(ErrCodeParse, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for i, scenario := range scenarios {
		if opts.Filter != "" {
			ok, err := filepath.Match(opts.Filter, scenario.Name)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid filter", err)
			}
			if !ok {
				continue
			}
		}

		res, err := harness.Run(scenario)
		sr := ScenarioResult{Name: scenario.Name, Path: paths[i]}
		if err != nil {
			sr.Errors = []string{err.Error()}
		} else {
			sr.Pass = res.Pass
			sr.Applies = len(res.Trace)
			sr.Errors = res.Errors
		}
		f.VerboseLog("%s: pass=%v", scenario.Name, sr.Pass)

		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		if err := f.Failure(ErrCodeFailed, fmt.Sprintf("%d scenario(s) failed", result.Failed), result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return f.Success(result)
}
