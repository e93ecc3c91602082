package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// FileResult is the validation outcome of one snapshot file.
type FileResult struct {
	Path     string `json:"path"`
	Valid    bool   `json:"valid"`
	Sections int    `json:"sections,omitempty"`
	Items    int    `json:"items,omitempty"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ValidateResult is the outcome of a validate run.
type ValidateResult struct {
	Files   []FileResult `json:"files"`
	Valid   int          `json:"valid"`
	Invalid int          `json:"invalid"`
}

// String renders one line per file.
func (r ValidateResult) String() string {
	var b strings.Builder
	for _, f := range r.Files {
		if f.Valid {
			fmt.Fprintf(&b, "✓ %s (%d sections, %d items)\n", f.Path, f.Sections, f.Items)
		} else {
			fmt.Fprintf(&b, "✗ %s\n    %s\n", f.Path, f.Error)
		}
	}
	fmt.Fprintf(&b, "%d valid, %d invalid", r.Valid, r.Invalid)
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check snapshot files",
		Long: `Check that snapshot files parse and satisfy the snapshot invariants:
unique section identifiers and item identifiers unique across the snapshot.

Exit codes:
  0 - Every file is valid
  1 - One or more files are invalid

Examples:
  diffable validate list.yaml
  diffable validate snapshots/*.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts)
	result := ValidateResult{Files: make([]FileResult, 0, len(paths))}

	for _, path := range paths {
		snap, err := LoadSnapshotFile(path)
		if err != nil {
			result.Files = append(result.Files, FileResult{
				Path:  path,
				Code:  LoadErrorCode(err),
				Error: err.Error(),
			})
			result.Invalid++
			continue
		}
		result.Files = append(result.Files, FileResult{
			Path:     path,
			Valid:    true,
			Sections: snap.NumberOfSections(),
			Items:    snap.NumberOfItems(),
		})
		result.Valid++
	}

	if result.Invalid > 0 {
		if err := f.Failure(ErrCodeInvalid, "validation failed", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d files invalid", result.Invalid, len(paths)))
	}
	return f.Success(result)
}
