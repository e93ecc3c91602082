package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/ir"
)

// DiffResult is the JSON form of a changeset.
type DiffResult struct {
	Source      string      `json:"source"`
	Target      string      `json:"target"`
	Counts      diff.Counts `json:"counts"`
	Stages      ir.Array    `json:"stages"`
	Fingerprint string      `json:"fingerprint"`

	changeset diff.Changeset
}

// String renders the changeset one stage per line, coloured by kind.
func (r DiffResult) String() string {
	var b strings.Builder
	if r.changeset.IsEmpty() {
		b.WriteString("No changes.")
		return b.String()
	}
	for i, st := range r.changeset {
		paint := kindColor(st.Kind)
		fmt.Fprintf(&b, "%d. %s\n", i+1, paint("%s %s (%d)", st.Kind, st.Level, st.Len()))
		for _, line := range stageLines(st) {
			fmt.Fprintf(&b, "     %s\n", line)
		}
	}
	n := r.Counts
	fmt.Fprintf(&b, "%d edits in %d stages: sections -%d +%d ~%d, items -%d +%d ~%d reloaded %d",
		n.Total(), len(r.changeset),
		n.SectionDeleted, n.SectionInserted, n.SectionMoved,
		n.ItemDeleted, n.ItemInserted, n.ItemMoved, n.ItemReloaded)
	return b.String()
}

func kindColor(k diff.Kind) func(string, ...any) string {
	switch k {
	case diff.KindDelete:
		return color.RedString
	case diff.KindInsert:
		return color.GreenString
	case diff.KindMove:
		return color.YellowString
	default:
		return color.CyanString
	}
}

// stageLines names every edit of a stage with the identifier it touches.
func stageLines(st diff.Stage) []string {
	var lines []string
	switch {
	case st.Kind == diff.KindMove && st.Level == diff.LevelSection:
		for _, m := range st.SectionMoves {
			lines = append(lines, fmt.Sprintf("%s %d -> %d", st.Data[m.To].ID, m.From, m.To))
		}
	case st.Kind == diff.KindMove:
		for _, m := range st.ItemMoves {
			id := st.Data[m.To.Section].Items[m.To.Item].ID
			lines = append(lines, fmt.Sprintf("%s (%d,%d) -> (%d,%d)", id, m.From.Section, m.From.Item, m.To.Section, m.To.Item))
		}
	case st.Level == diff.LevelSection:
		for _, idx := range st.Sections {
			if st.Kind == diff.KindInsert {
				lines = append(lines, fmt.Sprintf("%s at %d", st.Data[idx].ID, idx))
			} else {
				lines = append(lines, fmt.Sprintf("section %d", idx))
			}
		}
	default:
		for _, p := range st.Items {
			if st.Kind == diff.KindDelete {
				lines = append(lines, fmt.Sprintf("(%d,%d)", p.Section, p.Item))
				continue
			}
			// Insert paths address Data; reload paths address the source,
			// whose positions Data keeps.
			lines = append(lines, fmt.Sprintf("%s at (%d,%d)", st.Data[p.Section].Items[p.Item].ID, p.Section, p.Item))
		}
	}
	return lines
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <source> <target>",
		Short: "Print the staged changeset between two snapshot files",
		Long: `Print the staged changeset that turns the source snapshot into the target.

Snapshot files may be YAML, JSON or CUE.

Exit codes:
  0 - Changeset printed
  2 - A file could not be loaded

Examples:
  diffable diff before.yaml after.yaml
  diffable diff before.cue after.cue --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDiff(opts *RootOptions, sourcePath, targetPath string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts)

	source, err := LoadSnapshotFile(sourcePath)
	if err != nil {
		_ = f.Error(LoadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load source", err)
	}
	target, err := LoadSnapshotFile(targetPath)
	if err != nil {
		_ = f.Error(LoadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load target", err)
	}

	cs := diff.Diff(source.Sections(), target.Sections())
	fp, err := cs.Fingerprint()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint changeset", err)
	}
	f.VerboseLog("source: %d sections, %d items", source.NumberOfSections(), source.NumberOfItems())
	f.VerboseLog("target: %d sections, %d items", target.NumberOfSections(), target.NumberOfItems())

	return f.Success(DiffResult{
		Source:      sourcePath,
		Target:      targetPath,
		Counts:      cs.Counts(),
		Stages:      cs.Canonical(),
		Fingerprint: fp,
		changeset:   cs,
	})
}
