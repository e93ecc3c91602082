package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/diffable/internal/coordinator"
	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/dispatch"
	"github.com/roach88/diffable/internal/snapshot"
	"github.com/roach88/diffable/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database string
	Animated bool
	NoView   bool
}

// AppliedFile is one logged apply.
type AppliedFile struct {
	Path    string      `json:"path"`
	Seq     int64       `json:"seq"`
	ApplyID string      `json:"apply_id"`
	Counts  diff.Counts `json:"counts"`
	Settled bool        `json:"settled"`
}

// ApplyResult is the outcome of an apply run.
type ApplyResult struct {
	Applies  []AppliedFile `json:"applies"`
	Resumed  int64         `json:"resumed_from_seq"`
	Sections int           `json:"sections"`
	Items    int           `json:"items"`
}

// String renders one line per apply.
func (r ApplyResult) String() string {
	var b strings.Builder
	if r.Resumed > 0 {
		fmt.Fprintf(&b, "Resumed after seq %d\n", r.Resumed)
	}
	for _, a := range r.Applies {
		fmt.Fprintf(&b, "[%d] %s %s: %d edits\n", a.Seq, a.ApplyID, a.Path, a.Counts.Total())
	}
	fmt.Fprintf(&b, "Current state: %d sections, %d items", r.Sections, r.Items)
	return b.String()
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply --db <path> <file>...",
		Short: "Apply snapshot files in order and log every apply",
		Long: `Apply snapshot files in order through a coordinator backed by an
in-memory view, and append every apply to the database's apply log.

An existing log is resumed: numbering continues after the last logged apply
and the first diff starts from the last logged snapshot.

Exit codes:
  0 - All files applied
  1 - A file is not a valid snapshot
  2 - Command error (database, unreadable files)

Examples:
  diffable apply --db ./diffable.db v1.yaml v2.yaml
  diffable apply --db ./diffable.db --animated=false v3.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Animated, "animated", true, "apply with animation")
	cmd.Flags().BoolVar(&opts.NoView, "no-view", false, "apply without a view")

	return cmd
}

// applyLog writes coordinator applies to the store. It runs on the executor
// and keeps the first error.
type applyLog struct {
	st *store.Store

	mu      sync.Mutex
	err     error
	applied []coordinator.ApplyRecord
}

func (l *applyLog) record(ctx context.Context, rec coordinator.ApplyRecord) {
	entry, err := store.NewApplyEntry(rec.Seq, rec.ID, rec.Snapshot, rec.Changeset, rec.ViewAttached, rec.Animated, rec.Settled)
	if err == nil {
		err = l.st.WriteApply(ctx, entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		slog.Error("failed to log apply", "apply_id", rec.ID, "seq", rec.Seq, "error", err)
		if l.err == nil {
			l.err = err
		}
		return
	}
	l.applied = append(l.applied, rec)
}

func runApply(opts *ApplyOptions, paths []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(cmd, opts.RootOptions)

	snaps := make([]snapshot.Snapshot, len(paths))
	for i, path := range paths {
		snap, err := LoadSnapshotFile(path)
		if err != nil {
			_ = f.Error(LoadErrorCode(err), err.Error(), nil)
			if LoadErrorCode(err) == ErrCodeInvalid {
				return WrapExitError(ExitFailure, "invalid snapshot", err)
			}
			return WrapExitError(ExitCommandError, "failed to load snapshot", err)
		}
		snaps[i] = snap
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	history, err := st.ReadApplies(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read apply log", err)
	}
	var lastSeq int64
	var start snapshot.Snapshot
	if n := len(history); n > 0 {
		lastSeq = history[n-1].Seq
		start = history[n-1].Snapshot
	}

	exec := dispatch.NewExecutor()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := exec.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("executor stopped", "error", err)
		}
	}()
	defer func() {
		exec.Stop()
		cancel()
		<-done
	}()

	log := &applyLog{st: st}
	copts := []coordinator.Option{
		coordinator.WithClock(dispatch.NewClockAt(lastSeq)),
		coordinator.WithApplyListener(log.record),
	}
	if len(history) > 0 {
		copts = append(copts, coordinator.WithInitialSnapshot(start))
	}
	coord := coordinator.New(dispatch.NewSerial(exec), copts...)

	var view coordinator.View
	if !opts.NoView {
		view = coordinator.NewRecorder(start.Sections())
	}

	for i, snap := range snaps {
		if err := coord.Apply(ctx, snap, view, opts.Animated, nil); err != nil {
			return WrapExitError(ExitCommandError, "apply failed", err)
		}
		f.VerboseLog("submitted %s", paths[i])
	}
	if err := coord.Wait(ctx); err != nil {
		return WrapExitError(ExitCommandError, "apply failed", err)
	}

	log.mu.Lock()
	logErr := log.err
	applied := log.applied
	log.mu.Unlock()
	if logErr != nil {
		_ = f.Error(ErrCodeDatabase, logErr.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write apply log", logErr)
	}

	result := ApplyResult{
		Applies:  make([]AppliedFile, 0, len(applied)),
		Resumed:  lastSeq,
		Sections: coord.NumberOfSections(),
		Items:    coord.Snapshot().NumberOfItems(),
	}
	for i, rec := range applied {
		result.Applies = append(result.Applies, AppliedFile{
			Path:    paths[i],
			Seq:     rec.Seq,
			ApplyID: rec.ID,
			Counts:  rec.Changeset.Counts(),
			Settled: rec.Settled,
		})
	}
	slog.Info("applies logged", "count", len(applied), "last_seq", coord.Seq())
	return f.Success(result)
}
