package store

import (
	"context"
	"fmt"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/snapshot"
)

// Mismatch is a logged apply whose changeset could not be re-derived.
type Mismatch struct {
	Seq      int64
	ID       string
	Stored   string
	Computed string
	Reason   string
}

// ReplayReport summarizes a replay of the apply log.
type ReplayReport struct {
	Applies    int
	Unsettled  int
	Mismatches []Mismatch
}

// OK reports whether every logged changeset was reproduced.
func (r ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

// ReplayApplies re-derives every logged changeset from the logged snapshots
// and compares fingerprints. Each changeset is computed twice; differing
// results are reported as non-deterministic.
//
// The base of each diff is what the previous apply left: its snapshot when
// it settled, which is also what an apply without a view leaves. Unsettled
// entries are counted; the next diff still starts from their snapshot,
// since the view state they ended in was not logged.
func (s *Store) ReplayApplies(ctx context.Context) (ReplayReport, error) {
	entries, err := s.ReadApplies(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay applies: %w", err)
	}

	report := ReplayReport{Applies: len(entries)}
	var base []snapshot.Section
	for _, e := range entries {
		target := e.Snapshot.Sections()
		if !e.Settled {
			report.Unsettled++
		}

		var cs diff.Changeset
		if e.ViewAttached {
			cs = diff.Diff(base, target)
		}
		computed, err := cs.Fingerprint()
		if err != nil {
			return report, fmt.Errorf("replay apply %s: %w", e.ID, err)
		}

		if e.ViewAttached {
			again, err := diff.Diff(base, target).Fingerprint()
			if err != nil {
				return report, fmt.Errorf("replay apply %s: %w", e.ID, err)
			}
			if again != computed {
				report.Mismatches = append(report.Mismatches, Mismatch{
					Seq: e.Seq, ID: e.ID, Stored: computed, Computed: again,
					Reason: "non-deterministic diff",
				})
			}
		}

		if computed != e.Fingerprint {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Seq: e.Seq, ID: e.ID, Stored: e.Fingerprint, Computed: computed,
				Reason: "fingerprint differs from log",
			})
		}
		base = target
	}
	return report, nil
}
