package coordinator

import (
	"context"
	"log/slog"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/snapshot"
)

// View is an opaque handle to whatever presents the list. The coordinator
// only passes it to PerformUpdates and checks it for the optional
// interfaces below.
type View any

// NonAnimatedScope is implemented by views that can suppress animations.
// WithoutAnimation must run fn synchronously and treat every update made
// inside it as one non-animated transaction.
type NonAnimatedScope interface {
	WithoutAnimation(fn func())
}

// StageApplier is implemented by views that take changeset stages directly.
type StageApplier interface {
	ApplyStage(ctx context.Context, stage diff.Stage) error
}

// PerformUpdates replays a changeset on a view. It runs on the designated
// context and must call setSections with the section list the view shows
// after each stage it applied, before returning.
type PerformUpdates func(ctx context.Context, view View, cs diff.Changeset, setSections func([]snapshot.Section))

// ReplayStages returns the standard PerformUpdates: each stage is handed to
// applier in order and reported back once accepted. A rejected stage stops
// the replay, leaving the coordinator at the last accepted stage.
func ReplayStages(applier StageApplier) PerformUpdates {
	return func(ctx context.Context, _ View, cs diff.Changeset, setSections func([]snapshot.Section)) {
		for i, st := range cs {
			if err := applier.ApplyStage(ctx, st); err != nil {
				slog.Error("view rejected stage",
					"stage", i,
					"kind", st.Kind.String(),
					"level", st.Level.String(),
					"error", err,
				)
				return
			}
			setSections(st.Data)
		}
	}
}
