package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/diffable/internal/coordinator"
	"github.com/roach88/diffable/internal/dispatch"
	"github.com/roach88/diffable/internal/ir"
	"github.com/roach88/diffable/internal/publish"
	"github.com/roach88/diffable/internal/snapshot"
	"github.com/roach88/diffable/internal/store"
	"github.com/roach88/diffable/internal/testutil"
)

// Harness holds the per-run wiring of one scenario.
type Harness struct {
	scenario *Scenario
	coord    *coordinator.Coordinator
	recorder *coordinator.Recorder // nil without a view
	view     coordinator.View
	logger   *slog.Logger

	mu    sync.Mutex
	step  int
	trace []TraceEvent
}

// Run executes a scenario on a fresh executor and returns the result.
// Scenario failures are reported in the result; the error is reserved for
// runs that could not be set up.
func Run(scenario *Scenario) (*Result, error) {
	exec := dispatch.NewExecutor()
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = exec.Run(runCtx)
	}()
	defer func() {
		exec.Stop()
		cancel()
		<-done
	}()

	h := &Harness{
		scenario: scenario,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if scenario.View != ViewNone {
		h.recorder = coordinator.NewRecorder(nil)
		h.view = h.recorder
	}
	h.coord = coordinator.New(dispatch.NewSerial(exec),
		coordinator.WithClock(dispatch.NewClock()),
		coordinator.WithIDGenerator(testutil.NewSequentialIDs("")),
		coordinator.WithApplyListener(h.record),
	)

	ctx := context.Background()
	result := NewResult()

	var err error
	if scenario.Store != nil {
		err = h.runList(ctx, result)
	} else {
		err = h.runSnapshots(ctx, result)
	}
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	result.Trace = slices.Clone(h.trace)
	h.mu.Unlock()
	result.Sections = formatIDs(h.coord.Sections())
	if h.recorder != nil {
		result.Transactions = h.recorder.Transactions()
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) runSnapshots(ctx context.Context, result *Result) error {
	for i, step := range h.scenario.Steps {
		snap, err := decodeSnapshot(step.Snapshot)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		animated := h.animated(step.Animated)

		h.setStep(i + 1)
		if err := h.coord.Apply(ctx, snap, h.view, animated, nil); err != nil {
			return fmt.Errorf("step %d: apply: %w", i+1, err)
		}
		if err := h.coord.Wait(ctx); err != nil {
			return fmt.Errorf("step %d: wait: %w", i+1, err)
		}

		h.logger.Info("step applied",
			"step", i+1,
			"seq", h.coord.Seq(),
			"animated", animated,
		)
		h.checkStep(i+1, step.Expect, result)
	}
	return nil
}

func (h *Harness) runList(ctx context.Context, result *Result) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	spec := h.scenario.Store
	pub, err := publish.NewListPublisher(ctx, st, publish.FetchSpec{
		Entity:    spec.Entity,
		OrderBy:   spec.SortKeys(),
		SectionBy: spec.SectionBy,
	})
	if err != nil {
		return fmt.Errorf("failed to create list publisher: %w", err)
	}
	defer pub.Close()

	animated := h.animated(nil)
	if err := h.coord.Apply(ctx, pub.Snapshot(), h.view, animated, nil); err != nil {
		return fmt.Errorf("initial apply: %w", err)
	}
	handle := pub.Drive(h.coord, h.view, animated)
	defer handle.Cancel()

	for i, step := range h.scenario.Steps {
		if err := h.coord.Wait(ctx); err != nil {
			return fmt.Errorf("step %d: wait: %w", i+1, err)
		}
		h.setStep(i + 1)
		for j, op := range step.Ops {
			if err := h.runOp(ctx, st, spec.Entity, op); err != nil {
				result.AddError(fmt.Sprintf("step %d: ops[%d]: %v", i+1, j, err))
			}
		}
		if err := h.coord.Wait(ctx); err != nil {
			return fmt.Errorf("step %d: wait: %w", i+1, err)
		}

		h.logger.Info("step applied",
			"step", i+1,
			"ops", len(step.Ops),
			"seq", h.coord.Seq(),
		)
		h.checkStep(i+1, step.Expect, result)
	}
	return nil
}

func (h *Harness) runOp(ctx context.Context, st *store.Store, entity string, op StoreOp) error {
	switch {
	case op.Insert != nil:
		attrs, err := attributes(op.Insert.Attributes)
		if err != nil {
			return err
		}
		_, err = st.Insert(ctx, entity, op.Insert.ID, attrs)
		return err
	case op.Update != nil:
		attrs, err := attributes(op.Update.Attributes)
		if err != nil {
			return err
		}
		_, err = st.Update(ctx, entity, op.Update.ID, attrs)
		return err
	default:
		_, err := st.Delete(ctx, entity, op.Delete.ID)
		return err
	}
}

func attributes(raw map[string]any) (ir.Object, error) {
	if raw == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	return v.(ir.Object), nil
}

// record is the coordinator's apply listener. It runs on the executor.
func (h *Harness) record(_ context.Context, rec coordinator.ApplyRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = append(h.trace, TraceEvent{
		Step:     h.step,
		Seq:      rec.Seq,
		ApplyID:  rec.ID,
		Stages:   stageNames(rec.Changeset),
		Counts:   rec.Changeset.Counts(),
		Sections: formatIDs(rec.Snapshot.Sections()),
		Animated: rec.Animated,
		View:     rec.ViewAttached,
		Settled:  rec.Settled,
	})
}

func (h *Harness) setStep(step int) {
	h.mu.Lock()
	h.step = step
	h.mu.Unlock()
}

func (h *Harness) stepEvents(step int) []TraceEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []TraceEvent
	for _, ev := range h.trace {
		if ev.Step == step {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Harness) animated(step *bool) bool {
	if step != nil {
		return *step
	}
	if h.scenario.Animated != nil {
		return *h.scenario.Animated
	}
	return true
}

func (h *Harness) checkStep(step int, expect *Expect, result *Result) {
	if expect == nil {
		return
	}
	events := h.stepEvents(step)
	if expect.Applies != nil && len(events) != *expect.Applies {
		result.AddError(fmt.Sprintf("step %d: expected %d applies, got %d", step, *expect.Applies, len(events)))
	}
	if expect.Stages == nil && expect.Counts == nil && expect.Sections == nil {
		return
	}
	if len(events) == 0 {
		result.AddError(fmt.Sprintf("step %d: expected an apply, got none", step))
		return
	}
	last := events[len(events)-1]

	if expect.Stages != nil && !slices.Equal(expect.Stages, last.Stages) {
		result.AddError(fmt.Sprintf("step %d: stages: expected %v, got %v", step, expect.Stages, last.Stages))
	}
	if expect.Counts != nil && *expect.Counts != last.Counts {
		result.AddError(fmt.Sprintf("step %d: counts: expected %+v, got %+v", step, *expect.Counts, last.Counts))
	}
	if expect.Sections != nil {
		want := normalizeSections(*expect.Sections)
		if want != last.Sections {
			result.AddError(fmt.Sprintf("step %d: sections: expected %q, got %q", step, want, last.Sections))
		}
	}
}

// formatIDs renders sections in compact notation without item content.
func formatIDs(sections []snapshot.Section) string {
	stripped := snapshot.CloneSections(sections)
	for i := range stripped {
		for j := range stripped[i].Items {
			stripped[i].Items[j].Content = ""
		}
	}
	return testutil.FormatSections(stripped)
}

// normalizeSections re-renders validated compact notation.
func normalizeSections(src string) string {
	sections, err := testutil.ParseSections(src)
	if err != nil {
		return src
	}
	return formatIDs(sections)
}
