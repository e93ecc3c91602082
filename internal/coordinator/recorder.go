package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/snapshot"
)

// RecordedStage is one stage as a Recorder received it.
type RecordedStage struct {
	Stage diff.Stage

	// Transaction is the 1-based non-animated transaction the stage was
	// applied in, or 0 when it was animated.
	Transaction int
}

// Recorder is an in-memory view. It keeps its own section list, applies
// every stage to it by index the way a list widget would, and records what
// it was asked to do. Index errors are returned, so a wrong changeset
// surfaces as a rejected stage.
type Recorder struct {
	mu           sync.Mutex
	sections     []snapshot.Section
	stages       []RecordedStage
	transactions int
	open         int // current transaction, 0 when none
}

// NewRecorder returns a recorder showing sections.
func NewRecorder(sections []snapshot.Section) *Recorder {
	return &Recorder{sections: snapshot.CloneSections(sections)}
}

// ApplyStage implements StageApplier.
func (r *Recorder) ApplyStage(_ context.Context, st diff.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := st.Apply(r.sections)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	r.sections = next
	r.stages = append(r.stages, RecordedStage{Stage: st, Transaction: r.open})
	return nil
}

// WithoutAnimation implements NonAnimatedScope.
func (r *Recorder) WithoutAnimation(fn func()) {
	r.mu.Lock()
	r.transactions++
	r.open = r.transactions
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.open = 0
		r.mu.Unlock()
	}()
	fn()
}

// Sections returns what the recorder currently shows.
func (r *Recorder) Sections() []snapshot.Section {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot.CloneSections(r.sections)
}

// Stages returns every recorded stage in order.
func (r *Recorder) Stages() []RecordedStage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedStage, len(r.stages))
	copy(out, r.stages)
	return out
}

// Transactions returns how many non-animated transactions were opened.
func (r *Recorder) Transactions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transactions
}

// Reset forgets recorded stages and transactions but keeps the sections.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = nil
	r.transactions = 0
}
