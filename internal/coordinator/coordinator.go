package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/dispatch"
	"github.com/roach88/diffable/internal/snapshot"
)

// State is the coordinator's lifecycle state.
type State int

const (
	// StateEmpty: no snapshot has been applied yet.
	StateEmpty State = iota
	// StateActive: a current snapshot is held. Every later apply re-enters
	// this state.
	StateActive
)

// String returns "empty" or "active".
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// ApplyRecord describes one completed apply.
type ApplyRecord struct {
	ID           string
	Seq          int64
	Snapshot     snapshot.Snapshot
	Changeset    diff.Changeset
	Animated     bool
	ViewAttached bool

	// Settled is false when the view reported a final section list that
	// differs from Snapshot, e.g. because it rejected a stage.
	Settled bool
}

// ApplyListener observes completed applies. It runs on the designated
// context right after the settled state is published.
type ApplyListener func(ctx context.Context, rec ApplyRecord)

// Coordinator owns the current snapshot and the last-applied sections.
//
// Thread-safety model:
//   - Apply, Wait and every query: safe from any goroutine
//   - working: touched only inside the serial slot
//   - current, settled, index, state, seq: written inside the serial slot,
//     read under mu
type Coordinator struct {
	serial   *dispatch.Serial
	clock    *dispatch.Clock
	ids      IDGenerator
	listener ApplyListener

	working []snapshot.Section

	mu      sync.RWMutex
	state   State
	seq     int64
	current snapshot.Snapshot
	settled []snapshot.Section
	index   map[snapshot.ID]snapshot.IndexPath
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock that stamps apply sequence numbers. Used to
// resume numbering after a logged history.
func WithClock(clock *dispatch.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithApplyListener registers fn to observe completed applies.
func WithApplyListener(fn ApplyListener) Option {
	return func(c *Coordinator) {
		c.listener = fn
	}
}

// WithIDGenerator sets how applies are named. Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *Coordinator) {
		c.ids = gen
	}
}

// WithInitialSnapshot starts the coordinator Active on snap, as if it had
// been applied and settled. Used to resume from a logged history; nothing is
// replayed and no listener is called.
func WithInitialSnapshot(snap snapshot.Snapshot) Option {
	return func(c *Coordinator) {
		c.current = snap
		c.working = snap.Sections()
		c.state = StateActive
	}
}

// New creates an empty coordinator whose applies run through serial.
func New(serial *dispatch.Serial, opts ...Option) *Coordinator {
	c := &Coordinator{
		serial: serial,
		clock:  dispatch.NewClock(),
		ids:    UUIDv7Generator{},
		index:  map[snapshot.ID]snapshot.IndexPath{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.publish()
	return c
}

// Apply submits snap. It does not wait: the diff and replay run on the
// designated context, inline when the caller is already there and nothing
// else is pending.
//
// view may be nil, in which case snap simply becomes the current state. When
// perform is nil and view implements StageApplier, ReplayStages is used; with
// neither, the view is assumed to show snap immediately. When animated is
// false and view implements NonAnimatedScope, the replay of this apply and
// nothing else runs inside view.WithoutAnimation.
//
// The only error is dispatch.ErrStopped.
func (c *Coordinator) Apply(ctx context.Context, snap snapshot.Snapshot, view View, animated bool, perform PerformUpdates) error {
	return c.serial.Dispatch(ctx, func(ctx context.Context) {
		c.apply(ctx, snap, view, animated, perform)
	})
}

// Wait blocks until every apply submitted before the call has completed. It
// must not be called from the designated context.
func (c *Coordinator) Wait(ctx context.Context) error {
	return c.serial.Barrier(ctx)
}

// apply runs inside the serial slot.
func (c *Coordinator) apply(ctx context.Context, snap snapshot.Snapshot, view View, animated bool, perform PerformUpdates) {
	seq := c.clock.Next()
	id := c.ids.Generate()

	c.mu.Lock()
	c.current = snap
	c.state = StateActive
	c.seq = seq
	c.mu.Unlock()

	target := snap.Sections()
	var cs diff.Changeset

	if view == nil {
		c.working = target
	} else {
		cs = diff.Diff(c.working, target)
		if perform == nil {
			if applier, ok := view.(StageApplier); ok {
				perform = ReplayStages(applier)
			}
		}
		setSections := func(sections []snapshot.Section) {
			c.working = snapshot.CloneSections(sections)
		}
		replay := func() {
			if perform == nil {
				setSections(target)
				return
			}
			perform(ctx, view, cs, setSections)
		}
		if scope, ok := view.(NonAnimatedScope); ok && !animated {
			scope.WithoutAnimation(replay)
		} else {
			replay()
		}
	}

	settled := snapshot.SectionsEqual(c.working, target)
	if !settled {
		slog.Warn("view did not settle on applied snapshot",
			"apply_id", id,
			"seq", seq,
		)
	}
	c.publish()

	counts := cs.Counts()
	slog.Debug("snapshot applied",
		"apply_id", id,
		"seq", seq,
		"sections", snap.NumberOfSections(),
		"items", snap.NumberOfItems(),
		"stages", len(cs),
		"edits", counts.Total(),
		"animated", animated,
		"view_attached", view != nil,
	)

	if c.listener != nil {
		c.listener(ctx, ApplyRecord{
			ID:           id,
			Seq:          seq,
			Snapshot:     snap,
			Changeset:    cs,
			Animated:     animated,
			ViewAttached: view != nil,
			Settled:      settled,
		})
	}
}

// publish copies the working list into the settled state read by queries.
func (c *Coordinator) publish() {
	sections := snapshot.CloneSections(c.working)
	index := make(map[snapshot.ID]snapshot.IndexPath)
	for si, sec := range sections {
		for ii, it := range sec.Items {
			index[it.ID] = snapshot.IndexPath{Section: si, Item: ii}
		}
	}

	c.mu.Lock()
	c.settled = sections
	c.index = index
	c.mu.Unlock()
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Seq returns the sequence number of the most recent apply, 0 before any.
func (c *Coordinator) Seq() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Snapshot returns the most recently applied snapshot.
func (c *Coordinator) Snapshot() snapshot.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Sections returns a copy of the settled section list.
func (c *Coordinator) Sections() []snapshot.Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot.CloneSections(c.settled)
}

// ItemIdentifier returns the item at p. Out-of-range paths report false.
func (c *Coordinator) ItemIdentifier(p snapshot.IndexPath) (snapshot.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p.Section < 0 || p.Section >= len(c.settled) {
		return "", false
	}
	items := c.settled[p.Section].Items
	if p.Item < 0 || p.Item >= len(items) {
		return "", false
	}
	return items[p.Item].ID, true
}

// IndexPath returns where the item currently is.
func (c *Coordinator) IndexPath(id snapshot.ID) (snapshot.IndexPath, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.index[id]
	return p, ok
}

// NumberOfSections returns the number of settled sections.
func (c *Coordinator) NumberOfSections() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.settled)
}

// NumberOfItems returns the number of items in a section.
func (c *Coordinator) NumberOfItems(section int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if section < 0 || section >= len(c.settled) {
		return 0, false
	}
	return len(c.settled[section].Items), true
}

// SectionIdentifier returns the identifier of a section.
func (c *Coordinator) SectionIdentifier(section int) (snapshot.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if section < 0 || section >= len(c.settled) {
		return "", false
	}
	return c.settled[section].ID, true
}
