package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/diffable/internal/coordinator"
	"github.com/roach88/diffable/internal/ir"
	"github.com/roach88/diffable/internal/schema"
	"github.com/roach88/diffable/internal/snapshot"
	"github.com/roach88/diffable/internal/store"
)

// DefaultSection is the section identifier used when a list is not
// sectioned.
const DefaultSection snapshot.ID = "default"

var (
	// ErrMissingSort is returned when a list is defined without sort keys.
	ErrMissingSort = store.ErrMissingSort

	// ErrUnknownKeyPath is returned when a sort or section key is not
	// declared by the list's schema.
	ErrUnknownKeyPath = errors.New("publish: unknown key path")

	// ErrSectionKey is returned when SectionBy is not the first sort key.
	ErrSectionKey = errors.New("publish: section key must be the first sort key")
)

// FetchSpec defines a list of objects.
type FetchSpec struct {
	Entity  string
	OrderBy []store.SortKey

	// SectionBy groups items by the value at this key path. It must be the
	// first sort key so that each group is contiguous.
	SectionBy string

	// Where filters fetched records. Nil keeps every record.
	Where func(store.Record) bool

	// Schema, when set, checks the key paths and drops transient fields
	// before item content is hashed.
	Schema *schema.Entity
}

func (s FetchSpec) validate() error {
	if len(s.OrderBy) == 0 {
		return fmt.Errorf("list %s: %w", s.Entity, ErrMissingSort)
	}
	if s.Schema != nil && s.Schema.Name() != s.Entity {
		return fmt.Errorf("list %s: schema is for entity %s", s.Entity, s.Schema.Name())
	}
	keys := make([]string, 0, len(s.OrderBy)+1)
	for _, k := range s.OrderBy {
		keys = append(keys, k.KeyPath)
	}
	if s.SectionBy != "" {
		if s.OrderBy[0].KeyPath != s.SectionBy {
			return fmt.Errorf("list %s: %q: %w", s.Entity, s.SectionBy, ErrSectionKey)
		}
	}
	for _, key := range keys {
		if !store.ValidKeyPath(key) {
			return fmt.Errorf("list %s: invalid key path %q", s.Entity, key)
		}
		if s.Schema == nil {
			continue
		}
		if _, ok := s.Schema.Lookup(schema.KeyPath(key)); !ok {
			return fmt.Errorf("list %s: %q: %w", s.Entity, key, ErrUnknownKeyPath)
		}
	}
	return nil
}

// ListEvent carries a new list snapshot. Seq is the latest store change the
// snapshot reflects, 0 before any change was seen.
type ListEvent struct {
	Snapshot snapshot.Snapshot
	Seq      int64
}

type listSubject struct{}

// ListPublisher keeps the snapshot of a FetchSpec current.
type ListPublisher struct {
	st   *store.Store
	spec FetchSpec
	reg  *Registry[listSubject, ListEvent]
	stop func()

	mu         sync.Mutex // serializes refetches and delivery bookkeeping
	snap       snapshot.Snapshot
	seq        int64
	version    uint64 // bumped on every snapshot change
	delivered  uint64 // version last handed to observers
	delivering bool
}

// NewListPublisher validates spec, fetches the initial snapshot and starts
// observing the store.
func NewListPublisher(ctx context.Context, st *store.Store, spec FetchSpec) (*ListPublisher, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	p := &ListPublisher{
		st:   st,
		spec: spec,
		reg:  NewRegistry[listSubject, ListEvent](),
	}
	snap, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	p.snap = snap
	p.stop = st.Observe(p.onChange)
	return p, nil
}

// Snapshot returns the latest snapshot.
func (p *ListPublisher) Snapshot() snapshot.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Subscribe registers fn for snapshot changes.
func (p *ListPublisher) Subscribe(fn func(ctx context.Context, ev ListEvent)) *Handle[ListEvent] {
	return p.reg.Register(listSubject{}, fn)
}

// Drive applies every new snapshot to c with view. The returned handle must
// be kept reachable while driving.
func (p *ListPublisher) Drive(c *coordinator.Coordinator, view coordinator.View, animated bool) *Handle[ListEvent] {
	return p.Subscribe(func(ctx context.Context, ev ListEvent) {
		if err := c.Apply(ctx, ev.Snapshot, view, animated, nil); err != nil {
			slog.Error("list apply failed",
				"entity", p.spec.Entity,
				"seq", ev.Seq,
				"error", err,
			)
		}
	})
}

// Refresh refetches and notifies observers when the snapshot changed.
func (p *ListPublisher) Refresh(ctx context.Context) error {
	return p.refresh(ctx, 0)
}

// Close stops observing the store.
func (p *ListPublisher) Close() {
	p.stop()
}

func (p *ListPublisher) onChange(ctx context.Context, ch store.Change) {
	if ch.Entity != p.spec.Entity {
		return
	}
	if err := p.refresh(ctx, ch.Seq); err != nil {
		slog.Error("list refetch failed",
			"entity", p.spec.Entity,
			"seq", ch.Seq,
			"error", err,
		)
	}
}

func (p *ListPublisher) refresh(ctx context.Context, seq int64) error {
	p.mu.Lock()
	snap, err := p.fetch(ctx)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.seq = max(p.seq, seq)
	if snap.Equal(p.snap) {
		p.mu.Unlock()
		return nil
	}
	p.snap = snap
	p.version++
	if p.delivering {
		// The running delivery picks the new snapshot up.
		p.mu.Unlock()
		return nil
	}
	p.delivering = true
	p.mu.Unlock()

	p.deliver(ctx)
	return nil
}

// deliver notifies observers until they have seen the latest snapshot. Only
// one goroutine delivers at a time, so observers get snapshots in the order
// they were fetched and always end on the latest one.
func (p *ListPublisher) deliver(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.delivered == p.version {
			p.delivering = false
			p.mu.Unlock()
			return
		}
		p.delivered = p.version
		ev := ListEvent{Snapshot: p.snap, Seq: p.seq}
		p.mu.Unlock()

		slog.Debug("list changed",
			"entity", p.spec.Entity,
			"seq", ev.Seq,
			"sections", ev.Snapshot.NumberOfSections(),
			"items", ev.Snapshot.NumberOfItems(),
		)
		p.reg.Notify(ctx, listSubject{}, ev)
	}
}

func (p *ListPublisher) fetch(ctx context.Context) (snapshot.Snapshot, error) {
	records, err := p.st.Fetch(ctx, store.FetchRequest{Entity: p.spec.Entity, OrderBy: p.spec.OrderBy})
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	var sections []snapshot.Section
	for _, rec := range records {
		if p.spec.Where != nil && !p.spec.Where(rec) {
			continue
		}
		item, err := p.item(rec)
		if err != nil {
			return snapshot.Snapshot{}, err
		}
		section := DefaultSection
		if p.spec.SectionBy != "" {
			section = sectionID(lookup(rec.Attributes, p.spec.SectionBy))
		}
		if n := len(sections); n == 0 || sections[n-1].ID != section {
			sections = append(sections, snapshot.Section{ID: section})
		}
		last := &sections[len(sections)-1]
		last.Items = append(last.Items, item)
	}
	if p.spec.SectionBy == "" && len(sections) == 0 {
		sections = []snapshot.Section{{ID: DefaultSection}}
	}
	return snapshot.FromSections(sections)
}

func (p *ListPublisher) item(rec store.Record) (snapshot.Item, error) {
	attrs := rec.Attributes
	if p.spec.Schema != nil {
		obj, err := p.spec.Schema.Load(rec.ID, attrs)
		if err != nil {
			return snapshot.Item{}, err
		}
		attrs = obj.Attributes()
	}
	content, err := ir.ContentHash(attrs)
	if err != nil {
		return snapshot.Item{}, fmt.Errorf("list %s: content of %s: %w", p.spec.Entity, rec.ID, err)
	}
	return snapshot.Item{ID: snapshot.ID(rec.ID), Content: content}, nil
}

// lookup reads a dotted key path. Missing keys yield nil.
func lookup(attrs ir.Object, key string) ir.Value {
	var cur ir.Value = attrs
	for _, seg := range schema.KeyPath(key).Segments() {
		obj, ok := cur.(ir.Object)
		if !ok {
			return nil
		}
		cur = obj[seg]
	}
	return cur
}

func sectionID(v ir.Value) snapshot.ID {
	switch v := v.(type) {
	case nil, ir.Null:
		return ""
	case ir.String:
		return snapshot.ID(v)
	}
	data, err := ir.MarshalValue(v)
	if err != nil {
		return snapshot.ID(fmt.Sprint(v))
	}
	return snapshot.ID(data)
}
