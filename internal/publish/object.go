package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/diffable/internal/ir"
	"github.com/roach88/diffable/internal/schema"
	"github.com/roach88/diffable/internal/store"
)

// ObjectKey identifies one stored object.
type ObjectKey struct {
	Entity string
	ID     string
}

// ObjectEvent reports a change to one object.
type ObjectEvent struct {
	Key        ObjectKey
	Seq        int64
	Attributes ir.Object // nil when Deleted

	// Object is the schema-backed view of Attributes when a schema is
	// registered for the entity.
	Object  *schema.Object
	Deleted bool
}

func (ev ObjectEvent) clone() ObjectEvent {
	ev.Attributes = ev.Attributes.Clone()
	if ev.Object != nil {
		ev.Object = ev.Object.Clone()
	}
	return ev
}

// ObjectPublisher caches the objects it is asked about and fans store
// changes out to per-object observers. Every observer and every Object call
// gets its own copy of the attributes.
type ObjectPublisher struct {
	st      *store.Store
	reg     *Registry[ObjectKey, ObjectEvent]
	schemas map[string]*schema.Entity
	stop    func()

	mu    sync.Mutex
	cache map[ObjectKey]ObjectEvent // latest state per key; Deleted entries are tombstones
}

// NewObjectPublisher observes st. Pass the entities whose events should
// carry a schema.Object.
func NewObjectPublisher(st *store.Store, entities ...*schema.Entity) *ObjectPublisher {
	p := &ObjectPublisher{
		st:      st,
		reg:     NewRegistry[ObjectKey, ObjectEvent](),
		schemas: make(map[string]*schema.Entity, len(entities)),
		cache:   make(map[ObjectKey]ObjectEvent),
	}
	for _, e := range entities {
		p.schemas[e.Name()] = e
	}
	p.stop = st.Observe(p.onChange)
	return p
}

// Subscribe registers fn for changes to one object.
func (p *ObjectPublisher) Subscribe(key ObjectKey, fn func(ctx context.Context, ev ObjectEvent)) *Handle[ObjectEvent] {
	return p.reg.Register(key, func(ctx context.Context, ev ObjectEvent) {
		fn(ctx, ev.clone())
	})
}

// Object returns the cached state of key, reading it from the store on the
// first call. A deleted or missing object is store.ErrNotFound.
func (p *ObjectPublisher) Object(ctx context.Context, key ObjectKey) (ObjectEvent, error) {
	p.mu.Lock()
	ev, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		if ev.Deleted {
			return ObjectEvent{}, fmt.Errorf("object %s/%s: %w", key.Entity, key.ID, store.ErrNotFound)
		}
		return ev.clone(), nil
	}

	rec, err := p.st.Get(ctx, key.Entity, key.ID)
	if err != nil {
		return ObjectEvent{}, err
	}
	ev = p.event(key, rec.Seq, rec.Attributes)

	p.mu.Lock()
	// A change observed meanwhile is newer than the read.
	if cur, ok := p.cache[key]; ok && cur.Seq >= ev.Seq {
		ev = cur
	} else {
		p.cache[key] = ev
	}
	p.mu.Unlock()

	if ev.Deleted {
		return ObjectEvent{}, fmt.Errorf("object %s/%s: %w", key.Entity, key.ID, store.ErrNotFound)
	}
	return ev.clone(), nil
}

// Close stops observing the store.
func (p *ObjectPublisher) Close() {
	p.stop()
}

func (p *ObjectPublisher) onChange(ctx context.Context, ch store.Change) {
	key := ObjectKey{Entity: ch.Entity, ID: ch.ObjectID}

	p.mu.Lock()
	cur, cached := p.cache[key]
	if !cached && p.reg.Len(key) == 0 {
		p.mu.Unlock()
		return
	}
	if cached && cur.Seq >= ch.Seq {
		p.mu.Unlock()
		return
	}
	var ev ObjectEvent
	if ch.Kind == store.ChangeDelete {
		ev = ObjectEvent{Key: key, Seq: ch.Seq, Deleted: true}
	} else {
		ev = p.event(key, ch.Seq, ch.Attributes)
	}
	p.cache[key] = ev
	p.mu.Unlock()

	p.reg.Notify(ctx, key, ev)
}

func (p *ObjectPublisher) event(key ObjectKey, seq int64, attrs ir.Object) ObjectEvent {
	ev := ObjectEvent{Key: key, Seq: seq, Attributes: attrs.Clone()}
	if e, ok := p.schemas[key.Entity]; ok {
		obj, err := e.Load(key.ID, attrs)
		if err != nil {
			slog.Warn("object does not match schema",
				"entity", key.Entity,
				"object_id", key.ID,
				"seq", seq,
				"error", err,
			)
		}
		ev.Object = obj
	}
	return ev
}

// LoadObject reads one object and wraps it with its entity's schema.
func LoadObject(ctx context.Context, st *store.Store, e *schema.Entity, id string) (*schema.Object, error) {
	rec, err := st.Get(ctx, e.Name(), id)
	if err != nil {
		return nil, err
	}
	obj, err := e.Load(rec.ID, rec.Attributes)
	if err != nil {
		return nil, fmt.Errorf("load object: %w", err)
	}
	return obj, nil
}

// SaveObject inserts or updates obj with its persistent attributes.
func SaveObject(ctx context.Context, st *store.Store, obj *schema.Object) (store.Change, error) {
	ch, err := st.Insert(ctx, obj.Entity().Name(), obj.ID(), obj.Attributes())
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, store.ErrExists) {
		return store.Change{}, err
	}
	return st.Update(ctx, obj.Entity().Name(), obj.ID(), obj.Attributes())
}
