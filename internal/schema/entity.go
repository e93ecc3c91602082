package schema

import (
	"fmt"
	"slices"

	"github.com/roach88/diffable/internal/ir"
)

// Entity is a named set of field descriptors, keyed by key path.
// It is immutable once defined and safe for concurrent use.
type Entity struct {
	name   string
	fields map[KeyPath]Accessor
	order  []KeyPath
}

// NewEntity defines an entity. Empty or duplicate key paths panic: schemas
// are declared once at program start.
func NewEntity(name string, fields ...Accessor) *Entity {
	e := &Entity{
		name:   name,
		fields: make(map[KeyPath]Accessor, len(fields)),
	}
	for _, f := range fields {
		key := f.KeyPath()
		if len(key.Segments()) == 0 {
			panic(fmt.Sprintf("schema: entity %s: field with empty key path", name))
		}
		if _, dup := e.fields[key]; dup {
			panic(fmt.Sprintf("schema: entity %s: duplicate field %s", name, key))
		}
		e.fields[key] = f
		e.order = append(e.order, key)
	}
	return e
}

// Name returns the entity name.
func (e *Entity) Name() string {
	return e.name
}

// Lookup returns the accessor registered at key.
func (e *Entity) Lookup(key KeyPath) (Accessor, bool) {
	a, ok := e.fields[key]
	return a, ok
}

// Keys returns the key paths in declaration order.
func (e *Entity) Keys() []KeyPath {
	return slices.Clone(e.order)
}

// Affected returns the key paths whose value depends on changed, directly or
// through other derived fields, in declaration order.
func (e *Entity) Affected(changed KeyPath) []KeyPath {
	hit := map[KeyPath]bool{changed: true}
	for grew := true; grew; {
		grew = false
		for _, key := range e.order {
			if hit[key] {
				continue
			}
			for _, dep := range e.fields[key].Dependencies() {
				if hit[dep] {
					hit[key] = true
					grew = true
					break
				}
			}
		}
	}
	var out []KeyPath
	for _, key := range e.order {
		if key != changed && hit[key] {
			out = append(out, key)
		}
	}
	return out
}

// New returns an object with every field at its default.
func (e *Entity) New(id string) *Object {
	obj := &Object{entity: e, id: id, attrs: ir.Object{}}
	for _, key := range e.order {
		e.fields[key].Init(obj.Partial())
	}
	return obj
}

// Load wraps stored attributes. Values that do not decode with their
// field's codec are an error; attributes without a field are kept as is.
func (e *Entity) Load(id string, attrs ir.Object) (*Object, error) {
	obj := &Object{entity: e, id: id, attrs: attrs.Clone()}
	if obj.attrs == nil {
		obj.attrs = ir.Object{}
	}
	for _, key := range e.order {
		if err := e.fields[key].Check(obj.Partial()); err != nil {
			return nil, fmt.Errorf("load %s %s: %w", e.name, id, err)
		}
	}
	return obj, nil
}
