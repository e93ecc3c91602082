package schema

import (
	"fmt"

	"github.com/roach88/diffable/internal/ir"
)

// Object is a schema-backed set of attribute values. It is not safe for
// concurrent use.
type Object struct {
	entity *Entity
	id     string
	attrs  ir.Object
}

// ID returns the object identifier.
func (o *Object) ID() string {
	return o.id
}

// Entity returns the object's schema.
func (o *Object) Entity() *Entity {
	return o.entity
}

// Clone returns an independent copy of the object.
func (o *Object) Clone() *Object {
	return &Object{entity: o.entity, id: o.id, attrs: o.attrs.Clone()}
}

// Partial exposes primitive access to the stored values.
func (o *Object) Partial() Partial {
	return Partial{attrs: o.attrs}
}

// Attributes returns a copy of the persistent attributes: transient fields
// are left out.
func (o *Object) Attributes() ir.Object {
	out := o.attrs.Clone()
	for _, key := range o.entity.order {
		if !o.entity.fields[key].IsTransient() {
			continue
		}
		deleteKey(out, key.Segments())
	}
	return out
}

func deleteKey(obj ir.Object, segs []string) {
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 {
		delete(obj, segs[0])
		return
	}
	if child, ok := obj[segs[0]].(ir.Object); ok {
		deleteKey(child, segs[1:])
	}
}

// Get reads a field through its descriptor.
func Get[V any](o *Object, f *Field[V]) V {
	o.mustOwn(f)
	return f.get(o.Partial())
}

// Set writes a field through its descriptor.
func Set[V any](o *Object, f *Field[V], v V) {
	o.mustOwn(f)
	f.set(o.Partial(), v)
}

func (o *Object) mustOwn(f Accessor) {
	registered, ok := o.entity.fields[f.KeyPath()]
	if !ok || registered != f {
		panic(fmt.Sprintf("schema: field %s is not declared by entity %s", f.KeyPath(), o.entity.name))
	}
}
