package schema

import (
	"fmt"

	"github.com/roach88/diffable/internal/ir"
)

// Partial gives getters and setters primitive access to an object's stored
// values. It cannot reach other descriptors, so custom accessors never
// recurse.
type Partial struct {
	attrs ir.Object
}

// Primitive returns the stored value at key.
func (p Partial) Primitive(key KeyPath) (ir.Value, bool) {
	segs := key.Segments()
	if len(segs) == 0 {
		return nil, false
	}
	cur := p.attrs
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(ir.Object)
		if !ok {
			return nil, false
		}
		cur = next
	}
	v, ok := cur[segs[len(segs)-1]]
	if !ok {
		return nil, false
	}
	if _, isNull := v.(ir.Null); isNull {
		return nil, false
	}
	return v, true
}

// SetPrimitive stores v at key, creating intermediate objects.
func (p Partial) SetPrimitive(key KeyPath, v ir.Value) {
	segs := key.Segments()
	if len(segs) == 0 {
		panic("schema: cannot set the root key path")
	}
	cur := p.attrs
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(ir.Object)
		if !ok {
			next = ir.Object{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// Accessor is the type-erased view of a Field held by an Entity.
type Accessor interface {
	KeyPath() KeyPath
	IsTransient() bool
	Dependencies() []KeyPath

	// Check reports whether the stored value at the field's key decodes.
	Check(p Partial) error

	// Init writes the field's default.
	Init(p Partial)
}

// Field describes one typed attribute.
//
// Getter and Setter, when set, replace the codec-based default access. They
// receive a Partial and must only use primitive access. AffectedBy lists key
// paths whose changes also change this field's value, for derived fields.
type Field[V any] struct {
	Key        KeyPath
	Default    V
	Transient  bool
	Getter     func(p Partial) V
	Setter     func(p Partial, v V)
	AffectedBy []KeyPath
	Codec      Codec[V]
}

func (f *Field[V]) KeyPath() KeyPath        { return f.Key }
func (f *Field[V]) IsTransient() bool       { return f.Transient }
func (f *Field[V]) Dependencies() []KeyPath { return f.AffectedBy }

func (f *Field[V]) Check(p Partial) error {
	if f.Getter != nil {
		return nil
	}
	raw, ok := p.Primitive(f.Key)
	if !ok {
		return nil
	}
	if _, err := f.Codec.Decode(raw); err != nil {
		return fmt.Errorf("field %s: %w", f.Key, err)
	}
	return nil
}

func (f *Field[V]) Init(p Partial) {
	if f.Getter != nil && f.Setter == nil {
		return // derived
	}
	f.set(p, f.Default)
}

func (f *Field[V]) get(p Partial) V {
	if f.Getter != nil {
		return f.Getter(p)
	}
	raw, ok := p.Primitive(f.Key)
	if !ok {
		return f.Default
	}
	v, err := f.Codec.Decode(raw)
	if err != nil {
		return f.Default
	}
	return v
}

func (f *Field[V]) set(p Partial, v V) {
	if f.Setter != nil {
		f.Setter(p, v)
		return
	}
	p.SetPrimitive(f.Key, f.Codec.Encode(v))
}
