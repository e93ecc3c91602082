package schema

import (
	"fmt"

	"github.com/roach88/diffable/internal/ir"
)

// Codec converts between a Go value and its stored ir representation.
type Codec[V any] interface {
	Encode(v V) ir.Value
	Decode(raw ir.Value) (V, error)
}

// StringCodec stores strings as ir.String.
type StringCodec struct{}

func (StringCodec) Encode(v string) ir.Value { return ir.String(v) }

func (StringCodec) Decode(raw ir.Value) (string, error) {
	s, ok := raw.(ir.String)
	if !ok {
		return "", fmt.Errorf("want string, got %T", raw)
	}
	return string(s), nil
}

// IntCodec stores int64 values as ir.Int.
type IntCodec struct{}

func (IntCodec) Encode(v int64) ir.Value { return ir.Int(v) }

func (IntCodec) Decode(raw ir.Value) (int64, error) {
	n, ok := raw.(ir.Int)
	if !ok {
		return 0, fmt.Errorf("want int, got %T", raw)
	}
	return int64(n), nil
}

// BoolCodec stores booleans as ir.Bool.
type BoolCodec struct{}

func (BoolCodec) Encode(v bool) ir.Value { return ir.Bool(v) }

func (BoolCodec) Decode(raw ir.Value) (bool, error) {
	b, ok := raw.(ir.Bool)
	if !ok {
		return false, fmt.Errorf("want bool, got %T", raw)
	}
	return bool(b), nil
}
