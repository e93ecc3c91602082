package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/diffable/internal/ir"
)

// Decode converts a generic document tree into a Snapshot. The tree is what
// encoding/json, yaml.v3 or a CUE value decode into:
//
//	sections:
//	  - id: s1
//	    items: [a, b, {id: c, content: v2}, {id: d, attributes: {title: x}}]
//
// The root may also be the section list itself. An item given as a bare
// string has empty content; "attributes" is hashed into the content.
func Decode(tree any) (Snapshot, error) {
	var rawSections []any
	switch root := tree.(type) {
	case nil:
		return Snapshot{}, nil
	case map[string]any:
		v, ok := root["sections"]
		if !ok {
			return Snapshot{}, malformed("document has no \"sections\" key")
		}
		if v == nil {
			return Snapshot{}, nil
		}
		list, ok := v.([]any)
		if !ok {
			return Snapshot{}, malformed("\"sections\" must be a list, got %T", v)
		}
		rawSections = list
	case []any:
		rawSections = root
	default:
		return Snapshot{}, malformed("snapshot document must be a mapping or a list, got %T", tree)
	}

	sections := make([]Section, 0, len(rawSections))
	for i, raw := range rawSections {
		sec, err := decodeSection(raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("sections[%d]: %w", i, err)
		}
		sections = append(sections, sec)
	}
	return FromSections(sections)
}

func decodeSection(raw any) (Section, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Section{}, malformed("section must be a mapping, got %T", raw)
	}
	id, err := decodeID(m["id"])
	if err != nil {
		return Section{}, err
	}
	sec := Section{ID: id}
	rawItems, _ := m["items"].([]any)
	if m["items"] != nil && rawItems == nil {
		return Section{}, malformed("section %q: items must be a list", id)
	}
	for j, rawItem := range rawItems {
		it, err := decodeItem(rawItem)
		if err != nil {
			return Section{}, fmt.Errorf("section %q items[%d]: %w", id, j, err)
		}
		sec.Items = append(sec.Items, it)
	}
	return sec, nil
}

func decodeItem(raw any) (Item, error) {
	if m, ok := raw.(map[string]any); ok {
		id, err := decodeID(m["id"])
		if err != nil {
			return Item{}, err
		}
		it := Item{ID: id}
		if c, ok := m["content"]; ok {
			it.Content = fmt.Sprint(c)
		}
		if attrs, ok := m["attributes"]; ok {
			v, err := ir.FromGo(attrs)
			if err != nil {
				return Item{}, fmt.Errorf("item %q attributes: %w", id, err)
			}
			obj, ok := v.(ir.Object)
			if !ok {
				return Item{}, malformed("item %q: attributes must be a mapping", id)
			}
			h, err := ir.ContentHash(obj)
			if err != nil {
				return Item{}, fmt.Errorf("item %q attributes: %w", id, err)
			}
			it.Content = h
		}
		return it, nil
	}
	id, err := decodeID(raw)
	if err != nil {
		return Item{}, err
	}
	return Item{ID: id}, nil
}

func decodeID(raw any) (ID, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", malformed("identifier must not be empty")
		}
		return ID(v), nil
	case int, int64, uint64, json.Number:
		return ID(fmt.Sprint(v)), nil
	case nil:
		return "", malformed("missing identifier")
	default:
		return "", malformed("identifier must be a string or an integer, got %T", raw)
	}
}

func malformed(format string, args ...any) *ContractError {
	return &ContractError{Code: ErrCodeMalformed, Msg: fmt.Sprintf(format, args...)}
}

type document struct {
	Sections []Section `json:"sections"`
}

// MarshalJSON encodes the snapshot as {"sections": [...]}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	sections := s.sections
	if sections == nil {
		sections = []Section{}
	}
	return json.Marshal(document{Sections: sections})
}

// UnmarshalJSON decodes and validates a snapshot document.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	snap, err := FromSections(doc.Sections)
	if err != nil {
		return err
	}
	*s = snap
	return nil
}

// Canonical returns the snapshot in the ir value model, ready for canonical
// marshaling and hashing.
func (s Snapshot) Canonical() ir.Object {
	return ir.Object{"sections": SectionsValue(s.sections)}
}

// SectionsValue converts a section list to the ir value model.
func SectionsValue(sections []Section) ir.Array {
	out := make(ir.Array, len(sections))
	for i, sec := range sections {
		items := make(ir.Array, len(sec.Items))
		for j, it := range sec.Items {
			items[j] = ir.Object{"id": ir.String(it.ID), "content": ir.String(it.Content)}
		}
		out[i] = ir.Object{"id": ir.String(sec.ID), "items": items}
	}
	return out
}

// Hash returns the content-addressed hash of the snapshot.
func (s Snapshot) Hash() (string, error) {
	return ir.Hash(ir.DomainSnapshot, s.Canonical())
}
