package diff

import (
	"fmt"

	"github.com/roach88/diffable/internal/ir"
	"github.com/roach88/diffable/internal/snapshot"
)

// Kind is the category of edit held by a stage.
type Kind int

const (
	// KindDelete removes sections or items.
	KindDelete Kind = iota + 1
	// KindInsert adds sections or items.
	KindInsert
	// KindMove repositions surviving sections or items.
	KindMove
	// KindReload refreshes items whose content changed in place.
	KindReload
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDelete:
		return "delete"
	case KindInsert:
		return "insert"
	case KindMove:
		return "move"
	case KindReload:
		return "reload"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Level tells whether a stage edits sections or items.
type Level int

const (
	// LevelSection stages edit whole sections.
	LevelSection Level = iota + 1
	// LevelItem stages edit items.
	LevelItem
)

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelSection:
		return "section"
	case LevelItem:
		return "item"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// SectionMove relocates a section from a pre-stage index to a post-stage index.
type SectionMove struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ItemMove relocates an item from a pre-stage path to a post-stage path.
type ItemMove struct {
	From snapshot.IndexPath `json:"from"`
	To   snapshot.IndexPath `json:"to"`
}

// Stage is one homogeneous batch of edits.
//
// Depending on Kind and Level exactly one of Sections, SectionMoves, Items
// or ItemMoves is populated. Indices are ascending (moves by destination).
type Stage struct {
	Kind  Kind
	Level Level

	Sections     []int
	SectionMoves []SectionMove
	Items        []snapshot.IndexPath
	ItemMoves    []ItemMove

	// Data is the section list after the stage has been applied.
	Data []snapshot.Section
}

// Len returns the number of edits in the stage.
func (s Stage) Len() int {
	return len(s.Sections) + len(s.SectionMoves) + len(s.Items) + len(s.ItemMoves)
}

// String returns e.g. "delete section [2]".
func (s Stage) String() string {
	switch {
	case s.Kind == KindMove && s.Level == LevelSection:
		return fmt.Sprintf("%s %s %v", s.Kind, s.Level, s.SectionMoves)
	case s.Kind == KindMove:
		return fmt.Sprintf("%s %s %v", s.Kind, s.Level, s.ItemMoves)
	case s.Level == LevelSection:
		return fmt.Sprintf("%s %s %v", s.Kind, s.Level, s.Sections)
	default:
		return fmt.Sprintf("%s %s %v", s.Kind, s.Level, s.Items)
	}
}

// Changeset is the ordered list of stages produced by Diff.
type Changeset []Stage

// IsEmpty reports whether the changeset has no stages.
func (c Changeset) IsEmpty() bool {
	return len(c) == 0
}

// Counts tallies the edits of a changeset by kind and level.
type Counts struct {
	SectionDeleted  int `json:"section_deleted" yaml:"section_deleted"`
	SectionInserted int `json:"section_inserted" yaml:"section_inserted"`
	SectionMoved    int `json:"section_moved" yaml:"section_moved"`
	ItemDeleted     int `json:"item_deleted" yaml:"item_deleted"`
	ItemInserted    int `json:"item_inserted" yaml:"item_inserted"`
	ItemMoved       int `json:"item_moved" yaml:"item_moved"`
	ItemReloaded    int `json:"item_reloaded" yaml:"item_reloaded"`
}

// Total returns the number of edits.
func (c Counts) Total() int {
	return c.SectionDeleted + c.SectionInserted + c.SectionMoved +
		c.ItemDeleted + c.ItemInserted + c.ItemMoved + c.ItemReloaded
}

// Counts tallies the edits of every stage.
func (c Changeset) Counts() Counts {
	var n Counts
	for _, st := range c {
		switch {
		case st.Level == LevelSection && st.Kind == KindDelete:
			n.SectionDeleted += len(st.Sections)
		case st.Level == LevelSection && st.Kind == KindInsert:
			n.SectionInserted += len(st.Sections)
		case st.Level == LevelSection && st.Kind == KindMove:
			n.SectionMoved += len(st.SectionMoves)
		case st.Kind == KindDelete:
			n.ItemDeleted += len(st.Items)
		case st.Kind == KindInsert:
			n.ItemInserted += len(st.Items)
		case st.Kind == KindMove:
			n.ItemMoved += len(st.ItemMoves)
		case st.Kind == KindReload:
			n.ItemReloaded += len(st.Items)
		}
	}
	return n
}

// Find returns the first stage with the given kind and level.
func (c Changeset) Find(kind Kind, level Level) (Stage, bool) {
	for _, st := range c {
		if st.Kind == kind && st.Level == level {
			return st, true
		}
	}
	return Stage{}, false
}

// Canonical returns the changeset in the ir value model. Edits are expressed
// with the identifiers they touch so the encoding is self-describing.
func (c Changeset) Canonical() ir.Array {
	out := make(ir.Array, len(c))
	for i, st := range c {
		edits := ir.Array{}
		switch {
		case st.Kind == KindMove && st.Level == LevelSection:
			for _, m := range st.SectionMoves {
				edits = append(edits, ir.Object{
					"id":   ir.String(st.Data[m.To].ID),
					"from": ir.Int(m.From),
					"to":   ir.Int(m.To),
				})
			}
		case st.Kind == KindMove:
			for _, m := range st.ItemMoves {
				edits = append(edits, ir.Object{
					"id":   ir.String(st.Data[m.To.Section].Items[m.To.Item].ID),
					"from": pathValue(m.From),
					"to":   pathValue(m.To),
				})
			}
		case st.Level == LevelSection:
			for _, idx := range st.Sections {
				edits = append(edits, ir.Int(idx))
			}
		default:
			for _, p := range st.Items {
				edits = append(edits, pathValue(p))
			}
		}
		out[i] = ir.Object{
			"kind":  ir.String(st.Kind.String()),
			"level": ir.String(st.Level.String()),
			"edits": edits,
			"data":  snapshot.SectionsValue(st.Data),
		}
	}
	return out
}

// MarshalCanonical encodes the changeset as canonical JSON. Equal changesets
// encode to identical bytes.
func (c Changeset) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(c.Canonical())
}

// Fingerprint returns the content-addressed hash of the changeset.
func (c Changeset) Fingerprint() (string, error) {
	return ir.Hash(ir.DomainChangeset, c.Canonical())
}

func pathValue(p snapshot.IndexPath) ir.Array {
	return ir.Array{ir.Int(p.Section), ir.Int(p.Item)}
}
