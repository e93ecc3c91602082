package snapshot

// ID identifies an item or a section across snapshot versions.
// Only identity is compared; content lives on the Item.
type ID string

// Item pairs a stable identity with a content value. Content is only used to
// tell whether an item whose identity survived needs to be reloaded.
type Item struct {
	ID      ID     `json:"id" yaml:"id"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
}

// Section is an identified, ordered run of items.
type Section struct {
	ID    ID     `json:"id" yaml:"id"`
	Items []Item `json:"items" yaml:"items"`
}

// IndexPath addresses an item by section index and item index.
type IndexPath struct {
	Section int `json:"section"`
	Item    int `json:"item"`
}

// Less orders index paths by section, then item.
func (p IndexPath) Less(q IndexPath) bool {
	if p.Section != q.Section {
		return p.Section < q.Section
	}
	return p.Item < q.Item
}

// Items builds content-less items from identifiers.
func Items(ids ...ID) []Item {
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = Item{ID: id}
	}
	return out
}

// Snapshot is an immutable list of sections. The zero value is empty.
type Snapshot struct {
	sections []Section
}

// Sections returns a deep copy of the sections.
func (s Snapshot) Sections() []Section {
	return CloneSections(s.sections)
}

// CloneSections deep-copies a section list. A nil list stays nil.
func CloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i, sec := range sections {
		out[i] = Section{ID: sec.ID, Items: append([]Item(nil), sec.Items...)}
	}
	return out
}

// NumberOfSections returns the number of sections.
func (s Snapshot) NumberOfSections() int {
	return len(s.sections)
}

// NumberOfItems returns the number of items across all sections.
func (s Snapshot) NumberOfItems() int {
	n := 0
	for _, sec := range s.sections {
		n += len(sec.Items)
	}
	return n
}

// SectionIDs returns section identifiers in order.
func (s Snapshot) SectionIDs() []ID {
	ids := make([]ID, len(s.sections))
	for i, sec := range s.sections {
		ids[i] = sec.ID
	}
	return ids
}

// ItemIDs returns every item identifier in section order.
func (s Snapshot) ItemIDs() []ID {
	ids := make([]ID, 0, s.NumberOfItems())
	for _, sec := range s.sections {
		for _, it := range sec.Items {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// ItemIDsInSection returns the item identifiers of one section. The second
// result is false when the section does not exist.
func (s Snapshot) ItemIDsInSection(section ID) ([]ID, bool) {
	idx := s.IndexOfSection(section)
	if idx < 0 {
		return nil, false
	}
	items := s.sections[idx].Items
	ids := make([]ID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, true
}

// SectionIDOfItem returns the identifier of the section holding item.
func (s Snapshot) SectionIDOfItem(item ID) (ID, bool) {
	p, ok := s.IndexPathOfItem(item)
	if !ok {
		return "", false
	}
	return s.sections[p.Section].ID, true
}

// IndexOfSection returns the index of a section, or -1.
func (s Snapshot) IndexOfSection(id ID) int {
	return indexOfSection(s.sections, id)
}

// IndexPathOfItem returns the position of an item.
func (s Snapshot) IndexPathOfItem(id ID) (IndexPath, bool) {
	return indexPathOfItem(s.sections, id)
}

// Item returns the item with the given identifier.
func (s Snapshot) Item(id ID) (Item, bool) {
	p, ok := s.IndexPathOfItem(id)
	if !ok {
		return Item{}, false
	}
	return s.sections[p.Section].Items[p.Item], true
}

// Equal reports whether both snapshots hold the same sections, items and
// contents in the same order.
func (s Snapshot) Equal(other Snapshot) bool {
	return SectionsEqual(s.sections, other.sections)
}

// SectionsEqual compares two section lists by identity, order and content.
// A nil list equals an empty one.
func SectionsEqual(a, b []Section) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || len(a[i].Items) != len(b[i].Items) {
			return false
		}
		for j := range a[i].Items {
			if a[i].Items[j] != b[i].Items[j] {
				return false
			}
		}
	}
	return true
}

// FromSections validates sections and returns them as a snapshot.
// Unlike the Builder it reports violations as errors.
func FromSections(sections []Section) (Snapshot, error) {
	if err := Validate(sections); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{sections: CloneSections(sections)}, nil
}

// MustFromSections is like FromSections but panics on error.
// Use only in tests or when sections are known to be valid.
func MustFromSections(sections []Section) Snapshot {
	s, err := FromSections(sections)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks the uniqueness invariants of a section list.
func Validate(sections []Section) error {
	seenSections := make(map[ID]struct{}, len(sections))
	seenItems := make(map[ID]struct{})
	for _, sec := range sections {
		if _, dup := seenSections[sec.ID]; dup {
			return violation(ErrCodeDuplicateSection, "validate", sec.ID)
		}
		seenSections[sec.ID] = struct{}{}
		for _, it := range sec.Items {
			if _, dup := seenItems[it.ID]; dup {
				return violation(ErrCodeDuplicateItem, "validate", it.ID)
			}
			seenItems[it.ID] = struct{}{}
		}
	}
	return nil
}

func indexOfSection(sections []Section, id ID) int {
	for i, sec := range sections {
		if sec.ID == id {
			return i
		}
	}
	return -1
}

func indexPathOfItem(sections []Section, id ID) (IndexPath, bool) {
	for si, sec := range sections {
		for ii, it := range sec.Items {
			if it.ID == id {
				return IndexPath{Section: si, Item: ii}, true
			}
		}
	}
	return IndexPath{}, false
}
