package snapshot

import "slices"

// Builder accumulates edits and freezes them into a Snapshot.
//
// Every method panics with a *ContractError when an edit would break a
// snapshot invariant or names an unknown identifier. A Builder is not safe
// for concurrent use.
type Builder struct {
	sections   []Section
	sectionIDs map[ID]struct{}
	owner      map[ID]ID // item -> section
}

// NewBuilder returns a builder for an empty snapshot.
func NewBuilder() *Builder {
	return &Builder{
		sectionIDs: make(map[ID]struct{}),
		owner:      make(map[ID]ID),
	}
}

// Builder returns a builder seeded with a copy of the snapshot.
func (s Snapshot) Builder() *Builder {
	b := NewBuilder()
	b.sections = CloneSections(s.sections)
	for _, sec := range b.sections {
		b.sectionIDs[sec.ID] = struct{}{}
		for _, it := range sec.Items {
			b.owner[it.ID] = sec.ID
		}
	}
	return b
}

// Build returns the current state as a Snapshot. The builder stays usable;
// later edits do not affect the returned snapshot.
func (b *Builder) Build() Snapshot {
	return Snapshot{sections: CloneSections(b.sections)}
}

// AppendSections adds empty sections at the end.
func (b *Builder) AppendSections(ids ...ID) *Builder {
	b.claimSections("append sections", ids)
	for _, id := range ids {
		b.sections = append(b.sections, Section{ID: id})
	}
	return b
}

// InsertSectionsBefore inserts empty sections before an existing section.
func (b *Builder) InsertSectionsBefore(ids []ID, before ID) *Builder {
	at := b.mustSection("insert sections before", before)
	b.claimSections("insert sections", ids)
	b.sections = slices.Insert(b.sections, at, emptySections(ids)...)
	return b
}

// InsertSectionsAfter inserts empty sections after an existing section.
func (b *Builder) InsertSectionsAfter(ids []ID, after ID) *Builder {
	at := b.mustSection("insert sections after", after)
	b.claimSections("insert sections", ids)
	b.sections = slices.Insert(b.sections, at+1, emptySections(ids)...)
	return b
}

// DeleteSections removes sections together with their items.
func (b *Builder) DeleteSections(ids ...ID) *Builder {
	for _, id := range ids {
		at := b.mustSection("delete section", id)
		for _, it := range b.sections[at].Items {
			delete(b.owner, it.ID)
		}
		delete(b.sectionIDs, id)
		b.sections = slices.Delete(b.sections, at, at+1)
	}
	return b
}

// MoveSectionBefore moves a section in front of another one.
func (b *Builder) MoveSectionBefore(id, before ID) *Builder {
	return b.moveSection(id, before, 0)
}

// MoveSectionAfter moves a section behind another one.
func (b *Builder) MoveSectionAfter(id, after ID) *Builder {
	return b.moveSection(id, after, 1)
}

func (b *Builder) moveSection(id, anchor ID, offset int) *Builder {
	from := b.mustSection("move section", id)
	b.mustSection("move section anchor", anchor)
	if id == anchor {
		return b
	}
	sec := b.sections[from]
	b.sections = slices.Delete(b.sections, from, from+1)
	to := indexOfSection(b.sections, anchor) + offset
	b.sections = slices.Insert(b.sections, to, sec)
	return b
}

// AppendItems adds items at the end of section. The empty identifier is
// an ordinary section identifier; use AppendItemsToLast for the last
// section.
func (b *Builder) AppendItems(items []Item, section ID) *Builder {
	return b.appendItemsAt(items, b.mustSection("append items", section))
}

// AppendItemsToLast adds items at the end of the last section.
func (b *Builder) AppendItemsToLast(items []Item) *Builder {
	if len(b.sections) == 0 {
		panic(violation(ErrCodeNoSection, "append items", ""))
	}
	return b.appendItemsAt(items, len(b.sections)-1)
}

func (b *Builder) appendItemsAt(items []Item, at int) *Builder {
	b.claimItems("append items", items, b.sections[at].ID)
	b.sections[at].Items = append(b.sections[at].Items, items...)
	return b
}

// AppendIDs is AppendItems for content-less items.
func (b *Builder) AppendIDs(section ID, ids ...ID) *Builder {
	return b.AppendItems(Items(ids...), section)
}

// InsertItemsBefore inserts items in front of an existing item.
func (b *Builder) InsertItemsBefore(items []Item, before ID) *Builder {
	return b.insertItems(items, before, 0)
}

// InsertItemsAfter inserts items behind an existing item.
func (b *Builder) InsertItemsAfter(items []Item, after ID) *Builder {
	return b.insertItems(items, after, 1)
}

func (b *Builder) insertItems(items []Item, anchor ID, offset int) *Builder {
	p := b.mustItem("insert items anchor", anchor)
	sec := &b.sections[p.Section]
	b.claimItems("insert items", items, sec.ID)
	sec.Items = slices.Insert(sec.Items, p.Item+offset, items...)
	return b
}

// DeleteItems removes items wherever they are.
func (b *Builder) DeleteItems(ids ...ID) *Builder {
	for _, id := range ids {
		p := b.mustItem("delete item", id)
		sec := &b.sections[p.Section]
		sec.Items = slices.Delete(sec.Items, p.Item, p.Item+1)
		delete(b.owner, id)
	}
	return b
}

// DeleteAllItems removes every section and item.
func (b *Builder) DeleteAllItems() *Builder {
	b.sections = nil
	clear(b.sectionIDs)
	clear(b.owner)
	return b
}

// MoveItemBefore moves an item in front of another, possibly into another
// section.
func (b *Builder) MoveItemBefore(id, before ID) *Builder {
	return b.moveItem(id, before, 0)
}

// MoveItemAfter moves an item behind another, possibly into another section.
func (b *Builder) MoveItemAfter(id, after ID) *Builder {
	return b.moveItem(id, after, 1)
}

func (b *Builder) moveItem(id, anchor ID, offset int) *Builder {
	from := b.mustItem("move item", id)
	b.mustItem("move item anchor", anchor)
	if id == anchor {
		return b
	}
	src := &b.sections[from.Section]
	it := src.Items[from.Item]
	src.Items = slices.Delete(src.Items, from.Item, from.Item+1)

	to, _ := indexPathOfItem(b.sections, anchor)
	dst := &b.sections[to.Section]
	dst.Items = slices.Insert(dst.Items, to.Item+offset, it)
	b.owner[id] = dst.ID
	return b
}

// UpdateItem replaces the content of an item, marking it for reload.
func (b *Builder) UpdateItem(id ID, content string) *Builder {
	p := b.mustItem("update item", id)
	b.sections[p.Section].Items[p.Item].Content = content
	return b
}

func (b *Builder) claimSections(op string, ids []ID) {
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := b.sectionIDs[id]; dup {
			panic(violation(ErrCodeDuplicateSection, op, id))
		}
		if _, dup := seen[id]; dup {
			panic(violation(ErrCodeDuplicateSection, op, id))
		}
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		b.sectionIDs[id] = struct{}{}
	}
}

func (b *Builder) claimItems(op string, items []Item, section ID) {
	seen := make(map[ID]struct{}, len(items))
	for _, it := range items {
		if _, dup := b.owner[it.ID]; dup {
			panic(violation(ErrCodeDuplicateItem, op, it.ID))
		}
		if _, dup := seen[it.ID]; dup {
			panic(violation(ErrCodeDuplicateItem, op, it.ID))
		}
		seen[it.ID] = struct{}{}
	}
	for _, it := range items {
		b.owner[it.ID] = section
	}
}

func (b *Builder) mustSection(op string, id ID) int {
	at := indexOfSection(b.sections, id)
	if at < 0 {
		panic(violation(ErrCodeSectionNotFound, op, id))
	}
	return at
}

func (b *Builder) mustItem(op string, id ID) IndexPath {
	if _, ok := b.owner[id]; !ok {
		panic(violation(ErrCodeItemNotFound, op, id))
	}
	p, _ := indexPathOfItem(b.sections, id)
	return p
}

func emptySections(ids []ID) []Section {
	out := make([]Section, len(ids))
	for i, id := range ids {
		out[i] = Section{ID: id}
	}
	return out
}
