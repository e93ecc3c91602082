package diff

import (
	"fmt"
	"slices"

	"github.com/roach88/diffable/internal/snapshot"
)

// Apply replays the changeset on sections, stage by stage, the way a list
// view would. It only uses the edit indices; inserted and reloaded items take
// their content from Stage.Data.
func (c Changeset) Apply(sections []snapshot.Section) ([]snapshot.Section, error) {
	cur := snapshot.CloneSections(sections)
	for i, st := range c {
		next, err := st.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s %s): %w", i, st.Kind, st.Level, err)
		}
		cur = next
	}
	return cur, nil
}

// Apply applies a single stage to sections and returns the new list. The
// input is not modified.
func (s Stage) Apply(sections []snapshot.Section) ([]snapshot.Section, error) {
	cur := snapshot.CloneSections(sections)
	switch {
	case s.Kind == KindReload && s.Level == LevelItem:
		return applyItemReload(cur, s)
	case s.Kind == KindDelete && s.Level == LevelSection:
		return applySectionDelete(cur, s.Sections)
	case s.Kind == KindDelete && s.Level == LevelItem:
		return applyItemDelete(cur, s.Items)
	case s.Kind == KindMove && s.Level == LevelSection:
		return applySectionMove(cur, s.SectionMoves)
	case s.Kind == KindInsert && s.Level == LevelSection:
		return applySectionInsert(cur, s)
	case s.Kind == KindMove && s.Level == LevelItem:
		return applyItemMove(cur, s.ItemMoves)
	case s.Kind == KindInsert && s.Level == LevelItem:
		return applyItemInsert(cur, s)
	default:
		return nil, fmt.Errorf("unsupported stage %s %s", s.Kind, s.Level)
	}
}

func applyItemReload(cur []snapshot.Section, s Stage) ([]snapshot.Section, error) {
	for _, p := range s.Items {
		if !validPath(cur, p) || !validPath(s.Data, p) {
			return nil, fmt.Errorf("reload path %v out of range", p)
		}
		if cur[p.Section].Items[p.Item].ID != s.Data[p.Section].Items[p.Item].ID {
			return nil, fmt.Errorf("reload path %v changes identity", p)
		}
		cur[p.Section].Items[p.Item] = s.Data[p.Section].Items[p.Item]
	}
	return cur, nil
}

func applySectionDelete(cur []snapshot.Section, indices []int) ([]snapshot.Section, error) {
	for k := len(indices) - 1; k >= 0; k-- {
		idx := indices[k]
		if idx < 0 || idx >= len(cur) {
			return nil, fmt.Errorf("section delete index %d out of range", idx)
		}
		cur = slices.Delete(cur, idx, idx+1)
	}
	return cur, nil
}

func applyItemDelete(cur []snapshot.Section, paths []snapshot.IndexPath) ([]snapshot.Section, error) {
	for k := len(paths) - 1; k >= 0; k-- {
		p := paths[k]
		if !validPath(cur, p) {
			return nil, fmt.Errorf("item delete path %v out of range", p)
		}
		cur[p.Section].Items = slices.Delete(cur[p.Section].Items, p.Item, p.Item+1)
	}
	return cur, nil
}

func applySectionMove(cur []snapshot.Section, moves []SectionMove) ([]snapshot.Section, error) {
	moving := make(map[int]snapshot.Section, len(moves))
	for _, m := range moves {
		if m.From < 0 || m.From >= len(cur) {
			return nil, fmt.Errorf("section move source %d out of range", m.From)
		}
		moving[m.From] = cur[m.From]
	}
	rest := make([]snapshot.Section, 0, len(cur))
	for i, sec := range cur {
		if _, ok := moving[i]; !ok {
			rest = append(rest, sec)
		}
	}
	byDest := slices.Clone(moves)
	slices.SortFunc(byDest, func(a, b SectionMove) int { return a.To - b.To })
	for _, m := range byDest {
		if m.To < 0 || m.To > len(rest) {
			return nil, fmt.Errorf("section move destination %d out of range", m.To)
		}
		rest = slices.Insert(rest, m.To, moving[m.From])
	}
	return rest, nil
}

func applySectionInsert(cur []snapshot.Section, s Stage) ([]snapshot.Section, error) {
	for _, idx := range s.Sections {
		if idx < 0 || idx > len(cur) || idx >= len(s.Data) {
			return nil, fmt.Errorf("section insert index %d out of range", idx)
		}
		sec := s.Data[idx]
		cur = slices.Insert(cur, idx, snapshot.Section{ID: sec.ID, Items: slices.Clone(sec.Items)})
	}
	return cur, nil
}

func applyItemMove(cur []snapshot.Section, moves []ItemMove) ([]snapshot.Section, error) {
	moving := make(map[snapshot.IndexPath]snapshot.Item, len(moves))
	for _, m := range moves {
		if !validPath(cur, m.From) {
			return nil, fmt.Errorf("item move source %v out of range", m.From)
		}
		moving[m.From] = cur[m.From.Section].Items[m.From.Item]
	}
	for si := range cur {
		items := cur[si].Items[:0:0]
		for ii, it := range cur[si].Items {
			if _, ok := moving[snapshot.IndexPath{Section: si, Item: ii}]; !ok {
				items = append(items, it)
			}
		}
		cur[si].Items = items
	}
	byDest := slices.Clone(moves)
	slices.SortFunc(byDest, func(a, b ItemMove) int { return comparePaths(a.To, b.To) })
	for _, m := range byDest {
		if m.To.Section < 0 || m.To.Section >= len(cur) || m.To.Item < 0 || m.To.Item > len(cur[m.To.Section].Items) {
			return nil, fmt.Errorf("item move destination %v out of range", m.To)
		}
		sec := &cur[m.To.Section]
		sec.Items = slices.Insert(sec.Items, m.To.Item, moving[m.From])
	}
	return cur, nil
}

func applyItemInsert(cur []snapshot.Section, s Stage) ([]snapshot.Section, error) {
	for _, p := range s.Items {
		if p.Section < 0 || p.Section >= len(cur) || p.Item < 0 || p.Item > len(cur[p.Section].Items) {
			return nil, fmt.Errorf("item insert path %v out of range", p)
		}
		if !validPath(s.Data, p) {
			return nil, fmt.Errorf("item insert path %v missing from stage data", p)
		}
		sec := &cur[p.Section]
		sec.Items = slices.Insert(sec.Items, p.Item, s.Data[p.Section].Items[p.Item])
	}
	return cur, nil
}

func validPath(sections []snapshot.Section, p snapshot.IndexPath) bool {
	return p.Section >= 0 && p.Section < len(sections) &&
		p.Item >= 0 && p.Item < len(sections[p.Section].Items)
}

func comparePaths(a, b snapshot.IndexPath) int {
	if a.Section != b.Section {
		return a.Section - b.Section
	}
	return a.Item - b.Item
}
