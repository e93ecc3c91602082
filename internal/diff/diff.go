package diff

import (
	"slices"

	"github.com/roach88/diffable/internal/snapshot"
)

// Diff computes the staged changeset that transforms source into target.
//
// Both lists must satisfy the snapshot invariants (unique section and item
// identifiers). Diff(s, s) is always empty.
func Diff(source, target []snapshot.Section) Changeset {
	targetSections := make(map[snapshot.ID]int, len(target))
	targetItems := make(map[snapshot.ID]snapshot.Item)
	for ti, sec := range target {
		targetSections[sec.ID] = ti
		for _, it := range sec.Items {
			targetItems[it.ID] = it
		}
	}

	var cs Changeset
	emit := func(st Stage) {
		if st.Len() > 0 {
			cs = append(cs, st)
		}
	}
	cur := snapshot.CloneSections(source)

	// 1. Reloads, addressed in the source. Items of sections that are about
	// to be deleted are skipped: they leave with their section.
	reload := Stage{Kind: KindReload, Level: LevelItem}
	for si := range cur {
		if _, ok := targetSections[cur[si].ID]; !ok {
			continue
		}
		for ii, it := range cur[si].Items {
			if t, ok := targetItems[it.ID]; ok && t.Content != it.Content {
				reload.Items = append(reload.Items, snapshot.IndexPath{Section: si, Item: ii})
				cur[si].Items[ii].Content = t.Content
			}
		}
	}
	reload.Data = snapshot.CloneSections(cur)
	emit(reload)

	// 2. Section deletes.
	sectionDelete := Stage{Kind: KindDelete, Level: LevelSection}
	kept := cur[:0:0]
	for si, sec := range cur {
		if _, ok := targetSections[sec.ID]; ok {
			kept = append(kept, sec)
		} else {
			sectionDelete.Sections = append(sectionDelete.Sections, si)
		}
	}
	cur = kept
	sectionDelete.Data = snapshot.CloneSections(cur)
	emit(sectionDelete)

	// 3. Item deletes in surviving sections.
	itemDelete := Stage{Kind: KindDelete, Level: LevelItem}
	for si := range cur {
		items := cur[si].Items[:0:0]
		for ii, it := range cur[si].Items {
			if _, ok := targetItems[it.ID]; ok {
				items = append(items, it)
			} else {
				itemDelete.Items = append(itemDelete.Items, snapshot.IndexPath{Section: si, Item: ii})
			}
		}
		cur[si].Items = items
	}
	itemDelete.Data = snapshot.CloneSections(cur)
	emit(itemDelete)

	// 4. Section moves: every remaining section exists in the target.
	sectionMove := Stage{Kind: KindMove, Level: LevelSection}
	order := make([]int, len(cur))
	for i, sec := range cur {
		order[i] = targetSections[sec.ID]
	}
	byTarget := make([]int, len(cur)) // post index -> pre index
	for i := range byTarget {
		byTarget[i] = i
	}
	slices.SortFunc(byTarget, func(a, b int) int { return order[a] - order[b] })
	stays := stationary(order)
	reordered := make([]snapshot.Section, len(cur))
	for to, from := range byTarget {
		reordered[to] = cur[from]
		if !stays[from] {
			sectionMove.SectionMoves = append(sectionMove.SectionMoves, SectionMove{From: from, To: to})
		}
	}
	cur = reordered
	sectionMove.Data = snapshot.CloneSections(cur)
	emit(sectionMove)

	// 5. Section inserts, empty; their items arrive in stages 6 and 7.
	sectionInsert := Stage{Kind: KindInsert, Level: LevelSection}
	withNew := make([]snapshot.Section, 0, len(target))
	next := 0
	for ti, sec := range target {
		if next < len(cur) && cur[next].ID == sec.ID {
			withNew = append(withNew, cur[next])
			next++
			continue
		}
		withNew = append(withNew, snapshot.Section{ID: sec.ID})
		sectionInsert.Sections = append(sectionInsert.Sections, ti)
	}
	cur = withNew
	sectionInsert.Data = snapshot.CloneSections(cur)
	emit(sectionInsert)

	// 6. Item moves. cur now has the target's sections in target order.
	where := make(map[snapshot.ID]snapshot.IndexPath)
	for si, sec := range cur {
		for ii, it := range sec.Items {
			where[it.ID] = snapshot.IndexPath{Section: si, Item: ii}
		}
	}
	itemMove := Stage{Kind: KindMove, Level: LevelItem}
	placed := make([]snapshot.Section, len(target))
	for ti, sec := range target {
		placed[ti] = snapshot.Section{ID: sec.ID, Items: []snapshot.Item{}}
		var local []int     // positions in placed[ti] of same-section items
		var localFrom []int // their source item index
		for _, it := range sec.Items {
			from, ok := where[it.ID]
			if !ok {
				continue
			}
			if from.Section == ti {
				local = append(local, len(placed[ti].Items))
				localFrom = append(localFrom, from.Item)
			}
			placed[ti].Items = append(placed[ti].Items, cur[from.Section].Items[from.Item])
		}
		keep := stationary(localFrom)
		still := make(map[int]bool, len(local))
		for k, pos := range local {
			if keep[k] {
				still[pos] = true
			}
		}
		for pos, it := range placed[ti].Items {
			if still[pos] {
				continue
			}
			itemMove.ItemMoves = append(itemMove.ItemMoves, ItemMove{
				From: where[it.ID],
				To:   snapshot.IndexPath{Section: ti, Item: pos},
			})
		}
	}
	cur = placed
	itemMove.Data = snapshot.CloneSections(cur)
	emit(itemMove)

	// 7. Item inserts at their target paths.
	itemInsert := Stage{Kind: KindInsert, Level: LevelItem}
	for ti, sec := range target {
		for ii, it := range sec.Items {
			if _, ok := where[it.ID]; !ok {
				itemInsert.Items = append(itemInsert.Items, snapshot.IndexPath{Section: ti, Item: ii})
			}
		}
	}
	itemInsert.Data = snapshot.CloneSections(target)
	emit(itemInsert)

	return cs
}

// stationary marks the elements of seq that belong to one longest strictly
// increasing subsequence. seq holds distinct values. Among equally long
// subsequences the one found by patience sorting (which prefers the
// smallest tail at each length) is chosen, so the result is deterministic.
func stationary(seq []int) []bool {
	keep := make([]bool, len(seq))
	if len(seq) == 0 {
		return keep
	}
	tails := make([]int, 0, len(seq)) // index into seq of the tail of each length
	prev := make([]int, len(seq))
	for i, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		} else {
			prev[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		keep[i] = true
	}
	return keep
}
