// Package diff computes the staged changeset that turns one sectioned list
// into another.
//
// A Changeset is an ordered list of stages. Each stage holds exactly one kind
// of edit (delete, insert, move or reload) at exactly one level (section or
// item), so a list view can apply it as one conflict-free batch update.
// Stages are emitted in a fixed order and empty stages are omitted:
//
//  1. item reloads        (source paths)
//  2. section deletes     (source indices)
//  3. item deletes        (paths after stage 2)
//  4. section moves       (surviving sections into target order)
//  5. section inserts     (target indices, inserted empty)
//  6. item moves          (into target section and relative order)
//  7. item inserts        (target paths)
//
// Within a stage, deletes, reloads and move sources address the state before
// the stage; inserts and move destinations address the state after it.
// Stage.Data is that after-state.
//
// Moves are minimal: among the sections (and, per section, among the items
// staying in that section) the longest increasing subsequence of source
// positions stays put and everything else moves. Items that change section
// are always moves, unless their source section is deleted, in which case
// they leave with it and come back as inserts.
//
// The result depends only on the order of the inputs, never on map
// iteration, so Diff is deterministic.
package diff
