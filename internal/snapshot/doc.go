// Package snapshot models the desired state of a sectioned list: ordered
// sections, each holding ordered items, every section and item carrying a
// stable identifier.
//
// A Snapshot is a value. The only way to change one is through a Builder,
// and Build hands out a deep copy, so a Snapshot that has been published to
// a coordinator can never be edited in place.
//
// INVARIANTS:
//   - section identifiers are unique within a snapshot
//   - item identifiers are unique across the whole snapshot
//
// Breaking an invariant from code is a programmer error and panics with a
// *ContractError. Untrusted documents go through FromSections or Decode,
// which report the same error as a value.
package snapshot
