// Package harness runs YAML scenarios through a real coordinator.
//
// # Scenario Format
//
//	name: swap_and_insert
//	description: "Items swap places and one is appended"
//	view: recorder        # or "none"
//	steps:
//	  - snapshot: "s1: a, b"
//	  - snapshot: "s1: b, a, c"
//	    animated: false
//	    expect:
//	      stages: ["move item", "insert item"]
//	      counts: { item_moved: 1, item_inserted: 1 }
//	      sections: "s1: b, a, c"
//	assertions:
//	  - type: apply_count
//	    count: 2
//
// A snapshot is either the compact notation of testutil.ParseSections or a
// document accepted by snapshot.Decode.
//
// With a store block the scenario drives a publish.ListPublisher instead:
// steps carry store operations and every list change is applied to the
// coordinator.
//
//	store:
//	  entity: todo
//	  order_by: [status, -rank]
//	  section_by: status
//	steps:
//	  - ops:
//	      - insert: { id: t1, attributes: { status: open, rank: 1 } }
//	      - delete: { id: t2 }
//
// # Assertion Types
//
//   - apply_count: number of applies in the trace
//   - final_sections: the coordinator's settled sections
//   - transactions: non-animated transactions seen by the recorder
//   - all_settled: every apply left the view on its snapshot
//   - stage_count: stages of the given name ("insert item") over all applies
//
// # Deterministic Testing
//
// Scenarios run on a fresh executor with a logical clock starting at 1,
// apply IDs "apply-0001", ... and an in-memory store, so traces are
// byte-identical across runs and can be compared with golden files.
package harness
