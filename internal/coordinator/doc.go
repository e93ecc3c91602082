// Package coordinator owns the current snapshot of a list and keeps a view
// in step with it.
//
// Producers hand finished snapshots to Coordinator.Apply from any goroutine.
// Every apply is serialized through a dispatch.Serial onto the designated
// context, diffed against the sections the view last reported, and replayed
// stage by stage through a PerformUpdates callback. The coordinator never
// touches a concrete view: it only sequences and diffs.
//
// Query methods read the settled section list, which is published only once
// a replay has finished, so they never observe an intermediate stage.
package coordinator
