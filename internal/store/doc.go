// Package store is the SQLite-backed object store that list producers read
// from, plus the log of completed coordinator applies.
//
// # Objects and changes
//
// Objects are JSON attribute sets keyed by (entity, id). Every write runs in
// one transaction that also appends a row to the change log, stamped with
// the next store seq. Observers registered with Observe are called
// synchronously after the commit, in registration order.
//
// # Deterministic reads
//
// Fetch orders by the caller's sort keys (json_extract over the attribute
// document) and then by id COLLATE BINARY, so equal sort values never leave
// the order to SQLite. A fetch without sort keys is refused: list snapshots
// built from an unordered query would diff differently from run to run.
// Change and apply reads are ordered by seq.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000ms
//   - one open connection, since SQLite has a single writer
package store
