// Package testutil holds deterministic helpers shared by tests and the
// scenario harness: a sequential apply ID generator, an executor runner
// and a compact notation for section fixtures.
package testutil
