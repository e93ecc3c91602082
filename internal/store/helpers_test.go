package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/diffable/internal/ir"
)

// createTestStore opens a store in a temp dir that is closed with the test.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func todo(title string, rank int64) ir.Object {
	return ir.Object{"title": ir.String(title), "rank": ir.Int(rank)}
}
