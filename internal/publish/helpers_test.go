package publish

import (
	"path/filepath"
	"testing"

	"github.com/roach88/diffable/internal/ir"
	"github.com/roach88/diffable/internal/schema"
	"github.com/roach88/diffable/internal/store"
)

var (
	titleField  = &schema.Field[string]{Key: "title", Codec: schema.StringCodec{}}
	statusField = &schema.Field[string]{Key: "status", Default: "open", Codec: schema.StringCodec{}}
	rankField   = &schema.Field[int64]{Key: "rank", Codec: schema.IntCodec{}}
	cursorField = &schema.Field[int64]{Key: "cursor", Transient: true, Codec: schema.IntCodec{}}

	todoEntity = schema.NewEntity("todo", titleField, statusField, rankField, cursorField)
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "publish.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func todo(title, status string, rank int64) ir.Object {
	return ir.Object{
		"title":  ir.String(title),
		"status": ir.String(status),
		"rank":   ir.Int(rank),
	}
}
