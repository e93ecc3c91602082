package publish

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diffable/internal/ir"
	"github.com/roach88/diffable/internal/schema"
	"github.com/roach88/diffable/internal/store"
)

func TestObjectPublisher_Events(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	pub := NewObjectPublisher(st)
	defer pub.Close()

	var events []ObjectEvent
	h := pub.Subscribe(ObjectKey{Entity: "todo", ID: "t1"}, func(_ context.Context, ev ObjectEvent) {
		events = append(events, ev)
	})

	_, err := st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)
	_, err = st.Insert(ctx, "todo", "t2", todo("b", "open", 2))
	require.NoError(t, err)
	_, err = st.Update(ctx, "todo", "t1", todo("a2", "done", 1))
	require.NoError(t, err)
	_, err = st.Delete(ctx, "todo", "t1")
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, todo("a", "open", 1), events[0].Attributes)
	assert.Nil(t, events[0].Object)
	assert.Equal(t, int64(3), events[1].Seq)
	assert.Equal(t, ir.String("a2"), events[1].Attributes["title"])
	assert.True(t, events[2].Deleted)
	assert.Nil(t, events[2].Attributes)

	runtime.KeepAlive(h)
}

func TestObjectPublisher_WithSchema(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	pub := NewObjectPublisher(st, todoEntity)
	defer pub.Close()

	var got *schema.Object
	h := pub.Subscribe(ObjectKey{Entity: "todo", ID: "t1"}, func(_ context.Context, ev ObjectEvent) {
		got = ev.Object
	})

	_, err := st.Insert(ctx, "todo", "t1", ir.Object{"title": ir.String("write")})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "write", schema.Get(got, titleField))
	assert.Equal(t, int64(0), schema.Get(got, rankField))
	runtime.KeepAlive(h)
}

func TestObjectPublisher_SchemaMismatch(t *testing.T) {
	st := openStore(t)
	pub := NewObjectPublisher(st, todoEntity)
	defer pub.Close()

	var events []ObjectEvent
	h := pub.Subscribe(ObjectKey{Entity: "todo", ID: "t1"}, func(_ context.Context, ev ObjectEvent) {
		events = append(events, ev)
	})

	_, err := st.Insert(context.Background(), "todo", "t1", ir.Object{"rank": ir.String("high")})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Nil(t, events[0].Object)
	assert.Equal(t, ir.String("high"), events[0].Attributes["rank"])
	runtime.KeepAlive(h)
}

func TestObjectPublisher_Close(t *testing.T) {
	st := openStore(t)
	pub := NewObjectPublisher(st)

	calls := 0
	h := pub.Subscribe(ObjectKey{Entity: "todo", ID: "t1"}, func(context.Context, ObjectEvent) { calls++ })
	pub.Close()

	_, err := st.Insert(context.Background(), "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	runtime.KeepAlive(h)
}

func TestObjectPublisher_Object(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	pub := NewObjectPublisher(st, todoEntity)
	key := ObjectKey{Entity: "todo", ID: "t1"}

	_, err := pub.Object(ctx, key)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)

	ev, err := pub.Object(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, "a", schema.Get(ev.Object, titleField))

	// Cached keys follow store changes without a subscriber.
	_, err = st.Update(ctx, "todo", "t1", todo("b", "open", 1))
	require.NoError(t, err)
	ev, err = pub.Object(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.Seq)
	assert.Equal(t, ir.String("b"), ev.Attributes["title"])

	_, err = st.Delete(ctx, "todo", "t1")
	require.NoError(t, err)
	_, err = pub.Object(ctx, key)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// After Close the cache no longer refreshes.
	_, err = st.Insert(ctx, "todo", "t1", todo("c", "open", 1))
	require.NoError(t, err)
	pub.Close()
	_, err = st.Update(ctx, "todo", "t1", todo("d", "open", 1))
	require.NoError(t, err)
	ev, err = pub.Object(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ir.String("c"), ev.Attributes["title"])
}

func TestObjectPublisher_ObserversGetOwnCopies(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	pub := NewObjectPublisher(st, todoEntity)
	defer pub.Close()
	key := ObjectKey{Entity: "todo", ID: "t1"}

	h1 := pub.Subscribe(key, func(_ context.Context, ev ObjectEvent) {
		ev.Attributes["title"] = ir.String("scribbled")
		schema.Set(ev.Object, rankField, 99)
	})
	var seen ObjectEvent
	h2 := pub.Subscribe(key, func(_ context.Context, ev ObjectEvent) {
		seen = ev
	})

	_, err := st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)

	assert.Equal(t, ir.String("a"), seen.Attributes["title"])
	assert.Equal(t, int64(1), schema.Get(seen.Object, rankField))

	cached, err := pub.Object(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ir.String("a"), cached.Attributes["title"])
	assert.Equal(t, int64(1), schema.Get(cached.Object, rankField))

	runtime.KeepAlive(h1)
	runtime.KeepAlive(h2)
}

func TestSaveAndLoadObject(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	obj := todoEntity.New("t1")
	schema.Set(obj, titleField, "draft")
	schema.Set(obj, cursorField, 9)

	ch, err := SaveObject(ctx, st, obj)
	require.NoError(t, err)
	assert.Equal(t, store.ChangeInsert, ch.Kind)
	_, hasCursor := ch.Attributes["cursor"]
	assert.False(t, hasCursor, "transient fields are not stored")

	schema.Set(obj, titleField, "final")
	ch, err = SaveObject(ctx, st, obj)
	require.NoError(t, err)
	assert.Equal(t, store.ChangeUpdate, ch.Kind)

	loaded, err := LoadObject(ctx, st, todoEntity, "t1")
	require.NoError(t, err)
	assert.Equal(t, "final", schema.Get(loaded, titleField))
	assert.Equal(t, "open", schema.Get(loaded, statusField))
	assert.Equal(t, int64(0), schema.Get(loaded, cursorField))

	_, err = LoadObject(ctx, st, todoEntity, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
