package publish

import (
	"context"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diffable/internal/coordinator"
	"github.com/roach88/diffable/internal/ir"
	"github.com/roach88/diffable/internal/snapshot"
	"github.com/roach88/diffable/internal/store"
	"github.com/roach88/diffable/internal/testutil"
)

func byRank() []store.SortKey {
	return []store.SortKey{{KeyPath: "rank"}}
}

func TestNewListPublisher_Validation(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		spec    FetchSpec
		wantErr error
	}{
		{
			name:    "missing sort",
			spec:    FetchSpec{Entity: "todo"},
			wantErr: ErrMissingSort,
		},
		{
			name: "section key not first",
			spec: FetchSpec{
				Entity:    "todo",
				OrderBy:   []store.SortKey{{KeyPath: "rank"}, {KeyPath: "status"}},
				SectionBy: "status",
			},
			wantErr: ErrSectionKey,
		},
		{
			name:    "unknown key path",
			spec:    FetchSpec{Entity: "todo", OrderBy: []store.SortKey{{KeyPath: "priority"}}, Schema: todoEntity},
			wantErr: ErrUnknownKeyPath,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewListPublisher(ctx, st, tt.spec)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("invalid key path", func(t *testing.T) {
		_, err := NewListPublisher(ctx, st, FetchSpec{Entity: "todo", OrderBy: []store.SortKey{{KeyPath: "rank; DROP"}}})
		assert.Error(t, err)
	})

	t.Run("schema for another entity", func(t *testing.T) {
		_, err := NewListPublisher(ctx, st, FetchSpec{Entity: "note", OrderBy: byRank(), Schema: todoEntity})
		assert.Error(t, err)
	})
}

func TestListPublisher_InitialSnapshot(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "todo", "b", todo("b", "open", 2))
	require.NoError(t, err)
	_, err = st.Insert(ctx, "todo", "a", todo("a", "open", 1))
	require.NoError(t, err)

	pub, err := NewListPublisher(ctx, st, FetchSpec{Entity: "todo", OrderBy: byRank()})
	require.NoError(t, err)
	defer pub.Close()

	snap := pub.Snapshot()
	assert.Equal(t, []snapshot.ID{DefaultSection}, snap.SectionIDs())
	assert.Equal(t, []snapshot.ID{"a", "b"}, snap.ItemIDs())

	item, ok := snap.Item("a")
	require.True(t, ok)
	assert.Equal(t, ir.MustContentHash(todo("a", "open", 1)), item.Content)
}

func TestListPublisher_EmptyList(t *testing.T) {
	st := openStore(t)
	pub, err := NewListPublisher(context.Background(), st, FetchSpec{Entity: "todo", OrderBy: byRank()})
	require.NoError(t, err)
	defer pub.Close()

	assert.Equal(t, []snapshot.ID{DefaultSection}, pub.Snapshot().SectionIDs())
	assert.Equal(t, 0, pub.Snapshot().NumberOfItems())
}

func TestListPublisher_Sections(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	for _, r := range []struct {
		id     string
		status string
		rank   int64
	}{
		{"t1", "open", 2},
		{"t2", "done", 1},
		{"t3", "open", 1},
		{"t4", "done", 3},
	} {
		_, err := st.Insert(ctx, "todo", r.id, todo(r.id, r.status, r.rank))
		require.NoError(t, err)
	}

	pub, err := NewListPublisher(ctx, st, FetchSpec{
		Entity:    "todo",
		OrderBy:   []store.SortKey{{KeyPath: "status"}, {KeyPath: "rank"}},
		SectionBy: "status",
		Schema:    todoEntity,
	})
	require.NoError(t, err)
	defer pub.Close()

	snap := pub.Snapshot()
	assert.Equal(t, []snapshot.ID{"done", "open"}, snap.SectionIDs())
	done, _ := snap.ItemIDsInSection("done")
	open, _ := snap.ItemIDsInSection("open")
	assert.Equal(t, []snapshot.ID{"t2", "t4"}, done)
	assert.Equal(t, []snapshot.ID{"t3", "t1"}, open)
}

func TestListPublisher_Where(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)
	_, err = st.Insert(ctx, "todo", "t2", todo("b", "done", 2))
	require.NoError(t, err)

	pub, err := NewListPublisher(ctx, st, FetchSpec{
		Entity:  "todo",
		OrderBy: byRank(),
		Where: func(rec store.Record) bool {
			return rec.Attributes["status"] == ir.String("open")
		},
	})
	require.NoError(t, err)
	defer pub.Close()

	assert.Equal(t, []snapshot.ID{"t1"}, pub.Snapshot().ItemIDs())
}

func TestListPublisher_NotifiesOnChange(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	pub, err := NewListPublisher(ctx, st, FetchSpec{Entity: "todo", OrderBy: byRank(), Schema: todoEntity})
	require.NoError(t, err)
	defer pub.Close()

	var events []ListEvent
	h := pub.Subscribe(func(_ context.Context, ev ListEvent) {
		events = append(events, ev)
	})

	_, err = st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)
	_, err = st.Insert(ctx, "note", "n1", ir.Object{"rank": ir.Int(1)})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "todo", "t2", todo("b", "open", 0))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, []snapshot.ID{"t1"}, events[0].Snapshot.ItemIDs())
	assert.Equal(t, int64(3), events[1].Seq)
	assert.Equal(t, []snapshot.ID{"t2", "t1"}, events[1].Snapshot.ItemIDs())
	assert.True(t, events[1].Snapshot.Equal(pub.Snapshot()))

	runtime.KeepAlive(h)
}

func TestListPublisher_ConcurrentWritesEndOnLatest(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	pub, err := NewListPublisher(ctx, st, FetchSpec{Entity: "todo", OrderBy: byRank()})
	require.NoError(t, err)
	defer pub.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	var block sync.Once

	var mu sync.Mutex
	var first, second []ListEvent
	h1 := pub.Subscribe(func(_ context.Context, ev ListEvent) {
		mu.Lock()
		first = append(first, ev)
		mu.Unlock()
		block.Do(func() {
			close(entered)
			<-release
		})
	})
	h2 := pub.Subscribe(func(_ context.Context, ev ListEvent) {
		mu.Lock()
		second = append(second, ev)
		mu.Unlock()
	})

	// The first observer holds up the t1 notification while t2 is written
	// from another goroutine.
	done := make(chan error, 1)
	go func() {
		_, err := st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
		done <- err
	}()
	<-entered
	_, err = st.Insert(ctx, "todo", "t2", todo("b", "open", 0))
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	latest := pub.Snapshot()
	assert.Equal(t, []snapshot.ID{"t2", "t1"}, latest.ItemIDs())

	mu.Lock()
	defer mu.Unlock()
	for name, events := range map[string][]ListEvent{"first": first, "second": second} {
		require.NotEmpty(t, events, name)
		last := events[len(events)-1]
		assert.True(t, last.Snapshot.Equal(latest), "%s observer ends on %v", name, last.Snapshot.ItemIDs())
		assert.Equal(t, int64(2), last.Seq, name)
		for i := 1; i < len(events); i++ {
			assert.Greater(t, events[i].Seq, events[i-1].Seq, name)
		}
	}

	runtime.KeepAlive(h1)
	runtime.KeepAlive(h2)
}

func TestListPublisher_TransientChangeIsNotAReload(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)

	pub, err := NewListPublisher(ctx, st, FetchSpec{Entity: "todo", OrderBy: byRank(), Schema: todoEntity})
	require.NoError(t, err)
	defer pub.Close()

	calls := 0
	h := pub.Subscribe(func(context.Context, ListEvent) { calls++ })

	withCursor := todo("a", "open", 1)
	withCursor["cursor"] = ir.Int(4)
	_, err = st.Update(ctx, "todo", "t1", withCursor)
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	_, err = st.Update(ctx, "todo", "t1", todo("renamed", "open", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	runtime.KeepAlive(h)
}

func TestListPublisher_Refresh(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	pub, err := NewListPublisher(ctx, st, FetchSpec{Entity: "todo", OrderBy: byRank()})
	require.NoError(t, err)
	pub.Close()

	_, err = st.Insert(ctx, "todo", "t1", todo("a", "open", 1))
	require.NoError(t, err)
	assert.Equal(t, 0, pub.Snapshot().NumberOfItems())

	require.NoError(t, pub.Refresh(ctx))
	assert.Equal(t, []snapshot.ID{"t1"}, pub.Snapshot().ItemIDs())
}

func TestListPublisher_Drive(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	pub, err := NewListPublisher(ctx, st, FetchSpec{
		Entity:    "todo",
		OrderBy:   []store.SortKey{{KeyPath: "status"}, {KeyPath: "rank"}},
		SectionBy: "status",
	})
	require.NoError(t, err)
	defer pub.Close()

	c := coordinator.New(testutil.StartSerial(t))
	view := coordinator.NewRecorder(nil)
	h := pub.Drive(c, view, true)

	_, err = st.Insert(ctx, "todo", "t1", todo("a", "open", 2))
	require.NoError(t, err)
	_, err = st.Insert(ctx, "todo", "t2", todo("b", "open", 1))
	require.NoError(t, err)
	_, err = st.Update(ctx, "todo", "t1", todo("a", "done", 2))
	require.NoError(t, err)
	require.NoError(t, c.Wait(ctx))

	want := pub.Snapshot()
	assert.Equal(t, []snapshot.ID{"done", "open"}, want.SectionIDs())
	assert.True(t, want.Equal(c.Snapshot()))
	assert.True(t, snapshot.SectionsEqual(want.Sections(), view.Sections()))
	assert.True(t, snapshot.SectionsEqual(want.Sections(), c.Sections()))

	runtime.KeepAlive(h)
}
