package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/snapshot"
	"github.com/roach88/diffable/internal/testutil"
)

func TestRecorder_AppliesStagesByIndex(t *testing.T) {
	from := testutil.MustSections("s1: a, b, c")
	to := testutil.MustSections("s1: c, a | s2: d")
	rec := NewRecorder(from)

	set := func([]snapshot.Section) {}
	ReplayStages(rec)(context.Background(), rec, diff.Diff(from, to), set)

	assert.True(t, snapshot.SectionsEqual(to, rec.Sections()))
	assert.NotEmpty(t, rec.Stages())
}

func TestRecorder_RejectsBadIndices(t *testing.T) {
	rec := NewRecorder(testutil.MustSections("s1: a"))
	err := rec.ApplyStage(context.Background(), diff.Stage{
		Kind:  diff.KindDelete,
		Level: diff.LevelItem,
		Items: []snapshot.IndexPath{{Section: 0, Item: 3}},
	})
	require.Error(t, err)
	assert.Empty(t, rec.Stages())
}

func TestRecorder_Transactions(t *testing.T) {
	rec := NewRecorder(nil)
	st := diff.Stage{Kind: diff.KindInsert, Level: diff.LevelSection, Sections: []int{0},
		Data: testutil.MustSections("s1:")}

	rec.WithoutAnimation(func() {
		require.NoError(t, rec.ApplyStage(context.Background(), st))
	})
	assert.Equal(t, 1, rec.Transactions())
	require.Len(t, rec.Stages(), 1)
	assert.Equal(t, 1, rec.Stages()[0].Transaction)

	rec.Reset()
	assert.Equal(t, 0, rec.Transactions())
	assert.Empty(t, rec.Stages())
	assert.Len(t, rec.Sections(), 1, "reset keeps what the view shows")
}
