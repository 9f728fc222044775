package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/poiesic/recollect/ai/mock"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *embedding.Client {
	t.Helper()
	client, err := embedding.NewClient(mock.NewMockEmbedder().WithDimensions(testDims))
	require.NoError(t, err)
	t.Cleanup(client.Release)
	return client
}

func TestNewSearcher(t *testing.T) {
	store := newTestStore(t)
	client := newTestClient(t)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(store, client)
		require.NoError(t, err)
		assert.Equal(t, testDims, searcher.chunks.Dimensions())
		assert.Equal(t, testDims, searcher.artifacts.Dimensions())
		assert.Equal(t, DefaultWindow, searcher.enricher.Window())
	})

	t.Run("with options", func(t *testing.T) {
		searcher, err := NewSearcher(store, client, WithLogger(slog.Default()), WithWindow(Window{Before: 1}))
		require.NoError(t, err)
		assert.Equal(t, Window{Before: 1}, searcher.enricher.Window())
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(store, client, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher.logger)
	})

	t.Run("negative window", func(t *testing.T) {
		_, err := NewSearcher(store, client, WithWindow(Window{Before: -1}))
		assert.Error(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewSearcher(nil, client)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewSearcher(store, nil)
		assert.Equal(t, ErrClientRequired, err)
	})
}

func TestSearch_EmptyDatabase(t *testing.T) {
	searcher, err := NewSearcher(newTestStore(t), newTestClient(t))
	require.NoError(t, err)

	hits, err := searcher.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestSearch_RanksAndEnriches(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "s1", "good morning", "how do I tune sqlite for writes", "use WAL mode", "thanks")
	seed(t, store, "s2", "what is the weather", "sunny")

	searcher, err := NewSearcher(store, newTestClient(t), WithWindow(Window{Before: 1, After: 1}))
	require.NoError(t, err)

	hits, err := searcher.Search(context.Background(), "how do I tune sqlite for writes", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2, "one hit per source")

	top := hits[0]
	assert.Equal(t, "s1", top.ParentID)
	assert.InDelta(t, 1.0, top.Score, 1e-5)
	assert.Equal(t, "how do I tune sqlite for writes", top.Chunk.Text)
	assert.Equal(t, "how do I tune sqlite for writes", top.Context.Unit.Content)
	assert.Equal(t, []int{0}, positions(top.Context.Previous))
	assert.Equal(t, []int{2}, positions(top.Context.Next))
	assert.Equal(t, "Title of s1", top.Context.Source.Title)
	assert.True(t, top.Verbatim)

	assert.Equal(t, "s2", hits[1].ParentID)
	assert.Less(t, hits[1].Score, top.Score)
	assert.False(t, hits[1].Verbatim)
}

func TestSearch_Limit(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "s1", "alpha")
	seed(t, store, "s2", "bravo")
	seed(t, store, "s3", "charlie")

	searcher, err := NewSearcher(store, newTestClient(t))
	require.NoError(t, err)

	hits, err := searcher.Search(context.Background(), "bravo", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "s2", hits[0].ParentID)
}

func TestSearch_DimensionMismatchWithStore(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "s1", "alpha")

	client, err := embedding.NewClient(mock.NewMockEmbedder().WithDimensions(4))
	require.NoError(t, err)
	defer client.Release()

	searcher, err := NewSearcher(store, client)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "alpha", 5)
	var mismatch *core.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, testDims, mismatch.Actual)
}

func TestSearchArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store, "s1", "alpha")

	require.NoError(t, store.AddArtifacts(ctx,
		&core.Artifact{
			ID: "a1", Kind: core.ArtifactKindLearning, SourceType: core.SourceTypeSource, SourceID: "s1",
			Title: "WAL mode tuning", Vector: mock.Vector("WAL mode tuning", testDims), CreatedAt: testTime,
		},
		&core.Artifact{
			ID: "a2", Kind: core.ArtifactKindLearning, SourceType: core.SourceTypeSource, SourceID: "s1",
			Title: "Weather small talk", Vector: mock.Vector("Weather small talk", testDims), CreatedAt: testTime,
		},
	))

	searcher, err := NewSearcher(store, newTestClient(t))
	require.NoError(t, err)

	hits, err := searcher.SearchArtifacts(ctx, "WAL mode tuning", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1, "artifacts group under their source key")
	assert.Equal(t, "source:s1", hits[0].ParentID)
	assert.Equal(t, "a1", hits[0].Artifact.ID)
	assert.True(t, hits[0].Verbatim)
}

// testMonitor records the stages it observes
type testMonitor struct {
	query    string
	dims     int
	matches  int
	enriched int
	verbatim int
	finished int
}

func (m *testMonitor) Start(query string)              { m.query = query }
func (m *testMonitor) AfterEmbedding(dimensions int)   { m.dims = dimensions }
func (m *testMonitor) AfterIndexSearch(matches []Match) { m.matches = len(matches) }
func (m *testMonitor) AfterEnrichment(_ *Hit)          { m.enriched++ }
func (m *testMonitor) VerbatimHit(_ *Hit)              { m.verbatim++ }
func (m *testMonitor) Finish(hits []*Hit)              { m.finished = len(hits) }

func TestSearchWithMonitor(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "s1", "sqlite write tuning")
	seed(t, store, "s2", "unrelated")

	searcher, err := NewSearcher(store, newTestClient(t))
	require.NoError(t, err)

	monitor := &testMonitor{}
	hits, err := searcher.SearchWithMonitor(context.Background(), "sqlite tuning", 5, monitor)
	require.NoError(t, err)

	assert.Equal(t, "sqlite tuning", monitor.query)
	assert.Equal(t, testDims, monitor.dims)
	assert.Equal(t, 2, monitor.matches)
	assert.Equal(t, 2, monitor.enriched)
	assert.Equal(t, 1, monitor.verbatim)
	assert.Equal(t, len(hits), monitor.finished)
}
