package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/recollect/ai/mock"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 16

var testTime = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seed stores a source whose units hold the given contents, one chunk per
// unit, embedded with mock.Vector.
func seed(t *testing.T, store storage.Store, sourceID string, contents ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.AddSources(ctx, &core.Source{
		ID:        sourceID,
		Kind:      core.SourceKindConversation,
		Title:     "Title of " + sourceID,
		Summary:   "Summary of " + sourceID,
		CreatedAt: testTime,
		UpdatedAt: testTime.Add(time.Hour),
	}))
	for i, content := range contents {
		require.NoError(t, store.AddUnit(ctx, &core.Unit{
			ID:        fmt.Sprintf("%s-u%d", sourceID, i),
			SourceID:  sourceID,
			Position:  i,
			Sender:    core.SenderHuman,
			Content:   content,
			CreatedAt: testTime,
			Chunks: []*core.Chunk{{
				Index:     0,
				Text:      content,
				CharCount: len(content),
				Vector:    mock.Vector(content, testDims),
			}},
		}))
	}
}

func positions(units []*core.Unit) []int {
	out := make([]int, len(units))
	for i, u := range units {
		out[i] = u.Position
	}
	return out
}

func TestNeighborRange(t *testing.T) {
	tests := []struct {
		name             string
		position, n      int
		before           bool
		wantFrom, wantTo int
	}{
		{"before in middle", 5, 2, true, 3, 4},
		{"before clamped at zero", 1, 3, true, 0, 0},
		{"before at start is empty", 0, 2, true, 0, -1},
		{"before zero window is empty", 4, 0, true, 4, 3},
		{"after", 5, 2, false, 6, 7},
		{"after zero window is empty", 5, 0, false, 6, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := NeighborRange(tt.position, tt.n, tt.before)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestNewEnricher(t *testing.T) {
	store := newTestStore(t)

	_, err := NewEnricher(nil, store, DefaultWindow)
	assert.ErrorIs(t, err, ErrStoreRequired)

	e, err := NewEnricher(store, store, Window{Before: -1, After: 3})
	require.NoError(t, err)
	assert.Equal(t, Window{Before: 0, After: 3}, e.Window())
}

func TestEnricher_Enrich(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store, "s1", "zero", "one", "two", "three", "four", "five")

	e, err := NewEnricher(store, store, Window{Before: 2, After: 2})
	require.NoError(t, err)

	t.Run("middle", func(t *testing.T) {
		c, err := e.Enrich(ctx, "s1", 3)
		require.NoError(t, err)
		assert.Equal(t, "three", c.Unit.Content)
		assert.Equal(t, []int{1, 2}, positions(c.Previous))
		assert.Equal(t, []int{4, 5}, positions(c.Next))
		assert.Equal(t, "Title of s1", c.Source.Title)
		assert.Equal(t, "Summary of s1", c.Source.Summary)
		assert.Equal(t, testTime, c.Source.CreatedAt)
		assert.Equal(t, testTime.Add(time.Hour), c.Source.UpdatedAt)
	})

	t.Run("first unit", func(t *testing.T) {
		c, err := e.Enrich(ctx, "s1", 0)
		require.NoError(t, err)
		assert.NotNil(t, c.Previous)
		assert.Empty(t, c.Previous)
		assert.Equal(t, []int{1, 2}, positions(c.Next))
	})

	t.Run("near the start", func(t *testing.T) {
		c, err := e.Enrich(ctx, "s1", 1)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, positions(c.Previous))
	})

	t.Run("last unit", func(t *testing.T) {
		c, err := e.Enrich(ctx, "s1", 5)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 4}, positions(c.Previous))
		assert.Empty(t, c.Next)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := e.Enrich(ctx, "nope", 0)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("missing position", func(t *testing.T) {
		_, err := e.Enrich(ctx, "s1", 42)
		var nf *core.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "unit", nf.Kind)
	})
}

func TestEnricher_ZeroWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store, "s1", "zero", "one", "two")

	e, err := NewEnricher(store, store, Window{})
	require.NoError(t, err)

	c, err := e.Enrich(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, "one", c.Unit.Content)
	assert.Empty(t, c.Previous)
	assert.Empty(t, c.Next)
}
