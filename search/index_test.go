package search

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVectors implements storage.VectorSource for testing
type fakeVectors struct {
	mu      sync.Mutex
	vectors map[storage.VectorKind][]storage.StoredVector
	err     error
	loads   int
}

func (f *fakeVectors) add(kind storage.VectorKind, parent, child string, v ...float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vectors == nil {
		f.vectors = make(map[storage.VectorKind][]storage.StoredVector)
	}
	f.vectors[kind] = append(f.vectors[kind], storage.StoredVector{ParentID: parent, ChildID: child, Vector: v})
}

func (f *fakeVectors) LoadVectors(ctx context.Context, kind storage.VectorKind) ([]storage.StoredVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return append([]storage.StoredVector(nil), f.vectors[kind]...), nil
}

func newTestIndex(t *testing.T, source storage.VectorSource, dims int) *Index {
	t.Helper()
	idx, err := NewIndex(source, storage.VectorKindChunk)
	require.NoError(t, err)
	require.NoError(t, idx.Initialize(dims))
	return idx
}

func TestNewIndex(t *testing.T) {
	_, err := NewIndex(nil, storage.VectorKindChunk)
	assert.ErrorIs(t, err, ErrVectorSourceRequired)

	idx, err := NewIndex(&fakeVectors{}, storage.VectorKindArtifact, WithIndexLogger(nil))
	require.NoError(t, err)
	assert.Zero(t, idx.Dimensions())
}

func TestIndex_Initialize(t *testing.T) {
	idx, err := NewIndex(&fakeVectors{}, storage.VectorKindChunk)
	require.NoError(t, err)

	assert.ErrorIs(t, idx.Initialize(0), ErrInvalidDimensions)
	require.NoError(t, idx.Initialize(3))
	require.NoError(t, idx.Initialize(3), "same value is a no-op")

	err = idx.Initialize(4)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	var mismatch *core.DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 4, mismatch.Actual)
	assert.Equal(t, 3, idx.Dimensions())
}

func TestIndex_SearchUninitialized(t *testing.T) {
	idx, err := NewIndex(&fakeVectors{}, storage.VectorKindChunk)
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, core.ErrUninitialized)
}

func TestIndex_SearchQueryDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, &fakeVectors{}, 3)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	var mismatch *core.DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)
}

func TestIndex_SearchInvalidLimit(t *testing.T) {
	idx := newTestIndex(t, &fakeVectors{}, 2)
	_, err := idx.Search(context.Background(), []float32{1, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestIndex_SearchEmptyStore(t *testing.T) {
	idx := newTestIndex(t, &fakeVectors{}, 2)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestIndex_SearchMaxAggregation(t *testing.T) {
	source := &fakeVectors{}
	// A has one exact child and one orthogonal child; averaging would rank
	// it below B.
	source.add(storage.VectorKindChunk, "A", "1", 1, 0)
	source.add(storage.VectorKindChunk, "A", "2", 0, 1)
	source.add(storage.VectorKindChunk, "B", "3", 0.7, 0.7)
	idx := newTestIndex(t, source, 2)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "A", matches[0].ParentID)
	assert.Equal(t, "1", matches[0].ChildID, "best child is remembered")
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)

	assert.Equal(t, "B", matches[1].ParentID)
	assert.InDelta(t, 1/math.Sqrt2, matches[1].Score, 1e-6)
	assert.InDelta(t, 1-1/math.Sqrt2, matches[1].Distance, 1e-6)
}

func TestIndex_SearchOrderingAndLimit(t *testing.T) {
	source := &fakeVectors{}
	source.add(storage.VectorKindChunk, "c", "1", 1, 1)
	source.add(storage.VectorKindChunk, "b", "2", 1, 1)
	source.add(storage.VectorKindChunk, "a", "3", 1, 1)
	source.add(storage.VectorKindChunk, "d", "4", 1, 0)
	source.add(storage.VectorKindChunk, "e", "5", -1, -1)
	idx := newTestIndex(t, source, 2)

	matches, err := idx.Search(context.Background(), []float32{1, 1}, 4)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	ids := []string{matches[0].ParentID, matches[1].ParentID, matches[2].ParentID, matches[3].ParentID}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids, "ties break by parent id")
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestIndex_SearchZeroNorm(t *testing.T) {
	source := &fakeVectors{}
	source.add(storage.VectorKindChunk, "zero", "1", 0, 0)
	idx := newTestIndex(t, source, 2)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Zero(t, matches[0].Score)
	assert.Equal(t, float32(1), matches[0].Distance)

	matches, err = idx.Search(context.Background(), []float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Zero(t, matches[0].Score)
}

func TestIndex_SearchStoredDimensionMismatch(t *testing.T) {
	source := &fakeVectors{}
	source.add(storage.VectorKindChunk, "ok", "1", 1, 0)
	source.add(storage.VectorKindChunk, "bad", "2", 1, 0, 0)
	idx := newTestIndex(t, source, 2)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	var mismatch *core.DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 3, mismatch.Actual)
}

func TestIndex_SearchSourceError(t *testing.T) {
	idx := newTestIndex(t, &fakeVectors{err: storage.ErrStorageClosed}, 2)
	_, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestIndex_SearchScansEveryQuery(t *testing.T) {
	source := &fakeVectors{}
	source.add(storage.VectorKindChunk, "a", "1", 0, 1)
	idx := newTestIndex(t, source, 2)
	ctx := context.Background()

	matches, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	source.add(storage.VectorKindChunk, "b", "2", 1, 0)
	matches, err = idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].ParentID)
	assert.Equal(t, 2, source.loads)
}

func TestIndex_SearchOnlyItsKind(t *testing.T) {
	source := &fakeVectors{}
	source.add(storage.VectorKindChunk, "chunk-parent", "1", 1, 0)
	source.add(storage.VectorKindArtifact, "source:s1", "art-1", 1, 0)

	idx, err := NewIndex(source, storage.VectorKindArtifact)
	require.NoError(t, err)
	require.NoError(t, idx.Initialize(2))

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "source:s1", matches[0].ParentID)
	assert.Equal(t, "art-1", matches[0].ChildID)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
		{"zero left", []float32{0, 0}, []float32{1, 1}, 0},
		{"zero right", []float32{1, 1}, []float32{0, 0}, 0},
		{"empty", []float32{}, []float32{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}
