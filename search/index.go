package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// Match is one ranked parent and the child that scored best for it.
type Match struct {
	ParentID string
	ChildID  string
	Score    float32
	Distance float32
}

// Index is an exact, brute-force vector index over one kind of stored
// vector. Nothing is cached between queries.
type Index struct {
	source storage.VectorSource
	kind   storage.VectorKind
	logger *slog.Logger

	mu   sync.RWMutex
	dims int
}

// IndexOption configures an Index.
type IndexOption func(*Index) error

// WithIndexLogger sets a custom logger.
// Default is slog.Default().
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger.With("component", "index", "kind", idx.kind.String())
		return nil
	}
}

// NewIndex creates an index over the vectors of the given kind.
// Initialize must be called before Search.
func NewIndex(source storage.VectorSource, kind storage.VectorKind, opts ...IndexOption) (*Index, error) {
	if source == nil {
		return nil, ErrVectorSourceRequired
	}
	idx := &Index{
		source: source,
		kind:   kind,
		logger: slog.Default().With("component", "index", "kind", kind.String()),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Initialize fixes the dimensionality of the index. Calling it again with
// the same value is a no-op.
func (idx *Index) Initialize(dimensions int) error {
	if dimensions < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDimensions, dimensions)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	switch idx.dims {
	case 0:
		idx.dims = dimensions
		return nil
	case dimensions:
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrAlreadyInitialized,
			&core.DimensionMismatchError{Expected: idx.dims, Actual: dimensions})
	}
}

// Dimensions returns the initialized dimensionality, or 0.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dims
}

// Search returns up to limit parents ranked by the highest similarity of
// any of their children to query. Ties are ordered by parent id.
func (idx *Index) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	dims := idx.Dimensions()
	if dims == 0 {
		return nil, core.ErrUninitialized
	}
	if len(query) != dims {
		return nil, &core.DimensionMismatchError{Expected: dims, Actual: len(query)}
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	stored, err := idx.source.LoadVectors(ctx, idx.kind)
	if err != nil {
		return nil, fmt.Errorf("loading %s vectors: %w", idx.kind, err)
	}

	best := make(map[string]*Match)
	for _, sv := range stored {
		if len(sv.Vector) != dims {
			return nil, fmt.Errorf("stored %s %s: %w", idx.kind, sv.ChildID,
				&core.DimensionMismatchError{Expected: dims, Actual: len(sv.Vector)})
		}
		score := CosineSimilarity(query, sv.Vector)
		m, ok := best[sv.ParentID]
		if !ok {
			best[sv.ParentID] = &Match{ParentID: sv.ParentID, ChildID: sv.ChildID, Score: score}
			continue
		}
		if score > m.Score {
			m.Score = score
			m.ChildID = sv.ChildID
		}
	}

	matches := make([]Match, 0, len(best))
	for _, m := range best {
		m.Distance = 1 - m.Score
		matches = append(matches, *m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ParentID < matches[j].ParentID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	idx.logger.Debug("index scan", "vectors", len(stored), "parents", len(best), "returned", len(matches))
	return matches, nil
}

// CosineSimilarity returns dot(a, b) / (|a| * |b|), or 0 when either norm
// is zero. a and b must have the same length.
func CosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
