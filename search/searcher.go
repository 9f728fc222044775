package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/poiesic/recollect/storage"
)

// Hit is a ranked source with the chunk that matched and its surrounding
// units.
type Hit struct {
	Match
	Chunk   *core.Chunk
	Context *Context
	// Verbatim is set when the matched unit contains every significant
	// query word.
	Verbatim bool
}

// ArtifactHit is a ranked artifact group with its best-scoring artifact.
type ArtifactHit struct {
	Match
	Artifact *core.Artifact
	Verbatim bool
}

// Searcher answers text queries over stored chunks and artifacts.
type Searcher struct {
	store     storage.Store
	client    *embedding.Client
	chunks    *Index
	artifacts *Index
	enricher  *Enricher
	window    Window
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithWindow sets how many neighboring units accompany each hit.
// Default is DefaultWindow.
func WithWindow(window Window) Option {
	return func(s *Searcher) error {
		if window.Before < 0 || window.After < 0 {
			return fmt.Errorf("window sizes must not be negative: %+v", window)
		}
		s.window = window
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// NewSearcher creates a new searcher. Both indexes are initialized with the
// client's dimensionality.
func NewSearcher(store storage.Store, client *embedding.Client, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}

	s := &Searcher{
		store:  store,
		client: client,
		window: DefaultWindow,
		logger: slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var err error
	if s.chunks, err = s.newIndex(storage.VectorKindChunk); err != nil {
		return nil, err
	}
	if s.artifacts, err = s.newIndex(storage.VectorKindArtifact); err != nil {
		return nil, err
	}
	if s.enricher, err = NewEnricher(store, store, s.window); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Searcher) newIndex(kind storage.VectorKind) (*Index, error) {
	idx, err := NewIndex(s.store, kind, WithIndexLogger(s.logger))
	if err != nil {
		return nil, err
	}
	if err := idx.Initialize(s.client.Dimensions()); err != nil {
		return nil, err
	}
	return idx, nil
}

// Search finds the sources most similar to query.
// Returns up to limit hits, ranked by the score of each source's best chunk.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	return s.SearchWithMonitor(ctx, query, limit, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, limit int, monitor SearchMonitor) ([]*Hit, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query)

	vector, err := s.client.Embed(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vector))

	matches, err := s.chunks.Search(ctx, vector, limit)
	if err != nil {
		s.logger.Error("error searching chunks", "err", err)
		return nil, err
	}
	monitor.AfterIndexSearch(matches)

	hits := make([]*Hit, 0, len(matches))
	for _, m := range matches {
		hit, err := s.enrich(ctx, m, query)
		if err != nil {
			s.logger.Error("error enriching match", "source", m.ParentID, "chunk", m.ChildID, "err", err)
			return nil, err
		}
		monitor.AfterEnrichment(hit)
		if hit.Verbatim {
			monitor.VerbatimHit(hit)
		}
		hits = append(hits, hit)
	}

	monitor.Finish(hits)
	return hits, nil
}

func (s *Searcher) enrich(ctx context.Context, m Match, query string) (*Hit, error) {
	chunkID, err := strconv.ParseInt(m.ChildID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("chunk id %q: %w", m.ChildID, err)
	}
	chunk, err := s.store.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	unit, err := s.store.GetUnit(ctx, chunk.SourceID, chunk.UnitID)
	if err != nil {
		return nil, err
	}
	neighborhood, err := s.enricher.Enrich(ctx, unit.SourceID, unit.Position)
	if err != nil {
		return nil, err
	}
	return &Hit{
		Match:    m,
		Chunk:    chunk,
		Context:  neighborhood,
		Verbatim: isVerbatim(unit.Content, query),
	}, nil
}

// SearchArtifacts finds the artifact groups most similar to query. Each
// hit carries the best-scoring artifact of its group.
func (s *Searcher) SearchArtifacts(ctx context.Context, query string, limit int) ([]*ArtifactHit, error) {
	vector, err := s.client.Embed(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.artifacts.Search(ctx, vector, limit)
	if err != nil {
		s.logger.Error("error searching artifacts", "err", err)
		return nil, err
	}

	hits := make([]*ArtifactHit, 0, len(matches))
	for _, m := range matches {
		artifact, err := s.store.GetArtifact(ctx, m.ChildID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, &ArtifactHit{
			Match:    m,
			Artifact: artifact,
			Verbatim: isVerbatim(artifact.Title, query),
		})
	}
	return hits, nil
}
