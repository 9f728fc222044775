package sqlite

import (
	"context"
	"fmt"
	"strconv"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// LoadVectors returns every non-null vector of the given kind with its
// parent and child identifiers. Lengths are not checked here; callers
// compare them against their own dimensionality.
func (s *Store) LoadVectors(ctx context.Context, kind storage.VectorKind) ([]storage.StoredVector, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	switch kind {
	case storage.VectorKindChunk:
		return s.loadChunkVectors(ctx)
	case storage.VectorKindArtifact:
		return s.loadArtifactVectors(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown vector kind %d", storage.ErrInvalidQuery, kind)
	}
}

func (s *Store) loadChunkVectors(ctx context.Context) ([]storage.StoredVector, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT source_id, id, vector
		FROM chunks
		WHERE vector IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("loading chunk vectors: %w", err)
	}
	defer rows.Close()

	vectors := []storage.StoredVector{}
	for rows.Next() {
		var (
			sourceID string
			chunkID  int64
			blob     []byte
		)
		if err := rows.Scan(&sourceID, &chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk vector: %w", err)
		}
		vector, err := storage.DecodeVector(blob, 0)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunkID, err)
		}
		vectors = append(vectors, storage.StoredVector{
			ParentID: sourceID,
			ChildID:  strconv.FormatInt(chunkID, 10),
			Vector:   vector,
		})
	}
	return vectors, rows.Err()
}

func (s *Store) loadArtifactVectors(ctx context.Context) ([]storage.StoredVector, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT source_type, source_id, id, vector
		FROM artifacts
		WHERE vector IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("loading artifact vectors: %w", err)
	}
	defer rows.Close()

	vectors := []storage.StoredVector{}
	for rows.Next() {
		var (
			sourceType string
			sourceID   string
			id         string
			blob       []byte
		)
		if err := rows.Scan(&sourceType, &sourceID, &id, &blob); err != nil {
			return nil, fmt.Errorf("scanning artifact vector: %w", err)
		}
		vector, err := storage.DecodeVector(blob, 0)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", id, err)
		}
		key := core.ArtifactKey{SourceType: core.SourceType(sourceType), SourceID: sourceID}
		vectors = append(vectors, storage.StoredVector{
			ParentID: key.String(),
			ChildID:  id,
			Vector:   vector,
		})
	}
	return vectors, rows.Err()
}
