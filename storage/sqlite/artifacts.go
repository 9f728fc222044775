package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

const artifactColumns = "id, kind, source_type, source_id, title, content, vector, created_at"

func scanArtifact(scan func(dest ...any) error) (*core.Artifact, error) {
	var (
		artifact   core.Artifact
		kind       string
		sourceType string
		content    string
		blob       []byte
		created    int64
	)
	if err := scan(&artifact.ID, &kind, &sourceType, &artifact.SourceID, &artifact.Title, &content, &blob, &created); err != nil {
		return nil, err
	}
	artifact.Kind = core.ArtifactKind(kind)
	artifact.SourceType = core.SourceType(sourceType)
	artifact.CreatedAt = fromMicros(created)

	if err := json.Unmarshal([]byte(content), &artifact.Content); err != nil {
		return nil, fmt.Errorf("artifact %s: unmarshalling content: %w", artifact.ID, err)
	}
	vector, err := storage.DecodeVector(blob, 0)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", artifact.ID, err)
	}
	artifact.Vector = vector
	return &artifact, nil
}

// ArtifactsFor returns the artifacts derived from one source entity,
// oldest first.
func (s *Store) ArtifactsFor(ctx context.Context, key core.ArtifactKey) ([]*core.Artifact, error) {
	return s.queryArtifacts(ctx,
		"SELECT "+artifactColumns+" FROM artifacts WHERE source_type = ? AND source_id = ? ORDER BY created_at, id",
		string(key.SourceType), key.SourceID)
}

// AddArtifacts persists artifacts in one transaction.
func (s *Store) AddArtifacts(ctx context.Context, artifacts ...*core.Artifact) error {
	if len(artifacts) == 0 {
		return s.check()
	}
	vectors := make([][]float32, len(artifacts))
	for i, a := range artifacts {
		vectors[i] = a.Vector
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkVectors(ctx, tx, vectors...); err != nil {
			return err
		}
		return insertArtifacts(ctx, tx, artifacts)
	})
}

// DeleteArtifacts removes every artifact derived from key.
func (s *Store) DeleteArtifacts(ctx context.Context, key core.ArtifactKey) (int, error) {
	var deleted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = deleteArtifacts(ctx, tx, key)
		return err
	})
	return deleted, err
}

// ReplaceArtifacts deletes the artifacts derived from key and stores
// artifacts in their place, in one transaction. Every artifact must belong
// to key. On failure the previous artifacts remain.
func (s *Store) ReplaceArtifacts(ctx context.Context, key core.ArtifactKey, artifacts ...*core.Artifact) (int, error) {
	vectors := make([][]float32, len(artifacts))
	for i, a := range artifacts {
		if a.Key() != key {
			return 0, fmt.Errorf("%w: artifact %s belongs to %s, not %s", storage.ErrInvalidQuery, a.ID, a.Key(), key)
		}
		vectors[i] = a.Vector
	}

	var deleted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if deleted, err = deleteArtifacts(ctx, tx, key); err != nil {
			return err
		}
		if err := checkVectors(ctx, tx, vectors...); err != nil {
			return err
		}
		return insertArtifacts(ctx, tx, artifacts)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func deleteArtifacts(ctx context.Context, tx *sql.Tx, key core.ArtifactKey) (int, error) {
	result, err := tx.ExecContext(ctx,
		"DELETE FROM artifacts WHERE source_type = ? AND source_id = ?",
		string(key.SourceType), key.SourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting artifacts for %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func insertArtifacts(ctx context.Context, tx *sql.Tx, artifacts []*core.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artifacts (id, kind, source_type, source_id, title, content, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing artifact insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range artifacts {
		content := []byte("{}")
		if len(a.Content) > 0 {
			if content, err = json.Marshal(a.Content); err != nil {
				return fmt.Errorf("artifact %s: marshalling content: %w", a.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, a.ID, string(a.Kind), string(a.SourceType), a.SourceID,
			a.Title, string(content), storage.EncodeVector(a.Vector), toMicros(a.CreatedAt)); err != nil {
			return fmt.Errorf("inserting artifact %s: %w", a.ID, err)
		}
	}
	return nil
}

// GetArtifact retrieves one artifact by id.
func (s *Store) GetArtifact(ctx context.Context, id string) (*core.Artifact, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.reader.QueryRowContext(ctx, "SELECT "+artifactColumns+" FROM artifacts WHERE id = ?", id)
	artifact, err := scanArtifact(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("artifact", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting artifact: %w", err)
	}
	return artifact, nil
}

// CountArtifacts returns the number of stored artifacts.
func (s *Store) CountArtifacts(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM artifacts")
}

// ScanArtifacts returns up to limit artifacts with id > afterID in id order.
func (s *Store) ScanArtifacts(ctx context.Context, afterID string, limit int) ([]*core.Artifact, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	return s.queryArtifacts(ctx,
		"SELECT "+artifactColumns+" FROM artifacts WHERE id > ? ORDER BY id LIMIT ?", afterID, limit)
}

// UpdateArtifactVectors replaces artifact vectors in one transaction.
func (s *Store) UpdateArtifactVectors(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return s.check()
	}
	all := make([][]float32, 0, len(vectors))
	for _, v := range vectors {
		all = append(all, v)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkVectors(ctx, tx, all...); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, "UPDATE artifacts SET vector = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("preparing artifact update: %w", err)
		}
		defer stmt.Close()

		for id, vector := range vectors {
			result, err := stmt.ExecContext(ctx, storage.EncodeVector(vector), id)
			if err != nil {
				return fmt.Errorf("updating artifact %s: %w", id, err)
			}
			if n, _ := result.RowsAffected(); n == 0 {
				return notFound("artifact", id)
			}
		}
		return nil
	})
}

func (s *Store) queryArtifacts(ctx context.Context, query string, args ...any) ([]*core.Artifact, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []*core.Artifact{}
	for rows.Next() {
		artifact, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}
