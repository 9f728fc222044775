package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poiesic/recollect/core"
)

// ExistingSourceIDs reports which ids are already stored, in one query.
func (s *Store) ExistingSourceIDs(ctx context.Context, ids ...string) (map[string]bool, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.reader.QueryContext(ctx,
		"SELECT id FROM sources WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning source id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// AddSources inserts Sources without their Units. Existing ids are ignored.
func (s *Store) AddSources(ctx context.Context, sources ...*core.Source) error {
	if len(sources) == 0 {
		return s.check()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO sources (id, kind, title, summary, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing source insert: %w", err)
		}
		defer stmt.Close()

		for _, src := range sources {
			metadata, err := marshalMetadata(src.Metadata)
			if err != nil {
				return fmt.Errorf("source %s: %w", src.ID, err)
			}
			updated := src.UpdatedAt
			if updated.IsZero() {
				updated = src.CreatedAt
			}
			if _, err := stmt.ExecContext(ctx, src.ID, string(src.Kind), src.Title, src.Summary,
				metadata, toMicros(src.CreatedAt), toMicros(updated)); err != nil {
				return fmt.Errorf("inserting source %s: %w", src.ID, err)
			}
		}
		return nil
	})
}

// GetSource retrieves a Source without its Units.
func (s *Store) GetSource(ctx context.Context, id string) (*core.Source, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.reader.QueryRowContext(ctx, `
		SELECT id, kind, title, summary, metadata, created_at, updated_at
		FROM sources WHERE id = ?
	`, id)

	var (
		src      core.Source
		kind     string
		metadata string
		created  int64
		updated  int64
	)
	err := row.Scan(&src.ID, &kind, &src.Title, &src.Summary, &metadata, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("source", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting source: %w", err)
	}

	src.Kind = core.SourceKind(kind)
	src.CreatedAt = fromMicros(created)
	src.UpdatedAt = fromMicros(updated)
	if src.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, fmt.Errorf("source %s: %w", id, err)
	}
	return &src, nil
}

// ListSourceIDs returns every Source id ordered by creation time.
func (s *Store) ListSourceIDs(ctx context.Context) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.reader.QueryContext(ctx, "SELECT id FROM sources ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning source id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMetadata(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(data), &metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return metadata, nil
}
