package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// ExistingUnitIDs reports which unit ids are already stored under sourceID.
func (s *Store) ExistingUnitIDs(ctx context.Context, sourceID string, ids ...string) (map[string]bool, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, sourceID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.reader.QueryContext(ctx,
		"SELECT id FROM units WHERE source_id = ? AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning unit id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// AddUnit inserts a Unit and its Chunks in one transaction. Chunk ids are
// written back into unit.Chunks.
func (s *Store) AddUnit(ctx context.Context, unit *core.Unit) error {
	vectors := make([][]float32, len(unit.Chunks))
	for i, chunk := range unit.Chunks {
		vectors[i] = chunk.Vector
	}

	ids := make([]int64, len(unit.Chunks))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkVectors(ctx, tx, vectors...); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (id, source_id, position, sender, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, unit.ID, unit.SourceID, unit.Position, string(unit.Sender), unit.Content, toMicros(unit.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting unit %s: %w", unit.ID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (source_id, unit_id, chunk_index, text, char_count, vector)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for i, chunk := range unit.Chunks {
			result, err := stmt.ExecContext(ctx, unit.SourceID, unit.ID, chunk.Index, chunk.Text, chunk.CharCount,
				storage.EncodeVector(chunk.Vector))
			if err != nil {
				return fmt.Errorf("inserting chunk %d of unit %s: %w", chunk.Index, unit.ID, err)
			}
			if ids[i], err = result.LastInsertId(); err != nil {
				return fmt.Errorf("reading chunk id: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, chunk := range unit.Chunks {
		chunk.ID = ids[i]
		chunk.SourceID = unit.SourceID
		chunk.UnitID = unit.ID
	}
	return nil
}

const unitColumns = "id, source_id, position, sender, content, created_at"

func scanUnit(scan func(dest ...any) error) (*core.Unit, error) {
	var (
		unit    core.Unit
		sender  string
		created int64
	)
	if err := scan(&unit.ID, &unit.SourceID, &unit.Position, &sender, &unit.Content, &created); err != nil {
		return nil, err
	}
	unit.Sender = core.Sender(sender)
	unit.CreatedAt = fromMicros(created)
	return &unit, nil
}

// GetUnit retrieves a Unit of sourceID without its chunks.
func (s *Store) GetUnit(ctx context.Context, sourceID, id string) (*core.Unit, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.reader.QueryRowContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE source_id = ? AND id = ?", sourceID, id)
	unit, err := scanUnit(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("unit", sourceID+"/"+id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting unit: %w", err)
	}
	return unit, nil
}

// GetUnits returns every Unit of a Source ordered by position.
func (s *Store) GetUnits(ctx context.Context, sourceID string) ([]*core.Unit, error) {
	return s.queryUnits(ctx,
		"SELECT "+unitColumns+" FROM units WHERE source_id = ? ORDER BY position", sourceID)
}

// GetUnitsInRange returns Units with from <= position <= to, ascending.
func (s *Store) GetUnitsInRange(ctx context.Context, sourceID string, from, to int) ([]*core.Unit, error) {
	if from > to {
		if err := s.check(); err != nil {
			return nil, err
		}
		return []*core.Unit{}, nil
	}
	return s.queryUnits(ctx,
		"SELECT "+unitColumns+" FROM units WHERE source_id = ? AND position BETWEEN ? AND ? ORDER BY position",
		sourceID, from, to)
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]*core.Unit, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	units := []*core.Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

const chunkColumns = "id, source_id, unit_id, chunk_index, text, char_count, vector"

func scanChunk(scan func(dest ...any) error) (*core.Chunk, error) {
	var (
		chunk core.Chunk
		blob  []byte
	)
	if err := scan(&chunk.ID, &chunk.SourceID, &chunk.UnitID, &chunk.Index, &chunk.Text, &chunk.CharCount, &blob); err != nil {
		return nil, err
	}
	vector, err := storage.DecodeVector(blob, 0)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", chunk.ID, err)
	}
	chunk.Vector = vector
	return &chunk, nil
}

// GetChunk retrieves a chunk and its vector.
func (s *Store) GetChunk(ctx context.Context, id int64) (*core.Chunk, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.reader.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	chunk, err := scanChunk(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("chunk", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk: %w", err)
	}
	return chunk, nil
}

// CountChunks returns the number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM chunks")
}

// ScanChunks returns up to limit chunks with id > afterID in id order.
func (s *Store) ScanChunks(ctx context.Context, afterID int64, limit int) ([]*core.Chunk, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	rows, err := s.reader.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id > ? ORDER BY id LIMIT ?", afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("scanning chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*core.Chunk{}
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// UpdateChunkVectors replaces chunk vectors in one transaction.
func (s *Store) UpdateChunkVectors(ctx context.Context, vectors map[int64][]float32) error {
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
		stmt, err := tx.PrepareContext(ctx, "UPDATE chunks SET vector = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("preparing chunk update: %w", err)
		}
		defer stmt.Close()

		for id, vector := range vectors {
			result, err := stmt.ExecContext(ctx, storage.EncodeVector(vector), id)
			if err != nil {
				return fmt.Errorf("updating chunk %d: %w", id, err)
			}
			if n, _ := result.RowsAffected(); n == 0 {
				return notFound("chunk", strconv.FormatInt(id, 10))
			}
		}
		return nil
	})
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	if err := s.reader.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting: %w", err)
	}
	return n, nil
}
