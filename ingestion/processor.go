// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/recollect/chunker"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// batchEmbedder returns one vector per text, in input order.
type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// unitProcessor moves one unit from Pending to Persisted.
type unitProcessor struct {
	units    storage.UnitRepository
	embedder batchEmbedder
	maxChars int
	logger   *slog.Logger
}

// process chunks, embeds and persists unit. The caller's unit is not
// modified.
func (up *unitProcessor) process(ctx context.Context, unit *core.Unit) Result {
	res := Result{SourceID: unit.SourceID, UnitID: unit.ID, State: StatePending}
	fail := func(err error) Result {
		up.logger.Warn("unit failed", "source", unit.SourceID, "unit", unit.ID, "state", res.State, "err", err)
		res.State = StateFailed
		res.Err = err
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	chunks := chunker.Split(unit.Content, up.maxChars)
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		chunk.SourceID = unit.SourceID
		chunk.UnitID = unit.ID
		texts[i] = chunk.Text
	}
	res.State = StateChunked

	vectors, err := up.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fail(fmt.Errorf("embed unit %s: %w", unit.ID, err))
	}
	if len(vectors) != len(chunks) {
		return fail(fmt.Errorf("embed unit %s: got %d vectors for %d chunks", unit.ID, len(vectors), len(chunks)))
	}
	// EmbedBatch returns vectors in input order.
	for i, chunk := range chunks {
		chunk.Vector = vectors[i]
	}
	res.State = StateEmbedded

	persisted := *unit
	persisted.Chunks = chunks
	if err := up.units.AddUnit(ctx, &persisted); err != nil {
		return fail(fmt.Errorf("persist unit %s: %w", unit.ID, err))
	}

	res.State = StatePersisted
	res.Chunks = len(chunks)
	up.logger.Debug("unit persisted", "source", unit.SourceID, "unit", unit.ID, "chunks", len(chunks))
	return res
}
