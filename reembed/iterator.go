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


package reembed

import (
	"context"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

const (
	// DefaultBatchSize is the default number of items to fetch in each batch
	DefaultBatchSize = 100
)

// ChunkIterator pages through every stored chunk in id order.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to fetch in each batch; <= 0 selects the default
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{repo: repo, batchSize: batchSize}
}

// ForEach calls fn for each batch of chunks.
// Iteration stops on first error from fn or when all chunks are processed.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.repo.ScanChunks(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		after = batch[len(batch)-1].ID
		if len(batch) < it.batchSize {
			return nil
		}
	}
}

// ArtifactIterator pages through every stored artifact in id order.
type ArtifactIterator struct {
	repo      storage.ArtifactRepository
	batchSize int
}

// NewArtifactIterator creates a new artifact iterator.
// batchSize: number of artifacts to fetch in each batch; <= 0 selects the default
func NewArtifactIterator(repo storage.ArtifactRepository, batchSize int) *ArtifactIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ArtifactIterator{repo: repo, batchSize: batchSize}
}

// ForEach calls fn for each batch of artifacts.
// Iteration stops on first error from fn or when all artifacts are processed.
// Context cancellation is checked between batches.
func (it *ArtifactIterator) ForEach(ctx context.Context, fn func([]*core.Artifact) error) error {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.repo.ScanArtifacts(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		after = batch[len(batch)-1].ID
		if len(batch) < it.batchSize {
			return nil
		}
	}
}
