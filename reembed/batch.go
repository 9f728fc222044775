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
	"fmt"
	"strconv"

	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/poiesic/recollect/extraction"
	"github.com/poiesic/recollect/storage"
)

// ItemResult is the outcome for one re-embedded chunk or artifact.
type ItemResult struct {
	Kind storage.VectorKind
	ID   string
	Err  error
}

// BatchProcessor re-embeds batches of chunks and artifacts and writes the
// new vectors back.
type BatchProcessor struct {
	store  storage.Store
	client *embedding.Client
}

// NewBatchProcessor creates a new batch processor. Retries and rate limits
// are the client's.
func NewBatchProcessor(store storage.Store, client *embedding.Client) *BatchProcessor {
	return &BatchProcessor{store: store, client: client}
}

// ProcessChunks embeds the chunks' text and updates their vectors.
func (bp *BatchProcessor) ProcessChunks(ctx context.Context, chunks []*core.Chunk) ([]ItemResult, error) {
	if len(chunks) == 0 {
		return []ItemResult{}, nil
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = strconv.FormatInt(chunk.ID, 10)
		texts[i] = chunk.Text
	}

	vectors, results := bp.embed(ctx, storage.VectorKindChunk, ids, texts)
	updates := make(map[int64][]float32, len(chunks))
	for i, chunk := range chunks {
		if vectors[i] != nil {
			updates[chunk.ID] = vectors[i]
		}
	}
	if err := bp.store.UpdateChunkVectors(ctx, updates); err != nil {
		return nil, fmt.Errorf("failed to update chunk vectors: %w", err)
	}
	return results, nil
}

// ProcessArtifacts embeds each artifact's title, summary and tags and
// updates their vectors.
func (bp *BatchProcessor) ProcessArtifacts(ctx context.Context, artifacts []*core.Artifact) ([]ItemResult, error) {
	if len(artifacts) == 0 {
		return []ItemResult{}, nil
	}

	ids := make([]string, len(artifacts))
	texts := make([]string, len(artifacts))
	for i, a := range artifacts {
		ids[i] = a.ID
		texts[i] = ArtifactText(a)
	}

	vectors, results := bp.embed(ctx, storage.VectorKindArtifact, ids, texts)
	updates := make(map[string][]float32, len(artifacts))
	for i, a := range artifacts {
		if vectors[i] != nil {
			updates[a.ID] = vectors[i]
		}
	}
	if err := bp.store.UpdateArtifactVectors(ctx, updates); err != nil {
		return nil, fmt.Errorf("failed to update artifact vectors: %w", err)
	}
	return results, nil
}

// embed embeds texts as one batch. When the batch fails each text is
// retried alone so one bad item does not fail its neighbors. Failed slots
// have a nil vector.
func (bp *BatchProcessor) embed(ctx context.Context, kind storage.VectorKind, ids, texts []string) ([][]float32, []ItemResult) {
	results := make([]ItemResult, len(texts))
	for i, id := range ids {
		results[i] = ItemResult{Kind: kind, ID: id}
	}

	vectors, err := bp.client.EmbedBatch(ctx, texts)
	if err == nil {
		return vectors, results
	}

	vectors = make([][]float32, len(texts))
	for i, text := range texts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			results[i].Err = ctxErr
			continue
		}
		vector, err := bp.client.Embed(ctx, text)
		if err != nil {
			results[i].Err = err
			continue
		}
		vectors[i] = vector
	}
	return vectors, results
}

// ArtifactText rebuilds the embedding text of a stored artifact from its
// title and content.
func ArtifactText(a *core.Artifact) string {
	summary, _ := a.Content["summary"].(string)
	var tags []string
	if raw, ok := a.Content["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return extraction.EmbeddingText(ai.Candidate{Title: a.Title, Summary: summary, Tags: tags})
}
