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
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/poiesic/recollect/progress"
	"github.com/poiesic/recollect/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of items to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of items)
	ReportInterval int

	// Kinds selects what to reembed; empty means chunks and artifacts
	Kinds []storage.VectorKind
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Kinds:          []storage.VectorKind{storage.VectorKindChunk, storage.VectorKindArtifact},
	}
}

// Summary reports what a Run did.
type Summary struct {
	Results   []ItemResult
	Chunks    int
	Artifacts int
	Failed    int
	Elapsed   time.Duration
}

// Failures returns the failed items in processing order.
func (s *Summary) Failures() []ItemResult {
	failures := []ItemResult{}
	for _, res := range s.Results {
		if res.Err != nil {
			failures = append(failures, res)
		}
	}
	return failures
}

func (s *Summary) record(results []ItemResult) {
	s.Results = append(s.Results, results...)
	for _, res := range results {
		switch {
		case res.Err != nil:
			s.Failed++
		case res.Kind == storage.VectorKindChunk:
			s.Chunks++
		default:
			s.Artifacts++
		}
	}
}

// Reembedder recomputes every stored chunk and artifact vector with the
// configured embedding client.
type Reembedder struct {
	store     storage.Store
	client    *embedding.Client
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store storage.Store, client *embedding.Client, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Kinds) == 0 {
		config.Kinds = DefaultConfig().Kinds
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		client:    client,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(store, client),
		logger:    slog.Default().With("component", "reembed"),
	}, nil
}

// Run re-embeds every selected item. Items that fail are recorded in the
// summary and the run continues; a storage failure or cancellation stops it.
//
// The client must produce vectors of the dimensionality the store already
// records, since a store holds vectors of exactly one length.
func (r *Reembedder) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Results: []ItemResult{}}

	dims, err := r.store.Dimensions(ctx)
	if err != nil {
		return summary, err
	}
	if dims != 0 && dims != r.client.Dimensions() {
		return summary, fmt.Errorf("%w: %w", storage.ErrDimensionsChanged,
			&core.DimensionMismatchError{Expected: dims, Actual: r.client.Dimensions()})
	}

	total := 0
	for _, kind := range r.config.Kinds {
		n, err := r.count(ctx, kind)
		if err != nil {
			return summary, fmt.Errorf("failed to count %s vectors: %w", kind, err)
		}
		total += n
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "Nothing to reembed (0 items)\n")
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d items (batch size: %d)\n", total, r.config.BatchSize)

	tracker := progress.NewTracker(r.progress, total, r.config.ReportInterval, "items")
	tracker.Start()
	processed := 0
	update := func(results []ItemResult) {
		summary.record(results)
		processed += len(results)
		tracker.Update(processed)
	}

	for _, kind := range r.config.Kinds {
		switch kind {
		case storage.VectorKindChunk:
			err = NewChunkIterator(r.store, r.config.BatchSize).ForEach(ctx, func(chunks []*core.Chunk) error {
				results, err := r.processor.ProcessChunks(ctx, chunks)
				if err != nil {
					return err
				}
				update(results)
				return nil
			})
		case storage.VectorKindArtifact:
			err = NewArtifactIterator(r.store, r.config.BatchSize).ForEach(ctx, func(artifacts []*core.Artifact) error {
				results, err := r.processor.ProcessArtifacts(ctx, artifacts)
				if err != nil {
					return err
				}
				update(results)
				return nil
			})
		}
		if err != nil {
			summary.Elapsed = tracker.Elapsed()
			return summary, err
		}
	}

	tracker.Finish()
	summary.Elapsed = tracker.Elapsed()

	r.logger.Info("reembedding complete",
		"chunks", summary.Chunks, "artifacts", summary.Artifacts, "failed", summary.Failed, "elapsed", summary.Elapsed)
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d items in %v (%d failed)\n",
		total, summary.Elapsed.Round(time.Millisecond), summary.Failed)
	return summary, nil
}

func (r *Reembedder) count(ctx context.Context, kind storage.VectorKind) (int, error) {
	switch kind {
	case storage.VectorKindChunk:
		return r.store.CountChunks(ctx)
	case storage.VectorKindArtifact:
		return r.store.CountArtifacts(ctx)
	default:
		return 0, fmt.Errorf("unknown vector kind %d", kind)
	}
}
