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


package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/poiesic/recollect/progress"
	"github.com/poiesic/recollect/storage"
)

const (
	// DefaultMaxAttempts bounds retries of transient provider failures.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the first backoff delay.
	DefaultBaseDelay = time.Second
)

// Orchestrator derives artifacts from stored entities with a language model
// and persists them with their embeddings.
type Orchestrator struct {
	store       storage.Store
	extractor   ai.ArtifactExtractor
	client      *embedding.Client
	prompts     PromptProvider
	pool        *ants.Pool
	maxAttempts int
	baseDelay   time.Duration
	progressOut io.Writer
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPoolSize sets how many requests ExtractAll runs concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		if o.pool != nil {
			o.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pool = pool
		return nil
	}
}

// WithRetry sets the retry policy for transient transport failures.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *Orchestrator) error {
		if maxAttempts < 1 {
			return ai.ErrInvalidMaxAttempts
		}
		o.maxAttempts = maxAttempts
		o.baseDelay = baseDelay
		return nil
	}
}

// WithProgress reports ExtractAll progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *Orchestrator) error {
		o.progressOut = w
		return nil
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now == nil {
			now = time.Now
		}
		o.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger.With("component", "extraction")
		return nil
	}
}

// NewOrchestrator creates an orchestrator. Call Release when done.
func NewOrchestrator(
	store storage.Store,
	extractor ai.ArtifactExtractor,
	client *embedding.Client,
	prompts PromptProvider,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}
	if prompts == nil {
		return nil, ErrPromptsRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:       store,
		extractor:   extractor,
		client:      client,
		prompts:     prompts,
		pool:        pool,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		now:         time.Now,
		logger:      slog.Default().With("component", "extraction"),
	}
	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}
	return o, nil
}

// Extract derives artifacts for one entity.
//
// Existing artifacts are returned untouched unless req.Overwrite is set, in
// which case they are swapped for the new ones in a single transaction once
// extraction and embedding have succeeded. Schema
// failures surface as *core.ValidationError and are not retried; transient
// transport failures are retried with backoff.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (*Outcome, error) {
	key := req.Key()
	if err := core.ValidateSourceType(req.SourceType); err != nil {
		return nil, &core.ValidationError{Field: "source_type", Detail: err.Error()}
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, &core.ValidationError{Field: "source_id", Detail: core.ErrEmptyID.Error()}
	}
	logger := o.logger.With("key", key.String())

	existing, err := o.store.ArtifactsFor(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading artifacts for %s: %w", key, err)
	}
	if len(existing) > 0 && !req.Overwrite {
		logger.Debug("artifacts exist, skipping", "count", len(existing))
		return &Outcome{Key: key, Artifacts: existing, Skipped: true}, nil
	}

	contextText, err := contextFor(ctx, o.store, key)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	prompt, err := o.prompts.Prompt(ctx, req.SourceType)
	if err != nil {
		return nil, err
	}

	candidates, err := o.callExtractor(ctx, prompt, contextText)
	if err != nil {
		logger.Warn("extraction failed", "err", err)
		return nil, fmt.Errorf("extracting %s: %w", key, err)
	}

	artifacts, err := o.buildArtifacts(ctx, key, candidates)
	if err != nil {
		return nil, fmt.Errorf("embedding artifacts for %s: %w", key, err)
	}

	outcome := &Outcome{Key: key, Artifacts: artifacts}
	switch {
	case len(existing) > 0:
		if outcome.Replaced, err = o.store.ReplaceArtifacts(ctx, key, artifacts...); err != nil {
			return nil, fmt.Errorf("replacing artifacts for %s: %w", key, err)
		}
	case len(artifacts) > 0:
		if err := o.store.AddArtifacts(ctx, artifacts...); err != nil {
			return nil, fmt.Errorf("storing artifacts for %s: %w", key, err)
		}
	}

	logger.Info("extracted artifacts", "count", len(artifacts), "replaced", outcome.Replaced)
	return outcome, nil
}

// callExtractor runs the extractor, retrying transient transport failures.
func (o *Orchestrator) callExtractor(ctx context.Context, prompt, contextText string) ([]ai.Candidate, error) {
	var (
		result   ai.ExtractionResult
		attempts int
	)
	err := ai.RetryTransient(ctx, func() error {
		attempts++
		result = o.extractor.Extract(ctx, prompt, contextText)
		if result.Status == ai.StatusTransportError {
			return result.AsError()
		}
		return nil
	}, o.maxAttempts, o.baseDelay)
	if err != nil {
		if attempts >= o.maxAttempts && ai.IsTransient(err) {
			return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		return nil, err
	}
	if result.Status == ai.StatusSchemaError {
		return nil, result.AsError()
	}
	return result.Candidates, nil
}

// buildArtifacts embeds the candidates and turns them into artifacts.
func (o *Orchestrator) buildArtifacts(ctx context.Context, key core.ArtifactKey, candidates []ai.Candidate) ([]*core.Artifact, error) {
	if len(candidates) == 0 {
		return []*core.Artifact{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = EmbeddingText(c)
	}
	vectors, err := o.client.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	created := o.now().UTC()
	artifacts := make([]*core.Artifact, len(candidates))
	for i, c := range candidates {
		kind := core.ArtifactKind(c.Kind)
		if kind == "" {
			kind = core.ArtifactKindLearning
		}
		artifact := &core.Artifact{
			ID:         uuid.NewString(),
			Kind:       kind,
			SourceType: key.SourceType,
			SourceID:   key.SourceID,
			Title:      c.Title,
			Content:    candidateContent(c),
			Vector:     vectors[i],
			CreatedAt:  created,
		}
		if err := core.ValidateArtifact(artifact); err != nil {
			return nil, err
		}
		artifacts[i] = artifact
	}
	return artifacts, nil
}

// EmbeddingText is the text embedded for a candidate: its title, summary
// and tags, one per line.
func EmbeddingText(c ai.Candidate) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{c.Title, c.Summary, strings.Join(c.Tags, " ")} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func candidateContent(c ai.Candidate) map[string]any {
	content := make(map[string]any, len(c.Fields)+2)
	for k, v := range c.Fields {
		content[k] = v
	}
	if _, ok := content["summary"]; !ok && c.Summary != "" {
		content["summary"] = c.Summary
	}
	if _, ok := content["tags"]; !ok && len(c.Tags) > 0 {
		tags := make([]any, len(c.Tags))
		for i, t := range c.Tags {
			tags[i] = t
		}
		content["tags"] = tags
	}
	return content
}

// ExtractAll runs Extract for every request on the worker pool. A failed
// request never stops the others; requests not started before ctx is
// cancelled fail with ctx's error.
func (o *Orchestrator) ExtractAll(ctx context.Context, requests []Request) *BatchReport {
	results := make([]Result, len(requests))

	var tracker *progress.Tracker
	if o.progressOut != nil {
		tracker = progress.NewTracker(o.progressOut, len(requests), 1, "requests")
		tracker.Start()
		defer tracker.Finish()
	}
	record := func(i int, outcome *Outcome, err error) {
		results[i] = Result{Request: requests[i], Outcome: outcome, Err: err}
		if tracker == nil {
			return
		}
		if err != nil {
			tracker.Fail()
		} else {
			tracker.Increment(1)
		}
	}

	var wg sync.WaitGroup
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			record(i, nil, err)
			continue
		}
		wg.Add(1)
		submitErr := o.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				record(i, nil, err)
				return
			}
			outcome, err := o.Extract(ctx, req)
			record(i, outcome, err)
		})
		if submitErr != nil {
			wg.Done()
			record(i, nil, submitErr)
		}
	}
	wg.Wait()

	report := newBatchReport(results)
	o.logger.Info("extraction batch finished", "report", report.String())
	return report
}

// Release releases the worker pool.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}
