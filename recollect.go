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


package recollect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/ai/openai"
	"github.com/poiesic/recollect/config"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/poiesic/recollect/extraction"
	"github.com/poiesic/recollect/importer"
	"github.com/poiesic/recollect/ingestion"
	"github.com/poiesic/recollect/reembed"
	"github.com/poiesic/recollect/search"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/storage/badger"
	"github.com/poiesic/recollect/storage/sqlite"
)

// Archive is an open handle on a recollect archive. It owns the store, the
// optional embedding cache, the AI provider and the shared embedding client,
// and builds the pipelines that operate on them.
type Archive struct {
	cfg      *config.Config
	store    storage.Store
	cache    *badger.EmbeddingCache
	provider ai.AIProvider
	client   *embedding.Client
	logger   *slog.Logger
}

// Option configures an Archive.
type Option func(*archiveOptions) error

type archiveOptions struct {
	store    storage.Store
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithStore uses an already open store instead of opening Database.Path.
// The archive takes ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(o *archiveOptions) error {
		if store == nil {
			return errors.New("store cannot be nil")
		}
		o.store = store
		return nil
	}
}

// WithProvider uses the given AI provider instead of the OpenAI-compatible
// one described by the config. The archive takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *archiveOptions) error {
		if provider == nil {
			return errors.New("provider cannot be nil")
		}
		o.provider = provider
		return nil
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *archiveOptions) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// Open opens the archive described by cfg. A nil cfg selects config.Default().
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Archive, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &archiveOptions{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	a := &Archive{
		cfg:      cfg,
		store:    options.store,
		provider: options.provider,
		logger:   options.logger,
	}
	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) open(ctx context.Context) error {
	var err error

	if a.store == nil {
		a.store, err = sqlite.Open(ctx, a.cfg.Database.Path, sqlite.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
	}

	if a.provider == nil {
		providerConfig, err := a.cfg.ProviderConfig()
		if err != nil {
			return err
		}
		a.provider, err = openai.NewProvider(providerConfig, openai.WithProviderLogger(a.logger))
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}
	}

	clientOpts := []embedding.Option{embedding.WithLogger(a.logger)}
	delay, err := a.cfg.RetryDelay()
	if err != nil {
		return err
	}
	clientOpts = append(clientOpts, embedding.WithRetry(a.cfg.AI.MaxAttempts, delay))
	if a.cfg.AI.Concurrency > 0 {
		clientOpts = append(clientOpts, embedding.WithConcurrency(a.cfg.AI.Concurrency))
	}
	if a.cfg.AI.RateLimit > 0 {
		burst := max(1, int(a.cfg.AI.RateLimit))
		clientOpts = append(clientOpts, embedding.WithRateLimit(a.cfg.AI.RateLimit, burst))
	}
	if a.cfg.Database.CacheDir != "" {
		ttl, err := a.cfg.CacheTTL()
		if err != nil {
			return err
		}
		a.cache, err = badger.OpenEmbeddingCache(a.cfg.Database.CacheDir, a.cfg.AI.EmbeddingModel,
			badger.WithTTL(ttl), badger.WithLogger(a.logger))
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, embedding.WithCache(a.cache))
	}

	a.client, err = embedding.NewClient(a.provider.Embedder(), clientOpts...)
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}

	stored, err := a.store.Dimensions(ctx)
	if err != nil {
		return err
	}
	if stored > 0 && stored != a.client.Dimensions() {
		mismatch := &core.DimensionMismatchError{Expected: stored, Actual: a.client.Dimensions()}
		return fmt.Errorf("%w: %w", storage.ErrDimensionsChanged, mismatch)
	}
	return nil
}

// Close releases every resource the archive owns. It is safe to call on a
// partially opened archive.
func (a *Archive) Close() error {
	logger := a.logger.With("component", "archive")
	var errs []error
	if a.client != nil {
		a.client.Release()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Error("error closing embedding cache", "err", err)
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Archive) Config() *config.Config {
	return a.cfg
}

func (a *Archive) Store() storage.Store {
	return a.store
}

func (a *Archive) Client() *embedding.Client {
	return a.client
}

func (a *Archive) Provider() ai.AIProvider {
	return a.provider
}

// NewPipeline creates an ingestion pipeline configured from the archive
// settings. Options passed here override them. Call Release when done.
func (a *Archive) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithMaxChars(a.cfg.Ingestion.MaxChars),
		ingestion.WithLogger(a.logger),
	}
	if a.cfg.Ingestion.Workers > 0 {
		base = append(base, ingestion.WithPoolSize(a.cfg.Ingestion.Workers))
	}
	if a.cfg.Ingestion.BatchSize > 0 {
		base = append(base, ingestion.WithBatchSize(a.cfg.Ingestion.BatchSize))
	}
	return ingestion.NewPipeline(a.store, a.client, append(base, opts...)...)
}

// Import ingests every source in the JSONL file at path.
func (a *Archive) Import(ctx context.Context, path string, opts ...ingestion.Option) (*ingestion.Report, error) {
	stream, err := importer.OpenJSONL(path)
	if err != nil {
		return nil, err
	}
	pipeline, err := a.NewPipeline(opts...)
	if err != nil {
		stream.Close()
		return nil, err
	}
	defer pipeline.Release()
	return pipeline.IngestStream(ctx, stream)
}

// NewSearcher creates a searcher using the configured context window.
func (a *Archive) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithWindow(search.Window{Before: a.cfg.Search.Before, After: a.cfg.Search.After}),
		search.WithLogger(a.logger),
	}
	return search.NewSearcher(a.store, a.client, append(base, opts...)...)
}

// NewOrchestrator creates an extraction orchestrator. Prompts come from
// Extraction.PromptsDir when set. Call Release when done.
func (a *Archive) NewOrchestrator(opts ...extraction.Option) (*extraction.Orchestrator, error) {
	var prompts extraction.PromptProvider = extraction.DefaultPrompts()
	if a.cfg.Extraction.PromptsDir != "" {
		prompts = extraction.FilePrompts{Dir: a.cfg.Extraction.PromptsDir}
	}

	delay, err := a.cfg.RetryDelay()
	if err != nil {
		return nil, err
	}
	base := []extraction.Option{
		extraction.WithRetry(a.cfg.AI.MaxAttempts, delay),
		extraction.WithLogger(a.logger),
	}
	if a.cfg.Extraction.Workers > 0 {
		base = append(base, extraction.WithPoolSize(a.cfg.Extraction.Workers))
	}
	return extraction.NewOrchestrator(a.store, a.provider.ArtifactExtractor(), a.client, prompts, append(base, opts...)...)
}

// NewReembedder creates a reembedder writing progress to w.
func (a *Archive) NewReembedder(cfg *reembed.Config, w io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(a.store, a.client, cfg, w)
}
