package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recollect/chunker"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/poiesic/recollect/importer"
	"github.com/poiesic/recollect/storage"
)

const (
	// DefaultBatchSize is how many sources share one existence query.
	DefaultBatchSize = 50
)

// Pipeline imports Sources into a store. New units are chunked, embedded
// and persisted concurrently on a worker pool.
type Pipeline struct {
	store     storage.Store
	client    *embedding.Client
	pool      *ants.Pool
	maxChars  int
	batchSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of units processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithMaxChars sets the chunk window passed to the chunker.
// Default is chunker.DefaultMaxChars.
func WithMaxChars(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("max chars must be positive, got %d", n)
		}
		p.maxChars = n
		return nil
	}
}

// WithBatchSize sets how many sources IngestStream groups per Ingest call.
// Default is DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		p.batchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. Call Release when done.
func NewPipeline(store storage.Store, client *embedding.Client, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:     store,
		client:    client,
		pool:      pool,
		maxChars:  chunker.DefaultMaxChars,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest stores the given Sources and processes every Unit not already
// stored. Item failures are recorded in the report and do not stop the
// batch. The returned error is non-nil only when the batch could not be
// processed at all or ctx was cancelled; the report is always returned.
func (p *Pipeline) Ingest(ctx context.Context, sources []*core.Source) (*Report, error) {
	report := newReport()

	valid := make([]*core.Source, 0, len(sources))
	ids := make([]string, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if err := core.ValidateSource(src); err != nil {
			report.add(Result{SourceID: sourceID(src), State: StateFailed, Err: err})
			continue
		}
		if seen[src.ID] {
			report.add(Result{SourceID: src.ID, State: StateFailed, Err: &core.ValidationError{
				Field:  "id",
				Detail: fmt.Sprintf("source %q appears more than once in the batch", src.ID),
			}})
			continue
		}
		seen[src.ID] = true
		valid = append(valid, src)
		ids = append(ids, src.ID)
	}
	if len(valid) == 0 {
		return report, ctx.Err()
	}

	existing, err := p.store.ExistingSourceIDs(ctx, ids...)
	if err != nil {
		return report, fmt.Errorf("checking existing sources: %w", err)
	}

	added := make([]*core.Source, 0, len(valid))
	for _, src := range valid {
		if !existing[src.ID] {
			added = append(added, src)
		}
	}
	if len(added) > 0 {
		if err := p.store.AddSources(ctx, added...); err != nil {
			return report, fmt.Errorf("adding sources: %w", err)
		}
	}
	report.sources(len(added), len(valid)-len(added))

	proc := &unitProcessor{
		units:    p.store,
		embedder: p.client,
		maxChars: p.maxChars,
		logger:   p.logger,
	}

	var wg sync.WaitGroup
	for _, src := range valid {
		pending, err := p.newUnits(ctx, src, report)
		if err != nil {
			wg.Wait()
			return report, err
		}

		for _, unit := range pending {
			if err := ctx.Err(); err != nil {
				report.add(Result{SourceID: unit.SourceID, UnitID: unit.ID, State: StateFailed, Err: err})
				continue
			}
			wg.Add(1)
			submitErr := p.pool.Submit(func() {
				defer wg.Done()
				report.add(proc.process(ctx, unit))
			})
			if submitErr != nil {
				wg.Done()
				report.add(Result{SourceID: unit.SourceID, UnitID: unit.ID, State: StateFailed, Err: submitErr})
			}
		}
	}
	wg.Wait()

	p.logger.Info("ingested batch", "report", report.String())
	return report, ctx.Err()
}

// newUnits validates the units of src, records skipped and rejected ones,
// and returns the units that still need processing.
func (p *Pipeline) newUnits(ctx context.Context, src *core.Source, report *Report) ([]*core.Unit, error) {
	candidates := make([]*core.Unit, 0, len(src.Units))
	unitIDs := make([]string, 0, len(src.Units))
	positions := make(map[int]string, len(src.Units))
	seenIDs := make(map[string]bool, len(src.Units))

	for _, unit := range src.Units {
		if unit == nil {
			report.add(Result{SourceID: src.ID, UnitID: "<nil>", State: StateFailed, Err: core.ErrInvalidUnit})
			continue
		}
		u := *unit
		if u.SourceID == "" {
			u.SourceID = src.ID
		}

		var err error
		switch {
		case u.SourceID != src.ID:
			err = &core.ValidationError{Field: "source_id", Detail: fmt.Sprintf("unit belongs to %q", u.SourceID)}
		case seenIDs[u.ID]:
			err = &core.ValidationError{Field: "id", Detail: fmt.Sprintf("unit %q appears more than once", u.ID)}
		case positions[u.Position] != "":
			err = &core.ValidationError{
				Field:  "position",
				Detail: fmt.Sprintf("position %d already used by unit %q", u.Position, positions[u.Position]),
			}
		default:
			err = core.ValidateUnit(&u)
		}
		if err != nil {
			report.add(Result{SourceID: src.ID, UnitID: u.ID, State: StateFailed, Err: err})
			continue
		}

		seenIDs[u.ID] = true
		positions[u.Position] = u.ID
		candidates = append(candidates, &u)
		unitIDs = append(unitIDs, u.ID)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := p.store.ExistingUnitIDs(ctx, src.ID, unitIDs...)
	if err != nil {
		return nil, fmt.Errorf("checking existing units of %s: %w", src.ID, err)
	}

	pending := make([]*core.Unit, 0, len(candidates))
	for _, u := range candidates {
		if existing[u.ID] {
			report.add(Result{SourceID: src.ID, UnitID: u.ID, State: StateSkipped})
			continue
		}
		pending = append(pending, u)
	}
	return pending, nil
}

// IngestStream pulls Sources from stream, ingests them in batches and
// closes the stream. Records the stream reports as invalid are recorded as
// failures and the stream continues; any other stream error stops the run.
func (p *Pipeline) IngestStream(ctx context.Context, stream importer.Stream) (report *Report, err error) {
	if stream == nil {
		return newReport(), ErrStreamRequired
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	report = newReport()
	batch := make([]*core.Source, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		batchReport, err := p.Ingest(ctx, batch)
		report.merge(batchReport)
		batch = batch[:0]
		return err
	}

	for {
		src, nextErr := stream.Next(ctx)
		switch {
		case errors.Is(nextErr, io.EOF):
			return report, flush()
		case errors.Is(nextErr, core.ErrInvalidSource):
			report.add(Result{State: StateFailed, Err: nextErr})
			continue
		case nextErr != nil:
			if ctx.Err() == nil {
				if flushErr := flush(); flushErr != nil {
					return report, errors.Join(nextErr, flushErr)
				}
			}
			return report, nextErr
		}

		batch = append(batch, src)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func sourceID(src *core.Source) string {
	if src == nil {
		return ""
	}
	return src.ID
}
