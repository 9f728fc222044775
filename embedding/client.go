package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/core"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency bounds the embedding calls in flight per client.
	DefaultConcurrency = 16

	// DefaultMaxAttempts is the number of tries for a transient failure,
	// counting the first.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the wait before the first retry. It doubles on
	// each further attempt.
	DefaultBaseDelay = time.Second
)

// Cache stores vectors by text. Implementations must be thread-safe.
type Cache interface {
	Get(ctx context.Context, text string) ([]float32, bool, error)
	Put(ctx context.Context, text string, vector []float32) error
}

// Client wraps an ai.Embedder with bounded fan-out, transient-error retry,
// optional rate limiting and caching, and a dimensionality check on every
// vector it returns.
type Client struct {
	embedder    ai.Embedder
	dims        int
	concurrency int
	maxAttempts int
	baseDelay   time.Duration
	limiter     *rate.Limiter
	cache       Cache
	pool        *ants.Pool
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithConcurrency bounds how many provider calls EmbedBatch runs at once.
func WithConcurrency(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1, got %d", n)
		}
		c.concurrency = n
		return nil
	}
}

// WithRetry sets the attempt budget and the base backoff delay for
// transient failures.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) error {
		if maxAttempts < 1 {
			return ai.ErrInvalidMaxAttempts
		}
		if baseDelay < 0 {
			return fmt.Errorf("base delay must not be negative, got %s", baseDelay)
		}
		c.maxAttempts = maxAttempts
		c.baseDelay = baseDelay
		return nil
	}
}

// WithRateLimit caps provider calls at rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst < 1 {
			return fmt.Errorf("invalid rate limit: %v/s burst %d", rps, burst)
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithCache consults cache before calling the provider and fills it after.
func WithCache(cache Cache) Option {
	return func(c *Client) error {
		c.cache = cache
		return nil
	}
}

// WithDimensions overrides the dimensionality reported by the embedder.
func WithDimensions(dims int) Option {
	return func(c *Client) error {
		if dims < 1 {
			return ErrDimensionsRequired
		}
		c.dims = dims
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding-client")
		return nil
	}
}

// NewClient creates an embedding client. Call Release when done.
func NewClient(embedder ai.Embedder, opts ...Option) (*Client, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Client{
		embedder:    embedder,
		dims:        embedder.Dimensions(),
		concurrency: DefaultConcurrency,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      slog.Default().With("component", "embedding-client"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.dims < 1 {
		return nil, ErrDimensionsRequired
	}

	pool, err := ants.NewPool(c.concurrency)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	return c, nil
}

// Dimensions returns the declared vector length.
func (c *Client) Dimensions() int {
	return c.dims
}

// Embed returns the vector for one text, retrying transient provider
// failures with exponential backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.cache != nil {
		vector, ok, err := c.cache.Get(ctx, text)
		switch {
		case err != nil:
			c.logger.Warn("embedding cache read failed", "err", err)
		case ok && len(vector) == c.dims:
			return vector, nil
		}
	}

	var (
		vector   []float32
		attempts int
	)
	err := ai.RetryTransient(ctx, func() error {
		attempts++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		v, err := c.embedder.EmbedText(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}, c.maxAttempts, c.baseDelay)
	if err != nil {
		if attempts >= c.maxAttempts && ai.IsTransient(err) {
			return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		return nil, err
	}

	if len(vector) != c.dims {
		return nil, &core.DimensionMismatchError{Expected: c.dims, Actual: len(vector)}
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, text, vector); err != nil {
			c.logger.Warn("embedding cache write failed", "err", err)
		}
	}
	return vector, nil
}

// EmbedBatch embeds every text concurrently and returns vectors in input
// order. If any text fails the whole batch fails with a *BatchError; no
// partial result is returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.pool.IsClosed() {
		return nil, ErrClientReleased
	}

	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			vectors[i], errs[i] = c.Embed(ctx, text)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	var batchErr *BatchError
	for i, err := range errs {
		if err == nil {
			continue
		}
		if batchErr == nil {
			batchErr = &BatchError{Index: i, Err: err}
		}
		batchErr.Failed++
	}
	if batchErr != nil {
		c.logger.Error("embedding batch failed",
			"texts", len(texts), "failed", batchErr.Failed, "first", batchErr.Index, "err", batchErr.Err)
		return nil, batchErr
	}

	c.logger.Debug("embedded batch", "texts", len(texts))
	return vectors, nil
}

// Release stops the worker pool. The client must not be used afterwards.
func (c *Client) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}
