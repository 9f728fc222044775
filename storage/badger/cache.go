package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recollect/storage"
)

const (
	// DefaultTTL is how long a cached embedding lives.
	DefaultTTL = 30 * 24 * time.Hour
)

var (
	// ErrModelRequired is returned when the cache is created without a model name.
	ErrModelRequired = errors.New("embedding model name is required")
)

// EmbeddingCache stores text embeddings in BadgerDB keyed by model and a
// BLAKE2b hash of the text. Entries expire after the configured TTL.
type EmbeddingCache struct {
	backend *Backend
	model   string
	ttl     time.Duration
	logger  *slog.Logger
	owned   bool
}

// CacheOption configures an EmbeddingCache.
type CacheOption func(*EmbeddingCache) error

// WithTTL sets the entry lifetime. Zero disables expiry.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *EmbeddingCache) error {
		if ttl < 0 {
			return fmt.Errorf("ttl must not be negative, got %s", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *EmbeddingCache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding-cache")
		return nil
	}
}

// NewEmbeddingCache creates a cache on an open backend. The backend stays
// owned by the caller.
func NewEmbeddingCache(backend *Backend, model string, opts ...CacheOption) (*EmbeddingCache, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if model == "" {
		return nil, ErrModelRequired
	}
	c := &EmbeddingCache{
		backend: backend,
		model:   model,
		ttl:     DefaultTTL,
		logger:  slog.Default().With("component", "embedding-cache"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// OpenEmbeddingCache opens a file-backed cache in dirPath. Closing the cache
// closes the backend.
func OpenEmbeddingCache(dirPath, model string, opts ...CacheOption) (*EmbeddingCache, error) {
	backend, err := OpenBackend(dirPath, false, nil)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	c, err := NewEmbeddingCache(backend, model, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// Get returns the cached vector for text. A miss returns (nil, false, nil).
func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if c.backend.IsClosed() {
		return nil, false, storage.ErrStorageClosed
	}

	var vector []float32
	err := c.backend.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeEmbeddingKey(c.model, text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			vector, err = storage.DecodeVector(val, 0)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached embedding: %w", err)
	}
	return vector, true, nil
}

// Put stores the vector for text, replacing any previous entry.
func (c *EmbeddingCache) Put(ctx context.Context, text string, vector []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: refusing to cache an empty vector", storage.ErrInvalidVector)
	}

	entry := badger.NewEntry(makeEmbeddingKey(c.model, text), storage.EncodeVector(vector))
	if c.ttl > 0 {
		entry = entry.WithTTL(c.ttl)
	}
	if err := c.backend.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("writing cached embedding: %w", err)
	}
	return nil
}

// Purge removes every entry cached for this cache's model.
func (c *EmbeddingCache) Purge() error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := c.backend.db.DropPrefix(makeModelPrefix(c.model)); err != nil {
		return fmt.Errorf("purging embedding cache: %w", err)
	}
	c.logger.Info("purged embedding cache", "model", c.model)
	return nil
}

// Len counts live entries for this cache's model.
func (c *EmbeddingCache) Len() (int, error) {
	if c.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := c.backend.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeModelPrefix(c.model)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close closes the backend if the cache opened it.
func (c *EmbeddingCache) Close() error {
	if !c.owned || c.backend.IsClosed() {
		return nil
	}
	return c.backend.Close()
}
