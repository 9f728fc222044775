package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/storage/sqlite/migrations"
)

const (
	defaultReaderConns = 4
	metaDimensions     = "dimensions"
)

var (
	// ErrPathRequired is returned by Open when no database path is given.
	ErrPathRequired = errors.New("database path is required")
)

// Store is the SQLite implementation of storage.Store.
//
// All writes go through a single connection guarded by a mutex. File
// databases get a separate read-only pool so searches never wait on the
// writer; in-memory databases share the writer connection.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	path   string

	writeMu sync.Mutex
	closed  atomic.Bool

	readerConns int
	logger      *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "sqlite-store")
		return nil
	}
}

// WithReaderConns bounds the read-only pool of a file database.
func WithReaderConns(n int) Option {
	return func(s *Store) error {
		if n <= 0 {
			return fmt.Errorf("reader connections must be positive, got %d", n)
		}
		s.readerConns = n
		return nil
	}
}

func newStore(opts ...Option) (*Store, error) {
	s := &Store{
		readerConns: defaultReaderConns,
		logger:      slog.Default().With("component", "sqlite-store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Open opens (or creates) the database file at path and applies pending
// migrations. The parent directory is created if needed.
func Open(ctx context.Context, path string, opts ...Option) (storage.Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	s, err := newStore(opts...)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	writer, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	writer.SetMaxOpenConns(1)
	s.writer = writer
	s.path = path

	if err := s.migrate(ctx, migrations.FS); err != nil {
		writer.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	reader, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening read pool: %w", err)
	}
	reader.SetMaxOpenConns(s.readerConns)
	s.reader = reader

	s.logger.Debug("opened store", "path", path)
	return s, nil
}

// OpenMemory opens a private in-memory database, mainly for tests.
func OpenMemory(ctx context.Context, opts ...Option) (storage.Store, error) {
	s, err := newStore(opts...)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps the database alive and private.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s.writer = db
	s.reader = db
	s.path = ":memory:"

	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes both connection pools. Closing twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	if s.reader != s.writer {
		errs = append(errs, s.reader.Close())
	}
	errs = append(errs, s.writer.Close())
	return errors.Join(errs...)
}

func (s *Store) check() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// withTx runs fn in a write transaction on the single writer connection.
// The transaction is rolled back if fn returns an error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := s.check(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// migrate applies every *.up.sql file newer than the recorded version.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.writer.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.writer.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.writer.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", storage.ErrMigrationFailed, name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %s: %w", storage.ErrMigrationFailed, name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: recording %s: %w", storage.ErrMigrationFailed, name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: %s: %w", storage.ErrMigrationFailed, name, err)
		}
		s.logger.Info("applied migration", "version", version, "name", name)
	}

	return nil
}

// Dimensions returns the recorded vector dimensionality, or 0 if none.
func (s *Store) Dimensions(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var value string
	err := s.reader.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", metaDimensions).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dimensions: %w", err)
	}
	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing dimensions %q: %w", value, err)
	}
	return dims, nil
}

// ensureDimensions records dims on first use and rejects any other length
// afterwards. It must run inside a write transaction.
func ensureDimensions(ctx context.Context, tx *sql.Tx, dims int) error {
	var value string
	err := tx.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", metaDimensions).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx, "INSERT INTO store_meta (key, value) VALUES (?, ?)", metaDimensions, strconv.Itoa(dims))
		if err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading dimensions: %w", err)
	}

	recorded, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parsing dimensions %q: %w", value, err)
	}
	if recorded != dims {
		return fmt.Errorf("%w: %w", storage.ErrDimensionsChanged, &core.DimensionMismatchError{Expected: recorded, Actual: dims})
	}
	return nil
}

// checkVectors verifies that all non-empty vectors share one length and
// that it matches the recorded dimensionality.
func checkVectors(ctx context.Context, tx *sql.Tx, vectors ...[]float32) error {
	dims := 0
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if dims == 0 {
			dims = len(v)
			continue
		}
		if len(v) != dims {
			return fmt.Errorf("%w: %w", storage.ErrDimensionsChanged, &core.DimensionMismatchError{Expected: dims, Actual: len(v)})
		}
	}
	if dims == 0 {
		return nil
	}
	return ensureDimensions(ctx, tx, dims)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %w", storage.ErrNotFound, &core.NotFoundError{Kind: kind, ID: id})
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
