package storage

import (
	"context"

	"github.com/poiesic/recollect/core"
)

// VectorKind selects which stored vectors a VectorSource yields.
type VectorKind int

const (
	// VectorKindChunk yields chunk vectors grouped under their Source.
	VectorKindChunk VectorKind = iota
	// VectorKindArtifact yields artifact vectors grouped under their
	// (source type, source id) key.
	VectorKindArtifact
)

func (k VectorKind) String() string {
	switch k {
	case VectorKindChunk:
		return "chunk"
	case VectorKindArtifact:
		return "artifact"
	default:
		return "unknown"
	}
}

// StoredVector is one embedded child row and the parent it aggregates under.
type StoredVector struct {
	// ParentID is the Source id for chunks, or core.ArtifactKey.String()
	// for artifacts.
	ParentID string
	// ChildID is the chunk id (decimal) or the artifact id.
	ChildID string
	Vector  []float32
}

// SourceRepository provides operations for managing Sources.
type SourceRepository interface {
	// ExistingSourceIDs reports which of the given ids are already stored.
	// It issues one query per call regardless of the number of ids.
	ExistingSourceIDs(ctx context.Context, ids ...string) (map[string]bool, error)

	// AddSources inserts Sources without their Units. Sources whose id
	// already exists are left untouched.
	AddSources(ctx context.Context, sources ...*core.Source) error

	// GetSource retrieves a Source without its Units.
	// Returns a *core.NotFoundError if the Source doesn't exist.
	GetSource(ctx context.Context, id string) (*core.Source, error)

	// ListSourceIDs returns every Source id ordered by creation time.
	ListSourceIDs(ctx context.Context) ([]string, error)
}

// UnitRepository provides operations for managing Units and their chunks.
type UnitRepository interface {
	// ExistingUnitIDs reports which of the given unit ids are already
	// stored under sourceID, in one query.
	ExistingUnitIDs(ctx context.Context, sourceID string, ids ...string) (map[string]bool, error)

	// AddUnit inserts a Unit and all of its Chunks in a single transaction
	// and assigns chunk ids. Vectors are checked against the recorded
	// dimensionality.
	AddUnit(ctx context.Context, unit *core.Unit) error

	// GetUnit retrieves a Unit without its chunks. Unit ids are scoped to
	// their Source.
	GetUnit(ctx context.Context, sourceID, id string) (*core.Unit, error)

	// GetUnits returns every Unit of a Source ordered by position.
	GetUnits(ctx context.Context, sourceID string) ([]*core.Unit, error)

	// GetUnitsInRange returns Units with from <= position <= to in
	// ascending order. An inverted range returns an empty slice.
	GetUnitsInRange(ctx context.Context, sourceID string, from, to int) ([]*core.Unit, error)
}

// ChunkRepository provides read and vector maintenance operations on chunks.
type ChunkRepository interface {
	// GetChunk retrieves a chunk and its vector.
	GetChunk(ctx context.Context, id int64) (*core.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// ScanChunks returns up to limit chunks with id > afterID in id order.
	ScanChunks(ctx context.Context, afterID int64, limit int) ([]*core.Chunk, error)

	// UpdateChunkVectors replaces chunk vectors in a single transaction.
	UpdateChunkVectors(ctx context.Context, vectors map[int64][]float32) error
}

// ArtifactRepository provides operations for managing Artifacts.
type ArtifactRepository interface {
	// ArtifactsFor returns the artifacts derived from one source entity.
	ArtifactsFor(ctx context.Context, key core.ArtifactKey) ([]*core.Artifact, error)

	// AddArtifacts persists artifacts in a single transaction.
	AddArtifacts(ctx context.Context, artifacts ...*core.Artifact) error

	// DeleteArtifacts removes every artifact derived from key and returns
	// how many were removed.
	DeleteArtifacts(ctx context.Context, key core.ArtifactKey) (int, error)

	// ReplaceArtifacts atomically swaps the artifacts derived from key for
	// the given ones and returns how many were removed. A failure leaves
	// the previous artifacts in place.
	ReplaceArtifacts(ctx context.Context, key core.ArtifactKey, artifacts ...*core.Artifact) (int, error)

	// GetArtifact retrieves one artifact by id.
	GetArtifact(ctx context.Context, id string) (*core.Artifact, error)

	// CountArtifacts returns the number of stored artifacts.
	CountArtifacts(ctx context.Context) (int, error)

	// ScanArtifacts returns up to limit artifacts with id > afterID in id order.
	ScanArtifacts(ctx context.Context, afterID string, limit int) ([]*core.Artifact, error)

	// UpdateArtifactVectors replaces artifact vectors in a single transaction.
	UpdateArtifactVectors(ctx context.Context, vectors map[string][]float32) error
}

// VectorSource enumerates stored vectors for brute-force search.
type VectorSource interface {
	// LoadVectors returns every non-null vector of the given kind.
	LoadVectors(ctx context.Context, kind VectorKind) ([]StoredVector, error)
}

// MetaRepository exposes store-wide settings.
type MetaRepository interface {
	// Dimensions returns the recorded vector dimensionality, or 0 when no
	// vector has been written yet.
	Dimensions(ctx context.Context) (int, error)
}

// Store combines every repository behind one handle.
// Implementations must be thread-safe and serialize writes.
type Store interface {
	SourceRepository
	UnitRepository
	ChunkRepository
	ArtifactRepository
	VectorSource
	MetaRepository

	// Close closes the storage backend and releases resources.
	Close() error
}
