package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// IDFromContent generates a deterministic identifier from text content using BLAKE2b hashing.
// Identical content always produces the identical 16 character hex string.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceKind identifies what a Source was imported from.
type SourceKind string

const (
	// SourceKindConversation is an exported chat transcript.
	SourceKindConversation SourceKind = "conversation"
	// SourceKindDocument is a paged or segmented document.
	SourceKindDocument SourceKind = "document"
)

// Sender identifies who produced a Unit. Document pages have no sender.
type Sender string

const (
	SenderHuman     Sender = "human"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// SourceType tags the entity an Artifact was derived from.
type SourceType string

const (
	// SourceTypeSource means the artifact was extracted from a Source.
	SourceTypeSource SourceType = "source"
	// SourceTypeArtifact means the artifact was extracted from another
	// artifact, such as a topic.
	SourceTypeArtifact SourceType = "artifact"
)

// ArtifactKind categorizes derived artifacts.
type ArtifactKind string

const (
	ArtifactKindLearning ArtifactKind = "learning"
	ArtifactKindTopic    ArtifactKind = "topic"
)

// Source is a top-level archived entity such as a conversation or document.
type Source struct {
	ID        string
	Kind      SourceKind
	Title     string
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]string
	Units     []*Unit // Ordered by Position; not persisted with the source row
}

// Unit is an ordered child of a Source: a message or a page.
type Unit struct {
	ID        string
	SourceID  string
	Position  int // 0-based, unique within the source
	Sender    Sender
	Content   string
	CreatedAt time.Time
	Chunks    []*Chunk
}

// Chunk is a bounded fragment of a Unit and the smallest embedded item.
type Chunk struct {
	ID        int64 // Assigned by the store
	SourceID  string
	UnitID    string
	Index     int // Unique within the unit
	Text      string
	CharCount int
	Vector    []float32
}

// Artifact is a structured record derived from a source entity by extraction.
type Artifact struct {
	ID         string
	Kind       ArtifactKind
	SourceType SourceType
	SourceID   string
	Title      string
	Content    map[string]any
	Vector     []float32
	CreatedAt  time.Time
}

// ArtifactKey identifies the group of artifacts derived from one entity.
type ArtifactKey struct {
	SourceType SourceType
	SourceID   string
}

// String returns the key as "type:id".
func (k ArtifactKey) String() string {
	return string(k.SourceType) + ":" + k.SourceID
}

// Key returns the artifact's group key.
func (a *Artifact) Key() ArtifactKey {
	return ArtifactKey{SourceType: a.SourceType, SourceID: a.SourceID}
}
