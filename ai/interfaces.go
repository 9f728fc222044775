package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of every vector this embedder produces.
	// It is fixed for the lifetime of the embedder.
	Dimensions() int
}

// ArtifactExtractor derives structured artifact candidates from a context
// string using a language model.
// Implementations must be thread-safe for concurrent use.
type ArtifactExtractor interface {
	// Extract sends the instruction prompt and the context text to the model
	// and returns a tagged result. Schema validation failures and transport
	// failures are reported through the result status, never mixed.
	Extract(ctx context.Context, prompt, contextText string) ExtractionResult
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and ArtifactExtractor instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// ArtifactExtractor returns the structured extraction service.
	// The returned ArtifactExtractor is safe for concurrent use.
	ArtifactExtractor() ArtifactExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
