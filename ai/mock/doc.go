// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ArtifactExtractor,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockEmbedder := mock.NewMockEmbedder().WithDimensions(3)
//	mockEmbedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Check call counts
//	count := mockEmbedder.CallCount()
//
//	// Force a schema failure from the extractor
//	extractor := mock.NewMockArtifactExtractor()
//	extractor.ExtractFunc = func(ctx context.Context, prompt, text string) ai.ExtractionResult {
//	    return ai.SchemaError("/artifacts/0", "missing title", nil)
//	}
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockArtifactExtractor: Returns one learning titled after the first line of context
//   - MockProvider: Aggregates mock embedder and extractor
package mock
