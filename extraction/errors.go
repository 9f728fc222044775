package extraction

import "errors"

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrExtractorRequired is returned when an artifact extractor is not provided.
	ErrExtractorRequired = errors.New("artifact extractor required")

	// ErrClientRequired is returned when an embedding client is not provided.
	ErrClientRequired = errors.New("embedding client required")

	// ErrPromptsRequired is returned when a prompt provider is not provided.
	ErrPromptsRequired = errors.New("prompt provider required")

	// ErrNoPrompt is returned when no template exists for a source type.
	ErrNoPrompt = errors.New("no prompt template")
)
