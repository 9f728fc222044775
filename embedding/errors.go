package embedding

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrDimensionsRequired is returned when neither the embedder nor the
	// options declare a positive dimensionality.
	ErrDimensionsRequired = errors.New("embedding dimensions must be positive")

	// ErrClientReleased is returned by EmbedBatch after Release.
	ErrClientReleased = errors.New("embedding client released")
)

// BatchError reports the first failed text of an EmbedBatch call.
type BatchError struct {
	Index  int // Position of the failed text in the input
	Failed int // Number of texts that failed
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embedding text %d failed (%d of batch failed): %v", e.Index, e.Failed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
