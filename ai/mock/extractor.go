package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/recollect/ai"
)

// MockArtifactExtractor is a test double for ai.ArtifactExtractor.
// It allows custom behavior injection via function fields.
type MockArtifactExtractor struct {
	// ExtractFunc is called by Extract if set.
	// If nil, uses default behavior: one learning titled after the first
	// line of the context.
	ExtractFunc func(ctx context.Context, prompt, contextText string) ai.ExtractionResult

	mu        sync.Mutex
	callCount int
	contexts  []string
}

// NewMockArtifactExtractor creates a mock extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockArtifactExtractor() *MockArtifactExtractor {
	return &MockArtifactExtractor{}
}

// Extract records the call and returns either ExtractFunc's result or a
// single deterministic candidate.
func (m *MockArtifactExtractor) Extract(ctx context.Context, prompt, contextText string) ai.ExtractionResult {
	m.mu.Lock()
	m.callCount++
	m.contexts = append(m.contexts, contextText)
	fn := m.ExtractFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, contextText)
	}
	if err := ctx.Err(); err != nil {
		return ai.TransportError(err)
	}

	title := strings.TrimSpace(strings.SplitN(contextText, "\n", 2)[0])
	if title == "" {
		return ai.Ok(nil)
	}
	return ai.Ok([]ai.Candidate{{
		Kind:    "learning",
		Title:   title,
		Summary: "summary of " + title,
		Fields:  map[string]any{"title": title, "summary": "summary of " + title},
	}})
}

// CallCount returns the number of times Extract was called.
func (m *MockArtifactExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Contexts returns a copy of every context string Extract received.
func (m *MockArtifactExtractor) Contexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.contexts...)
}

// Reset clears the call history and custom functions.
func (m *MockArtifactExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.contexts = nil
	m.ExtractFunc = nil
}
