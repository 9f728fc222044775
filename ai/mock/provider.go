// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package mock

import (
	"sync/atomic"

	"github.com/poiesic/recollect/ai"
)

// MockProvider bundles a MockEmbedder and a MockArtifactExtractor behind
// ai.AIProvider.
type MockProvider struct {
	embedder  *MockEmbedder
	extractor *MockArtifactExtractor
	closes    atomic.Int32
}

// NewMockProvider returns a provider over default mocks.
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithServices(nil, nil)
}

// NewMockProviderWithServices returns a provider over the given mocks. A nil
// service is replaced with a default one.
func NewMockProviderWithServices(embedder *MockEmbedder, extractor *MockArtifactExtractor) ai.AIProvider {
	if embedder == nil {
		embedder = NewMockEmbedder()
	}
	if extractor == nil {
		extractor = NewMockArtifactExtractor()
	}
	return &MockProvider{embedder: embedder, extractor: extractor}
}

func (p *MockProvider) Embedder() ai.Embedder                   { return p.embedder }
func (p *MockProvider) ArtifactExtractor() ai.ArtifactExtractor { return p.extractor }

// Close counts calls; it never fails.
func (p *MockProvider) Close() error {
	p.closes.Add(1)
	return nil
}

// CloseCount reports how many times Close was called.
func (p *MockProvider) CloseCount() int {
	return int(p.closes.Load())
}

// GetMockEmbedder exposes the concrete embedder for assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder { return p.embedder }

// GetMockExtractor exposes the concrete extractor for assertions.
func (p *MockProvider) GetMockExtractor() *MockArtifactExtractor { return p.extractor }
