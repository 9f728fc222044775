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


package openai

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/recollect/ai"
)

// ErrNilConfig is returned by NewProvider when no configuration is given.
var ErrNilConfig = errors.New("openai: nil config")

// Provider serves embeddings and artifact extraction from OpenAI-compatible
// endpoints. The two services may point at different hosts.
type Provider struct {
	embedder  *Embedder
	extractor *ArtifactExtractor
	logger    *slog.Logger
	closed    atomic.Bool
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets the provider's logger. A nil logger keeps the default.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger.With("component", "openai-provider")
		}
	}
}

// NewProvider validates config and builds both services from it.
func NewProvider(config *ai.Config, opts ...ProviderOption) (ai.AIProvider, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{logger: slog.Default().With("component", "openai-provider")}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.embedder, err = newEmbedder(config); err != nil {
		return nil, err
	}
	if p.extractor, err = newArtifactExtractor(config); err != nil {
		return nil, err
	}

	p.logger.Debug("provider ready",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"extraction_host", config.ExtractionHost,
		"extraction_model", config.ExtractionModel)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) ArtifactExtractor() ai.ArtifactExtractor {
	return p.extractor
}

// Close marks the provider closed. The HTTP clients hold no resources that
// need releasing, so repeated calls are harmless.
func (p *Provider) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.logger.Debug("provider closed")
	}
	return nil
}
