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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/recollect/ai"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ArtifactExtractor implements ai.ArtifactExtractor using OpenAI-compatible chat APIs.
// Responses are requested in JSON mode and validated against ArtifactResponseSchema.
type ArtifactExtractor struct {
	client llms.Model
	schema *jsonschema.Schema
	logger *slog.Logger
}

var _ ai.ArtifactExtractor = (*ArtifactExtractor)(nil)

// newArtifactExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newArtifactExtractor(config *ai.Config) (*ArtifactExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ExtractionHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ExtractionModel),
	)
	if err != nil {
		return nil, err
	}

	return newArtifactExtractorWithModel(client)
}

// newArtifactExtractorWithModel wires an arbitrary llms.Model. Tests use it
// to substitute a fake model.
func newArtifactExtractorWithModel(client llms.Model) (*ArtifactExtractor, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &ArtifactExtractor{
		client: client,
		schema: schema,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewArtifactExtractor creates a new artifact extractor using the provided configuration.
//
// Returns ai.ArtifactExtractor interface to enforce abstraction.
func NewArtifactExtractor(config *ai.Config) (ai.ArtifactExtractor, error) {
	return newArtifactExtractor(config)
}

func compileSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.CompileString("mem://recollect/artifacts.schema.json", ArtifactResponseSchema)
	if err != nil {
		return nil, fmt.Errorf("compiling artifact schema: %w", err)
	}
	return schema, nil
}

// Extract asks the model for artifact candidates and validates the answer.
// A response that cannot be decoded or does not satisfy the schema yields
// ai.StatusSchemaError; a failed call yields ai.StatusTransportError.
func (e *ArtifactExtractor) Extract(ctx context.Context, prompt, contextText string) ai.ExtractionResult {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt(prompt)),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(contextText),
			},
		},
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		e.logger.Error("failed to generate content", "err", err)
		return ai.TransportError(classify("extract", err))
	}

	if len(response.Choices) < 1 {
		e.logger.Warn("no choices returned from model")
		return ai.TransportError(errors.New("model returned no choices"))
	}

	responseText := repairJSON(stripCodeFences(response.Choices[0].Content))
	result := parseCandidates(e.schema, responseText)
	if result.Status == ai.StatusSchemaError {
		e.logger.Warn("extraction response failed validation",
			"field", result.Field,
			"detail", result.Detail,
			"response", responseText)
	} else {
		e.logger.Debug("extracted artifacts", "count", len(result.Candidates))
	}
	return result
}

// parseCandidates decodes and validates a model response.
func parseCandidates(schema *jsonschema.Schema, text string) ai.ExtractionResult {
	decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
	decoder.UseNumber()

	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return ai.SchemaError("", "response is not valid JSON: "+err.Error(), err)
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			leaf := deepestCause(verr)
			return ai.SchemaError(leaf.InstanceLocation, leaf.Message, err)
		}
		return ai.SchemaError("", err.Error(), err)
	}

	items, _ := doc.(map[string]any)["artifacts"].([]any)
	candidates := make([]ai.Candidate, 0, len(items))
	for _, item := range items {
		fields := item.(map[string]any)
		candidate := ai.Candidate{
			Title:   fields["title"].(string),
			Summary: fields["summary"].(string),
			Fields:  fields,
		}
		if kind, ok := fields["kind"].(string); ok {
			candidate.Kind = kind
		}
		if tags, ok := fields["tags"].([]any); ok {
			for _, tag := range tags {
				candidate.Tags = append(candidate.Tags, tag.(string))
			}
		}
		candidates = append(candidates, candidate)
	}

	return ai.Ok(candidates)
}

// deepestCause follows the first cause chain to the most specific failure.
func deepestCause(verr *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	return verr
}
