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


// Package ai defines the model services recollect depends on and the
// configuration shared by their implementations.
//
// Two services are needed:
//
//   - Embedder turns text into fixed-length vectors.
//   - ArtifactExtractor asks a chat model for artifact candidates and
//     validates the reply against a JSON schema.
//
// AIProvider bundles both behind one lifecycle. ai/openai talks to any
// OpenAI-compatible server (Ollama, vLLM, LocalAI, hosted OpenAI); ai/mock
// supplies deterministic doubles for tests.
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithHost(host)))
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "hello")
//	res := provider.ArtifactExtractor().Extract(ctx, instructions, transcript)
//	if err := res.AsError(); err != nil {
//	    return err
//	}
//
// Production constructors return interfaces. Mock constructors return
// concrete types so tests can swap behavior through the XxxFunc fields and
// read CallCount.
//
// RetryTransient retries only errors IsTransient accepts, such as rate
// limits and gateway timeouts. Anything else fails on the first attempt.
package ai
