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


// Package storage provides the storage abstraction layer for recollect.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic, plus the vector codec every backend shares.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - Store: Main interface combining all storage operations
//   - SourceRepository: Sources (conversations and documents)
//   - UnitRepository: Units and their chunks, written together
//   - ChunkRepository: Chunk reads and vector maintenance
//   - ArtifactRepository: Extracted artifacts keyed by source entity
//   - VectorSource: Bulk vector enumeration for brute-force search
//
// The sqlite sub-package is the relational implementation. The badger
// sub-package holds the embedding cache, which is not part of Store.
//
// # Vectors
//
// Vectors are stored as raw little-endian float32 arrays (EncodeVector,
// DecodeVector). A store records its dimensionality on the first vector
// write and rejects any other length afterwards with ErrDimensionsChanged.
//
// # Usage
//
//	store, err := sqlite.Open(ctx, "/path/to/archive.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := sqlite.OpenMemory(ctx)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. Writes are serialized.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
