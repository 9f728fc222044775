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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrInvalidVector indicates a stored vector blob that cannot be decoded.
	ErrInvalidVector = errors.New("invalid vector encoding")

	// ErrDimensionsChanged indicates a write whose vector length differs from
	// the dimensionality recorded by the store.
	ErrDimensionsChanged = errors.New("embedding dimensions changed")

	// ErrMigrationFailed indicates that a schema migration could not be applied.
	ErrMigrationFailed = errors.New("migration failed")
)
