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


package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateSource validates a Source according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - CreatedAt must not be in the future
//
// NOT validated:
//   - Title (untitled conversations are common in exports)
//   - Units (validated individually by ValidateUnit)
func ValidateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidSource)
	}

	if strings.TrimSpace(source.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrEmptyID)
	}

	if !IsValidTimestamp(source.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateUnit validates a Unit according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Content must not be blank
//   - Position must not be negative
func ValidateUnit(unit *Unit) error {
	if unit == nil {
		return fmt.Errorf("%w: unit is nil", ErrInvalidUnit)
	}

	if strings.TrimSpace(unit.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, ErrEmptyID)
	}

	if strings.TrimSpace(unit.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, ErrEmptyContent)
	}

	if unit.Position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidUnit, unit.Position)
	}

	return nil
}

// ValidateArtifact validates an Artifact before it is persisted.
func ValidateArtifact(artifact *Artifact) error {
	if artifact == nil {
		return fmt.Errorf("%w: artifact is nil", ErrInvalidArtifact)
	}
	if strings.TrimSpace(artifact.SourceID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, ErrEmptyID)
	}
	if err := ValidateSourceType(artifact.SourceType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	if strings.TrimSpace(artifact.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidArtifact)
	}
	return nil
}

// ValidateSourceType validates that a SourceType has a known value.
func ValidateSourceType(st SourceType) error {
	if st != SourceTypeSource && st != SourceTypeArtifact {
		return fmt.Errorf("unknown source type %q", st)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
// The zero time is accepted.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
