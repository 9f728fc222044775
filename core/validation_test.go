package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateSource(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Hour)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		source  *Source
		wantErr error
	}{
		{
			name:    "valid source",
			source:  &Source{ID: "conv-1", Title: "Hello", CreatedAt: validTime},
			wantErr: nil,
		},
		{
			name:    "valid source without title",
			source:  &Source{ID: "conv-1"},
			wantErr: nil,
		},
		{
			name:    "nil source",
			source:  nil,
			wantErr: ErrInvalidSource,
		},
		{
			name:    "blank id",
			source:  &Source{ID: "  "},
			wantErr: ErrEmptyID,
		},
		{
			name:    "future timestamp",
			source:  &Source{ID: "conv-1", CreatedAt: futureTime},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.source)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSource() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSource() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUnit(t *testing.T) {
	tests := []struct {
		name    string
		unit    *Unit
		wantErr error
	}{
		{"valid unit", &Unit{ID: "u1", Content: "What is X?"}, nil},
		{"nil unit", nil, ErrInvalidUnit},
		{"empty id", &Unit{Content: "text"}, ErrEmptyID},
		{"blank content", &Unit{ID: "u1", Content: " \n\t"}, ErrEmptyContent},
		{"negative position", &Unit{ID: "u1", Content: "text", Position: -1}, ErrInvalidUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnit(tt.unit)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateUnit() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUnit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateArtifact(t *testing.T) {
	valid := &Artifact{SourceType: SourceTypeSource, SourceID: "s1", Title: "Learning"}
	if err := ValidateArtifact(valid); err != nil {
		t.Fatalf("ValidateArtifact() unexpected error = %v", err)
	}

	invalid := []*Artifact{
		nil,
		{SourceType: SourceTypeSource, Title: "no source"},
		{SourceType: "bogus", SourceID: "s1", Title: "bad type"},
		{SourceType: SourceTypeArtifact, SourceID: "s1"},
	}
	for i, a := range invalid {
		if err := ValidateArtifact(a); !errors.Is(err, ErrInvalidArtifact) {
			t.Errorf("case %d: ValidateArtifact() error = %v, want ErrInvalidArtifact", i, err)
		}
	}
}

func TestIsValidTimestamp(t *testing.T) {
	if !IsValidTimestamp(time.Time{}) {
		t.Error("zero time should be valid")
	}
	if IsValidTimestamp(time.Now().Add(time.Hour)) {
		t.Error("future time should be invalid")
	}
}
