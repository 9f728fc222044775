package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"same content produces same ID", "test content"},
		{"empty string", ""},
		{"long content", "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			assert.Equal(t, id1, id2)
			assert.Len(t, id1, 16)
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestArtifactKey(t *testing.T) {
	a := &Artifact{SourceType: SourceTypeArtifact, SourceID: "topic-1"}
	assert.Equal(t, ArtifactKey{SourceType: SourceTypeArtifact, SourceID: "topic-1"}, a.Key())
	assert.Equal(t, "artifact:topic-1", a.Key().String())
}

func TestErrorTypes(t *testing.T) {
	t.Run("transient unwraps", func(t *testing.T) {
		inner := errors.New("429 too many requests")
		err := error(&TransientProviderError{Op: "embed", Err: inner})
		assert.ErrorIs(t, err, inner)
		assert.Contains(t, err.Error(), "embed")
	})

	t.Run("not found detection through wrapping", func(t *testing.T) {
		err := errors.Join(errors.New("context"), &NotFoundError{Kind: "source", ID: "s1"})
		assert.True(t, IsNotFound(err))
		assert.False(t, IsNotFound(errors.New("other")))
	})

	t.Run("dimension mismatch message", func(t *testing.T) {
		err := &DimensionMismatchError{Expected: 3, Actual: 2}
		assert.Equal(t, "dimension mismatch: expected 3, got 2", err.Error())
	})

	t.Run("validation message", func(t *testing.T) {
		assert.Equal(t, "validation failed: bad", (&ValidationError{Detail: "bad"}).Error())
		assert.Equal(t, "validation failed at /artifacts/0: missing title",
			(&ValidationError{Field: "/artifacts/0", Detail: "missing title"}).Error())
	})
}
