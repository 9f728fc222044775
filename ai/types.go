package ai

import (
	"errors"

	"github.com/poiesic/recollect/core"
)

// ExtractionStatus tags the outcome of an extraction call.
type ExtractionStatus int

const (
	// StatusOK means the response validated; Candidates may still be empty.
	StatusOK ExtractionStatus = iota
	// StatusSchemaError means the model answered but the answer did not
	// satisfy the artifact schema.
	StatusSchemaError
	// StatusTransportError means the model could not be reached or failed
	// to answer.
	StatusTransportError
)

func (s ExtractionStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSchemaError:
		return "schema_error"
	case StatusTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Candidate is one validated artifact proposed by the model.
type Candidate struct {
	Kind    string
	Title   string
	Summary string
	Tags    []string

	// Fields holds the complete validated object, including any extra
	// properties the model returned.
	Fields map[string]any
}

// ExtractionResult is the tagged result of ArtifactExtractor.Extract.
type ExtractionResult struct {
	Status     ExtractionStatus
	Candidates []Candidate

	// Field and Detail describe a schema failure.
	Field  string
	Detail string

	// Err holds the underlying cause for schema and transport failures.
	Err error
}

// Ok builds a successful result.
func Ok(candidates []Candidate) ExtractionResult {
	if candidates == nil {
		candidates = []Candidate{}
	}
	return ExtractionResult{Status: StatusOK, Candidates: candidates}
}

// SchemaError builds a result for a response that failed validation.
func SchemaError(field, detail string, cause error) ExtractionResult {
	return ExtractionResult{Status: StatusSchemaError, Field: field, Detail: detail, Err: cause}
}

// TransportError builds a result for a failed provider call.
func TransportError(err error) ExtractionResult {
	return ExtractionResult{Status: StatusTransportError, Err: err}
}

// AsError converts a failed result into an error. Schema failures become
// *core.ValidationError. It returns nil for StatusOK.
func (r ExtractionResult) AsError() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusSchemaError:
		verr := &core.ValidationError{Field: r.Field, Detail: r.Detail}
		if r.Err != nil {
			return errors.Join(verr, r.Err)
		}
		return verr
	default:
		if r.Err == nil {
			return errors.New("extraction transport failure")
		}
		return r.Err
	}
}
