package importer

import (
	"context"
	"io"

	"github.com/poiesic/recollect/core"
)

// Stream yields Sources one at a time. Next returns io.EOF after the last
// Source. Close releases the underlying resource and may be called more
// than once.
type Stream interface {
	Next(ctx context.Context) (*core.Source, error)
	Close() error
}

// SliceStream serves Sources from memory.
type SliceStream struct {
	sources []*core.Source
	pos     int
	closed  bool
}

var _ Stream = (*SliceStream)(nil)

// NewSliceStream returns a Stream over sources.
func NewSliceStream(sources ...*core.Source) *SliceStream {
	return &SliceStream{sources: sources}
}

func (s *SliceStream) Next(ctx context.Context) (*core.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.pos >= len(s.sources) {
		return nil, io.EOF
	}
	src := s.sources[s.pos]
	s.pos++
	return src, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}
