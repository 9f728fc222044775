package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/recollect/core"
)

// sourceRecord is one line of the normalized import format.
type sourceRecord struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Summary   string            `json:"summary"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]string `json:"metadata"`
	Units     []unitRecord      `json:"units"`
}

type unitRecord struct {
	ID        string    `json:"id"`
	Position  *int      `json:"position"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// JSONLStream decodes one Source per JSON value from a reader. Values are
// normally newline separated but any whitespace works.
type JSONLStream struct {
	decoder *json.Decoder
	closer  io.Closer
	record  int
	closed  bool
}

var _ Stream = (*JSONLStream)(nil)

// OpenJSONL opens path and returns a fresh stream positioned at the first
// record. Each call reopens the file, so an interrupted import can simply
// be started again.
func OpenJSONL(path string) (*JSONLStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	s := NewJSONLStream(bufio.NewReader(f))
	s.closer = f
	return s, nil
}

// NewJSONLStream reads records from r. Close does not close r.
func NewJSONLStream(r io.Reader) *JSONLStream {
	return &JSONLStream{decoder: json.NewDecoder(r)}
}

// Next decodes the next record. Malformed JSON ends the stream with an
// error; a record that decodes but is invalid returns an error wrapping
// core.ErrInvalidSource and the stream can continue.
func (s *JSONLStream) Next(ctx context.Context) (*core.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, io.EOF
	}

	var rec sourceRecord
	if err := s.decoder.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record %d: %w", s.record+1, err)
	}
	s.record++

	src, err := rec.toSource()
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", s.record, err)
	}
	return src, nil
}

// Close closes the file opened by OpenJSONL.
func (s *JSONLStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (rec *sourceRecord) toSource() (*core.Source, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidSource, core.ErrEmptyID)
	}

	kind := core.SourceKind(rec.Kind)
	switch kind {
	case "":
		kind = core.SourceKindConversation
	case core.SourceKindConversation, core.SourceKindDocument:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", core.ErrInvalidSource, rec.Kind)
	}

	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = rec.CreatedAt
	}

	src := &core.Source{
		ID:        id,
		Kind:      kind,
		Title:     rec.Title,
		Summary:   rec.Summary,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: updated.UTC(),
		Metadata:  rec.Metadata,
		Units:     make([]*core.Unit, 0, len(rec.Units)),
	}

	for i, u := range rec.Units {
		position := i
		if u.Position != nil {
			position = *u.Position
		}
		created := u.CreatedAt
		if created.IsZero() {
			created = rec.CreatedAt
		}
		unitID := strings.TrimSpace(u.ID)
		if unitID == "" {
			unitID = UnitID(id, position, u.Content)
		}
		src.Units = append(src.Units, &core.Unit{
			ID:        unitID,
			SourceID:  id,
			Position:  position,
			Sender:    core.Sender(u.Sender),
			Content:   u.Content,
			CreatedAt: created.UTC(),
		})
	}
	return src, nil
}

// UnitID derives a stable identifier for a Unit that arrived without one.
func UnitID(sourceID string, position int, content string) string {
	return core.IDFromContent(sourceID + "\x00" + strconv.Itoa(position) + "\x00" + content)
}
