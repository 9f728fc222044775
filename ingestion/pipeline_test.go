package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/recollect/ai/mock"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/embedding"
	"github.com/poiesic/recollect/importer"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 8

type fixture struct {
	store    storage.Store
	embedder *mock.MockEmbedder
	pipeline *Pipeline
}

func setupPipeline(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder := mock.NewMockEmbedder().WithDimensions(testDims)
	client, err := embedding.NewClient(embedder, embedding.WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(client.Release)

	pipeline, err := NewPipeline(store, client, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return &fixture{store: store, embedder: embedder, pipeline: pipeline}
}

func conversation(id string, messages ...string) *core.Source {
	created := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	src := &core.Source{
		ID:        id,
		Kind:      core.SourceKindConversation,
		Title:     "Conversation " + id,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for i, msg := range messages {
		sender := core.SenderHuman
		if i%2 == 1 {
			sender = core.SenderAssistant
		}
		src.Units = append(src.Units, &core.Unit{
			ID:        importer.UnitID(id, i, msg),
			SourceID:  id,
			Position:  i,
			Sender:    sender,
			Content:   msg,
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		})
	}
	return src
}

func TestNewPipeline(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.OpenMemory(ctx)
	require.NoError(t, err)
	defer store.Close()

	client, err := embedding.NewClient(mock.NewMockEmbedder())
	require.NoError(t, err)
	defer client.Release()

	t.Run("nil store", func(t *testing.T) {
		_, err := NewPipeline(nil, client)
		assert.ErrorIs(t, err, ErrStoreRequired)
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewPipeline(store, nil)
		assert.ErrorIs(t, err, ErrClientRequired)
	})

	t.Run("defaults", func(t *testing.T) {
		p, err := NewPipeline(store, client)
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 3000, p.maxChars)
		assert.Equal(t, DefaultBatchSize, p.batchSize)
		assert.GreaterOrEqual(t, p.pool.Cap(), 1)
	})

	t.Run("options", func(t *testing.T) {
		p, err := NewPipeline(store, client, WithPoolSize(3), WithMaxChars(100), WithBatchSize(7), WithLogger(nil))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 3, p.pool.Cap())
		assert.Equal(t, 100, p.maxChars)
		assert.Equal(t, 7, p.batchSize)
		assert.NotNil(t, p.logger)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewPipeline(store, client, WithMaxChars(0))
		assert.Error(t, err)
		_, err = NewPipeline(store, client, WithBatchSize(-1))
		assert.Error(t, err)
	})
}

func TestPipeline_Ingest(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	sources := []*core.Source{
		conversation("c1", "How do I enable WAL?", "Set journal_mode to WAL.", "Thanks!"),
		conversation("c2", "What is a chunk?"),
	}

	report, err := f.pipeline.Ingest(ctx, sources)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SourcesAdded)
	assert.Equal(t, 4, report.UnitsAdded)
	assert.Equal(t, 4, report.ChunksAdded)
	assert.Zero(t, report.UnitsFailed)
	assert.Empty(t, report.Failures())
	assert.Len(t, report.Results, 4)
	for _, res := range report.Results {
		assert.Equal(t, StatePersisted, res.State)
		assert.Equal(t, 1, res.Chunks)
	}

	units, err := f.store.GetUnits(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "Set journal_mode to WAL.", units[1].Content)
	assert.Equal(t, core.SenderAssistant, units[1].Sender)

	chunks, err := f.store.ScanChunks(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for _, chunk := range chunks {
		assert.Equal(t, mock.Vector(chunk.Text, testDims), chunk.Vector, "chunk %d", chunk.ID)
	}

	dims, err := f.store.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDims, dims)
}

func TestPipeline_Ingest_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	sources := []*core.Source{
		conversation("c1", "first", "second"),
		conversation("c2", "third"),
	}
	_, err := f.pipeline.Ingest(ctx, sources)
	require.NoError(t, err)
	calls := f.embedder.CallCount()
	chunksBefore, err := f.store.CountChunks(ctx)
	require.NoError(t, err)

	report, err := f.pipeline.Ingest(ctx, sources)
	require.NoError(t, err)
	assert.Zero(t, report.SourcesAdded)
	assert.Equal(t, 2, report.SourcesSkipped)
	assert.Zero(t, report.UnitsAdded)
	assert.Equal(t, 3, report.UnitsSkipped)
	assert.Equal(t, calls, f.embedder.CallCount(), "no embedding calls on re-run")

	chunksAfter, err := f.store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, chunksBefore, chunksAfter)
}

func TestPipeline_Ingest_UnitIDsScopedToSource(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	// Exports commonly number messages per conversation.
	sources := []*core.Source{
		conversation("a", "hello from a"),
		conversation("b", "hello from b"),
	}
	for _, src := range sources {
		src.Units[0].ID = "m0"
	}

	report, err := f.pipeline.Ingest(ctx, sources)
	require.NoError(t, err)
	assert.Equal(t, 2, report.UnitsAdded)
	assert.Zero(t, report.UnitsFailed)
	calls := f.embedder.CallCount()

	report, err = f.pipeline.Ingest(ctx, sources)
	require.NoError(t, err)
	assert.Equal(t, 2, report.UnitsSkipped)
	assert.Zero(t, report.UnitsFailed)
	assert.Equal(t, calls, f.embedder.CallCount(), "no embedding calls on re-run")

	for _, id := range []string{"a", "b"} {
		unit, err := f.store.GetUnit(ctx, id, "m0")
		require.NoError(t, err)
		assert.Equal(t, "hello from "+id, unit.Content)
	}

	chunks, err := f.store.ScanChunks(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{chunks[0].SourceID, chunks[1].SourceID})
}

func TestPipeline_Ingest_NewUnitsOnExistingSource(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	_, err := f.pipeline.Ingest(ctx, []*core.Source{conversation("c1", "one", "two")})
	require.NoError(t, err)

	report, err := f.pipeline.Ingest(ctx, []*core.Source{conversation("c1", "one", "two", "three")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesSkipped)
	assert.Equal(t, 2, report.UnitsSkipped)
	assert.Equal(t, 1, report.UnitsAdded)

	units, err := f.store.GetUnits(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, units, 3)
}

func TestPipeline_Ingest_LongUnitIsChunked(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t, WithMaxChars(40))

	text := strings.Repeat("This sentence is about sqlite. ", 10)
	report, err := f.pipeline.Ingest(ctx, []*core.Source{conversation("c1", text)})
	require.NoError(t, err)
	require.Equal(t, 1, report.UnitsAdded)
	assert.Greater(t, report.ChunksAdded, 1)

	chunks, err := f.store.ScanChunks(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, chunks, report.ChunksAdded)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, mock.Vector(chunk.Text, testDims), chunk.Vector, "vector matches its own chunk")
	}
}

func TestPipeline_Ingest_DuplicatePositions(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	src := conversation("c1", "first", "second")
	src.Units = append(src.Units, &core.Unit{ID: "dup", SourceID: "c1", Position: 1, Content: "also second"})

	report, err := f.pipeline.Ingest(ctx, []*core.Source{src})
	require.NoError(t, err)
	assert.Equal(t, 2, report.UnitsAdded)
	assert.Equal(t, 1, report.UnitsFailed)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "dup", failures[0].UnitID)
	var verr *core.ValidationError
	require.True(t, errors.As(failures[0].Err, &verr))
	assert.Equal(t, "position", verr.Field)

	units, err := f.store.GetUnits(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "second", units[1].Content)
}

func TestPipeline_Ingest_UnitFailureIsolated(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "poison") {
			return nil, errors.New("400 bad request")
		}
		return mock.Vector(text, testDims), nil
	}

	src := conversation("c1", "fine", "poison pill", "also fine")
	report, err := f.pipeline.Ingest(ctx, []*core.Source{src})
	require.NoError(t, err)
	assert.Equal(t, 2, report.UnitsAdded)
	assert.Equal(t, 1, report.UnitsFailed)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, src.Units[1].ID, failures[0].UnitID)
	assert.Contains(t, failures[0].Err.Error(), "400 bad request")

	existing, err := f.store.ExistingUnitIDs(ctx, "c1", src.Units[1].ID)
	require.NoError(t, err)
	assert.False(t, existing[src.Units[1].ID], "failed unit leaves nothing behind")

	// A later run picks up only the unit that failed.
	f.embedder.EmbedTextFunc = nil
	report, err = f.pipeline.Ingest(ctx, []*core.Source{src})
	require.NoError(t, err)
	assert.Equal(t, 1, report.UnitsAdded)
	assert.Equal(t, 2, report.UnitsSkipped)
}

func TestPipeline_Ingest_InvalidItems(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	good := conversation("c1", "hello")
	good.Units = append(good.Units, &core.Unit{ID: "blank", SourceID: "c1", Position: 5, Content: "   "})

	report, err := f.pipeline.Ingest(ctx, []*core.Source{
		good,
		{ID: ""},
		conversation("c1", "duplicate source in batch"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesAdded)
	assert.Equal(t, 2, report.SourcesFailed)
	assert.Equal(t, 1, report.UnitsAdded)
	assert.Equal(t, 1, report.UnitsFailed)

	var unitErr error
	for _, res := range report.Failures() {
		if res.UnitID == "blank" {
			unitErr = res.Err
		}
	}
	assert.ErrorIs(t, unitErr, core.ErrInvalidUnit)
}

func TestPipeline_Ingest_CancelledBeforeStart(t *testing.T) {
	f := setupPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Ingest(ctx, []*core.Source{conversation("c1", "a", "b")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.embedder.CallCount())
}

func TestPipeline_Ingest_CancelledMidway(t *testing.T) {
	f := setupPipeline(t, WithPoolSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		cancel()
		return mock.Vector(text, testDims), nil
	}

	src := conversation("c1", "one", "two", "three", "four", "five")
	report, err := f.pipeline.Ingest(ctx, []*core.Source{src})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 5, report.UnitsAdded+report.UnitsFailed, "every unit is accounted for")
	assert.GreaterOrEqual(t, report.UnitsFailed, 4)
	assert.Equal(t, 1, f.embedder.CallCount(), "no unit starts after cancellation")
}

func TestPipeline_IngestStream(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t, WithBatchSize(2))

	stream := importer.NewSliceStream(
		conversation("c1", "one"),
		conversation("c2", "two", "three"),
		conversation("c3", "four"),
	)
	report, err := f.pipeline.IngestStream(ctx, stream)
	require.NoError(t, err)
	assert.Equal(t, 3, report.SourcesAdded)
	assert.Equal(t, 4, report.UnitsAdded)
	assert.Len(t, report.Results, 4)

	ids, err := f.store.ListSourceIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, ids)

	_, err = stream.Next(ctx)
	assert.Error(t, err, "stream is closed after ingestion")
}

func TestPipeline_IngestStream_InvalidRecordContinues(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	input := `{"id": "c1", "units": [{"sender": "human", "content": "hello"}]}
{"title": "missing id"}
{"id": "c2", "units": [{"sender": "human", "content": "again"}]}
`
	report, err := f.pipeline.IngestStream(ctx, importer.NewJSONLStream(strings.NewReader(input)))
	require.NoError(t, err)
	assert.Equal(t, 2, report.SourcesAdded)
	assert.Equal(t, 1, report.SourcesFailed)
	assert.Equal(t, 2, report.UnitsAdded)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, core.ErrInvalidSource)
}

func TestPipeline_IngestStream_MalformedInputStops(t *testing.T) {
	ctx := context.Background()
	f := setupPipeline(t)

	input := `{"id": "c1", "units": [{"content": "kept"}]}
{broken
{"id": "c2", "units": [{"content": "never read"}]}
`
	report, err := f.pipeline.IngestStream(ctx, importer.NewJSONLStream(strings.NewReader(input)))
	require.Error(t, err)
	assert.Equal(t, 1, report.SourcesAdded, "sources read before the error are kept")

	ids, err := f.store.ListSourceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestPipeline_IngestStream_NilStream(t *testing.T) {
	f := setupPipeline(t)
	_, err := f.pipeline.IngestStream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStreamRequired)
}

func TestReport(t *testing.T) {
	r := newReport()
	r.sources(2, 1)
	r.add(Result{SourceID: "s", UnitID: "u1", State: StatePersisted, Chunks: 3})
	r.add(Result{SourceID: "s", UnitID: "u2", State: StateSkipped})
	r.add(Result{SourceID: "s", UnitID: "u3", State: StateFailed, Err: errors.New("boom")})
	r.add(Result{SourceID: "bad", State: StateFailed, Err: core.ErrInvalidSource})

	other := newReport()
	other.sources(1, 0)
	other.add(Result{SourceID: "t", UnitID: "v1", State: StatePersisted, Chunks: 1})
	r.merge(other)
	r.merge(nil)

	assert.Equal(t, 3, r.SourcesAdded)
	assert.Equal(t, 1, r.SourcesSkipped)
	assert.Equal(t, 1, r.SourcesFailed)
	assert.Equal(t, 2, r.UnitsAdded)
	assert.Equal(t, 1, r.UnitsSkipped)
	assert.Equal(t, 1, r.UnitsFailed)
	assert.Equal(t, 4, r.ChunksAdded)
	assert.Len(t, r.Failures(), 2)
	assert.Equal(t,
		"sources: 3 added, 1 skipped, 1 failed; units: 2 added, 1 skipped, 1 failed; chunks: 4 added",
		r.String())
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StatePending:   "pending",
		StateChunked:   "chunked",
		StateEmbedded:  "embedded",
		StatePersisted: "persisted",
		StateSkipped:   "skipped",
		StateFailed:    "failed",
		State(99):      "unknown",
	} {
		assert.Equal(t, want, state.String(), fmt.Sprint(int(state)))
	}
}
