package engine

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/slicer"
	"github.com/roach88/lowcode/internal/store"
	"github.com/roach88/lowcode/internal/stream"
	"github.com/roach88/lowcode/internal/testutil"
)

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newSlicer(t *testing.T, parents ...stream.Stream) *slicer.Substream {
	t.Helper()
	keys := map[string]string{}
	fields := map[string]string{}
	for _, p := range parents {
		keys[p.Name()] = "id"
		fields[p.Name()] = p.Name() + "_id"
	}
	s, err := slicer.New(parents, keys, fields)
	require.NoError(t, err)
	return s
}

func fixedIDs(runID string, n int) *FixedGenerator {
	ids := []string{runID}
	for i := 1; i <= n; i++ {
		ids = append(ids, fmt.Sprintf("%s-ab-%02d", runID, i))
	}
	return NewFixedGenerator(ids...)
}

func newTestEngine(s *store.Store, ids IDGenerator, opts ...Option) *Engine {
	opts = append([]Option{WithIDGenerator(ids)}, opts...)
	return New(s, opts...)
}

func TestRun_LogsSlicesAndState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	e := newTestEngine(s, fixedIDs("run-1", 6))

	res, err := e.Run(ctx, Request{
		Connector: "test",
		Stream:    "child",
		Slicer:    newSlicer(t, testutil.FirstStream(), testutil.SecondStream()),
		SyncMode:  stream.Incremental,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, store.RunSucceeded, res.Status)
	assert.Equal(t, int64(6), res.Slices)
	assert.Equal(t, 1, res.Checkpoints)
	assert.False(t, res.Limited)
	assert.True(t, doc.NewMap(doc.P("second_stream_id", doc.Int(20))).Equal(res.State))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunSucceeded, run.Status)
	assert.Equal(t, int64(6), run.SliceCount)
	assert.Equal(t, "incremental", run.SyncMode)

	state, err := s.LoadState(ctx, "child")
	require.NoError(t, err)
	assert.True(t, res.State.Equal(state.State))
	assert.Equal(t, int64(6), state.Seq)
	assert.Equal(t, "run-1", state.RunID)

	records, err := s.ReadSlices(ctx, "run-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	for _, rec := range records {
		data, err := rec.Data.MarshalJSON()
		require.NoError(t, err)
		fmt.Fprintf(&buf, "%d\t%s\t%s\t%s\n", rec.Seq, rec.ABID, rec.Parent, data)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "slice_log", buf.Bytes())
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := newTestEngine(s, fixedIDs("run-1", 2))
	res, err := first.Run(ctx, Request{
		Stream:   "child",
		Slicer:   newSlicer(t, testutil.FirstStream()),
		SyncMode: stream.Incremental,
		Limit:    2,
	})
	require.NoError(t, err)
	assert.True(t, res.Limited)
	want := doc.NewMap(doc.P("first_stream_id", doc.Int(1)))
	assert.True(t, want.Equal(res.State))

	parent := testutil.NewCountingStream(testutil.FirstStream())
	second := newTestEngine(s, fixedIDs("run-2", 4))
	_, err = second.Run(ctx, Request{
		Stream:   "child",
		Slicer:   newSlicer(t, parent),
		SyncMode: stream.Incremental,
	})
	require.NoError(t, err)

	assert.True(t, want.Equal(parent.LastPartitionRequest.State), "prior state forwarded to parent partitions")
	assert.Equal(t, stream.Incremental, parent.LastPartitionRequest.SyncMode)
}

func TestRun_FullRefreshIgnoresState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := newTestEngine(s, fixedIDs("run-1", 2)).Run(ctx, Request{
		Stream: "child", Slicer: newSlicer(t, testutil.FirstStream()), SyncMode: stream.Incremental, Limit: 2,
	})
	require.NoError(t, err)

	parent := testutil.NewCountingStream(testutil.FirstStream())
	res, err := newTestEngine(s, fixedIDs("run-2", 4)).Run(ctx, Request{
		Stream: "child", Slicer: newSlicer(t, parent), SyncMode: stream.FullRefresh,
	})
	require.NoError(t, err)

	assert.Nil(t, parent.LastPartitionRequest.State)
	// The last slice of first_stream has a null value, so no state remains.
	assert.Nil(t, res.State)
	_, err = s.LoadState(ctx, "child")
	assert.ErrorIs(t, err, store.ErrNoState)
}

func TestRun_LimitStopsParentReads(t *testing.T) {
	s := createTestStore(t)
	parent := testutil.NewCountingStream(testutil.FirstStream())

	res, err := newTestEngine(s, fixedIDs("run-1", 1)).Run(context.Background(), Request{
		Stream: "child", Slicer: newSlicer(t, parent), SyncMode: stream.FullRefresh, Limit: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Slices)
	assert.Equal(t, int64(1), parent.RecordsPulled.Load())
	assert.Equal(t, int64(0), parent.OpenIterators.Load())
}

func TestRun_ParentFailureKeepsLastCheckpoint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	parent := &testutil.FailingStream{
		StreamName:       "flaky",
		YieldedRecords:   []*doc.Map{doc.NewMap(doc.P("id", doc.Int(1))), doc.NewMap(doc.P("id", doc.Int(2)))},
		FailAfterRecords: true,
	}

	res, err := newTestEngine(s, fixedIDs("run-1", 2), WithCheckpointEvery(1)).Run(ctx, Request{
		Stream: "child", Slicer: newSlicer(t, parent), SyncMode: stream.Incremental,
	})
	require.ErrorIs(t, err, testutil.ErrInjected)
	require.NotNil(t, res)
	assert.Equal(t, store.RunFailed, res.Status)
	assert.Equal(t, int64(2), res.Slices)
	assert.Equal(t, 2, res.Checkpoints)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, run.Status)
	assert.Contains(t, run.Error, "injected parent failure")

	state, err := s.LoadState(ctx, "child")
	require.NoError(t, err)
	assert.True(t, doc.NewMap(doc.P("flaky_id", doc.Int(2))).Equal(state.State))
	assert.Equal(t, int64(2), state.Seq)
}

// cancellingStream cancels the run's context when records are requested.
type cancellingStream struct {
	stream.Stream
	cancel context.CancelFunc
}

func (c *cancellingStream) Records(ctx context.Context, req stream.RecordRequest) (stream.Iterator, error) {
	c.cancel()
	return c.Stream.Records(ctx, req)
}

func TestRun_CancelledRecordsFailedRun(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	parent := &cancellingStream{Stream: testutil.FirstStream(), cancel: cancel}

	res, err := newTestEngine(s, fixedIDs("run-1", 0)).Run(ctx, Request{
		Stream: "child", Slicer: newSlicer(t, parent), SyncMode: stream.FullRefresh,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, store.RunFailed, res.Status)

	run, err := s.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, run.Status)
}

func TestRun_RestoreRejectsForeignState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := newTestEngine(s, fixedIDs("run-1", 2)).Run(ctx, Request{
		Stream: "child", Slicer: newSlicer(t, testutil.FirstStream()), SyncMode: stream.Incremental, Limit: 2,
	})
	require.NoError(t, err)

	res, err := newTestEngine(s, fixedIDs("run-2", 0)).Run(ctx, Request{
		Stream: "child", Slicer: newSlicer(t, testutil.SecondStream()), SyncMode: stream.Incremental,
	})
	require.Error(t, err)
	assert.Equal(t, store.RunFailed, res.Status)
}

func TestRun_InvalidRequest(t *testing.T) {
	e := New(createTestStore(t))

	_, err := e.Run(context.Background(), Request{Stream: "child"})
	assert.Error(t, err)

	_, err = e.Run(context.Background(), Request{Slicer: newSlicer(t)})
	assert.Error(t, err)
}

func TestRun_NoParents(t *testing.T) {
	s := createTestStore(t)

	res, err := newTestEngine(s, fixedIDs("run-1", 0)).Run(context.Background(), Request{
		Stream: "child", Slicer: newSlicer(t), SyncMode: stream.Incremental,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Slices)
	assert.Nil(t, res.State)
}

func TestRun_CheckpointsRecordLastStampedSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seqs := testutil.NewSeqLog(100)
	e := newTestEngine(s, fixedIDs("run-1", 6),
		WithCheckpointEvery(2),
		WithSliceSeq(func() SliceSeq { return seqs }),
	)

	res, err := e.Run(ctx, Request{
		Stream:   "child",
		Slicer:   newSlicer(t, testutil.FirstStream(), testutil.SecondStream()),
		SyncMode: stream.Incremental,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Checkpoints)

	assert.Equal(t, []int64{101, 102, 103, 104, 105, 106}, seqs.Stamps())
	assert.Equal(t, []int64{102, 104, 106, 106}, seqs.Reads())

	records, err := s.ReadSlices(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, int64(101), records[0].Seq)
	assert.Equal(t, int64(106), records[5].Seq)

	state, err := s.LoadState(ctx, "child")
	require.NoError(t, err)
	assert.Equal(t, int64(106), state.Seq)
}
