package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lowcode/internal/doc"
)

func TestSaveState_LoadState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "cards")

	state := doc.NewMap(
		doc.P("second_stream_id", doc.Int(20)),
		doc.P("first_stream_id", doc.String("1234")),
	)
	require.NoError(t, s.SaveState(ctx, StateRecord{Stream: "cards", State: state, RunID: "run-1", Seq: 7}))

	got, err := s.LoadState(ctx, "cards")
	require.NoError(t, err)
	assert.Equal(t, "cards", got.Stream)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, int64(7), got.Seq)
	assert.True(t, state.Equal(got.State))

	want, err := doc.Hash(doc.DomainState, state)
	require.NoError(t, err)
	assert.Equal(t, want, got.Hash)

	// Stored canonically: keys sorted.
	var raw string
	require.NoError(t, s.db.QueryRow(`SELECT state FROM stream_state WHERE stream = ?`, "cards").Scan(&raw))
	assert.Equal(t, `{"first_stream_id":"1234","second_stream_id":20}`, raw)
}

func TestSaveState_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "cards")
	createTestRun(t, s, "run-2", "cards")

	require.NoError(t, s.SaveState(ctx, StateRecord{Stream: "cards", State: doc.NewMap(doc.P("a", doc.Int(1))), RunID: "run-1", Seq: 1}))
	require.NoError(t, s.SaveState(ctx, StateRecord{Stream: "cards", State: doc.NewMap(doc.P("b", doc.Int(2))), RunID: "run-2", Seq: 4}))

	got, err := s.LoadState(ctx, "cards")
	require.NoError(t, err)
	assert.True(t, doc.NewMap(doc.P("b", doc.Int(2))).Equal(got.State))
	assert.Equal(t, "run-2", got.RunID)
}

func TestSaveState_NilClears(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "cards")

	require.NoError(t, s.SaveState(ctx, StateRecord{Stream: "cards", State: doc.NewMap(doc.P("a", doc.Int(1))), RunID: "run-1", Seq: 1}))
	require.NoError(t, s.SaveState(ctx, StateRecord{Stream: "cards", State: nil, RunID: "run-1", Seq: 2}))

	_, err := s.LoadState(ctx, "cards")
	assert.ErrorIs(t, err, ErrNoState)

	// Clearing a stream with no state is a no-op.
	require.NoError(t, s.SaveState(ctx, StateRecord{Stream: "other", State: doc.NewMap()}))
}

func TestLoadState_NoState(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadState(context.Background(), "cards")
	assert.ErrorIs(t, err, ErrNoState)
}

func TestLoadState_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "cards")
	require.NoError(t, s.SaveState(ctx, StateRecord{Stream: "cards", State: doc.NewMap(doc.P("a", doc.Int(1))), RunID: "run-1", Seq: 1}))

	_, err := s.db.Exec(`UPDATE stream_state SET state = '{"a":2}' WHERE stream = 'cards'`)
	require.NoError(t, err)

	_, err = s.LoadState(ctx, "cards")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoState)
}
