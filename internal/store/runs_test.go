package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginRun_ReadRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "cards")

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "test-connector", run.Connector)
	assert.Equal(t, "cards", run.Stream)
	assert.Equal(t, RunRunning, run.Status)
	assert.Zero(t, run.SliceCount)
	assert.False(t, run.StartedAt.IsZero())
	assert.Nil(t, run.FinishedAt)
}

func TestBeginRun_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "run-1", "cards")

	err := s.BeginRun(context.Background(), Run{ID: "run-1", Stream: "cards"})
	assert.Error(t, err)
	assert.Error(t, s.BeginRun(context.Background(), Run{}))
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "cards")

	require.NoError(t, s.FinishRun(ctx, "run-1", RunFailed, 3, "parent \"boards\": boom"))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, int64(3), run.SliceCount)
	assert.Equal(t, "parent \"boards\": boom", run.Error)
	require.NotNil(t, run.FinishedAt)

	// A finished run cannot be finished again.
	err = s.FinishRun(ctx, "run-1", RunSucceeded, 3, "")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFinishRun_InvalidStatus(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "run-1", "cards")

	assert.Error(t, s.FinishRun(context.Background(), "run-1", RunRunning, 0, ""))
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-b", "cards")
	createTestRun(t, s, "run-a", "cards")
	createTestRun(t, s, "run-c", "lists")

	runs, err := s.ListRuns(ctx, "cards")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)

	runs, err = s.ListRuns(ctx, "nothing")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}
