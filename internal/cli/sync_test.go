package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncResponse struct {
	Status string      `json:"status"`
	Data   SyncSummary `json:"data"`
}

type stateResponse struct {
	Status string `json:"status"`
	Data   struct {
		Stream  string         `json:"stream"`
		State   map[string]any `json:"state"`
		RunID   string         `json:"run_id"`
		Cleared bool           `json:"cleared"`
		Runs    []RunSummary   `json:"runs"`
	} `json:"data"`
}

func TestSyncThenState(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lowcode.db")

	out, _, err := execute(t, "--format", "json", "sync", fixture("connector.yaml"), "--db", db, "--checkpoint-every", "2")
	require.NoError(t, err)

	var sync syncResponse
	require.NoError(t, json.Unmarshal([]byte(out), &sync))
	assert.Equal(t, "ok", sync.Status)
	assert.Equal(t, "trello", sync.Data.Connector)
	assert.Equal(t, "cards", sync.Data.Stream)
	assert.Equal(t, "incremental", sync.Data.SyncMode)
	assert.Equal(t, "succeeded", sync.Data.Status)
	assert.Equal(t, int64(5), sync.Data.Slices)
	assert.Equal(t, 3, sync.Data.Checkpoints)
	assert.NotEmpty(t, sync.Data.RunID)

	out, _, err = execute(t, "--format", "json", "state", "cards", "--db", db, "--runs")
	require.NoError(t, err)

	var state stateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, "cards", state.Data.Stream)
	assert.Equal(t, map[string]any{"board_id": "b3", "member_id": "m2"}, state.Data.State)
	assert.Equal(t, sync.Data.RunID, state.Data.RunID)
	require.Len(t, state.Data.Runs, 1)
	assert.Equal(t, "succeeded", state.Data.Runs[0].Status)
	assert.Equal(t, int64(5), state.Data.Runs[0].Slices)

	out, _, err = execute(t, "state", "cards", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "cards: {\"board_id\":\"b3\",\"member_id\":\"m2\"}\n", out)
}

func TestSyncText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lowcode.db")

	out, _, err := execute(t, "sync", fixture("connector.yaml"), "--db", db, "--limit", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ trello/cards run ")
	assert.Contains(t, out, ": 2 slices, 1 checkpoints\n")
	assert.Contains(t, out, "  stopped at --limit 2\n")
	assert.Contains(t, out, "  state: {\"board_id\":\"b2\"}\n")
}

func TestSyncRequiresDatabase(t *testing.T) {
	_, _, err := execute(t, "sync", fixture("connector.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestSyncInvalidManifest(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lowcode.db")

	out, _, err := execute(t, "sync", fixture("invalid.yaml"), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E010]")
}

func TestSyncBadDatabasePath(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing", "dir", "lowcode.db")

	out, _, err := execute(t, "sync", fixture("connector.yaml"), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E020]")
}

func TestStateMissing(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lowcode.db")

	out, _, err := execute(t, "state", "cards", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "cards: no state\n", out)
}

func TestStateClear(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lowcode.db")

	_, _, err := execute(t, "sync", fixture("connector.yaml"), "--db", db)
	require.NoError(t, err)

	out, _, err := execute(t, "state", "cards", "--db", db, "--clear")
	require.NoError(t, err)
	assert.Equal(t, "✓ Cleared state for cards\n", out)

	out, _, err = execute(t, "--format", "json", "state", "cards", "--db", db)
	require.NoError(t, err)
	var state stateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Nil(t, state.Data.State)
}

func TestSyncFullRefreshIgnoresStoredState(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lowcode.db")

	_, _, err := execute(t, "sync", fixture("connector.yaml"), "--db", db, "--limit", "1")
	require.NoError(t, err)

	out, _, err := execute(t, "--format", "json", "sync", fixture("connector.yaml"), "--db", db, "--full-refresh")
	require.NoError(t, err)

	var sync syncResponse
	require.NoError(t, json.Unmarshal([]byte(out), &sync))
	assert.Equal(t, "full_refresh", sync.Data.SyncMode)
	assert.Equal(t, int64(5), sync.Data.Slices)
}
