package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, connector, stream, manifest_hash, sync_mode, status, slice_count, error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the runs of a stream in the order they were started.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context, stream string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, connector, stream, manifest_hash, sync_mode, status, slice_count, error, started_at, finished_at
		FROM runs
		WHERE stream = ?
		ORDER BY rowid ASC
	`, stream)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadSlices returns the slice log of a run.
// Ordered deterministically: ORDER BY seq ASC, ab_id COLLATE BINARY ASC.
// Returns an empty slice (not nil) if the run logged nothing.
func (s *Store) ReadSlices(ctx context.Context, runID string) ([]SliceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ab_id, run_id, stream, parent, seq, data, emitted_at
		FROM slices
		WHERE run_id = ?
		ORDER BY seq ASC, ab_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query slices: %w", err)
	}
	defer rows.Close()

	records := []SliceRecord{}
	for rows.Next() {
		var (
			rec  SliceRecord
			data string
		)
		if err := rows.Scan(&rec.ABID, &rec.RunID, &rec.Stream, &rec.Parent, &rec.Seq, &data, &rec.EmittedAt); err != nil {
			return nil, fmt.Errorf("scan slice: %w", err)
		}
		if rec.Data, err = unmarshalMap(data); err != nil {
			return nil, fmt.Errorf("slice %s: %w", rec.ABID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slices: %w", err)
	}
	return records, nil
}

// LoadState returns a stream's checkpointed state, or ErrNoState.
// The stored hash is verified against the stored state.
func (s *Store) LoadState(ctx context.Context, stream string) (StateRecord, error) {
	var (
		rec   StateRecord
		state string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT stream, state, state_hash, run_id, seq
		FROM stream_state
		WHERE stream = ?
	`, stream).Scan(&rec.Stream, &state, &rec.Hash, &rec.RunID, &rec.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return StateRecord{}, ErrNoState
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("load state %s: %w", stream, err)
	}

	if rec.State, err = unmarshalMap(state); err != nil {
		return StateRecord{}, fmt.Errorf("load state %s: %w", stream, err)
	}
	if _, hash, err := marshalState(rec.State); err != nil || hash != rec.Hash {
		return StateRecord{}, fmt.Errorf("load state %s: stored hash does not match state", stream)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		status     string
		finishedAt sql.NullTime
	)
	if err := row.Scan(
		&run.ID, &run.Connector, &run.Stream, &run.ManifestHash, &run.SyncMode,
		&status, &run.SliceCount, &run.Error, &run.StartedAt, &finishedAt,
	); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}
