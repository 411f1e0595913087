package store

import (
	"context"
	"errors"
	"fmt"
)

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("begin run: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, connector, stream, manifest_hash, sync_mode, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Connector,
		run.Stream,
		run.ManifestHash,
		run.SyncMode,
		string(RunRunning),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun moves a running run to its final status. Finishing a run twice
// is an error.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, sliceCount int64, runErr string) error {
	if status != RunSucceeded && status != RunFailed {
		return fmt.Errorf("finish run: invalid final status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, slice_count = ?, error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, string(status), sliceCount, runErr, id, string(RunRunning))
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// WriteSlice appends a slice to the log.
// Uses ON CONFLICT(ab_id) DO NOTHING for idempotency - rewriting the same
// record is silently ignored. The run must exist (foreign key constraint).
func (s *Store) WriteSlice(ctx context.Context, rec SliceRecord) error {
	if rec.ABID == "" {
		return errors.New("write slice: empty ab_id")
	}
	data, err := marshalSlice(rec.Data)
	if err != nil {
		return fmt.Errorf("write slice: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO slices (ab_id, run_id, stream, parent, seq, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ab_id) DO NOTHING
	`,
		rec.ABID,
		rec.RunID,
		rec.Stream,
		rec.Parent,
		rec.Seq,
		data,
	)
	if err != nil {
		return fmt.Errorf("write slice: %w", err)
	}
	return nil
}

// SaveState checkpoints a stream's cursor state, replacing any previous
// checkpoint. A nil or empty state clears the checkpoint.
func (s *Store) SaveState(ctx context.Context, rec StateRecord) error {
	if rec.State.Len() == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM stream_state WHERE stream = ?`, rec.Stream); err != nil {
			return fmt.Errorf("clear state: %w", err)
		}
		return nil
	}

	state, hash, err := marshalState(rec.State)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stream_state (stream, state, state_hash, run_id, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stream) DO UPDATE SET
			state = excluded.state,
			state_hash = excluded.state_hash,
			run_id = excluded.run_id,
			seq = excluded.seq,
			updated_at = CURRENT_TIMESTAMP
	`, rec.Stream, state, hash, rec.RunID, rec.Seq)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
