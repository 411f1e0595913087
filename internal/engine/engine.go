package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/slicer"
	"github.com/roach88/lowcode/internal/store"
	"github.com/roach88/lowcode/internal/stream"
)

// DefaultCheckpointEvery is the number of slices between state checkpoints.
const DefaultCheckpointEvery = 100

// Engine runs syncs against a store.
type Engine struct {
	store           *store.Store
	ids             IDGenerator
	newSeq          func() SliceSeq
	checkpointEvery int
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the generator for run ids and slice ab_ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithSliceSeq sets how each run numbers its slices. By default a run
// stamps 1, 2, 3, ...
func WithSliceSeq(newSeq func() SliceSeq) Option {
	return func(e *Engine) { e.newSeq = newSeq }
}

// WithCheckpointEvery sets how many slices pass between checkpoints.
// Values below 1 checkpoint only at the end of a run.
func WithCheckpointEvery(n int) Option {
	return func(e *Engine) { e.checkpointEvery = n }
}

// New creates an Engine writing to s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		ids:             UUIDv7Generator{},
		newSeq:          func() SliceSeq { return &counterSeq{} },
		checkpointEvery: DefaultCheckpointEvery,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes one sync of a child stream.
type Request struct {
	Connector    string
	Stream       string
	ManifestHash string

	Slicer      *slicer.Substream
	SyncMode    stream.SyncMode
	CursorField []string

	// Limit stops the run after this many slices. Zero means no limit.
	Limit int
}

// Result summarizes a run.
type Result struct {
	RunID       string
	Status      store.RunStatus
	Slices      int64
	Checkpoints int
	Limited     bool

	// State is the cursor state at the end of the run; nil means none.
	State *doc.Map
}

// Run executes req. A failed run is still recorded; the returned Result
// then carries RunFailed alongside the error.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Slicer == nil {
		return nil, errors.New("run: nil slicer")
	}
	if req.Stream == "" {
		return nil, errors.New("run: empty stream name")
	}

	res := &Result{RunID: e.ids.Generate(), Status: store.RunRunning}
	err := e.store.BeginRun(ctx, store.Run{
		ID:           res.RunID,
		Connector:    req.Connector,
		Stream:       req.Stream,
		ManifestHash: req.ManifestHash,
		SyncMode:     string(req.SyncMode),
	})
	if err != nil {
		return nil, err
	}

	log := slog.With("run_id", res.RunID, "stream", req.Stream)
	log.Info("sync started", "connector", req.Connector, "sync_mode", req.SyncMode)

	seq := e.newSeq()
	runErr := e.run(ctx, req, res, seq, log)

	status, msg := store.RunSucceeded, ""
	if runErr != nil {
		status, msg = store.RunFailed, runErr.Error()
	}
	// Record the outcome even when ctx was cancelled.
	if err := e.store.FinishRun(context.WithoutCancel(ctx), res.RunID, status, res.Slices, msg); err != nil {
		return res, errors.Join(runErr, err)
	}
	res.Status = status

	if runErr != nil {
		log.Error("sync failed", "slices", res.Slices, "error", runErr)
		return res, runErr
	}
	log.Info("sync finished", "slices", res.Slices, "checkpoints", res.Checkpoints, "limited", res.Limited)
	return res, nil
}

func (e *Engine) run(ctx context.Context, req Request, res *Result, seq SliceSeq, log *slog.Logger) error {
	var prior *doc.Map
	if req.SyncMode == stream.Incremental {
		rec, err := e.store.LoadState(ctx, req.Stream)
		switch {
		case errors.Is(err, store.ErrNoState):
		case err != nil:
			return err
		default:
			prior = rec.State
			log.Debug("resuming from state", "from_run", rec.RunID, "state_hash", rec.Hash)
		}
	}
	if err := req.Slicer.Restore(prior); err != nil {
		return err
	}

	it := req.Slicer.StreamSlices(ctx, req.SyncMode, req.CursorField, prior)
	defer it.Close()

	for it.Next(ctx) {
		slice := it.Value()
		n := seq.Stamp()
		err := e.store.WriteSlice(ctx, store.SliceRecord{
			ABID:   e.ids.Generate(),
			RunID:  res.RunID,
			Stream: req.Stream,
			Parent: it.Parent(),
			Seq:    n,
			Data:   slice,
		})
		if err != nil {
			return err
		}
		if !req.Slicer.UpdateCursor(slice, nil) {
			log.Warn("cursor update rejected", "seq", n, "slice", doc.Format(slice))
		}
		res.Slices++
		log.Debug("slice", "seq", n, "parent", it.Parent(), "slice", doc.Format(slice))

		if e.checkpointEvery > 0 && res.Slices%int64(e.checkpointEvery) == 0 {
			if err := e.checkpoint(ctx, req, res, seq); err != nil {
				return err
			}
		}
		if req.Limit > 0 && res.Slices >= int64(req.Limit) {
			res.Limited = true
			break
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("stream slices: %w", err)
	}

	return e.checkpoint(ctx, req, res, seq)
}

func (e *Engine) checkpoint(ctx context.Context, req Request, res *Result, seq SliceSeq) error {
	state := req.Slicer.StreamState()
	err := e.store.SaveState(ctx, store.StateRecord{
		Stream: req.Stream,
		State:  state,
		RunID:  res.RunID,
		Seq:    seq.Last(),
	})
	if err != nil {
		return err
	}
	res.State = state
	res.Checkpoints++
	return nil
}
