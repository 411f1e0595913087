package store

import (
	"errors"
	"time"

	"github.com/roach88/lowcode/internal/doc"
)

var (
	// ErrNoState is returned by LoadState when a stream has no checkpoint.
	ErrNoState = errors.New("no stream state")

	// ErrRunNotFound is returned when a run id does not exist.
	ErrRunNotFound = errors.New("run not found")
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one sync of a child stream.
type Run struct {
	ID           string
	Connector    string
	Stream       string
	ManifestHash string
	SyncMode     string
	Status       RunStatus
	SliceCount   int64
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// SliceRecord is one entry of the raw slice log.
type SliceRecord struct {
	ABID      string
	RunID     string
	Stream    string
	Parent    string
	Seq       int64
	Data      *doc.Map
	EmittedAt time.Time
}

// StateRecord is the checkpointed cursor state of a child stream.
type StateRecord struct {
	Stream string
	State  *doc.Map
	Hash   string
	RunID  string
	Seq    int64
}
