// Package stream defines the parent-stream contract the slicer consumes:
// lazily iterated partitions and partition-scoped records.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/lowcode/internal/doc"
)

// SyncMode selects full-refresh or incremental semantics. The slicer
// forwards it to parents and never interprets it.
type SyncMode string

const (
	FullRefresh SyncMode = "full_refresh"
	Incremental SyncMode = "incremental"
)

// ParseSyncMode validates a sync mode string.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case FullRefresh, Incremental:
		return SyncMode(s), nil
	default:
		return "", fmt.Errorf("invalid sync mode %q: must be %q or %q", s, FullRefresh, Incremental)
	}
}

// ErrClosed is returned by Next-driven iterators used after Close.
var ErrClosed = errors.New("stream: iterator closed")

// PartitionRequest carries the arguments of a partition listing.
type PartitionRequest struct {
	SyncMode    SyncMode
	CursorField []string
	State       *doc.Map // nil when no state exists
}

// RecordRequest carries the arguments of a partition-scoped record read.
type RecordRequest struct {
	SyncMode    SyncMode
	CursorField []string
	Partition   *doc.Map // empty means "no partitioning"
	State       *doc.Map
}

// Stream is an upstream data source whose partitions and records drive a
// dependent stream.
type Stream interface {
	Name() string
	Partitions(ctx context.Context, req PartitionRequest) (Iterator, error)
	Records(ctx context.Context, req RecordRequest) (Iterator, error)
}
