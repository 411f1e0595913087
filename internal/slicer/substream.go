package slicer

import (
	"context"
	"fmt"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/stream"
)

// Substream produces child slices from parent streams and tracks cursor state.
//
// A Substream is driven by a single consumer: StreamSlices, then UpdateCursor
// per consumed slice, then StreamState at checkpoints. It is not safe for
// concurrent use.
type Substream struct {
	parents        []ParentStreamConfig
	known          map[string]struct{}
	policy         CursorPolicy
	partitionField string

	state *doc.Map
}

// Parents returns the parent configs in slicing order.
func (s *Substream) Parents() []ParentStreamConfig {
	out := make([]ParentStreamConfig, len(s.parents))
	copy(out, s.parents)
	return out
}

// StreamSliceFields returns the configured stream-slice fields in parent order.
func (s *Substream) StreamSliceFields() []string {
	fields := make([]string, len(s.parents))
	for i, p := range s.parents {
		fields[i] = p.StreamSliceField
	}
	return fields
}

// StreamSlices returns a lazy iterator over the slices of every parent, in
// configured order. mode, cursorField and state are forwarded to each
// parent's partition listing; records are always read in full-refresh mode
// scoped to their partition.
func (s *Substream) StreamSlices(ctx context.Context, mode stream.SyncMode, cursorField []string, state *doc.Map) *Iterator {
	return &Iterator{
		parents: s.parents,
		req: stream.PartitionRequest{
			SyncMode:    mode,
			CursorField: cursorField,
			State:       state,
		},
	}
}

// Iterator walks parent partitions and records one slice at a time.
// It holds at most one open partition iterator and one open record iterator.
type Iterator struct {
	parents []ParentStreamConfig
	req     stream.PartitionRequest

	idx        int
	partitions stream.Iterator
	partition  *doc.Map
	records    stream.Iterator
	sawRecord  bool

	cur       *doc.Map
	curParent string
	err       error
	done      bool
}

// Next advances to the next slice. It returns false when every parent is
// exhausted, on a parent error (see Err), or when ctx is done.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	for {
		if err := ctx.Err(); err != nil {
			return it.fail(err)
		}

		if it.records != nil {
			parent := it.parents[it.idx]
			if it.records.Next(ctx) {
				it.sawRecord = true
				it.emit(parent, it.records.Value().Lookup(parent.ParentKey))
				return true
			}
			err := it.records.Err()
			it.closeRecords()
			if err != nil {
				return it.fail(fmt.Errorf("parent %q: read records: %w", parent.Stream.Name(), err))
			}
			if !it.sawRecord {
				it.emit(parent, it.partition.Lookup(parent.ParentKey))
				return true
			}
			continue
		}

		if it.partitions != nil {
			parent := it.parents[it.idx]
			if it.partitions.Next(ctx) {
				it.partition = it.partitions.Value()
				if it.partition == nil {
					it.partition = doc.NewMap()
				}
				records, err := parent.Stream.Records(ctx, stream.RecordRequest{
					SyncMode:  stream.FullRefresh,
					Partition: it.partition,
				})
				if err != nil {
					return it.fail(fmt.Errorf("parent %q: open records: %w", parent.Stream.Name(), err))
				}
				it.records = records
				it.sawRecord = false
				continue
			}
			err := it.partitions.Err()
			it.closePartitions()
			if err != nil {
				return it.fail(fmt.Errorf("parent %q: list partitions: %w", parent.Stream.Name(), err))
			}
			it.idx++
			continue
		}

		if it.idx >= len(it.parents) {
			it.done = true
			it.cur = nil
			it.curParent = ""
			return false
		}

		parent := it.parents[it.idx]
		partitions, err := parent.Stream.Partitions(ctx, it.req)
		if err != nil {
			return it.fail(fmt.Errorf("parent %q: open partitions: %w", parent.Stream.Name(), err))
		}
		it.partitions = partitions
	}
}

// Value returns the current slice. Each call to Next produces a fresh map.
func (it *Iterator) Value() *doc.Map { return it.cur }

// Parent returns the name of the parent stream that produced the current slice.
func (it *Iterator) Parent() string { return it.curParent }

// Err returns the first error that stopped iteration. Parent errors are
// wrapped with the parent name and are otherwise unmodified.
func (it *Iterator) Err() error { return it.err }

// Close releases any open parent iterators. Safe to call more than once.
func (it *Iterator) Close() error {
	it.done = true
	it.cur = nil
	var firstErr error
	if it.records != nil {
		if err := it.records.Close(); err != nil {
			firstErr = err
		}
		it.records = nil
	}
	if it.partitions != nil {
		if err := it.partitions.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		it.partitions = nil
	}
	return firstErr
}

func (it *Iterator) emit(parent ParentStreamConfig, value doc.Value) {
	it.cur = doc.NewMap(
		doc.P(parent.StreamSliceField, value),
		doc.P(ParentSliceKey, it.partition.Lookup(parent.PartitionField)),
	)
	it.curParent = parent.Stream.Name()
}

func (it *Iterator) fail(err error) bool {
	it.err = err
	it.cur = nil
	_ = it.Close()
	return false
}

func (it *Iterator) closeRecords() {
	_ = it.records.Close()
	it.records = nil
}

func (it *Iterator) closePartitions() {
	_ = it.partitions.Close()
	it.partitions = nil
	it.partition = nil
}
