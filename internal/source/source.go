// Package source provides parent streams backed by inline manifest data and
// by JSON Lines files.
//
// Both sources list a fixed set of partitions and scope records to a
// partition by comparing one field: an empty partition selects every record,
// otherwise a record belongs to the partition when record[field] equals
// partition[field].
package source

import (
	"context"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/stream"
)

// DefaultPartitionField is the field shared by partitions and their records.
const DefaultPartitionField = "slice"

// Option configures a source.
type Option func(*base)

// WithPartitionField sets the field used to scope records to a partition.
func WithPartitionField(field string) Option {
	return func(b *base) {
		if field != "" {
			b.partitionField = field
		}
	}
}

type base struct {
	name           string
	partitions     []*doc.Map
	partitionField string
}

func newBase(name string, partitions []*doc.Map, opts []Option) base {
	b := base{name: name, partitions: partitions, partitionField: DefaultPartitionField}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Name() string { return b.name }

// Partitions lists the configured partitions. Sync mode and state are ignored:
// these sources have no incremental semantics of their own.
func (b *base) Partitions(_ context.Context, _ stream.PartitionRequest) (stream.Iterator, error) {
	return stream.FromMaps(b.partitions...), nil
}

func (b *base) matches(partition, record *doc.Map) bool {
	if partition.Len() == 0 {
		return true
	}
	return doc.Equal(record.Lookup(b.partitionField), partition.Lookup(b.partitionField))
}

// filtered yields the elements of an inner iterator that satisfy keep.
type filtered struct {
	inner stream.Iterator
	keep  func(*doc.Map) bool
	cur   *doc.Map
}

func (f *filtered) Next(ctx context.Context) bool {
	for f.inner.Next(ctx) {
		if v := f.inner.Value(); f.keep(v) {
			f.cur = v
			return true
		}
	}
	f.cur = nil
	return false
}

func (f *filtered) Value() *doc.Map { return f.cur }
func (f *filtered) Err() error      { return f.inner.Err() }
func (f *filtered) Close() error    { return f.inner.Close() }
