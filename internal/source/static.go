package source

import (
	"context"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/stream"
)

// Static is a parent stream over in-memory partitions and records.
type Static struct {
	base
	records []*doc.Map
}

// NewStatic creates a static stream. partitions are listed verbatim; pass a
// single empty map for an unpartitioned stream.
func NewStatic(name string, partitions, records []*doc.Map, opts ...Option) *Static {
	return &Static{base: newBase(name, partitions, opts), records: records}
}

// Records returns the records belonging to req.Partition.
func (s *Static) Records(_ context.Context, req stream.RecordRequest) (stream.Iterator, error) {
	partition := req.Partition
	return &filtered{
		inner: stream.FromMaps(s.records...),
		keep:  func(r *doc.Map) bool { return s.matches(partition, r) },
	}, nil
}
