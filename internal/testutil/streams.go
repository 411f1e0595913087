package testutil

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/stream"
)

// ErrInjected is the error returned by FailingStream.
var ErrInjected = errors.New("injected parent failure")

// CountingStream wraps a stream and counts what the consumer pulls from it.
// Used to verify that slicing does not read ahead.
type CountingStream struct {
	stream.Stream

	PartitionCalls atomic.Int64
	RecordCalls    atomic.Int64
	RecordsPulled  atomic.Int64
	OpenIterators  atomic.Int64

	// LastPartitionRequest and LastRecordRequest record the latest arguments.
	LastPartitionRequest stream.PartitionRequest
	LastRecordRequest    stream.RecordRequest
}

// NewCountingStream wraps inner.
func NewCountingStream(inner stream.Stream) *CountingStream {
	return &CountingStream{Stream: inner}
}

func (c *CountingStream) Partitions(ctx context.Context, req stream.PartitionRequest) (stream.Iterator, error) {
	c.PartitionCalls.Add(1)
	c.LastPartitionRequest = req
	it, err := c.Stream.Partitions(ctx, req)
	if err != nil {
		return nil, err
	}
	c.OpenIterators.Add(1)
	return &countingIterator{Iterator: it, open: &c.OpenIterators}, nil
}

func (c *CountingStream) Records(ctx context.Context, req stream.RecordRequest) (stream.Iterator, error) {
	c.RecordCalls.Add(1)
	c.LastRecordRequest = req
	it, err := c.Stream.Records(ctx, req)
	if err != nil {
		return nil, err
	}
	c.OpenIterators.Add(1)
	return &countingIterator{Iterator: it, pulled: &c.RecordsPulled, open: &c.OpenIterators}, nil
}

type countingIterator struct {
	stream.Iterator
	pulled *atomic.Int64
	open   *atomic.Int64
	closed bool
}

func (it *countingIterator) Next(ctx context.Context) bool {
	ok := it.Iterator.Next(ctx)
	if ok && it.pulled != nil {
		it.pulled.Add(1)
	}
	return ok
}

func (it *countingIterator) Close() error {
	if !it.closed {
		it.closed = true
		it.open.Add(-1)
	}
	return it.Iterator.Close()
}

// FailingStream is a parent stream that fails at a chosen point.
type FailingStream struct {
	StreamName string

	// FailPartitions makes Partitions return ErrInjected.
	FailPartitions bool
	// FailRecords makes Records return ErrInjected.
	FailRecords bool
	// YieldedRecords are yielded before the record iterator fails with ErrInjected.
	// Nil with neither flag set yields a single empty partition and no records.
	YieldedRecords []*doc.Map
	// FailAfterRecords makes the record iterator fail once YieldedRecords are consumed.
	FailAfterRecords bool
}

func (f *FailingStream) Name() string { return f.StreamName }

func (f *FailingStream) Partitions(_ context.Context, _ stream.PartitionRequest) (stream.Iterator, error) {
	if f.FailPartitions {
		return nil, ErrInjected
	}
	return stream.FromMaps(doc.NewMap()), nil
}

func (f *FailingStream) Records(_ context.Context, _ stream.RecordRequest) (stream.Iterator, error) {
	if f.FailRecords {
		return nil, ErrInjected
	}
	return &failingIterator{inner: stream.FromMaps(f.YieldedRecords...), failAtEnd: f.FailAfterRecords}, nil
}

type failingIterator struct {
	inner     stream.Iterator
	failAtEnd bool
	err       error
}

func (it *failingIterator) Next(ctx context.Context) bool {
	if it.inner.Next(ctx) {
		return true
	}
	if it.failAtEnd {
		it.err = ErrInjected
	}
	return false
}

func (it *failingIterator) Value() *doc.Map { return it.inner.Value() }

func (it *failingIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.inner.Err()
}

func (it *failingIterator) Close() error { return it.inner.Close() }
