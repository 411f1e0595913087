package stream

import (
	"context"

	"github.com/roach88/lowcode/internal/doc"
)

// Iterator is a pull-based lazy sequence of documents, used like sql.Rows:
//
//	for it.Next(ctx) {
//	    m := it.Value()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Next returns false at the end of the sequence or on error. Implementations
// must not read ahead of the element being returned.
type Iterator interface {
	Next(ctx context.Context) bool
	Value() *doc.Map
	Err() error
	Close() error
}

// sliceIterator iterates over an in-memory list.
type sliceIterator struct {
	items  []*doc.Map
	pos    int
	cur    *doc.Map
	err    error
	closed bool
}

// FromMaps returns an iterator over items. Each Value is a clone, so callers
// may mutate what they receive.
func FromMaps(items ...*doc.Map) Iterator {
	return &sliceIterator{items: items}
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if it.closed {
		it.err = ErrClosed
		return false
	}
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.pos >= len(it.items) {
		it.cur = nil
		return false
	}
	it.cur = it.items[it.pos].Clone()
	if it.cur == nil {
		it.cur = doc.NewMap()
	}
	it.pos++
	return true
}

func (it *sliceIterator) Value() *doc.Map { return it.cur }

func (it *sliceIterator) Err() error { return it.err }

func (it *sliceIterator) Close() error {
	it.closed = true
	it.cur = nil
	return nil
}

// Collect drains up to limit elements (limit <= 0 means all) and closes it.
func Collect(ctx context.Context, it Iterator, limit int) ([]*doc.Map, error) {
	defer it.Close()
	out := []*doc.Map{}
	for (limit <= 0 || len(out) < limit) && it.Next(ctx) {
		out = append(out, it.Value())
	}
	if err := it.Err(); err != nil {
		return out, err
	}
	return out, nil
}
