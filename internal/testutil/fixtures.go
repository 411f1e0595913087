package testutil

import (
	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/source"
)

// Fixture data for substream tests: two parents, "first_stream" partitioned
// into first/second/third (third has no records) and "second_stream" with a
// single "second_parent" partition. Every call returns fresh maps.

func rec(id int64, slice, data string) *doc.Map {
	m := doc.NewMap(doc.P("id", doc.Int(id)))
	if slice != "" {
		m.Set("slice", doc.String(slice))
	}
	m.Set("data", doc.String(data))
	return m
}

// UnpartitionedRecords are records for a stream listed with a single empty partition.
func UnpartitionedRecords() []*doc.Map {
	return []*doc.Map{rec(1, "", "data1"), rec(2, "", "data2")}
}

// FirstParentRecords are the records of the "first" and "second" partitions.
func FirstParentRecords() []*doc.Map {
	return []*doc.Map{
		rec(0, "first", "A"),
		rec(1, "first", "B"),
		rec(2, "second", "C"),
	}
}

// SecondParentRecords are the records of the "second_parent" partition.
func SecondParentRecords() []*doc.Map {
	return []*doc.Map{
		rec(10, "second_parent", "data10"),
		rec(20, "second_parent", "data20"),
	}
}

// FirstParentPartitions lists first, second and third.
func FirstParentPartitions() []*doc.Map {
	return []*doc.Map{
		doc.NewMap(doc.P("slice", doc.String("first"))),
		doc.NewMap(doc.P("slice", doc.String("second"))),
		doc.NewMap(doc.P("slice", doc.String("third"))),
	}
}

// SecondParentPartitions lists second_parent.
func SecondParentPartitions() []*doc.Map {
	return []*doc.Map{doc.NewMap(doc.P("slice", doc.String("second_parent")))}
}

// FirstStream is the partitioned "first_stream" parent.
func FirstStream() *source.Static {
	return source.NewStatic("first_stream", FirstParentPartitions(), FirstParentRecords())
}

// SecondStream is the "second_stream" parent.
func SecondStream() *source.Static {
	return source.NewStatic("second_stream", SecondParentPartitions(), SecondParentRecords())
}

// Slice builds an expected slice {field: value, "parent_slice": parent}.
// A nil value or parent means null.
func Slice(field string, value doc.Value, parent doc.Value) *doc.Map {
	return doc.NewMap(doc.P(field, value), doc.P("parent_slice", parent))
}
