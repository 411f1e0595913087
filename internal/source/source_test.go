package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/stream"
)

var _ stream.Stream = (*Static)(nil)
var _ stream.Stream = (*JSONLines)(nil)

func record(id int64, slice string) *doc.Map {
	return doc.NewMap(doc.P("id", doc.Int(id)), doc.P("slice", doc.String(slice)))
}

func ids(t *testing.T, it stream.Iterator) []doc.Value {
	t.Helper()
	got, err := stream.Collect(context.Background(), it, 0)
	require.NoError(t, err)
	out := make([]doc.Value, len(got))
	for i, m := range got {
		out[i] = m.Lookup("id")
	}
	return out
}

func TestStatic_EmptyPartitionReturnsAllRecords(t *testing.T) {
	s := NewStatic("posts", []*doc.Map{doc.NewMap()}, []*doc.Map{record(1, "a"), record(2, "b")})

	it, err := s.Records(context.Background(), stream.RecordRequest{Partition: doc.NewMap()})
	require.NoError(t, err)
	assert.Equal(t, []doc.Value{doc.Int(1), doc.Int(2)}, ids(t, it))
}

func TestStatic_PartitionFiltersRecords(t *testing.T) {
	s := NewStatic("posts", nil, []*doc.Map{record(0, "first"), record(1, "first"), record(2, "second")})

	it, err := s.Records(context.Background(), stream.RecordRequest{
		Partition: doc.NewMap(doc.P("slice", doc.String("first"))),
	})
	require.NoError(t, err)
	assert.Equal(t, []doc.Value{doc.Int(0), doc.Int(1)}, ids(t, it))

	it, err = s.Records(context.Background(), stream.RecordRequest{
		Partition: doc.NewMap(doc.P("slice", doc.String("third"))),
	})
	require.NoError(t, err)
	assert.Empty(t, ids(t, it))
}

func TestStatic_CustomPartitionField(t *testing.T) {
	recs := []*doc.Map{
		doc.NewMap(doc.P("id", doc.Int(1)), doc.P("board", doc.String("x"))),
		doc.NewMap(doc.P("id", doc.Int(2)), doc.P("board", doc.String("y"))),
	}
	s := NewStatic("cards", nil, recs, WithPartitionField("board"))

	it, err := s.Records(context.Background(), stream.RecordRequest{
		Partition: doc.NewMap(doc.P("board", doc.String("y"))),
	})
	require.NoError(t, err)
	assert.Equal(t, []doc.Value{doc.Int(2)}, ids(t, it))
}

func TestStatic_PartitionsListedVerbatim(t *testing.T) {
	parts := []*doc.Map{
		doc.NewMap(doc.P("slice", doc.String("first"))),
		doc.NewMap(doc.P("slice", doc.String("second"))),
	}
	s := NewStatic("posts", parts, nil)

	it, err := s.Partitions(context.Background(), stream.PartitionRequest{SyncMode: stream.Incremental})
	require.NoError(t, err)
	got, err := stream.Collect(context.Background(), it, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].Equal(parts[1]))
	assert.Equal(t, "posts", s.Name())
}

func writeLines(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestJSONLines_ReadsAndFilters(t *testing.T) {
	path := writeLines(t, `{"id": 10, "slice": "second_parent"}

{"id": 20, "slice": "second_parent"}
{"id": 30, "slice": "other"}
`)
	j := NewJSONLines("more", path, nil)

	it, err := j.Records(context.Background(), stream.RecordRequest{
		Partition: doc.NewMap(doc.P("slice", doc.String("second_parent"))),
	})
	require.NoError(t, err)
	assert.Equal(t, []doc.Value{doc.Int(10), doc.Int(20)}, ids(t, it))
}

func TestJSONLines_MalformedLineReportsPosition(t *testing.T) {
	path := writeLines(t, "{\"id\": 1}\n{not json}\n")
	j := NewJSONLines("bad", path, nil)

	it, err := j.Records(context.Background(), stream.RecordRequest{Partition: doc.NewMap()})
	require.NoError(t, err)

	_, err = stream.Collect(context.Background(), it, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":2:")
}

func TestJSONLines_MissingFile(t *testing.T) {
	j := NewJSONLines("missing", filepath.Join(t.TempDir(), "nope.jsonl"), nil)

	_, err := j.Records(context.Background(), stream.RecordRequest{})
	assert.Error(t, err)
}

func TestJSONLines_StopsEarly(t *testing.T) {
	path := writeLines(t, "{\"id\": 1}\n{\"id\": 2}\n{\"id\": 3}\n")
	j := NewJSONLines("posts", path, nil)

	it, err := j.Records(context.Background(), stream.RecordRequest{})
	require.NoError(t, err)
	got, err := stream.Collect(context.Background(), it, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, it.Close())
}

func TestJSONLines_IntegralFloatMatchesYAMLPartition(t *testing.T) {
	path := writeLines(t, `{"id": 1, "slice": 7.0}`+"\n"+`{"id": 2, "slice": 8}`+"\n")

	var partition doc.Map
	require.NoError(t, yaml.Unmarshal([]byte("slice: 7\n"), &partition))

	j := NewJSONLines("posts", path, []*doc.Map{&partition})
	it, err := j.Records(context.Background(), stream.RecordRequest{Partition: &partition})
	require.NoError(t, err)
	assert.Equal(t, []doc.Value{doc.Int(1)}, ids(t, it))
}
