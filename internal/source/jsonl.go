package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/stream"
)

const maxLineBytes = 16 << 20

// JSONLines is a parent stream whose records are the lines of a JSON Lines
// file. The file is re-read for every partition; nothing is cached.
type JSONLines struct {
	base
	path string
}

// NewJSONLines creates a file-backed stream.
func NewJSONLines(name, path string, partitions []*doc.Map, opts ...Option) *JSONLines {
	return &JSONLines{base: newBase(name, partitions, opts), path: path}
}

// Path returns the backing file path.
func (j *JSONLines) Path() string { return j.path }

// Records opens the file and lazily yields the records of req.Partition.
func (j *JSONLines) Records(_ context.Context, req stream.RecordRequest) (stream.Iterator, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", j.path, err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	partition := req.Partition
	return &filtered{
		inner: &lineIterator{path: j.path, file: f, scanner: scanner},
		keep:  func(r *doc.Map) bool { return j.matches(partition, r) },
	}, nil
}

// lineIterator decodes one JSON object per non-blank line.
type lineIterator struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	line    int
	cur     *doc.Map
	err     error
}

func (it *lineIterator) Next(ctx context.Context) bool {
	if it.err != nil || it.file == nil {
		return false
	}
	for {
		if err := ctx.Err(); err != nil {
			it.err = err
			return false
		}
		if !it.scanner.Scan() {
			if err := it.scanner.Err(); err != nil {
				it.err = fmt.Errorf("%s: %w", it.path, err)
			}
			it.cur = nil
			return false
		}
		it.line++
		text := strings.TrimSpace(it.scanner.Text())
		if text == "" {
			continue
		}
		m, err := doc.ParseJSONMap([]byte(text))
		if err != nil {
			it.err = fmt.Errorf("%s:%d: %w", it.path, it.line, err)
			it.cur = nil
			return false
		}
		it.cur = m
		return true
	}
}

func (it *lineIterator) Value() *doc.Map { return it.cur }
func (it *lineIterator) Err() error      { return it.err }

func (it *lineIterator) Close() error {
	if it.file == nil {
		return nil
	}
	err := it.file.Close()
	it.file = nil
	return err
}
