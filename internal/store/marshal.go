package store

import (
	"fmt"

	"github.com/roach88/lowcode/internal/doc"
)

// marshalSlice converts a slice to JSON TEXT in production key order, so the
// log reads the way the slicer emitted it.
func marshalSlice(slice *doc.Map) (string, error) {
	if slice == nil {
		slice = doc.NewMap()
	}
	data, err := slice.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal slice: %w", err)
	}
	return string(data), nil
}

// marshalState converts state to canonical JSON TEXT and its hash.
func marshalState(state *doc.Map) (string, string, error) {
	data, err := doc.MarshalCanonical(state)
	if err != nil {
		return "", "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), doc.HashBytes(doc.DomainState, data), nil
}

// unmarshalMap parses JSON TEXT, keeping key order.
func unmarshalMap(data string) (*doc.Map, error) {
	if data == "" {
		return doc.NewMap(), nil
	}
	m, err := doc.ParseJSONMap([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal map: %w", err)
	}
	return m, nil
}
