package slicer

import (
	"fmt"

	"github.com/roach88/lowcode/internal/stream"
)

// ParentSliceKey is the reserved slice key carrying the parent partition value.
const ParentSliceKey = "parent_slice"

// DefaultPartitionField is the partition field copied into ParentSliceKey.
const DefaultPartitionField = "slice"

// ParentStreamConfig binds a parent stream to the fields the slicer reads
// from its records and writes into produced slices.
type ParentStreamConfig struct {
	Stream stream.Stream

	// ParentKey is the field read off each parent record, e.g. "id".
	ParentKey string

	// StreamSliceField is the key the value is written under, e.g. "post_id".
	StreamSliceField string

	// PartitionField is the partition field copied into "parent_slice".
	// Empty means the slicer-wide default.
	PartitionField string
}

// ConfigError reports a malformed slicer configuration.
type ConfigError struct {
	Parent  string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("substream config: parent %q: %s", e.Parent, e.Message)
	}
	return fmt.Sprintf("substream config: %s", e.Message)
}

// Option configures a Substream.
type Option func(*Substream)

// WithCursorPolicy sets how accepted cursor updates fold into state.
func WithCursorPolicy(p CursorPolicy) Option {
	return func(s *Substream) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithPartitionField sets the default partition field for parents that do
// not name one.
func WithPartitionField(field string) Option {
	return func(s *Substream) {
		if field != "" {
			s.partitionField = field
		}
	}
}

// New builds a Substream from parallel configuration: the ordered parents,
// parent name to slice key, and parent name to stream-slice field. All three
// must name the same parents.
func New(parents []stream.Stream, sliceKeys, sliceFields map[string]string, opts ...Option) (*Substream, error) {
	if len(sliceKeys) != len(parents) {
		return nil, &ConfigError{Message: fmt.Sprintf("%d parent stream(s) but %d slice key(s)", len(parents), len(sliceKeys))}
	}
	if len(sliceFields) != len(parents) {
		return nil, &ConfigError{Message: fmt.Sprintf("%d parent stream(s) but %d stream slice field(s)", len(parents), len(sliceFields))}
	}

	configs := make([]ParentStreamConfig, 0, len(parents))
	for _, p := range parents {
		if p == nil {
			return nil, &ConfigError{Message: "nil parent stream"}
		}
		name := p.Name()
		key, ok := sliceKeys[name]
		if !ok {
			return nil, &ConfigError{Parent: name, Message: "no slice key configured"}
		}
		field, ok := sliceFields[name]
		if !ok {
			return nil, &ConfigError{Parent: name, Message: "no stream slice field configured"}
		}
		configs = append(configs, ParentStreamConfig{Stream: p, ParentKey: key, StreamSliceField: field})
	}
	return NewFromConfigs(configs, opts...)
}

// NewFromConfigs builds a Substream from per-parent configs, in order.
func NewFromConfigs(parents []ParentStreamConfig, opts ...Option) (*Substream, error) {
	s := &Substream{
		policy:         ReplacePolicy{},
		partitionField: DefaultPartitionField,
		known:          make(map[string]struct{}, len(parents)),
	}
	for _, opt := range opts {
		opt(s)
	}

	names := make(map[string]struct{}, len(parents))
	for _, p := range parents {
		if p.Stream == nil {
			return nil, &ConfigError{Message: "nil parent stream"}
		}
		name := p.Stream.Name()
		if _, dup := names[name]; dup {
			return nil, &ConfigError{Parent: name, Message: "duplicate parent stream"}
		}
		names[name] = struct{}{}

		if p.ParentKey == "" {
			return nil, &ConfigError{Parent: name, Message: "slice key is empty"}
		}
		if p.StreamSliceField == "" {
			return nil, &ConfigError{Parent: name, Message: "stream slice field is empty"}
		}
		if p.StreamSliceField == ParentSliceKey {
			return nil, &ConfigError{Parent: name, Message: fmt.Sprintf("stream slice field %q is reserved", ParentSliceKey)}
		}
		if _, dup := s.known[p.StreamSliceField]; dup {
			return nil, &ConfigError{Parent: name, Message: fmt.Sprintf("stream slice field %q used by more than one parent", p.StreamSliceField)}
		}
		s.known[p.StreamSliceField] = struct{}{}

		if p.PartitionField == "" {
			p.PartitionField = s.partitionField
		}
		s.parents = append(s.parents, p)
	}
	return s, nil
}
