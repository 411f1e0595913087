package slicer

import (
	"fmt"

	"github.com/roach88/lowcode/internal/doc"
)

// CursorPolicy folds an accepted update into the current state.
//
// current is nil when no state exists. update holds only configured
// stream-slice fields with non-null values and may be empty. The returned
// map becomes the new state; an empty or nil result means "no state".
type CursorPolicy interface {
	Apply(current, update, lastRecord *doc.Map) *doc.Map
}

// ReplacePolicy makes the state exactly the latest accepted update.
type ReplacePolicy struct{}

func (ReplacePolicy) Apply(_, update, _ *doc.Map) *doc.Map {
	return update.Clone()
}

// MergePolicy overwrites the updated keys and keeps every other key.
type MergePolicy struct{}

func (MergePolicy) Apply(current, update, _ *doc.Map) *doc.Map {
	merged := current.Clone()
	if merged == nil {
		merged = doc.NewMap()
	}
	update.Range(func(k string, v doc.Value) bool {
		merged.Set(k, v)
		return true
	})
	return merged
}

// PolicyByName resolves a manifest policy name.
func PolicyByName(name string) (CursorPolicy, error) {
	switch name {
	case "", "replace":
		return ReplacePolicy{}, nil
	case "merge":
		return MergePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown cursor policy %q: must be replace or merge", name)
	}
}

// UpdateCursor folds a consumed slice into the cursor state and reports
// whether it was accepted. A slice with any key that is neither a configured
// stream-slice field nor "parent_slice" is rejected and state is unchanged.
// lastRecord is passed through to the policy.
func (s *Substream) UpdateCursor(slice, lastRecord *doc.Map) bool {
	update, ok := s.filterUpdate(slice)
	if !ok {
		return false
	}
	next := s.policy.Apply(s.state, update, lastRecord)
	if next.Len() == 0 {
		next = nil
	}
	s.state = next
	return true
}

// Restore seeds the cursor state from a previously exported mapping,
// bypassing the policy. Unknown keys are an error.
func (s *Substream) Restore(state *doc.Map) error {
	update, ok := s.filterUpdate(state)
	if !ok {
		return fmt.Errorf("restore state: keys %v are not all stream slice fields %v", state.Keys(), s.StreamSliceFields())
	}
	if update.Len() == 0 {
		update = nil
	}
	s.state = update
	return nil
}

// StreamState returns a copy of the current state, or nil when none exists.
func (s *Substream) StreamState() *doc.Map {
	return s.state.Clone()
}

func (s *Substream) filterUpdate(slice *doc.Map) (*doc.Map, bool) {
	update := doc.NewMap()
	accepted := true
	slice.Range(func(k string, v doc.Value) bool {
		if k == ParentSliceKey {
			return true
		}
		if _, ok := s.known[k]; !ok {
			accepted = false
			return false
		}
		if !doc.IsNull(v) {
			update.Set(k, v)
		}
		return true
	})
	return update, accepted
}
