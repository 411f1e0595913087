package testutil

import (
	"slices"
	"sync"
)

// SeqLog is a slice sequence for engine tests. It stamps offset+1,
// offset+2, ... and remembers every stamp handed out and every checkpoint
// read of the last stamp.
type SeqLog struct {
	mu     sync.Mutex
	last   int64
	stamps []int64
	reads  []int64
}

// NewSeqLog returns a SeqLog whose first stamp is offset+1.
func NewSeqLog(offset int64) *SeqLog {
	return &SeqLog{last: offset}
}

func (s *SeqLog) Stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	s.stamps = append(s.stamps, s.last)
	return s.last
}

func (s *SeqLog) Last() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, s.last)
	return s.last
}

// Stamps returns the stamps handed out so far.
func (s *SeqLog) Stamps() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stamps)
}

// Reads returns the value of every Last call, in order.
func (s *SeqLog) Reads() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reads)
}
