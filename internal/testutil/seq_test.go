package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeqLog(t *testing.T) {
	s := NewSeqLog(41)

	assert.Equal(t, int64(42), s.Stamp())
	assert.Equal(t, int64(42), s.Last())
	assert.Equal(t, int64(43), s.Stamp())
	assert.Equal(t, int64(43), s.Last())

	assert.Equal(t, []int64{42, 43}, s.Stamps())
	assert.Equal(t, []int64{42, 43}, s.Reads())
}

func TestSeqLog_NothingStamped(t *testing.T) {
	s := NewSeqLog(0)

	assert.Equal(t, int64(0), s.Last())
	assert.Empty(t, s.Stamps())
}
