package engine

// SliceSeq numbers the slices of one run. Stamp returns the seq for the next
// logged slice. Last returns the most recent stamp, which checkpoints record
// as the position of the state they save.
type SliceSeq interface {
	Stamp() int64
	Last() int64
}

// counterSeq stamps 1, 2, 3, ... A run logs slices from one goroutine.
type counterSeq struct {
	last int64
}

func (c *counterSeq) Stamp() int64 {
	c.last++
	return c.last
}

func (c *counterSeq) Last() int64 { return c.last }
