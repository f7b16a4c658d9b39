package qdrant

import (
	"sync/atomic"
	"time"
)

// Sequencer hands out insertion sequence numbers. Values are nanosecond
// wall-clock readings bumped past the last value issued, so they strictly
// increase within a process even when the clock stalls or steps back.
type Sequencer struct {
	last atomic.Int64
	now  func() time.Time
}

// NewSequencer returns a Sequencer reading the wall clock.
func NewSequencer() *Sequencer {
	return &Sequencer{now: time.Now}
}

// Reserve claims n consecutive sequence numbers and returns the first.
func (s *Sequencer) Reserve(n int) int64 {
	if n < 1 {
		n = 1
	}
	for {
		last := s.last.Load()
		first := max(s.now().UnixNano(), last+1)
		if s.last.CompareAndSwap(last, first+int64(n)-1) {
			return first
		}
	}
}

// sequence is shared by every Index in the process.
var sequence = NewSequencer()
