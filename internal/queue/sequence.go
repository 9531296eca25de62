package queue

import "sync/atomic"

// Sequencer stamps ops in intake order so log lines can be correlated.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }
