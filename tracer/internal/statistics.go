package internal

import "sync"

// Statistics is a point-in-time copy of the counters of one rule.
type Statistics struct {
	// RequestCount is the number of requests matched against the rule.
	RequestCount int64

	// SampleCount is the number of requests sampled using the rule.
	SampleCount int64

	// BorrowCount is the number of requests admitted through the reservoir before any
	// target was known for the rule.
	BorrowCount int64
}

// samplingStatistics counts decisions of one rule. A single instance is shared by every
// applier derived from the same rule through target updates.
type samplingStatistics struct {
	mu       sync.Mutex
	counters Statistics
}

func newSamplingStatistics() *samplingStatistics {
	return &samplingStatistics{}
}

func (s *samplingStatistics) record(sampled, borrowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters.RequestCount++
	if sampled {
		s.counters.SampleCount++
	}
	if borrowed {
		s.counters.BorrowCount++
	}
}

// snapshot returns the counters accumulated since the previous snapshot and resets them.
func (s *samplingStatistics) snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters
	s.counters = Statistics{}
	return c
}
