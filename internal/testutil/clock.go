package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a resettable logical clock for step sequencing.
//
// It satisfies harness.Sequencer. Reset lets one test run the same suite
// twice and compare the two traces byte for byte.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock starting at 0. The first Next
// returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// SteppedTime is a fake wall clock that advances by a fixed step on every
// read. Pass its Now method as harness.Options.Now to get reproducible
// timestamps and durations.
type SteppedTime struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewSteppedTime starts at start and advances by step per call.
func NewSteppedTime(start time.Time, step time.Duration) *SteppedTime {
	return &SteppedTime{now: start, step: step}
}

// Now returns the current fake time, then advances it.
func (s *SteppedTime) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now
	s.now = s.now.Add(s.step)
	return t
}
