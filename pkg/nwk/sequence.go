package nwk

import (
	"crypto/rand"
	"sync"
)

// SequenceCounter hands out outgoing frame sequence numbers. It starts at
// a random value and wraps at 256. It is safe for concurrent use.
type SequenceCounter struct {
	mu    sync.Mutex
	value uint8
}

// NewSequenceCounter creates a counter with a random start.
func NewSequenceCounter() *SequenceCounter {
	var b [1]byte
	_, _ = rand.Read(b[:])
	return &SequenceCounter{value: b[0]}
}

// NewSequenceCounterWithValue creates a counter starting at initial.
func NewSequenceCounterWithValue(initial uint8) *SequenceCounter {
	return &SequenceCounter{value: initial}
}

// Next returns the next sequence number.
func (c *SequenceCounter) Next() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.value
	c.value++
	return v
}

// dupWindow is how many recent sequence numbers are remembered per source.
const dupWindow = 8

// DuplicateFilter drops frames whose (source, sequence) pair was seen among
// the last few frames from that source.
type DuplicateFilter struct {
	mu     sync.Mutex
	recent map[uint16][]uint8
}

// NewDuplicateFilter creates an empty filter.
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{recent: make(map[uint16][]uint8)}
}

// Accept records h and reports whether it is new.
func (f *DuplicateFilter) Accept(h Header) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := f.recent[h.Source]
	for _, s := range seen {
		if s == h.Sequence {
			return false
		}
	}
	seen = append(seen, h.Sequence)
	if len(seen) > dupWindow {
		seen = seen[len(seen)-dupWindow:]
	}
	f.recent[h.Source] = seen
	return true
}

// Forget drops the history of a source, e.g. after it left.
func (f *DuplicateFilter) Forget(source uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recent, source)
}
