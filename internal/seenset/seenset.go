// Package seenset tracks which listings have already been observed per
// marketplace, and the baseline suppression window that follows startup
// or a filter change.
package seenset

import "sync"

const (
	// DefaultCap is the default retained-entry target N from spec §3.
	DefaultCap = 1000
	// softCapMultiplier bounds the set at 2×N before an LRU-style trim
	// reclaims it back down to DefaultCap, per spec §3.
	softCapMultiplier = 2
)

// Set is a per-marketplace bounded set of composite_ids with LRU-style
// trimming. The zero value is not usable; use New.
type Set struct {
	mu       sync.Mutex
	cap      int
	softCap  int
	ids      map[string]struct{}
	order    []string // insertion order, oldest first
}

// New creates a Set retaining at most cap entries after trimming, with a
// soft cap of 2×cap before a trim is triggered.
func New(cap int) *Set {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Set{
		cap:     cap,
		softCap: cap * softCapMultiplier,
		ids:     make(map[string]struct{}, cap*softCapMultiplier),
	}
}

// Observe inserts compositeID unconditionally and reports whether this
// was the first time it was observed. Trims the set when the soft cap is
// exceeded, keeping only the most recent cap entries.
func (s *Set) Observe(compositeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.ids[compositeID]; seen {
		return false
	}
	s.ids[compositeID] = struct{}{}
	s.order = append(s.order, compositeID)

	if len(s.order) > s.softCap {
		s.trimLocked()
	}
	return true
}

// trimLocked drops the oldest entries, keeping only the most recent cap.
// Caller must hold s.mu.
func (s *Set) trimLocked() {
	drop := len(s.order) - s.cap
	for _, id := range s.order[:drop] {
		delete(s.ids, id)
	}
	remaining := make([]string, len(s.order)-drop)
	copy(remaining, s.order[drop:])
	s.order = remaining
}

// Reset empties the set, used on a filter-change event (spec §4.4/§4.7).
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{}, s.softCap)
	s.order = s.order[:0]
}

// Len reports the current entry count, for diagnostics and tests.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// BaselineFlag is a single-writer, many-reader boolean gating emission
// during the first sweep after start or filter-change, per spec §4.4.
type BaselineFlag struct {
	mu   sync.RWMutex
	done bool
}

func (b *BaselineFlag) Done() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.done
}

func (b *BaselineFlag) MarkDone() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
}

func (b *BaselineFlag) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = false
}
