package httpapi

import (
	"sync"

	"github.com/nertexqq/giftwatch/internal/dispatch"
	"github.com/nertexqq/giftwatch/internal/marketplace"
)

// Ledger is a bounded, in-memory ring buffer of recently dispatched
// gift events. Listings are explicitly not persisted per the Non-goals
// (no listings database), so this is the only place recent activity
// can be inspected operationally.
type Ledger struct {
	mu       sync.Mutex
	cap      int
	entries  []dispatch.NewGiftEvent
	position int
	filled   bool
}

func NewLedger(cap int) *Ledger {
	if cap <= 0 {
		cap = 200
	}
	return &Ledger{cap: cap, entries: make([]dispatch.NewGiftEvent, cap)}
}

// Record appends e, overwriting the oldest entry once the ring is full.
func (l *Ledger) Record(e dispatch.NewGiftEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.position] = e
	l.position = (l.position + 1) % l.cap
	if l.position == 0 {
		l.filled = true
	}
}

// Recent returns up to limit entries, most recent first, optionally
// filtered to a single marketplace.
func (l *Ledger) Recent(mp marketplace.Name, limit int) []dispatch.NewGiftEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.position
	if l.filled {
		n = l.cap
	}
	out := make([]dispatch.NewGiftEvent, 0, limit)
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (l.position - 1 - i + l.cap) % l.cap
		e := l.entries[idx]
		if mp != "" && e.Marketplace != string(mp) {
			continue
		}
		out = append(out, e)
	}
	return out
}
