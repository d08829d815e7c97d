package app

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"binaryOptionsBot/internal/domain"
)

var (
	errTableFull   = errors.New("active trade table is full")
	errTableSealed = errors.New("active trade table is sealed")
)

// TradeTable holds the engine's active trades keyed by id.
// A slot is reserved before execution so that len(trades)+reserved never exceeds the capacity.
type TradeTable struct {
	mu       sync.RWMutex
	trades   map[string]*domain.Trade
	capacity int
	reserved int
	sealed   bool
}

// NewTradeTable creates a table bounded by capacity.
func NewTradeTable(capacity int) *TradeTable {
	return &TradeTable{
		trades:   make(map[string]*domain.Trade, capacity),
		capacity: capacity,
	}
}

// Reserve claims a slot for an execution in flight.
func (t *TradeTable) Reserve() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed || len(t.trades)+t.reserved >= t.capacity {
		return false
	}
	t.reserved++
	return true
}

// Release gives back a reserved slot that did not become a trade.
func (t *TradeTable) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reserved > 0 {
		t.reserved--
	}
}

// Commit turns a reserved slot into an active trade.
func (t *TradeTable) Commit(trade domain.Trade) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reserved > 0 {
		t.reserved--
	}
	if t.sealed {
		return errTableSealed
	}
	if _, ok := t.trades[trade.ID]; ok {
		return fmt.Errorf("trade %s already tracked", trade.ID)
	}
	if len(t.trades)+t.reserved >= t.capacity {
		return errTableFull
	}
	t.trades[trade.ID] = &trade
	return nil
}

// Update applies fn to the tracked trade. It reports false when id is not tracked.
func (t *TradeTable) Update(id string, fn func(*domain.Trade)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.trades[id]
	if !ok {
		return false
	}
	fn(tr)
	return true
}

// Remove drops the trade from the table and returns it.
func (t *TradeTable) Remove(id string) (domain.Trade, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.trades[id]
	if !ok {
		return domain.Trade{}, false
	}
	delete(t.trades, id)
	return *tr, true
}

// List returns copies of all active trades ordered by entry time.
func (t *TradeTable) List() []domain.Trade {
	t.mu.RLock()
	out := make([]domain.Trade, 0, len(t.trades))
	for _, tr := range t.trades {
		out = append(out, *tr)
	}
	t.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

// Len returns the number of active trades, excluding reservations.
func (t *TradeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.trades)
}

// Seal removes every trade and refuses further reservations and commits.
func (t *TradeTable) Seal() []domain.Trade {
	t.mu.Lock()
	out := make([]domain.Trade, 0, len(t.trades))
	for id, tr := range t.trades {
		out = append(out, *tr)
		delete(t.trades, id)
	}
	t.sealed = true
	t.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out
}
