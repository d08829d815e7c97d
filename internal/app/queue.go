package app

import (
	"sync"

	"binaryOptionsBot/internal/domain"
)

// SignalQueue is a bounded FIFO of pending signals. When full, the oldest entry is evicted.
// A sealed queue stays empty.
type SignalQueue struct {
	mu       sync.Mutex
	items    []domain.TradeSignal
	capacity int
	dropped  uint64
	sealed   bool
}

// NewSignalQueue creates a queue holding at most capacity signals (50 when capacity <= 0).
func NewSignalQueue(capacity int) *SignalQueue {
	if capacity <= 0 {
		capacity = 50
	}
	return &SignalQueue{
		items:    make([]domain.TradeSignal, 0, capacity),
		capacity: capacity,
	}
}

// Push appends s and reports whether it was accepted. If the queue was full the evicted signal
// is returned with evicted=true.
func (q *SignalQueue) Push(s domain.TradeSignal) (old domain.TradeSignal, evicted, accepted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sealed {
		return old, false, false
	}
	if len(q.items) >= q.capacity {
		old = q.items[0]
		q.items = append(q.items[:0], q.items[1:]...)
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, s)
	return old, evicted, true
}

// Pop removes and returns the oldest signal.
func (q *SignalQueue) Pop() (domain.TradeSignal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.TradeSignal{}, false
	}
	s := q.items[0]
	q.items = append(q.items[:0], q.items[1:]...)
	return s, true
}

// Seal empties the queue, refuses further pushes and returns how many signals were discarded.
func (q *SignalQueue) Seal() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sealed = true
	n := len(q.items)
	q.items = q.items[:0]
	return n
}

// Len returns the number of queued signals.
func (q *SignalQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many signals were evicted since creation.
func (q *SignalQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Signals returns a copy of the queued signals, oldest first.
func (q *SignalQueue) Signals() []domain.TradeSignal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.TradeSignal, len(q.items))
	copy(out, q.items)
	return out
}
