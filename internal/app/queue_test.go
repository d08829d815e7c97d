package app

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binaryOptionsBot/internal/domain"
)

func sig(id string) domain.TradeSignal {
	return domain.TradeSignal{Asset: "BTCUSDT", Direction: domain.DirectionUp, Stake: 10, Duration: 60, Confidence: 0.8, StrategyID: id}
}

func TestSignalQueue_DropsOldestAtCapacity(t *testing.T) {
	q := NewSignalQueue(50)
	var evictions []string
	for i := 1; i <= 51; i++ {
		if old, evicted, _ := q.Push(sig(fmt.Sprintf("s%d", i))); evicted {
			evictions = append(evictions, old.StrategyID)
		}
	}

	assert.Equal(t, []string{"s1"}, evictions)
	assert.Equal(t, uint64(1), q.Dropped())
	items := q.Signals()
	require.Len(t, items, 50)
	for i, s := range items {
		assert.Equal(t, fmt.Sprintf("s%d", i+2), s.StrategyID)
	}
}

func TestSignalQueue_FIFO(t *testing.T) {
	q := NewSignalQueue(3)
	q.Push(sig("a"))
	q.Push(sig("b"))

	s, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", s.StrategyID)
	s, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", s.StrategyID)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestSignalQueue_Seal(t *testing.T) {
	q := NewSignalQueue(0)
	assert.Equal(t, 50, q.capacity)
	q.Push(sig("a"))
	q.Push(sig("b"))
	assert.Equal(t, 2, q.Seal())
	assert.Equal(t, 0, q.Len())

	_, evicted, accepted := q.Push(sig("c"))
	assert.False(t, accepted)
	assert.False(t, evicted)
	assert.Equal(t, 0, q.Len())
}

func TestSignalQueue_SealRacesPush(t *testing.T) {
	q := NewSignalQueue(100)
	var wg sync.WaitGroup
	var accepted atomic.Int64
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, _, ok := q.Push(sig(fmt.Sprintf("s%d-%d", i, j))); ok {
					accepted.Add(1)
				}
			}
		}()
	}
	discarded := q.Seal()
	wg.Wait()

	assert.Equal(t, 0, q.Len(), "nothing survives a seal")
	assert.LessOrEqual(t, int64(discarded), accepted.Load())
}
