package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
)

// WriterMetrics provides statistics about flushed writes.
type WriterMetrics struct {
	TotalWrites   uint64
	TotalFlushes  uint64
	TotalErrors   uint64
	LastBatchSize int
	LastFlushTime time.Time
}

// Writer implements ports.Persistence on top of the synchronous repositories.
// Saves are buffered and coalesced by id (last write wins), then flushed by a background
// worker when the buffer reaches maxSize or every interval.
type Writer struct {
	trades       ports.TradeRepository
	strategies   ports.StrategyRepository
	logger       ports.Logger
	maxSize      int
	interval     time.Duration
	writeTimeout time.Duration

	mu                sync.Mutex
	pendingTrades     map[string]domain.Trade
	pendingStrategies map[string]domain.Strategy
	closed            bool

	flushMu sync.Mutex
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	writes    atomic.Uint64
	flushes   atomic.Uint64
	errs      atomic.Uint64
	lastMu    sync.Mutex
	lastSize  int
	lastFlush time.Time
}

var _ ports.Persistence = (*Writer)(nil)

// NewWriter starts a writer. maxSize and interval fall back to 50 and 500ms.
func NewWriter(trades ports.TradeRepository, strategies ports.StrategyRepository, logger ports.Logger, maxSize int, interval, writeTimeout time.Duration) *Writer {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	w := &Writer{
		trades:            trades,
		strategies:        strategies,
		logger:            logger,
		maxSize:           maxSize,
		interval:          interval,
		writeTimeout:      writeTimeout,
		pendingTrades:     make(map[string]domain.Trade),
		pendingStrategies: make(map[string]domain.Strategy),
		kick:              make(chan struct{}, 1),
		done:              make(chan struct{}),
	}

	w.wg.Add(1)
	go w.backgroundFlush()

	return w
}

// SaveTrade buffers a trade snapshot.
func (w *Writer) SaveTrade(trade domain.Trade) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn(context.Background(), "persistence: trade dropped after close", map[string]interface{}{"tradeID": trade.ID})
		return
	}
	w.pendingTrades[trade.ID] = trade
	full := len(w.pendingTrades)+len(w.pendingStrategies) >= w.maxSize
	w.mu.Unlock()

	if full {
		w.signalFlush()
	}
}

// SaveStrategy buffers a strategy snapshot.
func (w *Writer) SaveStrategy(strategy domain.Strategy) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn(context.Background(), "persistence: strategy dropped after close", map[string]interface{}{"strategyID": strategy.ID})
		return
	}
	w.pendingStrategies[strategy.ID] = strategy.Clone()
	full := len(w.pendingTrades)+len(w.pendingStrategies) >= w.maxSize
	w.mu.Unlock()

	if full {
		w.signalFlush()
	}
}

func (w *Writer) signalFlush() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Flush writes all buffered snapshots now. Errors are logged and counted.
func (w *Writer) Flush(ctx context.Context) {
	op := "Writer.Flush"

	w.mu.Lock()
	if len(w.pendingTrades) == 0 && len(w.pendingStrategies) == 0 {
		w.mu.Unlock()
		return
	}
	trades := w.pendingTrades
	strategies := w.pendingStrategies
	w.pendingTrades = make(map[string]domain.Trade)
	w.pendingStrategies = make(map[string]domain.Strategy)
	w.mu.Unlock()

	// Serialize flushes so an older snapshot never overwrites a newer one.
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	size := len(trades) + len(strategies)
	for _, t := range trades {
		t := t
		wctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
		if err := w.trades.SaveTrade(wctx, &t); err != nil {
			w.errs.Add(1)
			w.logger.Error(ctx, err, op+": failed to save trade", map[string]interface{}{"tradeID": t.ID})
		}
		cancel()
	}
	for _, s := range strategies {
		s := s
		wctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
		if err := w.strategies.SaveStrategy(wctx, &s); err != nil {
			w.errs.Add(1)
			w.logger.Error(ctx, err, op+": failed to save strategy", map[string]interface{}{"strategyID": s.ID})
		}
		cancel()
	}

	w.writes.Add(uint64(size))
	w.flushes.Add(1)
	w.lastMu.Lock()
	w.lastSize = size
	w.lastFlush = time.Now()
	w.lastMu.Unlock()

	w.logger.Debug(ctx, op+": flushed", map[string]interface{}{"trades": len(trades), "strategies": len(strategies)})
}

func (w *Writer) backgroundFlush() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush(context.Background())
		case <-w.kick:
			w.Flush(context.Background())
		case <-w.done:
			w.Flush(context.Background())
			return
		}
	}
}

// Pending returns the number of buffered snapshots.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pendingTrades) + len(w.pendingStrategies)
}

// Metrics returns the current counters.
func (w *Writer) Metrics() WriterMetrics {
	w.lastMu.Lock()
	defer w.lastMu.Unlock()
	return WriterMetrics{
		TotalWrites:   w.writes.Load(),
		TotalFlushes:  w.flushes.Load(),
		TotalErrors:   w.errs.Load(),
		LastBatchSize: w.lastSize,
		LastFlushTime: w.lastFlush,
	}
}

// Close stops accepting saves, flushes what is buffered and stops the worker.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return nil
}
