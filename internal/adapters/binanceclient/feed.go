package binanceclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
)

// KlineSource is the REST side of the market data used by Feed.
type KlineSource interface {
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)
	GetSpread(ctx context.Context, symbol string) (float64, error)
}

// KlineStreamer pushes live kline updates.
type KlineStreamer interface {
	StreamKlines(ctx context.Context, symbol, interval string, handler func(kline *domain.Kline), errHandler func(err error)) (<-chan struct{}, error)
}

// FeedConfig configures the market snapshot feed.
type FeedConfig struct {
	Interval   string        // Kline interval, e.g. "1m"
	History    int           // Number of klines in a snapshot
	StaleAfter time.Duration // A streamed window older than this is refreshed over REST
}

type window struct {
	klines  []*domain.Kline
	updated time.Time
}

// Feed implements ports.DataFeed over Binance klines. Windows are kept current by the kline
// stream when Watch is running and refetched over REST when missing or stale.
type Feed struct {
	src    KlineSource
	cfg    FeedConfig
	logger ports.Logger
	now    func() time.Time

	mu      sync.RWMutex
	windows map[string]*window
}

// NewFeed creates a market snapshot feed.
func NewFeed(src KlineSource, cfg FeedConfig, logger ports.Logger) (*Feed, error) {
	if src == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Binance feed")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.History <= 0 {
		cfg.History = 100
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	return &Feed{
		src:     src,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		windows: make(map[string]*window),
	}, nil
}

// Snapshot returns the latest market state of asset.
func (f *Feed) Snapshot(ctx context.Context, asset string) (*ports.MarketSnapshot, error) {
	op := "Feed.Snapshot"
	klines := f.current(asset)
	if klines == nil {
		fetched, err := f.src.GetKlines(ctx, asset, f.cfg.Interval, f.cfg.History)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(fetched) == 0 {
			return nil, fmt.Errorf("%s: no klines for %s: %w", op, asset, ports.ErrNoMarketData)
		}
		f.store(asset, fetched)
		klines = fetched
	}

	spread, err := f.src.GetSpread(ctx, asset)
	if err != nil {
		// A missing spread only weakens breakout filters.
		f.logger.Warn(ctx, op+": spread unavailable", map[string]interface{}{"asset": asset, "error": err.Error()})
		spread = 0
	}

	last := klines[len(klines)-1]
	return &ports.MarketSnapshot{
		Asset:         asset,
		Price:         last.Close,
		PriceHistory:  domain.Closes(klines),
		HighHistory:   domain.Highs(klines),
		LowHistory:    domain.Lows(klines),
		Volume:        last.Volume,
		VolumeHistory: domain.Volumes(klines),
		Spread:        spread,
		Time:          last.CloseTime,
	}, nil
}

// OnKline merges a streamed kline into the asset window. An update for the open interval
// replaces the last entry; a new interval is appended.
func (f *Feed) OnKline(k *domain.Kline) {
	if k == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[k.Symbol]
	if !ok || len(w.klines) == 0 {
		return // Needs a REST bootstrap first
	}
	last := w.klines[len(w.klines)-1]
	switch {
	case k.OpenTime.Equal(last.OpenTime):
		w.klines[len(w.klines)-1] = k
	case k.OpenTime.After(last.OpenTime):
		w.klines = append(w.klines, k)
		if len(w.klines) > f.cfg.History {
			w.klines = w.klines[len(w.klines)-f.cfg.History:]
		}
	default:
		return
	}
	w.updated = f.now()
}

// Watch streams klines for asset into the feed until ctx is cancelled.
func (f *Feed) Watch(ctx context.Context, streamer KlineStreamer, asset string) error {
	done, err := streamer.StreamKlines(ctx, asset, f.cfg.Interval, f.OnKline, func(err error) {
		f.logger.Warn(ctx, "Feed.Watch: stream error", map[string]interface{}{"asset": asset, "error": err.Error()})
	})
	if err != nil {
		return fmt.Errorf("failed to stream klines for %s: %w", asset, err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		<-done
	}
	return nil
}

// current returns a copy of a fresh window, or nil when it must be refetched.
func (f *Feed) current(asset string) []*domain.Kline {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.windows[asset]
	if !ok || len(w.klines) == 0 || f.now().Sub(w.updated) > f.cfg.StaleAfter {
		return nil
	}
	return append([]*domain.Kline(nil), w.klines...)
}

func (f *Feed) store(asset string, klines []*domain.Kline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[asset] = &window{
		klines:  append([]*domain.Kline(nil), klines...),
		updated: f.now(),
	}
}
