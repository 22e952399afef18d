package repository

import (
	"context"
	"sync"
	"time"

	"dailybacktest/types"

	"go.uber.org/zap"
)

type cacheKey struct {
	source string
	symbol string
	start  string
	end    string
}

func newCacheKey(source, symbol string, start, end time.Time) cacheKey {
	return cacheKey{source: source, symbol: symbol, start: keyTime(start), end: keyTime(end)}
}

func keyTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// BarCache memoizes loaded bar series by (symbol, date range, source). It is
// owned by the caller and only forgets entries when told to. Returned slices
// are copies so callers cannot corrupt the cached series.
type BarCache struct {
	mu      sync.RWMutex
	entries map[cacheKey][]types.Bar
	logger  *zap.Logger
}

func NewBarCache(logger *zap.Logger) *BarCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BarCache{
		entries: make(map[cacheKey][]types.Bar),
		logger:  logger,
	}
}

// Bars returns the cached series or loads it from the source on a miss.
// Failed loads are not cached.
func (c *BarCache) Bars(ctx context.Context, src BarSource, symbol string, start, end time.Time) ([]types.Bar, error) {
	if bars, ok := c.Get(src.Name(), symbol, start, end); ok {
		c.logger.Debug("bar cache hit", zap.String("source", src.Name()), zap.String("symbol", symbol))
		return bars, nil
	}
	bars, err := src.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("bar cache miss", zap.String("source", src.Name()), zap.String("symbol", symbol), zap.Int("bars", len(bars)))
	c.Put(src.Name(), symbol, start, end, bars)
	return copyBars(bars), nil
}

func (c *BarCache) Get(source, symbol string, start, end time.Time) ([]types.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bars, ok := c.entries[newCacheKey(source, symbol, start, end)]
	if !ok {
		return nil, false
	}
	return copyBars(bars), true
}

func (c *BarCache) Put(source, symbol string, start, end time.Time, bars []types.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[newCacheKey(source, symbol, start, end)] = copyBars(bars)
}

// Invalidate drops one entry and reports whether it existed.
func (c *BarCache) Invalidate(source, symbol string, start, end time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := newCacheKey(source, symbol, start, end)
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// InvalidateSymbol drops every range of a symbol from every source.
func (c *BarCache) InvalidateSymbol(symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if key.symbol == symbol {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *BarCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey][]types.Bar)
}

func (c *BarCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyBars(bars []types.Bar) []types.Bar {
	out := make([]types.Bar, len(bars))
	copy(out, bars)
	return out
}
