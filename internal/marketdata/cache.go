package marketdata

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

type LastTrade struct {
	Price     uint32 `json:"price"`
	Quantity  uint32 `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
	Trades    uint64 `json:"trades"`
	Volume    uint64 `json:"volume"`
}

// Cache stores the latest execution per instrument in memory.
type Cache struct {
	mu   sync.RWMutex
	last map[string]LastTrade
}

func NewCache() *Cache {
	return &Cache{last: make(map[string]LastTrade)}
}

// Publish records executions and ignores every other event.
func (c *Cache) Publish(ev engine.Event) {
	if ev.Kind != engine.EventExecuted {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lt := c.last[ev.Instrument]
	lt.Price = ev.Price
	lt.Quantity = ev.Quantity
	lt.Timestamp = ev.Timestamp
	lt.Trades++
	lt.Volume += uint64(ev.Quantity)
	c.last[ev.Instrument] = lt
}

func (c *Cache) Get(instrument string) (LastTrade, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lt, ok := c.last[instrument]
	return lt, ok
}

func (c *Cache) Instruments() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.last))
	for k := range c.last {
		out = append(out, k)
	}
	c.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Report logs the last trade of every instrument each interval until ctx is
// done.
func Report(ctx context.Context, cache *Cache, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reportOnce(cache, logger)
		case <-ctx.Done():
			return
		}
	}
}

func reportOnce(cache *Cache, logger *zap.Logger) {
	for _, inst := range cache.Instruments() {
		lt, _ := cache.Get(inst)
		logger.Info("last trade",
			zap.String("instrument", inst),
			zap.Uint32("price", lt.Price),
			zap.Uint32("quantity", lt.Quantity),
			zap.Uint64("trades", lt.Trades),
			zap.Uint64("volume", lt.Volume))
	}
}
