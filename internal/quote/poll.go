package quote

import (
	"context"
	"time"

	"github.com/haykdb/blacksmith/internal/broker"
)

// BookSource is the REST surface the polling feed reads from.
type BookSource interface {
	SpotBookTicker(ctx context.Context, symbol string) (broker.Quote, error)
	FuturesBookTicker(ctx context.Context, symbol string) (broker.Quote, error)
	SpotLastPrice(ctx context.Context, symbol string) (float64, error)
	FuturesMarkPrice(ctx context.Context, symbol string) (float64, error)
}

// RunPolling refreshes the cache from REST on a fixed cadence until the
// context is canceled. With midPrice set it polls both order books; otherwise
// it falls back to spot last price and futures mark price, stored as a
// collapsed book (bid = ask).
func (c *Cache) RunPolling(ctx context.Context, src BookSource, interval time.Duration, midPrice bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.pollOnce(ctx, src, midPrice)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx, src, midPrice)
		}
	}
}

func (c *Cache) pollOnce(ctx context.Context, src BookSource, midPrice bool) {
	if midPrice {
		if q, err := src.SpotBookTicker(ctx, c.symbol); err != nil {
			c.log.Warn().Err(err).Msg("spot book poll failed")
		} else {
			c.SetLeg(LegSpot, q.Bid, q.Ask)
		}
		if q, err := src.FuturesBookTicker(ctx, c.symbol); err != nil {
			c.log.Warn().Err(err).Msg("futures book poll failed")
		} else {
			c.SetLeg(LegFutures, q.Bid, q.Ask)
		}
		return
	}

	if px, err := src.SpotLastPrice(ctx, c.symbol); err != nil {
		c.log.Warn().Err(err).Msg("spot last price poll failed")
	} else {
		c.SetLeg(LegSpot, px, px)
	}
	if px, err := src.FuturesMarkPrice(ctx, c.symbol); err != nil {
		c.log.Warn().Err(err).Msg("mark price poll failed")
	} else {
		c.SetLeg(LegFutures, px, px)
	}
}
