package quote

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haykdb/blacksmith/internal/metrics"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
	// A connection that survived this long counts as sustained, resetting
	// the backoff to the base delay.
	sustainedAfter = 30 * time.Second

	readDeadline = 30 * time.Second
	pingInterval = 15 * time.Second
)

// StreamURLs are the websocket endpoints for the two legs.
type StreamURLs struct {
	Spot    string
	Futures string
}

type bookTickerMessage struct {
	Bid string `json:"b"`
	Ask string `json:"a"`
}

// RunStream maintains one reconnecting book-ticker subscription per leg until
// the context is canceled. It never returns an error: connectivity loss is
// logged and retried with exponential backoff indefinitely.
func (c *Cache) RunStream(ctx context.Context, urls StreamURLs) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runLeg(ctx, LegSpot, bookTickerURL(urls.Spot, c.symbol))
	}()
	go func() {
		defer wg.Done()
		c.runLeg(ctx, LegFutures, bookTickerURL(urls.Futures, c.symbol))
	}()
	wg.Wait()
}

func bookTickerURL(base, symbol string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.ToLower(symbol) + "@bookTicker"
}

func (c *Cache) runLeg(ctx context.Context, leg Leg, url string) {
	backoff := reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}
		started := time.Now()
		err := c.consumeLeg(ctx, leg, url)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) >= sustainedAfter {
			backoff = reconnectBase
		}
		metrics.FeedReconnectsTotal.WithLabelValues(c.symbol, string(leg)).Inc()
		c.log.Warn().Err(err).Str("leg", string(leg)).Dur("backoff", backoff).Msg("quote stream disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = time.Duration(math.Min(float64(reconnectMax), float64(backoff)*1.8))
	}
}

func (c *Cache) consumeLeg(ctx context.Context, leg Leg, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.log.Info().Str("leg", string(leg)).Msg("connected book ticker stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg bookTickerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn().Err(err).Str("leg", string(leg)).Msg("failed to decode book ticker")
			continue
		}
		bid, bidErr := strconv.ParseFloat(msg.Bid, 64)
		ask, askErr := strconv.ParseFloat(msg.Ask, 64)
		if bidErr != nil || askErr != nil {
			c.log.Warn().Str("leg", string(leg)).Msg("invalid price in book ticker")
			continue
		}
		c.SetLeg(leg, bid, ask)
	}
}
