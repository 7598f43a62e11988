package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuoteUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quote_updates_total", Help: "Book ticker updates that changed a cached value"},
		[]string{"symbol", "venue"},
	)
	FeedReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_reconnects_total", Help: "Quote stream reconnect attempts"},
		[]string{"symbol", "venue"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "venue", "side"},
	)
	OrderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_retries_total", Help: "Order retries after filter rejections"},
		[]string{"symbol", "venue"},
	)
	OrderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_failures_total", Help: "Orders that terminally failed"},
		[]string{"symbol", "venue"},
	)
	PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "positions_open", Help: "Whether a hedged position is open (0 or 1)"},
		[]string{"symbol"},
	)
	TradesClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_closed_total", Help: "Hedged positions closed"},
		[]string{"symbol", "side"},
	)
	RealizedPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "realized_pnl_usd", Help: "Cumulative realized net PnL"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(
		QuoteUpdatesTotal, FeedReconnectsTotal,
		OrdersTotal, OrderRetriesTotal, OrderFailuresTotal,
		PositionsOpen, TradesClosedTotal, RealizedPnL,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
