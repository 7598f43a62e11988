package broker

import "context"

// The venue adapters give the order executor one uniform placement surface
// over the three order books a hedge can touch. Spot and margin venues have
// no reduce-only concept; the flag is accepted and ignored there.

// SpotVenue places plain spot orders.
type SpotVenue struct{ C *Client }

func (v SpotVenue) Name() string { return "spot" }

func (v SpotVenue) Filters(ctx context.Context, symbol string) (Filters, error) {
	return v.C.SpotFilters(ctx, symbol)
}

func (v SpotVenue) PlaceMarket(ctx context.Context, symbol, side string, qty float64, _ bool) error {
	return v.C.SpotMarketOrder(ctx, symbol, side, qty)
}

// MarginVenue places margin orders for the short-spread spot leg. Margin
// shares the spot order book and therefore the spot filters.
type MarginVenue struct{ C *Client }

func (v MarginVenue) Name() string { return "margin" }

func (v MarginVenue) Filters(ctx context.Context, symbol string) (Filters, error) {
	return v.C.SpotFilters(ctx, symbol)
}

func (v MarginVenue) PlaceMarket(ctx context.Context, symbol, side string, qty float64, _ bool) error {
	return v.C.MarginMarketOrder(ctx, symbol, side, qty)
}

// FuturesVenue places futures orders with reduce-only support.
type FuturesVenue struct{ C *Client }

func (v FuturesVenue) Name() string { return "futures" }

func (v FuturesVenue) Filters(ctx context.Context, symbol string) (Filters, error) {
	return v.C.FuturesFilters(ctx, symbol)
}

func (v FuturesVenue) PlaceMarket(ctx context.Context, symbol, side string, qty float64, reduceOnly bool) error {
	return v.C.FuturesMarketOrder(ctx, symbol, side, qty, reduceOnly)
}
