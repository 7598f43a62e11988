package broker

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

type premiumIndexResponse struct {
	Symbol      string `json:"symbol"`
	MarkPrice   string `json:"markPrice"`
	FundingRate string `json:"lastFundingRate"`
}

type positionRiskResponse struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
}

// FuturesBookTicker returns the futures leg's best bid/ask.
func (c *Client) FuturesBookTicker(ctx context.Context, symbol string) (Quote, error) {
	var out bookTickerResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, c.futURL, "/fapi/v1/ticker/bookTicker", params, false, &out); err != nil {
		return Quote{}, err
	}
	return Quote{Bid: f64(out.Bid), Ask: f64(out.Ask)}, nil
}

// FuturesMarkPrice returns the futures mark price.
func (c *Client) FuturesMarkPrice(ctx context.Context, symbol string) (float64, error) {
	var out premiumIndexResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, c.futURL, "/fapi/v1/premiumIndex", params, false, &out); err != nil {
		return 0, err
	}
	return f64(out.MarkPrice), nil
}

// FundingRates returns last funding rate per symbol (scanner input).
func (c *Client) FundingRates(ctx context.Context) (map[string]float64, error) {
	var out []premiumIndexResponse
	if err := c.do(ctx, http.MethodGet, c.futURL, "/fapi/v1/premiumIndex", nil, false, &out); err != nil {
		return nil, err
	}
	rates := make(map[string]float64, len(out))
	for _, p := range out {
		rates[p.Symbol] = f64(p.FundingRate)
	}
	return rates, nil
}

// FuturesFilters returns the LOT_SIZE and notional constraints for a symbol
// on the futures venue.
func (c *Client) FuturesFilters(ctx context.Context, symbol string) (Filters, error) {
	var out exchangeInfoResponse
	if err := c.do(ctx, http.MethodGet, c.futURL, "/fapi/v1/exchangeInfo", nil, false, &out); err != nil {
		return Filters{}, err
	}
	return extractFilters(out, symbol)
}

// FuturesPositionAmt returns the signed open position size for a symbol
// (zero when flat).
func (c *Client) FuturesPositionAmt(ctx context.Context, symbol string) (float64, error) {
	var out []positionRiskResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, c.futURL, "/fapi/v2/positionRisk", params, true, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return f64(out[0].PositionAmt), nil
}

// FuturesMarketOrder places a futures MARKET order, optionally reduce-only.
func (c *Client) FuturesMarketOrder(ctx context.Context, symbol, side string, qty float64, reduceOnly bool) error {
	params := orderParams(symbol, side, qty)
	params.Set("reduceOnly", strconv.FormatBool(reduceOnly))
	return c.do(ctx, http.MethodPost, c.futURL, "/fapi/v1/order", params, true, nil)
}
