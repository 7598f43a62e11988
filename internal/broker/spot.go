package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type bookTickerResponse struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bidPrice"`
	Ask    string `json:"askPrice"`
}

type priceTickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType  string `json:"filterType"`
			MinQty      string `json:"minQty"`
			StepSize    string `json:"stepSize"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type marginAccountResponse struct {
	UserAssets []struct {
		Asset    string `json:"asset"`
		Free     string `json:"free"`
		Borrowed string `json:"borrowed"`
	} `json:"userAssets"`
}

// SpotBookTicker returns the spot leg's best bid/ask.
func (c *Client) SpotBookTicker(ctx context.Context, symbol string) (Quote, error) {
	var out bookTickerResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, c.spotURL, "/api/v3/ticker/bookTicker", params, false, &out); err != nil {
		return Quote{}, err
	}
	return Quote{Bid: f64(out.Bid), Ask: f64(out.Ask)}, nil
}

// SpotLastPrice returns the spot leg's last trade price.
func (c *Client) SpotLastPrice(ctx context.Context, symbol string) (float64, error) {
	var out priceTickerResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, c.spotURL, "/api/v3/ticker/price", params, false, &out); err != nil {
		return 0, err
	}
	return f64(out.Price), nil
}

// SpotBidPrice returns the spot best bid, used by the close helpers to value
// a residual balance against the minimum notional.
func (c *Client) SpotBidPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := c.SpotBookTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Bid, nil
}

// SpotFilters returns the LOT_SIZE and NOTIONAL constraints for a symbol.
func (c *Client) SpotFilters(ctx context.Context, symbol string) (Filters, error) {
	var out exchangeInfoResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, c.spotURL, "/api/v3/exchangeInfo", params, false, &out); err != nil {
		return Filters{}, err
	}
	return extractFilters(out, symbol)
}

func extractFilters(info exchangeInfoResponse, symbol string) (Filters, error) {
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		// Defaults match the venue's loosest published constraints.
		f := Filters{MinQty: 1e-5, StepSize: 1e-5, MinNotional: 5}
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "LOT_SIZE":
				f.MinQty = f64(flt.MinQty)
				f.StepSize = f64(flt.StepSize)
			case "NOTIONAL", "MIN_NOTIONAL":
				f.MinNotional = f64(flt.MinNotional)
			}
		}
		return f, nil
	}
	return Filters{}, fmt.Errorf("symbol %s not in exchange info", symbol)
}

// SpotBaseBalance returns free+locked balance of an asset.
func (c *Client) SpotBaseBalance(ctx context.Context, asset string) (float64, error) {
	var out accountResponse
	if err := c.do(ctx, http.MethodGet, c.spotURL, "/api/v3/account", nil, true, &out); err != nil {
		return 0, err
	}
	for _, b := range out.Balances {
		if b.Asset == asset {
			return f64(b.Free) + f64(b.Locked), nil
		}
	}
	return 0, nil
}

// MarginBorrowed returns the outstanding margin loan for an asset.
func (c *Client) MarginBorrowed(ctx context.Context, asset string) (float64, error) {
	var out marginAccountResponse
	if err := c.do(ctx, http.MethodGet, c.spotURL, "/sapi/v1/margin/account", nil, true, &out); err != nil {
		return 0, err
	}
	for _, a := range out.UserAssets {
		if a.Asset == asset {
			return f64(a.Borrowed), nil
		}
	}
	return 0, nil
}

func orderParams(symbol, side string, qty float64) url.Values {
	return url.Values{
		"symbol":           {symbol},
		"side":             {side},
		"type":             {"MARKET"},
		"quantity":         {strconv.FormatFloat(qty, 'f', -1, 64)},
		"newClientOrderId": {"bs-" + uuid.NewString()},
	}
}

// SpotMarketOrder places a spot MARKET order.
func (c *Client) SpotMarketOrder(ctx context.Context, symbol, side string, qty float64) error {
	return c.do(ctx, http.MethodPost, c.spotURL, "/api/v3/order", orderParams(symbol, side, qty), true, nil)
}

// MarginMarketOrder places a margin MARKET order (used for the short-spread
// spot leg).
func (c *Client) MarginMarketOrder(ctx context.Context, symbol, side string, qty float64) error {
	return c.do(ctx, http.MethodPost, c.spotURL, "/sapi/v1/margin/order", orderParams(symbol, side, qty), true, nil)
}

// MarginLoan borrows an asset on margin ahead of a short-spread entry.
func (c *Client) MarginLoan(ctx context.Context, asset string, amount float64) error {
	params := url.Values{
		"asset":  {asset},
		"amount": {strconv.FormatFloat(amount, 'f', -1, 64)},
	}
	return c.do(ctx, http.MethodPost, c.spotURL, "/sapi/v1/margin/loan", params, true, nil)
}

// MarginRepay repays a margin loan after a short-spread exit.
func (c *Client) MarginRepay(ctx context.Context, asset string, amount float64) error {
	params := url.Values{
		"asset":  {asset},
		"amount": {strconv.FormatFloat(amount, 'f', -1, 64)},
	}
	return c.do(ctx, http.MethodPost, c.spotURL, "/sapi/v1/margin/repay", params, true, nil)
}

// Day24Tickers returns the 24h statistics for every symbol (scanner input).
func (c *Client) Day24Tickers(ctx context.Context) ([]Ticker24, error) {
	var out []Ticker24
	if err := c.do(ctx, http.MethodGet, c.spotURL, "/api/v3/ticker/24hr", nil, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BaseAsset strips the quote currency from a symbol name.
func BaseAsset(symbol string) string {
	return strings.TrimSuffix(symbol, "USDT")
}
