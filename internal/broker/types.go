package broker

import (
	"fmt"
	"strconv"
)

// APIError is a venue-level rejection decoded from an error response body.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue rejection %d: %s", e.Code, e.Message)
}

// Rejection codes the executor cares about.
const (
	codeFilterFailure     = -1013 // quantity/price filter violation
	codePercentPriceLimit = -4131 // futures percent-price filter
	codeReduceOnlyReject  = -2022 // reduce-only order rejected (nothing to reduce)
)

// IsFilterViolation reports whether the rejection is a transient
// quantity/price filter failure worth retrying with smaller size.
func (e *APIError) IsFilterViolation() bool {
	return e.Code == codeFilterFailure || e.Code == codePercentPriceLimit
}

// IsReduceOnlyReject reports whether the rejection means there was nothing
// left to reduce, which callers treat as an idempotent no-op.
func (e *APIError) IsReduceOnlyReject() bool {
	return e.Code == codeReduceOnlyReject
}

// Filters are the per-symbol order constraints a venue enforces.
type Filters struct {
	MinQty      float64
	StepSize    float64
	MinNotional float64
}

// Quote is one venue leg's best bid and offer.
type Quote struct {
	Bid float64
	Ask float64
}

// Ticker24 is the subset of the 24h ticker statistics the scanner scores.
type Ticker24 struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	HighPrice   string `json:"highPrice"`
	LowPrice    string `json:"lowPrice"`
	QuoteVolume string `json:"quoteVolume"`
}

// f64 parses the string-encoded decimals the venue uses for every numeric
// field; malformed values yield zero rather than an error because a missing
// quote is handled upstream as "no decision this cycle".
func f64(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
