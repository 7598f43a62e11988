package execution

import (
	"context"
	"fmt"
	"math"

	"github.com/haykdb/blacksmith/internal/broker"
)

// negligible is the dust threshold below which a futures position counts as
// already closed.
const negligible = 1e-6

// CloseFutures flattens the live futures position for a symbol. A position
// too small to matter counts as already closed; otherwise a reduce-only
// market order in the opposite direction is submitted.
func (e *Executor) CloseFutures(ctx context.Context, venue Venue, acct FuturesAccount, symbol string) error {
	amt, err := acct.FuturesPositionAmt(ctx, symbol)
	if err != nil {
		return fmt.Errorf("read futures position: %w", err)
	}
	if math.Abs(amt) < negligible {
		return nil
	}
	side := Sell
	if amt < 0 {
		side = Buy
	}
	return e.Submit(ctx, venue, symbol, side, math.Abs(amt), true)
}

// CloseSpot sells the full free+locked base-asset balance for a symbol. A
// balance below the venue's minimum quantity or minimum notional counts as
// already closed.
func (e *Executor) CloseSpot(ctx context.Context, venue Venue, acct SpotAccount, symbol string) error {
	asset := broker.BaseAsset(symbol)
	qty, err := acct.SpotBaseBalance(ctx, asset)
	if err != nil {
		return fmt.Errorf("read spot balance: %w", err)
	}

	flt, err := e.filtersFor(ctx, venue, symbol)
	if err != nil {
		return err
	}
	if qty < flt.MinQty {
		return nil
	}
	if bid, err := acct.SpotBidPrice(ctx, symbol); err == nil && bid > 0 && qty*bid < flt.MinNotional {
		return nil
	}
	return e.Submit(ctx, venue, symbol, Sell, qty, false)
}
