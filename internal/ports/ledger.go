package ports

import (
	"context"

	"github.com/alejandrodnm/updown/internal/domain"
)

// Ledger persists trades, open positions and redemptions. A single
// writer owns it; reads may come from any goroutine.
type Ledger interface {
	// RecordTrade appends an executed fill.
	RecordTrade(ctx context.Context, t domain.TradeRecord) error

	// SavePosition upserts the open position for a condition. Saving an
	// empty position removes it.
	SavePosition(ctx context.Context, p domain.Position) error

	// PendingPositions returns every position not yet redeemed, used to
	// rebuild the redemption watchlist after a restart.
	PendingPositions(ctx context.Context) ([]domain.Position, error)

	// RecordRedemption settles a position: inserts the redemption and
	// clears the open position in one transaction. Returns
	// ErrAlreadyRedeemed when the condition was settled before.
	RecordRedemption(ctx context.Context, r domain.RedemptionRecord) error

	// Totals aggregates realized PnL for the status display.
	Totals(ctx context.Context) (domain.ProfitTotals, error)

	Close() error
}
