package ports

import (
	"context"

	"github.com/alejandrodnm/updown/internal/domain"
)

// OrderExecutor places and manages orders on the venue. The simulation
// executor implements the same contract with virtual fills, so the
// engine cannot tell the two apart.
type OrderExecutor interface {
	// PlaceLimitBuy submits a limit buy for the intent and returns a
	// handle for polling. A *RejectedError is definitive; transient
	// errors mean the order may not exist and placement can be retried.
	PlaceLimitBuy(ctx context.Context, intent domain.OrderIntent) (domain.OrderHandle, error)

	// QueryOrder refreshes the handle's status and filled size.
	QueryOrder(ctx context.Context, handle domain.OrderHandle) (domain.OrderHandle, error)

	// CancelOrder cancels an open order. Cancelling an order that
	// already filled or no longer exists is not an error.
	CancelOrder(ctx context.Context, handle domain.OrderHandle) error

	// MarketSell sells shares of a token at whatever the book pays,
	// returning the realized price per share.
	MarketSell(ctx context.Context, tokenID string, shares float64) (float64, error)
}

// Redeemer claims payouts for resolved markets.
type Redeemer interface {
	// Redeem claims the payout for a resolved condition. Returns the
	// transaction hash, or ErrAlreadyRedeemed if the payout is gone.
	Redeem(ctx context.Context, conditionID string) (string, error)

	// ListRedeemable returns every condition the wallet can still
	// redeem, for the manual redeem-all mode.
	ListRedeemable(ctx context.Context) ([]domain.RedeemablePosition, error)
}
