package ports

import (
	"context"

	"github.com/alejandrodnm/updown/internal/domain"
)

// MarketDiscovery resolves a period's deterministic slug to its live
// market descriptor. Returns ErrNotFound while the market is not listed
// yet; implementations wrap retryable failures as transient.
type MarketDiscovery interface {
	Resolve(ctx context.Context, slug string) (domain.MarketDescriptor, error)
}

// PriceSource serves current executable sell prices for outcome tokens.
// Track hints the source to start streaming a token's price; sources
// without streaming may ignore it.
type PriceSource interface {
	SellPrice(ctx context.Context, tokenID string) (float64, error)
	Track(tokenID string)
}
