package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/updown/internal/domain"
)

const dataPositionsPath = "/positions"

// RedeemablePositions lista las posiciones del proxy wallet con payout
// pendiente de reclamar, según el data-api.
func (c *Client) RedeemablePositions(ctx context.Context, proxyWallet string) ([]domain.RedeemablePosition, error) {
	u := fmt.Sprintf("%s%s?user=%s&redeemable=true&limit=100",
		c.dataBase, dataPositionsPath, url.QueryEscape(proxyWallet))

	var resp []dataPosition
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("data.RedeemablePositions: %w", err)
	}

	out := make([]domain.RedeemablePosition, 0, len(resp))
	for _, p := range resp {
		if !p.Redeemable || p.Size <= 0 {
			continue
		}
		out = append(out, domain.RedeemablePosition{
			ConditionID: p.ConditionID,
			Slug:        p.Slug,
			Title:       p.Title,
			Shares:      p.Size,
			Payout:      p.CurValue,
		})
	}
	return out, nil
}
