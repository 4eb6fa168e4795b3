package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

const gammaMarketsPath = "/markets"

// Resolve busca el mercado de un período por su slug determinista.
// Devuelve ports.ErrNotFound mientras Gamma no lo tenga listado todavía.
func (c *Client) Resolve(ctx context.Context, slug string) (domain.MarketDescriptor, error) {
	u := fmt.Sprintf("%s%s?slug=%s", c.gammaBase, gammaMarketsPath, url.QueryEscape(slug))

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == 404 {
			return domain.MarketDescriptor{}, ports.ErrNotFound
		}
		return domain.MarketDescriptor{}, fmt.Errorf("gamma.Resolve %s: %w", slug, err)
	}

	if len(resp) == 0 {
		return domain.MarketDescriptor{}, ports.ErrNotFound
	}

	m, err := mapGammaMarket(resp[0])
	if err != nil {
		return domain.MarketDescriptor{}, fmt.Errorf("gamma.Resolve %s: %w", slug, err)
	}

	slog.Debug("market resolved",
		"slug", m.Slug,
		"condition_id", m.ConditionID,
		"active", m.Active,
		"closed", m.Closed,
	)
	return m, nil
}
