package polymarket

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alejandrodnm/updown/internal/ports"
)

const clobPricePath = "/price"

// SellPrice devuelve el mejor bid de un token: lo que pagaría el book
// por vender ahora mismo.
func (c *Client) SellPrice(ctx context.Context, tokenID string) (float64, error) {
	u := fmt.Sprintf("%s%s?token_id=%s&side=sell", c.clobBase, clobPricePath, tokenID)

	var resp priceResponse
	if err := c.get(ctx, c.priceLimiter, u, &resp); err != nil {
		return 0, fmt.Errorf("clob.SellPrice %s: %w", tokenID, err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("clob.SellPrice %s: parse %q: %w", tokenID, resp.Price, err)
	}
	if price <= 0 {
		return 0, ports.Transient("clob.SellPrice", fmt.Errorf("token %s: empty book", tokenID))
	}
	return price, nil
}

// Track es un no-op: el client REST consulta bajo demanda. El feed por
// WebSocket implementa el streaming real.
func (c *Client) Track(tokenID string) {}
