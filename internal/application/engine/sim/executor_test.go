package sim_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/application/engine/sim"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

type stubPrices struct {
	prices map[string]float64
}

func (s *stubPrices) SellPrice(_ context.Context, tokenID string) (float64, error) {
	p, ok := s.prices[tokenID]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

func (s *stubPrices) Track(string) {}

func intent(price float64) domain.OrderIntent {
	return domain.OrderIntent{
		Asset:   "btc",
		Side:    domain.SideUp,
		TokenID: "tok-up",
		Price:   price,
		Size:    5,
	}
}

func TestExecutor_ImmediateFill(t *testing.T) {
	prices := &stubPrices{prices: map[string]float64{"tok-up": 0.50}}
	e := sim.NewExecutor(prices, nil)

	// mercado en 0.50, límite 0.55 → fill inmediato al límite
	h, err := e.PlaceLimitBuy(context.Background(), intent(0.55))
	require.NoError(t, err)
	assert.True(t, h.Filled())
	assert.Equal(t, 5.0, h.FilledSize)
	assert.Contains(t, h.ExternalID, "SIM-")
}

func TestExecutor_PendingUntilPriceCrosses(t *testing.T) {
	prices := &stubPrices{prices: map[string]float64{"tok-up": 0.60}}
	e := sim.NewExecutor(prices, nil)
	ctx := context.Background()

	h, err := e.PlaceLimitBuy(ctx, intent(0.55))
	require.NoError(t, err)
	assert.False(t, h.Filled())

	// sigue por encima del límite
	h, err = e.QueryOrder(ctx, h)
	require.NoError(t, err)
	assert.False(t, h.Filled())

	// el mercado cruza el límite
	prices.prices["tok-up"] = 0.54
	h, err = e.QueryOrder(ctx, h)
	require.NoError(t, err)
	assert.True(t, h.Filled())
	assert.Equal(t, 5.0, h.FilledSize)

	// sticky: el precio vuelve a subir pero el fill no se deshace
	prices.prices["tok-up"] = 0.70
	h, err = e.QueryOrder(ctx, h)
	require.NoError(t, err)
	assert.True(t, h.Filled())
}

func TestExecutor_QueryUnknownOrder(t *testing.T) {
	e := sim.NewExecutor(&stubPrices{prices: map[string]float64{}}, nil)

	_, err := e.QueryOrder(context.Background(), domain.OrderHandle{ID: "nope"})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestExecutor_CancelPending(t *testing.T) {
	prices := &stubPrices{prices: map[string]float64{"tok-up": 0.60}}
	e := sim.NewExecutor(prices, nil)
	ctx := context.Background()

	h, err := e.PlaceLimitBuy(ctx, intent(0.55))
	require.NoError(t, err)
	require.NoError(t, e.CancelOrder(ctx, h))

	h, err = e.QueryOrder(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, h.Status)

	// cancelada no vuelve a la vida aunque el precio cruce
	prices.prices["tok-up"] = 0.40
	h, err = e.QueryOrder(ctx, h)
	require.NoError(t, err)
	assert.False(t, h.Filled())
}

func TestExecutor_CancelFilledIsNoop(t *testing.T) {
	prices := &stubPrices{prices: map[string]float64{"tok-up": 0.50}}
	e := sim.NewExecutor(prices, nil)
	ctx := context.Background()

	h, err := e.PlaceLimitBuy(ctx, intent(0.55))
	require.NoError(t, err)
	require.True(t, h.Filled())

	require.NoError(t, e.CancelOrder(ctx, h))
	h, err = e.QueryOrder(ctx, h)
	require.NoError(t, err)
	assert.True(t, h.Filled())
}

func TestExecutor_MarketSell(t *testing.T) {
	prices := &stubPrices{prices: map[string]float64{"tok-up": 0.42}}
	e := sim.NewExecutor(prices, nil)

	price, err := e.MarketSell(context.Background(), "tok-up", 5)
	require.NoError(t, err)
	assert.Equal(t, 0.42, price)
}

func TestExecutor_MarketSellInvalidSize(t *testing.T) {
	e := sim.NewExecutor(&stubPrices{prices: map[string]float64{}}, nil)

	_, err := e.MarketSell(context.Background(), "tok-up", 0)
	assert.Error(t, err)
}
