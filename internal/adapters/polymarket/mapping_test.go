package polymarket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/domain"
)

func TestMapGammaMarket_Open(t *testing.T) {
	gm := gammaMarket{
		Slug:         "btc-updown-15m-1704067200",
		ConditionID:  "0xabc",
		Active:       true,
		Closed:       false,
		ClobTokenIDs: `["111","222"]`,
		Outcomes:     `["Up","Down"]`,
	}

	m, err := mapGammaMarket(gm)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", m.ConditionID)
	assert.Equal(t, "111", m.UpTokenID)
	assert.Equal(t, "222", m.DownTokenID)
	assert.True(t, m.Tradeable())
	assert.Nil(t, m.Winner)
}

func TestMapGammaMarket_OutcomeOrderSwapped(t *testing.T) {
	// Gamma no garantiza el orden Up/Down
	gm := gammaMarket{
		Slug:         "btc-updown-15m-1704067200",
		ConditionID:  "0xabc",
		Active:       true,
		ClobTokenIDs: `["111","222"]`,
		Outcomes:     `["Down","Up"]`,
	}

	m, err := mapGammaMarket(gm)
	require.NoError(t, err)
	assert.Equal(t, "222", m.UpTokenID)
	assert.Equal(t, "111", m.DownTokenID)
}

func TestMapGammaMarket_YesNoOutcomes(t *testing.T) {
	gm := gammaMarket{
		Slug:         "btc-updown-15m-1704067200",
		ConditionID:  "0xabc",
		Active:       true,
		ClobTokenIDs: `["111","222"]`,
		Outcomes:     `["Yes","No"]`,
	}

	m, err := mapGammaMarket(gm)
	require.NoError(t, err)
	assert.Equal(t, "111", m.UpTokenID)
	assert.Equal(t, "222", m.DownTokenID)
}

func TestMapGammaMarket_ResolvedWinner(t *testing.T) {
	gm := gammaMarket{
		Slug:          "btc-updown-15m-1704067200",
		ConditionID:   "0xabc",
		Closed:        true,
		ClobTokenIDs:  `["111","222"]`,
		Outcomes:      `["Up","Down"]`,
		OutcomePrices: `["1","0"]`,
	}

	m, err := mapGammaMarket(gm)
	require.NoError(t, err)
	require.NotNil(t, m.Winner)
	assert.Equal(t, domain.SideUp, *m.Winner)
	assert.True(t, m.Resolved())
}

func TestMapGammaMarket_ClosedWithoutFirmResolution(t *testing.T) {
	// cerrado pero el oráculo aún no fijó 0.999: sin ganador todavía
	gm := gammaMarket{
		Slug:          "btc-updown-15m-1704067200",
		ConditionID:   "0xabc",
		Closed:        true,
		ClobTokenIDs:  `["111","222"]`,
		Outcomes:      `["Up","Down"]`,
		OutcomePrices: `["0.97","0.03"]`,
	}

	m, err := mapGammaMarket(gm)
	require.NoError(t, err)
	assert.Nil(t, m.Winner)
	assert.False(t, m.Resolved())
}

func TestMapGammaMarket_DownWins(t *testing.T) {
	gm := gammaMarket{
		Slug:          "btc-updown-15m-1704067200",
		ConditionID:   "0xabc",
		Closed:        true,
		ClobTokenIDs:  `["111","222"]`,
		Outcomes:      `["Up","Down"]`,
		OutcomePrices: `["0.001","0.999"]`,
	}

	m, err := mapGammaMarket(gm)
	require.NoError(t, err)
	require.NotNil(t, m.Winner)
	assert.Equal(t, domain.SideDown, *m.Winner)
}

func TestMapGammaMarket_BadPayloads(t *testing.T) {
	_, err := mapGammaMarket(gammaMarket{Slug: "x", ClobTokenIDs: `["1"]`, Outcomes: `["Up"]`})
	assert.Error(t, err)

	_, err = mapGammaMarket(gammaMarket{Slug: "x", ClobTokenIDs: `not json`, Outcomes: `["Up","Down"]`})
	assert.Error(t, err)

	_, err = mapGammaMarket(gammaMarket{Slug: "x", ClobTokenIDs: `["1","2"]`, Outcomes: `["Higher","Lower"]`})
	assert.Error(t, err)
}

func TestMapOrderStatus(t *testing.T) {
	assert.Equal(t, domain.OrderStatusPending, mapOrderStatus("LIVE", 0, 5))
	assert.Equal(t, domain.OrderStatusPending, mapOrderStatus("DELAYED", 0, 5))
	assert.Equal(t, domain.OrderStatusPartial, mapOrderStatus("LIVE", 2, 5))
	assert.Equal(t, domain.OrderStatusFilled, mapOrderStatus("MATCHED", 5, 5))
	assert.Equal(t, domain.OrderStatusCancelled, mapOrderStatus("CANCELED", 0, 5))
	// cancelada con matches parciales conserva lo ejecutado
	assert.Equal(t, domain.OrderStatusPartial, mapOrderStatus("CANCELED", 2, 5))
	assert.Equal(t, domain.OrderStatusExpired, mapOrderStatus("EXPIRED", 0, 5))
	assert.Equal(t, domain.OrderStatusPending, mapOrderStatus("whatever", 0, 5))
}
