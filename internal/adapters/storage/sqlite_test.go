package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/adapters/storage"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

func openLedger(t *testing.T) *storage.SQLiteLedger {
	t.Helper()
	l, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func makeTrade(action domain.TradeAction, price, size float64) domain.TradeRecord {
	return domain.TradeRecord{
		ID:          uuid.New().String(),
		Asset:       "btc",
		PeriodStart: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		Slug:        "btc-updown-15m-1772446500",
		ConditionID: "0xcond",
		Side:        domain.SideUp,
		TokenID:     "tok-up",
		Action:      action,
		Price:       price,
		Size:        size,
		ExecutedAt:  time.Now().UTC(),
	}
}

func makePosition(condID string, upShares, downShares float64) domain.Position {
	return domain.Position{
		Asset:       "btc",
		PeriodStart: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		Slug:        "btc-updown-15m-1772446500",
		ConditionID: condID,
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
		UpShares:    upShares,
		DownShares:  downShares,
		CostBasis:   5.5,
	}
}

func TestSQLiteLedger_TotalsFromTrades(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	// dos buys de 5 × 0.55 y un sell de 5 × 0.03
	require.NoError(t, l.RecordTrade(ctx, makeTrade(domain.TradeActionBuy, 0.55, 5)))
	require.NoError(t, l.RecordTrade(ctx, makeTrade(domain.TradeActionBuy, 0.55, 5)))
	require.NoError(t, l.RecordTrade(ctx, makeTrade(domain.TradeActionSell, 0.03, 5)))

	totals, err := l.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.Trades)
	assert.InDelta(t, 5.50, totals.Spent, 0.001)
	assert.InDelta(t, 0.15, totals.SellRevenue, 0.001)
	// sin redenciones todavía: net = 0.15 - 5.50
	assert.InDelta(t, -5.35, totals.Net(), 0.001)
}

func TestSQLiteLedger_PositionRoundtrip(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	pos := makePosition("0xaaa", 5, 5)
	pos.Simulated = true
	require.NoError(t, l.SavePosition(ctx, pos))

	pending, err := l.PendingPositions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got := pending[0]
	assert.Equal(t, "0xaaa", got.ConditionID)
	assert.Equal(t, 5.0, got.UpShares)
	assert.Equal(t, 5.0, got.DownShares)
	assert.InDelta(t, 5.5, got.CostBasis, 0.001)
	assert.True(t, got.Simulated)
	assert.True(t, got.PeriodStart.Equal(pos.PeriodStart))
}

func TestSQLiteLedger_PositionUpsert(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SavePosition(ctx, makePosition("0xaaa", 5, 5)))

	// segunda escritura de la misma condición actualiza, no duplica
	updated := makePosition("0xaaa", 5, 0)
	updated.CostBasis = 2.75
	require.NoError(t, l.SavePosition(ctx, updated))

	pending, err := l.PendingPositions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 0.0, pending[0].DownShares)
	assert.InDelta(t, 2.75, pending[0].CostBasis, 0.001)
}

func TestSQLiteLedger_EmptyPositionDeletes(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SavePosition(ctx, makePosition("0xaaa", 5, 5)))
	require.NoError(t, l.SavePosition(ctx, makePosition("0xaaa", 0, 0)))

	pending, err := l.PendingPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteLedger_PendingOrderedByPeriod(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	newer := makePosition("0xnew", 5, 0)
	newer.PeriodStart = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	older := makePosition("0xold", 5, 0)

	require.NoError(t, l.SavePosition(ctx, newer))
	require.NoError(t, l.SavePosition(ctx, older))

	pending, err := l.PendingPositions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "0xold", pending[0].ConditionID)
	assert.Equal(t, "0xnew", pending[1].ConditionID)
}

func TestSQLiteLedger_RedemptionClearsPosition(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SavePosition(ctx, makePosition("0xaaa", 5, 0)))

	rec := domain.RedemptionRecord{
		ConditionID: "0xaaa",
		Asset:       "btc",
		PeriodStart: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		Slug:        "btc-updown-15m-1772446500",
		Winner:      domain.SideUp,
		Payout:      5.0,
		CostBasis:   2.75,
		TxHash:      "0xdeadbeef",
		RedeemedAt:  time.Now().UTC(),
	}
	require.NoError(t, l.RecordRedemption(ctx, rec))

	pending, err := l.PendingPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	totals, err := l.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Redemptions)
	assert.InDelta(t, 5.0, totals.Redeemed, 0.001)
}

func TestSQLiteLedger_DoubleRedemptionRejected(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	rec := domain.RedemptionRecord{
		ConditionID: "0xaaa",
		Asset:       "btc",
		PeriodStart: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		Slug:        "btc-updown-15m-1772446500",
		Winner:      domain.SideUp,
		Payout:      5.0,
		RedeemedAt:  time.Now().UTC(),
	}
	require.NoError(t, l.RecordRedemption(ctx, rec))

	// el PRIMARY KEY convierte el segundo intento en ErrAlreadyRedeemed
	err := l.RecordRedemption(ctx, rec)
	assert.ErrorIs(t, err, ports.ErrAlreadyRedeemed)

	totals, err := l.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Redemptions)
	assert.InDelta(t, 5.0, totals.Redeemed, 0.001)
}
