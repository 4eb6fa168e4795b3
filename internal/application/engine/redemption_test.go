package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

type fakeRedeemer struct {
	mu         sync.Mutex
	claims     []string
	err        error
	redeemable []domain.RedeemablePosition
}

func (f *fakeRedeemer) Redeem(_ context.Context, conditionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.claims = append(f.claims, conditionID)
	return "0xtx-" + conditionID, nil
}

func (f *fakeRedeemer) ListRedeemable(_ context.Context) ([]domain.RedeemablePosition, error) {
	return f.redeemable, nil
}

func pendingPosition(slug string, upShares, downShares float64) domain.Position {
	return domain.Position{
		Asset:       "btc",
		PeriodStart: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		Slug:        slug,
		ConditionID: "0xcond-" + slug,
		UpTokenID:   "up-" + slug,
		DownTokenID: "down-" + slug,
		UpShares:    upShares,
		DownShares:  downShares,
		CostBasis:   2.75,
	}
}

func resolvedMarket(slug string, winner domain.Side) domain.MarketDescriptor {
	return domain.MarketDescriptor{
		Slug:        slug,
		ConditionID: "0xcond-" + slug,
		UpTokenID:   "up-" + slug,
		DownTokenID: "down-" + slug,
		Closed:      true,
		Winner:      &winner,
	}
}

func newSchedulerRig() (*RedemptionScheduler, *fakeDiscovery, *fakeRedeemer, *fakeLedger) {
	disc := &fakeDiscovery{markets: make(map[string]domain.MarketDescriptor)}
	red := &fakeRedeemer{}
	ledger := newFakeLedger()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 35, 0, 0, time.UTC)}
	rs := NewRedemptionScheduler(disc, red, ledger, nil, time.Minute, clock.Now)
	return rs, disc, red, ledger
}

func TestRedemptionScheduler_SettlesWinnerOnce(t *testing.T) {
	rs, disc, red, ledger := newSchedulerRig()
	ctx := context.Background()

	pos := pendingPosition("btc-updown-15m-100", 5, 0)
	require.NoError(t, ledger.SavePosition(ctx, pos))
	disc.markets[pos.Slug] = resolvedMarket(pos.Slug, domain.SideUp)

	rs.Scan(ctx)

	require.Len(t, red.claims, 1)
	assert.Equal(t, pos.ConditionID, red.claims[0])
	rec, ok := ledger.reds[pos.ConditionID]
	require.True(t, ok)
	assert.Equal(t, 5.0, rec.Payout)
	assert.Equal(t, domain.SideUp, rec.Winner)
	assert.InDelta(t, 2.25, rec.Profit(), 0.001) // 5.00 payout - 2.75 cost
	assert.Empty(t, ledger.positions)

	// the position is gone from the watchlist: nothing to claim twice
	rs.Scan(ctx)
	assert.Len(t, red.claims, 1)
}

func TestRedemptionScheduler_UnresolvedStaysPending(t *testing.T) {
	rs, disc, red, ledger := newSchedulerRig()
	ctx := context.Background()

	pos := pendingPosition("btc-updown-15m-200", 5, 5)
	require.NoError(t, ledger.SavePosition(ctx, pos))
	disc.markets[pos.Slug] = domain.MarketDescriptor{
		Slug: pos.Slug, ConditionID: pos.ConditionID, Closed: true, // closed, no winner yet
	}

	rs.Scan(ctx)

	assert.Empty(t, red.claims)
	assert.Contains(t, ledger.positions, pos.ConditionID)
}

func TestRedemptionScheduler_LoserSettlesOffChain(t *testing.T) {
	rs, disc, red, ledger := newSchedulerRig()
	ctx := context.Background()

	// held only the up side, down won: nothing redeemable on-chain
	pos := pendingPosition("btc-updown-15m-300", 5, 0)
	require.NoError(t, ledger.SavePosition(ctx, pos))
	disc.markets[pos.Slug] = resolvedMarket(pos.Slug, domain.SideDown)

	rs.Scan(ctx)

	assert.Empty(t, red.claims)
	rec, ok := ledger.reds[pos.ConditionID]
	require.True(t, ok)
	assert.Equal(t, 0.0, rec.Payout)
	assert.InDelta(t, -2.75, rec.Profit(), 0.001)
	assert.Empty(t, ledger.positions)
}

func TestRedemptionScheduler_SimulatedSkipsChain(t *testing.T) {
	rs, disc, red, ledger := newSchedulerRig()
	ctx := context.Background()

	pos := pendingPosition("btc-updown-15m-400", 5, 0)
	pos.Simulated = true
	require.NoError(t, ledger.SavePosition(ctx, pos))
	disc.markets[pos.Slug] = resolvedMarket(pos.Slug, domain.SideUp)

	rs.Scan(ctx)

	assert.Empty(t, red.claims)
	rec, ok := ledger.reds[pos.ConditionID]
	require.True(t, ok)
	assert.Equal(t, 5.0, rec.Payout)
	assert.True(t, rec.Simulated)
	assert.Empty(t, rec.TxHash)
}

func TestRedemptionScheduler_AlreadyRedeemedIsSuccess(t *testing.T) {
	rs, disc, red, ledger := newSchedulerRig()
	ctx := context.Background()

	pos := pendingPosition("btc-updown-15m-500", 5, 0)
	require.NoError(t, ledger.SavePosition(ctx, pos))
	disc.markets[pos.Slug] = resolvedMarket(pos.Slug, domain.SideUp)

	// a previous run already claimed on-chain before crashing
	red.err = ports.ErrAlreadyRedeemed

	rs.Scan(ctx)

	rec, ok := ledger.reds[pos.ConditionID]
	require.True(t, ok)
	assert.Equal(t, 5.0, rec.Payout)
	assert.Empty(t, ledger.positions)
}

func TestRedemptionScheduler_TransientKeepsPending(t *testing.T) {
	rs, disc, red, ledger := newSchedulerRig()
	ctx := context.Background()

	pos := pendingPosition("btc-updown-15m-600", 5, 0)
	require.NoError(t, ledger.SavePosition(ctx, pos))
	disc.markets[pos.Slug] = resolvedMarket(pos.Slug, domain.SideUp)

	red.err = ports.Transient("redeem", errors.New("rpc timeout"))
	rs.Scan(ctx)
	assert.Contains(t, ledger.positions, pos.ConditionID)
	assert.Empty(t, ledger.reds)

	// the chain recovers on the next scan
	red.err = nil
	rs.Scan(ctx)
	assert.Len(t, red.claims, 1)
	assert.Empty(t, ledger.positions)
}

func TestRedeemAll_SingleCondition(t *testing.T) {
	red := &fakeRedeemer{}

	claimed, err := RedeemAll(context.Background(), red, "0xcond-manual")
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, []string{"0xcond-manual"}, red.claims)
}

func TestRedeemAll_EverythingRedeemable(t *testing.T) {
	red := &fakeRedeemer{
		redeemable: []domain.RedeemablePosition{
			{ConditionID: "0xa", Title: "btc up?", Payout: 5},
			{ConditionID: "0xb", Title: "eth up?", Payout: 3},
		},
	}

	claimed, err := RedeemAll(context.Background(), red, "")
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)
	assert.Equal(t, []string{"0xa", "0xb"}, red.claims)
}

func TestRedeemAll_NothingPending(t *testing.T) {
	red := &fakeRedeemer{}

	claimed, err := RedeemAll(context.Background(), red, "")
	require.NoError(t, err)
	assert.Zero(t, claimed)
}
