package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// Mid-market entries buy the cheaper side at market and the other side
// at the complement of this target sum, keeping the pair under $0.98.
const midMarketPairSum = 0.98

// tryPreOrder enters both sides of the upcoming period's market at the
// configured limit price. The signal reads the market about to close: a
// decided current market means the asset is trending, a stable one means
// chop worth straddling. The window decision is one-shot — a Bad or
// Unknown signal skips the period for good, while an unlisted upcoming
// market or a failed placement retries next tick. The new cycle lands
// in the next slot; the rollover promotes it when its period starts.
func (o *Orchestrator) tryPreOrder(ctx context.Context, current, next domain.Period, now time.Time) {
	market, ok := o.resolveMarket(ctx, next)
	if !ok {
		return
	}

	snap := o.currentSnapshot(ctx, current, now)
	sig := o.params.Signal.Evaluate(snap)
	o.lastSnap = snap
	o.lastSig = sig
	if o.cur == nil {
		o.state = StateArmed
	}

	if !sig.Placeable() {
		o.windowSkipped[next.Start.Unix()] = true
		o.log.Info("pre-orders skipped for period",
			"period", next.Slug(), "signal", sig, "up", snap.Up, "down", snap.Down)
		return
	}

	c := &cycle{period: next, market: market}
	if o.placePair(ctx, c, o.params.PriceLimit, o.params.PriceLimit) {
		o.next = c
		o.preOrdered[next.Start.Unix()] = true
		if o.cur == nil {
			o.state = StatePlaced
		}
		o.log.Info("pre-orders placed",
			"period", next.Slug(), "limit", o.params.PriceLimit, "shares", o.params.Shares)
	}
}

// currentSnapshot reads both prices of the running period's market for
// the placement signal. Any lookup failure yields an invalid snapshot.
func (o *Orchestrator) currentSnapshot(ctx context.Context, current domain.Period, now time.Time) domain.PriceSnapshot {
	left := current.End().Sub(now)

	if o.cur != nil && o.cur.period.Equal(current) {
		return o.fetchSnapshot(ctx, o.cur.market, left)
	}

	market, err := o.discovery.Resolve(ctx, current.Slug())
	if err != nil || !market.Tradeable() {
		return domain.PriceSnapshot{MinutesLeft: int(left / time.Minute)}
	}
	return o.fetchSnapshot(ctx, market, left)
}

// tryMidMarket enters the already-running period when the signal allows:
// the cheaper side at its market price, the other side priced so the
// pair costs at most midMarketPairSum. Skipped close to the period end.
func (o *Orchestrator) tryMidMarket(ctx context.Context, current domain.Period, now time.Time) {
	if current.MinutesRemaining(now) < o.params.Signal.DangerTimeMins {
		return
	}

	market, ok := o.resolveMarket(ctx, current)
	if !ok {
		return
	}

	snap := o.fetchSnapshot(ctx, market, current.End().Sub(now))
	sig := o.params.Signal.Evaluate(snap)
	o.lastSnap = snap
	o.lastSig = sig

	if !sig.Placeable() {
		return
	}

	cheap := math.Min(snap.Up, snap.Down)
	upPrice, downPrice := clampPrice(cheap), clampPrice(midMarketPairSum-cheap)
	if snap.Down < snap.Up {
		upPrice, downPrice = downPrice, upPrice
	}

	c := &cycle{period: current, market: market, midMarket: true}
	if o.placePair(ctx, c, upPrice, downPrice) {
		o.cur = c
		o.midOrdered[current.Start.Unix()] = true
		o.updateState(c)
		o.log.Info("mid-market orders placed",
			"period", current.Slug(), "up_price", upPrice, "down_price", downPrice)
	}
}

// resolveMarket looks the period's market up by its deterministic slug.
// A missing listing or a transient failure just means "try next tick".
func (o *Orchestrator) resolveMarket(ctx context.Context, p domain.Period) (domain.MarketDescriptor, bool) {
	market, err := o.discovery.Resolve(ctx, p.Slug())
	if errors.Is(err, ports.ErrNotFound) {
		o.log.Debug("market not listed yet", "slug", p.Slug())
		return domain.MarketDescriptor{}, false
	}
	if err != nil {
		if !ports.IsTransient(err) {
			o.log.Warn("market resolve failed", "slug", p.Slug(), "err", err)
		}
		return domain.MarketDescriptor{}, false
	}
	if !market.Tradeable() {
		o.log.Debug("market not tradeable", "slug", p.Slug())
		return domain.MarketDescriptor{}, false
	}

	o.prices.Track(market.UpTokenID)
	o.prices.Track(market.DownTokenID)
	return market, true
}

// fetchSnapshot reads both sell prices. Any failure yields an invalid
// snapshot, which evaluates to an Unknown signal.
func (o *Orchestrator) fetchSnapshot(ctx context.Context, market domain.MarketDescriptor, left time.Duration) domain.PriceSnapshot {
	snap := domain.PriceSnapshot{MinutesLeft: int(left / time.Minute)}

	up, err := o.prices.SellPrice(ctx, market.UpTokenID)
	if err != nil {
		return snap
	}
	down, err := o.prices.SellPrice(ctx, market.DownTokenID)
	if err != nil {
		return snap
	}

	snap.Up, snap.Down, snap.Valid = up, down, true
	return snap
}

// placePair submits both entry buys. A definitive rejection of the
// first order abandons the attempt; a rejection of the second leaves a
// one-sided cycle that risk management covers. Returns false when
// nothing was placed.
func (o *Orchestrator) placePair(ctx context.Context, c *cycle, upPrice, downPrice float64) bool {
	upIntent := domain.OrderIntent{
		Asset:   o.asset,
		Period:  c.period,
		Side:    domain.SideUp,
		TokenID: c.market.UpTokenID,
		Price:   upPrice,
		Size:    o.params.Shares,
	}
	up, err := o.executor.PlaceLimitBuy(ctx, upIntent)
	if err != nil {
		o.logPlacementError(domain.SideUp, err)
		return false
	}
	c.upOrder = &up
	if up.Filled() {
		o.recordFill(ctx, c, up)
	}

	downIntent := upIntent
	downIntent.Side = domain.SideDown
	downIntent.TokenID = c.market.DownTokenID
	downIntent.Price = downPrice
	down, err := o.executor.PlaceLimitBuy(ctx, downIntent)
	if err != nil {
		o.logPlacementError(domain.SideDown, err)
		o.log.Warn("entered one-sided, risk management armed", "period", c.period.Slug())
		return true
	}
	c.downOrder = &down
	if down.Filled() {
		o.recordFill(ctx, c, down)
	}
	return true
}

func (o *Orchestrator) logPlacementError(side domain.Side, err error) {
	var rej *ports.RejectedError
	switch {
	case errors.As(err, &rej):
		o.log.Warn("entry rejected", "side", side, "reason", rej.Reason)
	case ports.IsTransient(err):
		o.log.Debug("entry placement transient failure", "side", side, "err", err)
	default:
		o.log.Warn("entry placement failed", "side", side, "err", err)
	}
}

// clampPrice rounds to the 0.01 tick and clamps into the valid book
// range.
func clampPrice(p float64) float64 {
	p = math.Round(p*100) / 100
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}
