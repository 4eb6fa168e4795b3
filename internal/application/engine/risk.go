package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// manageRisk runs the in-period protections on the active cycle:
// sell-opposite when one side is near-certain, and the one-side-filled
// danger exits. Each fires at most once per cycle.
func (o *Orchestrator) manageRisk(ctx context.Context, now time.Time) {
	c := o.cur
	snap := o.fetchSnapshot(ctx, c.market, c.period.End().Sub(now))
	if snap.Valid {
		o.lastSnap = snap
	}

	switch o.state {
	case StatePaired:
		o.sellOpposite(ctx, snap, now)
	case StateOneSide:
		o.oneSideDanger(ctx, snap, now)
	}
}

// sellOpposite: with both sides filled and one trading near-certain
// close to the period end, the losing side still carries a few cents of
// recoverable value — dump it before it goes to zero.
func (o *Orchestrator) sellOpposite(ctx context.Context, snap domain.PriceSnapshot, now time.Time) {
	c := o.cur
	if c.soldOpposite || !snap.Valid {
		return
	}
	if c.period.MinutesRemaining(now) > o.params.SellOppositeTimeRemaining {
		return
	}

	var loser domain.Side
	switch {
	case snap.Up >= o.params.SellOppositeAbove:
		loser = domain.SideDown
	case snap.Down >= o.params.SellOppositeAbove:
		loser = domain.SideUp
	default:
		return
	}

	losing := c.upOrder
	if loser == domain.SideDown {
		losing = c.downOrder
	}
	shares := losing.FilledSize
	if shares <= 0 {
		return
	}

	price, err := o.executor.MarketSell(ctx, losing.Intent.TokenID, shares)
	if err != nil {
		if !ports.IsTransient(err) {
			o.log.Warn("sell-opposite failed", "side", loser, "err", err)
			c.soldOpposite = true // definitive failure, don't hammer the book
		}
		return
	}

	c.soldOpposite = true
	o.applySell(ctx, loser, losing.Intent.TokenID, price, shares)
	o.log.Info("sold losing side",
		"side", loser, "price", price, "shares", shares,
		"up", snap.Up, "down", snap.Down)
}

// oneSideDanger: exactly one side filled and the strategy's exposure is
// naked. Depending on the risk mode, exit by price collapse or by time
// held. Before selling, re-verify the other order really never filled —
// a fill that landed between ticks turns this into a paired cycle
// instead.
func (o *Orchestrator) oneSideDanger(ctx context.Context, snap domain.PriceSnapshot, now time.Time) {
	c := o.cur

	filled, other := c.upOrder, c.downOrder
	filledSide := domain.SideUp
	if c.downOrder != nil && c.downOrder.Filled() {
		filled, other = c.downOrder, c.upOrder
		filledSide = domain.SideDown
	}

	var trigger bool
	switch o.params.Signal.RiskMode {
	case domain.RiskModePrice:
		if !snap.Valid {
			return
		}
		price := snap.Up
		if filledSide == domain.SideDown {
			price = snap.Down
		}
		trigger = o.params.Signal.IsDanger(price)
	case domain.RiskModeTime:
		trigger = !c.oneSideSince.IsZero() &&
			now.Sub(c.oneSideSince) >= time.Duration(o.params.Signal.DangerTimeMins)*time.Minute
	default:
		return // RiskModeNone: hold to resolution
	}
	if !trigger {
		return
	}

	// Double-check with the venue before bailing out.
	if other != nil && !other.Dead() {
		updated, err := o.executor.QueryOrder(ctx, *other)
		if err == nil {
			*other = updated
			if updated.Filled() {
				o.recordFill(ctx, c, updated)
				o.updateState(c)
				o.log.Info("danger exit aborted, pair completed between ticks")
				return
			}
		}
		if err := o.executor.CancelOrder(ctx, *other); err != nil && !ports.IsTransient(err) {
			o.log.Warn("cancel unfilled side failed", "err", err)
		}
		other.Status = domain.OrderStatusCancelled
	}

	shares := filled.FilledSize
	price, err := o.executor.MarketSell(ctx, filled.Intent.TokenID, shares)
	if err != nil {
		if !ports.IsTransient(err) {
			o.log.Warn("danger sell failed", "side", filledSide, "err", err)
		}
		return
	}

	o.applySell(ctx, filledSide, filled.Intent.TokenID, price, shares)
	o.log.Warn("danger exit executed",
		"side", filledSide, "mode", o.params.Signal.RiskMode,
		"entry", filled.Intent.Price, "exit", price, "shares", shares)

	// Nothing left to hold; close the cycle flat.
	o.cur = nil
	o.state = StateIdle
}

// applySell records a risk sell in the ledger and on the cycle.
func (o *Orchestrator) applySell(ctx context.Context, side domain.Side, tokenID string, price, shares float64) {
	c := o.cur
	if side == domain.SideUp {
		c.upSold += shares
	} else {
		c.downSold += shares
	}
	c.sellRevenue += price * shares

	t := domain.TradeRecord{
		ID:          uuid.New().String(),
		Asset:       o.asset,
		PeriodStart: c.period.Start,
		Slug:        c.market.Slug,
		ConditionID: c.market.ConditionID,
		Side:        side,
		TokenID:     tokenID,
		Action:      domain.TradeActionSell,
		Price:       price,
		Size:        shares,
		Simulated:   o.params.Simulation,
		ExecutedAt:  o.clock().UTC(),
	}
	if err := o.ledger.RecordTrade(ctx, t); err != nil {
		o.log.Error("record sell failed", "err", err)
	}
}
