package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/updown/internal/adapters/notify"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// CycleState is the lifecycle phase of one asset's trading cycle.
type CycleState string

const (
	// StateIdle: no target market resolved yet.
	StateIdle CycleState = "IDLE"
	// StateArmed: market resolved, inside the pre-order window, waiting
	// for a placeable signal.
	StateArmed CycleState = "ARMED"
	// StatePlaced: entry orders live on the book.
	StatePlaced CycleState = "PLACED"
	// StateOneSide: exactly one side filled — risk management watch.
	StateOneSide CycleState = "ONE_SIDE"
	// StatePaired: both sides filled — sell-opposite watch.
	StatePaired CycleState = "PAIRED"
)

// Params bundles the per-asset strategy knobs.
type Params struct {
	PriceLimit                float64
	Shares                    float64
	PlaceBeforeMins           int
	PeriodLength              time.Duration
	Location                  *time.Location
	SellOppositeAbove         float64
	SellOppositeTimeRemaining int
	Signal                    domain.SignalParams
	Simulation                bool
}

// cycle is the mutable state of one trading cycle. It is discarded at
// period end; whatever filled moves to the ledger as a position.
type cycle struct {
	period    domain.Period
	market    domain.MarketDescriptor
	upOrder   *domain.OrderHandle
	downOrder *domain.OrderHandle
	midMarket bool

	soldOpposite bool
	oneSideSince time.Time
	upSold       float64
	downSold     float64
	sellRevenue  float64
}

// Orchestrator drives one asset through the period lifecycle: resolve
// market → place pre-orders → track fills → manage risk → hand the held
// position to the redemption watch at period end.
//
// Two cycle slots exist: cur is the cycle whose period is running, next
// holds pre-orders for the upcoming period. Periods are back to back,
// so the pre-order window for the next period always overlaps the tail
// of the current one.
//
// All mutation happens inside Tick under the mutex; Status may be read
// from the display goroutine.
type Orchestrator struct {
	asset     string
	params    Params
	discovery ports.MarketDiscovery
	prices    ports.PriceSource
	executor  ports.OrderExecutor
	ledger    ports.Ledger
	clock     func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	state    CycleState
	cur      *cycle
	next     *cycle
	unsaved  []domain.Position
	lastSnap domain.PriceSnapshot
	lastSig  domain.Signal

	// One-shot placement guards, keyed by period start. Pre-orders and
	// mid-market entries are tracked independently; windowSkipped pins a
	// Bad/Unknown window decision so it is never re-evaluated.
	preOrdered    map[int64]bool
	midOrdered    map[int64]bool
	windowSkipped map[int64]bool
}

// NewOrchestrator creates the per-asset state machine. clock is
// injectable for tests; pass nil for time.Now.
func NewOrchestrator(
	asset string,
	params Params,
	discovery ports.MarketDiscovery,
	prices ports.PriceSource,
	executor ports.OrderExecutor,
	ledger ports.Ledger,
	clock func() time.Time,
) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		asset:      asset,
		params:     params,
		discovery:  discovery,
		prices:     prices,
		executor:   executor,
		ledger:     ledger,
		clock:      clock,
		log:        slog.With("asset", asset),
		state:         StateIdle,
		preOrdered:    make(map[int64]bool),
		midOrdered:    make(map[int64]bool),
		windowSkipped: make(map[int64]bool),
	}
}

// Tick advances the state machine one step. Transient errors leave the
// state untouched; the next tick retries.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock()
	current := domain.CurrentPeriod(now, o.asset, o.params.PeriodLength, o.params.Location)

	// 1. Rollover: a started next-cycle displaces the current one.
	if o.next != nil && o.next.period.Started(now) {
		if o.cur != nil {
			o.finalizeCycle(ctx, o.cur)
		}
		o.cur, o.next = o.next, nil
	}
	if o.cur != nil && o.cur.period.Ended(now) {
		o.finalizeCycle(ctx, o.cur)
		o.cur = nil
		o.state = StateIdle
	}
	o.flushUnsaved(ctx)

	// 2. Track fills and run risk management.
	if o.next != nil {
		o.syncOrders(ctx, o.next)
	}
	if o.cur != nil {
		o.syncOrders(ctx, o.cur)
		o.updateState(o.cur)
		o.manageRisk(ctx, now)
	}

	// 3. Pre-order the upcoming period during its window.
	if o.next == nil {
		upcoming := current.Next()
		key := upcoming.Start.Unix()
		if current.MinutesRemaining(now) < o.params.PlaceBeforeMins &&
			!o.preOrdered[key] && !o.windowSkipped[key] {
			o.tryPreOrder(ctx, current, upcoming, now)
		}
	}

	// 4. Mid-period entry into the current period, when enabled.
	if o.cur == nil && o.params.Signal.MidMarketEnabled &&
		!o.midOrdered[current.Start.Unix()] && !o.preOrdered[current.Start.Unix()] {
		o.tryMidMarket(ctx, current, now)
	}

	// 5. Expire stale placement guards so the maps stay small.
	o.pruneGuards(current)
}

// syncOrders refreshes a cycle's order handles from the executor.
func (o *Orchestrator) syncOrders(ctx context.Context, c *cycle) {
	for _, h := range []*domain.OrderHandle{c.upOrder, c.downOrder} {
		if h == nil || h.Filled() || h.Dead() {
			continue
		}

		updated, err := o.executor.QueryOrder(ctx, *h)
		if errors.Is(err, ports.ErrNotFound) {
			// The order left the book without us cancelling it. A GTC
			// limit buy only vanishes by matching, so infer a fill when
			// the market traded through the limit.
			updated = o.inferVanishedOrder(ctx, *h)
			err = nil
		}
		if err != nil {
			if !ports.IsTransient(err) {
				o.log.Warn("order query failed", "order", h.ExternalID, "err", err)
			}
			continue
		}

		if updated.Filled() && !h.Filled() {
			*h = updated
			o.recordFill(ctx, c, updated)
		} else {
			*h = updated
		}
	}
}

// inferVanishedOrder decides what happened to an order the venue no
// longer reports: filled if the market price crossed the limit,
// expired otherwise.
func (o *Orchestrator) inferVanishedOrder(ctx context.Context, h domain.OrderHandle) domain.OrderHandle {
	price, err := o.prices.SellPrice(ctx, h.Intent.TokenID)
	if err == nil && price <= h.Intent.Price {
		h.Status = domain.OrderStatusFilled
		h.FilledSize = h.Intent.Size
		o.log.Info("vanished order inferred filled",
			"order", h.ExternalID, "side", h.Intent.Side, "price", price, "limit", h.Intent.Price)
	} else {
		h.Status = domain.OrderStatusExpired
		o.log.Warn("vanished order marked expired", "order", h.ExternalID, "side", h.Intent.Side)
	}
	return h
}

// recordFill persists an executed entry buy.
func (o *Orchestrator) recordFill(ctx context.Context, c *cycle, h domain.OrderHandle) {
	o.log.Info("entry filled",
		"side", h.Intent.Side, "price", h.Intent.Price, "size", h.FilledSize, "order", h.ExternalID)

	t := domain.TradeRecord{
		ID:          uuid.New().String(),
		Asset:       o.asset,
		PeriodStart: c.period.Start,
		Slug:        c.market.Slug,
		ConditionID: c.market.ConditionID,
		Side:        h.Intent.Side,
		TokenID:     h.Intent.TokenID,
		Action:      domain.TradeActionBuy,
		Price:       h.Intent.Price,
		Size:        h.FilledSize,
		Simulated:   o.params.Simulation,
		ExecutedAt:  o.clock().UTC(),
	}
	if err := o.ledger.RecordTrade(ctx, t); err != nil {
		o.log.Error("record trade failed", "err", err)
	}
}

// updateState derives the cycle phase from the order handles.
func (o *Orchestrator) updateState(c *cycle) {
	up, down := c.upOrder, c.downOrder
	upFilled := up != nil && up.Filled()
	downFilled := down != nil && down.Filled()

	switch {
	case upFilled && downFilled:
		o.state = StatePaired
	case upFilled || downFilled:
		if o.state != StateOneSide {
			c.oneSideSince = o.clock()
		}
		o.state = StateOneSide
	default:
		o.state = StatePlaced
	}
}

// finalizeCycle runs at the period boundary: cancel whatever never
// filled, compute the held position, hand it to the ledger.
func (o *Orchestrator) finalizeCycle(ctx context.Context, c *cycle) {
	for _, h := range []*domain.OrderHandle{c.upOrder, c.downOrder} {
		if h == nil || h.Filled() || h.Dead() {
			continue
		}
		if err := o.executor.CancelOrder(ctx, *h); err != nil && !ports.IsTransient(err) {
			o.log.Warn("cancel at period end failed", "order", h.ExternalID, "err", err)
		}
	}

	pos := o.heldPosition(c)
	if pos.Empty() {
		o.log.Debug("cycle closed flat", "period", c.period.Slug())
	} else {
		o.log.Info("position held to resolution",
			"period", c.period.Slug(),
			"up_shares", pos.UpShares, "down_shares", pos.DownShares,
			"cost", pos.CostBasis)
		o.unsaved = append(o.unsaved, pos)
	}

	o.lastSnap = domain.PriceSnapshot{}
	o.lastSig = ""
}

// flushUnsaved retries ledger writes that failed earlier. A position
// the redemption watch never sees is lost money, so these are kept
// until the write lands.
func (o *Orchestrator) flushUnsaved(ctx context.Context) {
	remaining := o.unsaved[:0]
	for _, pos := range o.unsaved {
		if err := o.ledger.SavePosition(ctx, pos); err != nil {
			o.log.Error("save position failed, will retry", "condition", pos.ConditionID, "err", err)
			remaining = append(remaining, pos)
		}
	}
	o.unsaved = remaining
}

// heldPosition computes what remains after fills minus risk sells.
func (o *Orchestrator) heldPosition(c *cycle) domain.Position {
	pos := domain.Position{
		Asset:       o.asset,
		PeriodStart: c.period.Start,
		Slug:        c.market.Slug,
		ConditionID: c.market.ConditionID,
		UpTokenID:   c.market.UpTokenID,
		DownTokenID: c.market.DownTokenID,
		Simulated:   o.params.Simulation,
	}

	if h := c.upOrder; h != nil && h.FilledSize > 0 {
		pos.UpShares = h.FilledSize - c.upSold
		pos.CostBasis += h.Intent.Price * h.FilledSize
	}
	if h := c.downOrder; h != nil && h.FilledSize > 0 {
		pos.DownShares = h.FilledSize - c.downSold
		pos.CostBasis += h.Intent.Price * h.FilledSize
	}
	if pos.UpShares < 0 {
		pos.UpShares = 0
	}
	if pos.DownShares < 0 {
		pos.DownShares = 0
	}
	// Risk sells already recovered part of the outlay.
	pos.CostBasis -= c.sellRevenue
	if pos.CostBasis < 0 {
		pos.CostBasis = 0
	}
	return pos
}

// pruneGuards drops guards for periods older than the current one.
func (o *Orchestrator) pruneGuards(current domain.Period) {
	cutoff := current.Start.Unix()
	for k := range o.preOrdered {
		if k < cutoff {
			delete(o.preOrdered, k)
		}
	}
	for k := range o.midOrdered {
		if k < cutoff {
			delete(o.midOrdered, k)
		}
	}
	for k := range o.windowSkipped {
		if k < cutoff {
			delete(o.windowSkipped, k)
		}
	}
}

// Status returns a display snapshot. Safe for concurrent use.
func (o *Orchestrator) Status() notify.AssetStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := notify.AssetStatus{
		Asset:     o.asset,
		State:     string(o.state),
		Signal:    string(o.lastSig),
		UpPrice:   o.lastSnap.Up,
		DownPrice: o.lastSnap.Down,
		Simulated: o.params.Simulation,
	}

	c := o.cur
	if c == nil {
		c = o.next
	}
	if c != nil {
		st.Slug = c.market.Slug
		st.MinutesLeft = c.period.MinutesRemaining(o.clock())
		st.UpFilled = c.upOrder != nil && c.upOrder.Filled()
		st.DownFilled = c.downOrder != nil && c.downOrder.Filled()
	} else {
		st.MinutesLeft = o.lastSnap.MinutesLeft
	}
	return st
}
