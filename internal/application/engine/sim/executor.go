package sim

// executor.go — Virtual order execution for simulation mode.
//
// Implements ports.OrderExecutor against live market prices without
// touching the venue: a limit buy fills the moment the market trades at
// or below its limit, at the limit price and full size. Sells realize
// the current best bid. The engine cannot tell this executor apart from
// the real one.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// Executor is the simulation order executor.
type Executor struct {
	prices ports.PriceSource
	clock  func() time.Time

	mu     sync.Mutex
	orders map[string]domain.OrderHandle // by local ID
}

// NewExecutor creates a simulation executor over a live price source.
// clock is injectable for tests; pass nil for time.Now.
func NewExecutor(prices ports.PriceSource, clock func() time.Time) *Executor {
	if clock == nil {
		clock = time.Now
	}
	return &Executor{
		prices: prices,
		clock:  clock,
		orders: make(map[string]domain.OrderHandle),
	}
}

// PlaceLimitBuy registers a virtual order. It may fill immediately when
// the market is already at or below the limit.
func (e *Executor) PlaceLimitBuy(ctx context.Context, intent domain.OrderIntent) (domain.OrderHandle, error) {
	id := uuid.New().String()
	handle := domain.OrderHandle{
		ID:         id,
		ExternalID: "SIM-" + id,
		Intent:     intent,
		Status:     domain.OrderStatusPending,
		PlacedAt:   e.clock().UTC(),
	}

	if price, err := e.prices.SellPrice(ctx, intent.TokenID); err == nil && price <= intent.Price {
		handle.Status = domain.OrderStatusFilled
		handle.FilledSize = intent.Size
		slog.Debug("sim: immediate fill",
			"side", intent.Side, "limit", intent.Price, "market", price)
	}

	e.mu.Lock()
	e.orders[id] = handle
	e.mu.Unlock()
	return handle, nil
}

// QueryOrder re-evaluates a pending virtual order against the current
// price. Fills are sticky: once filled, an order stays filled.
func (e *Executor) QueryOrder(ctx context.Context, handle domain.OrderHandle) (domain.OrderHandle, error) {
	e.mu.Lock()
	stored, ok := e.orders[handle.ID]
	e.mu.Unlock()
	if !ok {
		return handle, ports.ErrNotFound
	}
	if stored.Filled() || stored.Dead() {
		return stored, nil
	}

	price, err := e.prices.SellPrice(ctx, stored.Intent.TokenID)
	if err != nil {
		return stored, err
	}
	if price <= stored.Intent.Price {
		stored.Status = domain.OrderStatusFilled
		stored.FilledSize = stored.Intent.Size
		e.mu.Lock()
		e.orders[handle.ID] = stored
		e.mu.Unlock()
		slog.Debug("sim: order filled",
			"side", stored.Intent.Side, "limit", stored.Intent.Price, "market", price)
	}
	return stored, nil
}

// CancelOrder cancels a pending virtual order. Cancelling a filled or
// unknown order is a no-op, matching the venue contract.
func (e *Executor) CancelOrder(ctx context.Context, handle domain.OrderHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	stored, ok := e.orders[handle.ID]
	if !ok || stored.Filled() || stored.Dead() {
		return nil
	}
	stored.Status = domain.OrderStatusCancelled
	e.orders[handle.ID] = stored
	return nil
}

// MarketSell realizes the current best bid for the full size.
func (e *Executor) MarketSell(ctx context.Context, tokenID string, shares float64) (float64, error) {
	if shares <= 0 {
		return 0, fmt.Errorf("sim: invalid sell size %v", shares)
	}
	price, err := e.prices.SellPrice(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	slog.Debug("sim: market sell", "token", tokenID, "price", price, "shares", shares)
	return price, nil
}
