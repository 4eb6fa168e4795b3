package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/updown/internal/adapters/notify"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// statusEvery is how often the console status line is refreshed.
const statusEvery = 10 * time.Second

// Engine runs one orchestrator per asset on a shared tick, plus the
// redemption scheduler on its own slower cadence.
type Engine struct {
	orchestrators []*Orchestrator
	scheduler     *RedemptionScheduler
	ledger        ports.Ledger
	console       *notify.Console
	tick          time.Duration
}

// New assembles the engine. One orchestrator is created per asset; they
// share the discovery, price, execution and ledger collaborators.
func New(
	assets []string,
	params Params,
	discovery ports.MarketDiscovery,
	prices ports.PriceSource,
	executor ports.OrderExecutor,
	redeemer ports.Redeemer,
	ledger ports.Ledger,
	console *notify.Console,
	tick, closureInterval time.Duration,
) *Engine {
	orchs := make([]*Orchestrator, 0, len(assets))
	for _, asset := range assets {
		orchs = append(orchs, NewOrchestrator(
			asset, params, discovery, prices, executor, ledger, nil))
	}

	return &Engine{
		orchestrators: orchs,
		scheduler: NewRedemptionScheduler(
			discovery, redeemer, ledger, console, closureInterval, nil),
		ledger:  ledger,
		console: console,
		tick:    tick,
	}
}

// Run drives the trading loop until the context is cancelled. Each tick
// advances every asset; orchestrators are independent, so one asset's
// failure never blocks another.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine started",
		"assets", len(e.orchestrators), "tick", e.tick)

	go e.scheduler.Run(ctx)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	status := time.NewTicker(statusEvery)
	defer status.Stop()

	// First tick immediately so a restart mid-window doesn't lose the
	// placement opportunity.
	e.tickAll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.tickAll(ctx)
		case <-status.C:
			e.printStatus(ctx)
		}
	}
}

func (e *Engine) tickAll(ctx context.Context) {
	for _, o := range e.orchestrators {
		o.Tick(ctx)
	}
}

func (e *Engine) printStatus(ctx context.Context) {
	if e.console == nil {
		return
	}

	in := notify.StatusInput{}
	for _, o := range e.orchestrators {
		in.Assets = append(in.Assets, o.Status())
	}

	if totals, err := e.ledger.Totals(ctx); err == nil {
		in.Totals = totals
	}
	if pending, err := e.ledger.PendingPositions(ctx); err == nil {
		in.PendingReds = len(pending)
	}

	e.console.PrintStatus(in)
}

// RedeemAll is the manual redemption mode: claim every redeemable
// position of the proxy wallet, or a single condition when one is
// given. Returns the number of successful claims.
func RedeemAll(ctx context.Context, redeemer ports.Redeemer, conditionID string) (int, error) {
	if conditionID != "" {
		if _, err := redeemer.Redeem(ctx, conditionID); err != nil {
			return 0, err
		}
		return 1, nil
	}

	positions, err := redeemer.ListRedeemable(ctx)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		slog.Info("nothing to redeem")
		return 0, nil
	}

	claimed := 0
	for _, p := range positions {
		slog.Info("redeeming",
			"condition", p.ConditionID, "market", p.Title, "value", p.Payout)
		if _, err := redeemer.Redeem(ctx, p.ConditionID); err != nil {
			slog.Warn("redeem failed", "condition", p.ConditionID, "err", err)
			continue
		}
		claimed++
	}
	return claimed, nil
}

// RestorePending logs the watchlist rebuilt from the ledger at startup.
func RestorePending(ctx context.Context, ledger ports.Ledger) []domain.Position {
	pending, err := ledger.PendingPositions(ctx)
	if err != nil {
		slog.Warn("restore pending positions failed", "err", err)
		return nil
	}
	for _, p := range pending {
		slog.Info("pending position restored",
			"asset", p.Asset, "slug", p.Slug,
			"up_shares", p.UpShares, "down_shares", p.DownShares)
	}
	return pending
}
