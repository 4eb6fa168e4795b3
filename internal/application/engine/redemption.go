package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alejandrodnm/updown/internal/adapters/notify"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// RedemptionScheduler watches held positions for market resolution and
// claims payouts exactly once. The ledger is the watchlist: positions
// survive restarts there, and its redemptions table (keyed by
// condition) is the hard backstop against a double claim.
type RedemptionScheduler struct {
	discovery ports.MarketDiscovery
	redeemer  ports.Redeemer
	ledger    ports.Ledger
	console   *notify.Console
	interval  time.Duration
	clock     func() time.Time
	log       *slog.Logger
}

// NewRedemptionScheduler wires the closure/redemption loop. redeemer may
// be nil in simulation mode: simulated positions settle ledger-only.
func NewRedemptionScheduler(
	discovery ports.MarketDiscovery,
	redeemer ports.Redeemer,
	ledger ports.Ledger,
	console *notify.Console,
	interval time.Duration,
	clock func() time.Time,
) *RedemptionScheduler {
	if clock == nil {
		clock = time.Now
	}
	return &RedemptionScheduler{
		discovery: discovery,
		redeemer:  redeemer,
		ledger:    ledger,
		console:   console,
		interval:  interval,
		clock:     clock,
		log:       slog.With("component", "redemption"),
	}
}

// Run scans on the configured interval until the context ends.
func (rs *RedemptionScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	// First scan immediately: after a restart there may be positions
	// whose markets resolved while the bot was down.
	rs.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.Scan(ctx)
		}
	}
}

// Scan checks every pending position once. Transient failures leave the
// position pending for the next scan.
func (rs *RedemptionScheduler) Scan(ctx context.Context) {
	pending, err := rs.ledger.PendingPositions(ctx)
	if err != nil {
		rs.log.Error("load pending positions failed", "err", err)
		return
	}

	for _, pos := range pending {
		if err := rs.settle(ctx, pos); err != nil {
			if !ports.IsTransient(err) {
				rs.log.Warn("settle failed", "condition", pos.ConditionID, "err", err)
			}
		}
	}
}

// settle resolves one position: check closure, claim on-chain when
// there is a payout, record the outcome.
func (rs *RedemptionScheduler) settle(ctx context.Context, pos domain.Position) error {
	market, err := rs.discovery.Resolve(ctx, pos.Slug)
	if err != nil {
		return err
	}
	if !market.Resolved() {
		return nil // still open or awaiting oracle
	}

	winner := *market.Winner
	payout := pos.PayoutFor(winner)

	var txHash string
	if payout > 0 && !pos.Simulated && rs.redeemer != nil {
		txHash, err = rs.redeemer.Redeem(ctx, pos.ConditionID)
		if errors.Is(err, ports.ErrAlreadyRedeemed) {
			rs.log.Info("payout already claimed", "condition", pos.ConditionID)
			err = nil
		}
		if err != nil {
			return err
		}
	}

	rec := domain.RedemptionRecord{
		ConditionID: pos.ConditionID,
		Asset:       pos.Asset,
		PeriodStart: pos.PeriodStart,
		Slug:        pos.Slug,
		Winner:      winner,
		Payout:      payout,
		CostBasis:   pos.CostBasis,
		TxHash:      txHash,
		Simulated:   pos.Simulated,
		RedeemedAt:  rs.clock().UTC(),
	}
	if err := rs.ledger.RecordRedemption(ctx, rec); err != nil {
		if errors.Is(err, ports.ErrAlreadyRedeemed) {
			return nil
		}
		return err
	}

	rs.log.Info("position settled",
		"asset", pos.Asset, "slug", pos.Slug, "winner", winner,
		"payout", payout, "pnl", rec.Profit())
	if rs.console != nil {
		rs.console.PrintRedemption(rec)
	}
	return nil
}
