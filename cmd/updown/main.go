package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/updown/config"
	"github.com/alejandrodnm/updown/internal/adapters/feed"
	"github.com/alejandrodnm/updown/internal/adapters/notify"
	"github.com/alejandrodnm/updown/internal/adapters/onchain"
	"github.com/alejandrodnm/updown/internal/adapters/polymarket"
	"github.com/alejandrodnm/updown/internal/adapters/storage"
	"github.com/alejandrodnm/updown/internal/application/engine"
	"github.com/alejandrodnm/updown/internal/application/engine/sim"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	redeem := flag.Bool("redeem", false, "redeem mode: claim payouts and exit, no trading")
	condition := flag.String("condition", "", "with -redeem: claim a single condition ID (default: all redeemable)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full status table (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := polymarket.NewClient(
		cfg.Polymarket.CLOBBase, cfg.Polymarket.GammaBase, cfg.Polymarket.DataBase)

	if *redeem {
		runRedeem(ctx, cfg, client, *condition)
		return
	}

	slog.Info("updown starting",
		"config", *configPath,
		"assets", cfg.Strategy.Assets,
		"period_mins", cfg.Strategy.PeriodMinutes,
		"simulation", cfg.Strategy.SimulationMode,
		"risk_mode", cfg.Strategy.Signal.OneSideBuyRiskManagement,
	)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid timezone", "err", err)
		os.Exit(1)
	}

	// Fuente de precios: REST siempre; WS por encima cuando está activado.
	var prices ports.PriceSource = client
	if cfg.Strategy.WSEnabled {
		cache := feed.NewPriceCache(cfg.Polymarket.WSBase, client)
		if err := cache.Connect(ctx); err != nil {
			slog.Warn("ws feed unavailable, using REST prices only", "err", err)
		} else {
			defer cache.Close()
			prices = cache
		}
	}

	var executor ports.OrderExecutor
	var redeemer ports.Redeemer
	if cfg.Strategy.SimulationMode {
		executor = sim.NewExecutor(prices, nil)
	} else {
		auth, err := polymarket.NewAuthClient(
			cfg.Polymarket.CLOBBase, cfg.Polymarket.GammaBase,
			cfg.Polymarket.DataBase, cfg.Polymarket.PrivateKey)
		if err != nil {
			slog.Error("failed to build auth client", "err", err)
			os.Exit(1)
		}
		if err := auth.EnsureCreds(ctx); err != nil {
			slog.Error("failed to derive API credentials", "err", err)
			os.Exit(1)
		}
		slog.Info("trading wallet ready", "address", auth.Address())
		executor = polymarket.NewTradingClient(auth)

		rc, err := onchain.NewRedeemClient(
			cfg.Polymarket.RPCURL, cfg.Polymarket.PrivateKey,
			cfg.Polymarket.ProxyWalletAddress, client)
		if err != nil {
			slog.Error("failed to build redeem client", "err", err)
			os.Exit(1)
		}
		if err := rc.EnsureApprovals(ctx); err != nil {
			slog.Warn("approval setup failed, sells may revert", "err", err)
		}
		redeemer = rc
	}

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open ledger", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer ledger.Close()

	console := notify.NewConsole(*table)
	console.PrintBanner(cfg.Strategy.Assets, cfg.Strategy.PeriodMinutes,
		cfg.Strategy.PriceLimit, cfg.Strategy.Shares, cfg.Strategy.SimulationMode)

	engine.RestorePending(ctx, ledger)

	params := engine.Params{
		PriceLimit:                cfg.Strategy.PriceLimit,
		Shares:                    cfg.Strategy.Shares,
		PlaceBeforeMins:           cfg.Strategy.PlaceOrderBeforeMins,
		PeriodLength:              cfg.PeriodLength(),
		Location:                  loc,
		SellOppositeAbove:         cfg.Strategy.SellOppositeAbove,
		SellOppositeTimeRemaining: cfg.Strategy.SellOppositeTimeRemaining,
		Signal: domain.SignalParams{
			Enabled:            cfg.Strategy.Signal.Enabled,
			StableMin:          cfg.Strategy.Signal.StableMin,
			StableMax:          cfg.Strategy.Signal.StableMax,
			ClearThreshold:     cfg.Strategy.Signal.ClearThreshold,
			ClearRemainingMins: cfg.Strategy.Signal.ClearRemainingMins,
			DangerPrice:        cfg.Strategy.Signal.DangerPrice,
			DangerTimeMins:     cfg.Strategy.Signal.DangerTimePassed,
			RiskMode:           domain.RiskMode(cfg.Strategy.Signal.OneSideBuyRiskManagement),
			MidMarketEnabled:   cfg.Strategy.Signal.MidMarketEnabled,
		},
		Simulation: cfg.Strategy.SimulationMode,
	}

	eng := engine.New(
		cfg.Strategy.Assets, params,
		client, prices, executor, redeemer, ledger, console,
		cfg.CheckInterval(), cfg.ClosureCheckInterval())

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("updown stopped cleanly")
}

// runRedeem claims pending payouts without starting the trading loop.
func runRedeem(ctx context.Context, cfg *config.Config, client *polymarket.Client, condition string) {
	if cfg.Polymarket.PrivateKey == "" {
		slog.Error("redeem mode requires POLY_PRIVATE_KEY")
		os.Exit(1)
	}

	rc, err := onchain.NewRedeemClient(
		cfg.Polymarket.RPCURL, cfg.Polymarket.PrivateKey,
		cfg.Polymarket.ProxyWalletAddress, client)
	if err != nil {
		slog.Error("failed to build redeem client", "err", err)
		os.Exit(1)
	}

	claimed, err := engine.RedeemAll(ctx, rc, condition)
	if err != nil {
		slog.Error("redeem failed", "err", err)
		os.Exit(1)
	}
	slog.Info("redeem complete", "claimed", claimed)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
