package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Polymarket PolymarketConfig `yaml:"polymarket"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// PolymarketConfig contiene los endpoints y credenciales del venue.
type PolymarketConfig struct {
	GammaBase          string `yaml:"gamma_base"`
	CLOBBase           string `yaml:"clob_base"`
	WSBase             string `yaml:"ws_base"`
	DataBase           string `yaml:"data_base"`
	RPCURL             string `yaml:"rpc_url"`
	PrivateKey         string `yaml:"private_key"`          // sobreescrito por POLY_PRIVATE_KEY
	ProxyWalletAddress string `yaml:"proxy_wallet_address"` // wallet que mantiene las posiciones
}

// StrategyConfig controla el ciclo de trading por período.
type StrategyConfig struct {
	Assets                    []string     `yaml:"assets"`
	PeriodMinutes             int          `yaml:"period_minutes"`
	Timezone                  string       `yaml:"timezone"`
	PriceLimit                float64      `yaml:"price_limit"`
	Shares                    float64      `yaml:"shares"`
	PlaceOrderBeforeMins      int          `yaml:"place_order_before_mins"`
	CheckIntervalMs           int          `yaml:"check_interval_ms"`
	SimulationMode            bool         `yaml:"simulation_mode"`
	SellOppositeAbove         float64      `yaml:"sell_opposite_above"`
	SellOppositeTimeRemaining int          `yaml:"sell_opposite_time_remaining"`
	ClosureCheckSeconds       int          `yaml:"market_closure_check_interval_seconds"`
	WSEnabled                 bool         `yaml:"ws_enabled"`
	Signal                    SignalConfig `yaml:"signal"`
}

// SignalConfig son los parámetros de la señal de colocación y de riesgo.
type SignalConfig struct {
	Enabled                  bool    `yaml:"enabled"`
	StableMin                float64 `yaml:"stable_min"`
	StableMax                float64 `yaml:"stable_max"`
	ClearThreshold           float64 `yaml:"clear_threshold"`
	ClearRemainingMins       int     `yaml:"clear_remaining_mins"`
	DangerPrice              float64 `yaml:"danger_price"`
	DangerTimePassed         int     `yaml:"danger_time_passed"`
	OneSideBuyRiskManagement string  `yaml:"one_side_buy_risk_management"` // price | time | none
	MidMarketEnabled         bool    `yaml:"mid_market_enabled"`
}

// StorageConfig controla dónde se persiste el ledger.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys sensibles.
// Devuelve error si la configuración resultante no es válida.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// CheckInterval devuelve el intervalo del tick principal como time.Duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Strategy.CheckIntervalMs) * time.Millisecond
}

// ClosureCheckInterval devuelve el intervalo del scheduler de redención.
func (c *Config) ClosureCheckInterval() time.Duration {
	return time.Duration(c.Strategy.ClosureCheckSeconds) * time.Second
}

// PeriodLength devuelve la duración del período de trading.
func (c *Config) PeriodLength() time.Duration {
	return time.Duration(c.Strategy.PeriodMinutes) * time.Minute
}

// Location resuelve la zona horaria configurada.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Strategy.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Strategy.Timezone, err)
	}
	return loc, nil
}

// Validate rechaza rangos inválidos al arrancar, no en tiempo de uso.
func (c *Config) Validate() error {
	s := c.Strategy
	if len(s.Assets) == 0 {
		return fmt.Errorf("strategy.assets: at least one asset required")
	}
	if s.PriceLimit <= 0 || s.PriceLimit >= 1 {
		return fmt.Errorf("strategy.price_limit: %v outside (0,1)", s.PriceLimit)
	}
	if s.Shares <= 0 {
		return fmt.Errorf("strategy.shares: must be > 0")
	}
	if s.PlaceOrderBeforeMins <= 0 || s.PlaceOrderBeforeMins >= s.PeriodMinutes {
		return fmt.Errorf("strategy.place_order_before_mins: %d outside (0,%d)",
			s.PlaceOrderBeforeMins, s.PeriodMinutes)
	}
	if s.SellOppositeAbove <= 0 || s.SellOppositeAbove >= 1 {
		return fmt.Errorf("strategy.sell_opposite_above: %v outside (0,1)", s.SellOppositeAbove)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	sig := s.Signal
	if sig.StableMin > sig.StableMax {
		return fmt.Errorf("signal.stable_min %v > stable_max %v", sig.StableMin, sig.StableMax)
	}
	if sig.ClearThreshold <= 0 || sig.ClearThreshold > 1 {
		return fmt.Errorf("signal.clear_threshold: %v outside (0,1]", sig.ClearThreshold)
	}
	if sig.DangerPrice <= 0 || sig.DangerPrice >= 1 {
		return fmt.Errorf("signal.danger_price: %v outside (0,1)", sig.DangerPrice)
	}
	switch sig.OneSideBuyRiskManagement {
	case "price", "time", "none":
	default:
		return fmt.Errorf("signal.one_side_buy_risk_management: %q not one of price|time|none",
			sig.OneSideBuyRiskManagement)
	}

	if !s.SimulationMode && c.Polymarket.PrivateKey == "" {
		return fmt.Errorf("polymarket.private_key required outside simulation mode (set POLY_PRIVATE_KEY)")
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POLY_PRIVATE_KEY"); v != "" {
		cfg.Polymarket.PrivateKey = v
	}
	if v := os.Getenv("POLY_PROXY_WALLET"); v != "" {
		cfg.Polymarket.ProxyWalletAddress = v
	}
	if v := os.Getenv("POLYGON_RPC_URL"); v != "" {
		cfg.Polymarket.RPCURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores opcionales tengan valores sensatos.
func setDefaults(cfg *Config) {
	if len(cfg.Strategy.Assets) == 0 {
		cfg.Strategy.Assets = []string{"BTC", "ETH", "SOL", "XRP"}
	}
	if cfg.Strategy.PeriodMinutes <= 0 {
		cfg.Strategy.PeriodMinutes = 15
	}
	if cfg.Strategy.Timezone == "" {
		cfg.Strategy.Timezone = "America/New_York"
	}
	if cfg.Strategy.PriceLimit <= 0 {
		cfg.Strategy.PriceLimit = 0.45
	}
	if cfg.Strategy.Shares <= 0 {
		cfg.Strategy.Shares = 5
	}
	if cfg.Strategy.PlaceOrderBeforeMins <= 0 {
		cfg.Strategy.PlaceOrderBeforeMins = 3
	}
	if cfg.Strategy.CheckIntervalMs <= 0 {
		cfg.Strategy.CheckIntervalMs = 2000
	}
	if cfg.Strategy.SellOppositeAbove <= 0 {
		cfg.Strategy.SellOppositeAbove = 0.95
	}
	if cfg.Strategy.SellOppositeTimeRemaining <= 0 {
		cfg.Strategy.SellOppositeTimeRemaining = 15
	}
	if cfg.Strategy.ClosureCheckSeconds <= 0 {
		cfg.Strategy.ClosureCheckSeconds = 120
	}

	sig := &cfg.Strategy.Signal
	if sig.StableMin <= 0 {
		sig.StableMin = 0.35
	}
	if sig.StableMax <= 0 {
		sig.StableMax = 0.65
	}
	if sig.ClearThreshold <= 0 {
		sig.ClearThreshold = 0.99
	}
	if sig.ClearRemainingMins <= 0 {
		sig.ClearRemainingMins = 15
	}
	if sig.DangerPrice <= 0 {
		sig.DangerPrice = 0.15
	}
	if sig.DangerTimePassed <= 0 {
		sig.DangerTimePassed = 30
	}
	if sig.OneSideBuyRiskManagement == "" {
		sig.OneSideBuyRiskManagement = "none"
	}

	if cfg.Polymarket.CLOBBase == "" {
		cfg.Polymarket.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.Polymarket.GammaBase == "" {
		cfg.Polymarket.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Polymarket.WSBase == "" {
		cfg.Polymarket.WSBase = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if cfg.Polymarket.DataBase == "" {
		cfg.Polymarket.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Polymarket.RPCURL == "" {
		cfg.Polymarket.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "updown.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
