package domain

import "time"

// TradeRecord is one executed fill, as persisted in the ledger.
type TradeRecord struct {
	ID          string
	Asset       string
	PeriodStart time.Time
	Slug        string
	ConditionID string
	Side        Side
	TokenID     string
	Action      TradeAction
	Price       float64
	Size        float64
	Simulated   bool
	ExecutedAt  time.Time
}

// TradeAction distinguishes entry buys from risk-management sells.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "BUY"
	TradeActionSell TradeAction = "SELL"
)

// Cost returns the USDC notional of the trade.
func (t TradeRecord) Cost() float64 {
	return t.Price * t.Size
}

// Position is what remains held in one period market after the trading
// window closes: the filled buys minus anything sold off by risk
// management. It is the unit the redemption scheduler watches.
type Position struct {
	Asset       string
	PeriodStart time.Time
	Slug        string
	ConditionID string
	UpTokenID   string
	DownTokenID string
	UpShares    float64
	DownShares  float64
	CostBasis   float64 // USDC spent on the remaining shares
	Simulated   bool
}

// Empty reports whether nothing is held on either side.
func (p Position) Empty() bool {
	return p.UpShares <= 0 && p.DownShares <= 0
}

// SharesFor returns the shares held on the given side.
func (p Position) SharesFor(side Side) float64 {
	if side == SideUp {
		return p.UpShares
	}
	return p.DownShares
}

// PayoutFor returns the USDC redeemable when the market resolves to
// winner: winning shares pay 1.00, losing shares pay nothing.
func (p Position) PayoutFor(winner Side) float64 {
	return p.SharesFor(winner)
}

// RedemptionRecord is one settled position, as persisted in the ledger.
type RedemptionRecord struct {
	ConditionID string
	Asset       string
	PeriodStart time.Time
	Slug        string
	Winner      Side
	Payout      float64
	CostBasis   float64
	TxHash      string // empty for simulated redemptions
	Simulated   bool
	RedeemedAt  time.Time
}

// Profit returns the realized PnL of the redemption.
func (r RedemptionRecord) Profit() float64 {
	return r.Payout - r.CostBasis
}

// RedeemablePosition is an unclaimed payout reported by the venue's
// positions API, used by the manual redeem mode.
type RedeemablePosition struct {
	ConditionID string
	Slug        string
	Title       string
	Shares      float64
	Payout      float64
}

// ProfitTotals aggregates the ledger for status display.
type ProfitTotals struct {
	Trades      int
	Redemptions int
	Spent       float64
	SellRevenue float64
	Redeemed    float64
}

// Net returns total realized PnL: everything received minus everything spent.
func (p ProfitTotals) Net() float64 {
	return p.Redeemed + p.SellRevenue - p.Spent
}
