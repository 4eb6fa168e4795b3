package domain

// Signal classifies current market conditions for order placement.
type Signal string

const (
	SignalGood    Signal = "GOOD"
	SignalBad     Signal = "BAD"
	SignalUnknown Signal = "UNKNOWN"
)

// Placeable reports whether the signal allows placing new orders.
// Unknown is disqualifying, same as Bad.
func (s Signal) Placeable() bool {
	return s == SignalGood
}

// RiskMode selects how a one-side-filled position is handled.
type RiskMode string

const (
	RiskModePrice RiskMode = "price" // sell once the filled side drops to the danger price
	RiskModeTime  RiskMode = "time"  // sell once the danger time has passed since the fill
	RiskModeNone  RiskMode = "none"  // hold to resolution
)

// PriceSnapshot is one observation of both outcome prices for a market.
// Valid is false when the prices could not be fetched.
type PriceSnapshot struct {
	Up          float64
	Down        float64
	MinutesLeft int
	Valid       bool
}

// SignalParams are the thresholds driving placement and risk decisions.
type SignalParams struct {
	Enabled            bool
	StableMin          float64
	StableMax          float64
	ClearThreshold     float64
	ClearRemainingMins int
	DangerPrice        float64
	DangerTimeMins     int
	RiskMode           RiskMode
	MidMarketEnabled   bool
}

// Evaluate derives the placement signal from a price snapshot. Pure: the
// same snapshot and params always produce the same signal.
//
// Bad: one side is near-certain (>= ClearThreshold) with too little time
// left for the other to fill at a reasonable price. Good: neither side
// triggers Bad and both prices sit in the stable band. Anything else is
// Bad; an invalid snapshot is Unknown.
func (p SignalParams) Evaluate(snap PriceSnapshot) Signal {
	if !p.Enabled {
		return SignalGood
	}
	if !snap.Valid {
		return SignalUnknown
	}
	if snap.MinutesLeft <= p.ClearRemainingMins &&
		(snap.Up >= p.ClearThreshold || snap.Down >= p.ClearThreshold) {
		return SignalBad
	}
	if snap.Up >= p.StableMin && snap.Up <= p.StableMax &&
		snap.Down >= p.StableMin && snap.Down <= p.StableMax {
		return SignalGood
	}
	return SignalBad
}

// IsDanger reports whether a filled side's price has collapsed to the
// danger threshold.
func (p SignalParams) IsDanger(price float64) bool {
	return price <= p.DangerPrice
}
