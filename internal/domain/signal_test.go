package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSignalParams() SignalParams {
	return SignalParams{
		Enabled:            true,
		StableMin:          0.35,
		StableMax:          0.65,
		ClearThreshold:     0.85,
		ClearRemainingMins: 5,
		DangerPrice:        0.15,
		DangerTimeMins:     4,
		RiskMode:           RiskModePrice,
	}
}

func TestEvaluate_Disabled(t *testing.T) {
	p := testSignalParams()
	p.Enabled = false

	// Con el filtro apagado todo es GOOD, incluso sin precios
	assert.Equal(t, SignalGood, p.Evaluate(PriceSnapshot{}))
	assert.Equal(t, SignalGood, p.Evaluate(PriceSnapshot{Up: 0.99, Down: 0.01, Valid: true}))
}

func TestEvaluate_InvalidSnapshot(t *testing.T) {
	p := testSignalParams()
	assert.Equal(t, SignalUnknown, p.Evaluate(PriceSnapshot{Up: 0.5, Down: 0.5, Valid: false}))
}

func TestEvaluate_StableBand(t *testing.T) {
	p := testSignalParams()

	// Ambos lados dentro de [0.35, 0.65] → GOOD
	assert.Equal(t, SignalGood, p.Evaluate(PriceSnapshot{Up: 0.50, Down: 0.50, MinutesLeft: 10, Valid: true}))
	assert.Equal(t, SignalGood, p.Evaluate(PriceSnapshot{Up: 0.35, Down: 0.65, MinutesLeft: 10, Valid: true}))
}

func TestEvaluate_SkewedIsBad(t *testing.T) {
	p := testSignalParams()

	// 0.70 se sale de la banda estable aunque falte mucho tiempo
	assert.Equal(t, SignalBad, p.Evaluate(PriceSnapshot{Up: 0.70, Down: 0.30, MinutesLeft: 12, Valid: true}))
	assert.Equal(t, SignalBad, p.Evaluate(PriceSnapshot{Up: 0.30, Down: 0.70, MinutesLeft: 12, Valid: true}))
}

func TestEvaluate_ClearNearEnd(t *testing.T) {
	p := testSignalParams()

	// Un lado ≥ 0.85 con ≤ 5 minutos restantes: el mercado ya decidió
	assert.Equal(t, SignalBad, p.Evaluate(PriceSnapshot{Up: 0.90, Down: 0.10, MinutesLeft: 5, Valid: true}))
	assert.Equal(t, SignalBad, p.Evaluate(PriceSnapshot{Up: 0.08, Down: 0.92, MinutesLeft: 3, Valid: true}))
}

func TestSignal_Placeable(t *testing.T) {
	assert.True(t, SignalGood.Placeable())
	assert.False(t, SignalBad.Placeable())
	// UNKNOWN descalifica igual que BAD
	assert.False(t, SignalUnknown.Placeable())
}

func TestIsDanger(t *testing.T) {
	p := testSignalParams()

	assert.True(t, p.IsDanger(0.15))
	assert.True(t, p.IsDanger(0.05))
	assert.False(t, p.IsDanger(0.16))
}

func TestIsDanger_DisabledThreshold(t *testing.T) {
	p := testSignalParams()
	p.DangerPrice = 0

	// Umbral a cero: un precio de mercado nunca llega (mínimo 0.01)
	assert.False(t, p.IsDanger(0.01))
}
