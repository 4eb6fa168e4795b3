package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentPeriod_FloorsToQuarter(t *testing.T) {
	// 10:07 cae en el período 10:00–10:15
	now := time.Date(2026, 3, 2, 10, 7, 33, 0, time.UTC)
	p := CurrentPeriod(now, "btc", 15*time.Minute, time.UTC)

	assert.Equal(t, 10, p.Start.Hour())
	assert.Equal(t, 0, p.Start.Minute())
	assert.Equal(t, 0, p.Start.Second())
}

func TestCurrentPeriod_ExactBoundary(t *testing.T) {
	// 10:15:00.000 abre el período 10:15, no cierra el anterior
	now := time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)
	p := CurrentPeriod(now, "btc", 15*time.Minute, time.UTC)

	assert.Equal(t, 15, p.Start.Minute())
	assert.True(t, p.Started(now))
	assert.False(t, p.Ended(now))
}

func TestCurrentPeriod_LastQuarter(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 59, 59, 0, time.UTC)
	p := CurrentPeriod(now, "eth", 15*time.Minute, time.UTC)

	assert.Equal(t, 45, p.Start.Minute())
	assert.Equal(t, 11, p.End().Hour())
	assert.Equal(t, 0, p.End().Minute())
}

func TestCurrentPeriod_HourlyLength(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 42, 0, 0, time.UTC)
	p := CurrentPeriod(now, "btc", time.Hour, time.UTC)

	assert.Equal(t, 10, p.Start.Hour())
	assert.Equal(t, 0, p.Start.Minute())
	assert.Equal(t, 11, p.End().Hour())
}

func TestPeriod_NextIsContiguous(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 7, 0, 0, time.UTC)
	p := CurrentPeriod(now, "btc", 15*time.Minute, time.UTC)
	next := p.Next()

	assert.True(t, next.Start.Equal(p.End()))
	assert.Equal(t, p.Asset, next.Asset)
	assert.Equal(t, p.Length, next.Length)
}

func TestPeriod_MinutesRemaining(t *testing.T) {
	p := Period{Asset: "btc", Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), Length: 15 * time.Minute}

	// 10:12:30 → quedan 2m30s → 2 minutos enteros
	assert.Equal(t, 2, p.MinutesRemaining(time.Date(2026, 3, 2, 10, 12, 30, 0, time.UTC)))
	// justo en el inicio → 15
	assert.Equal(t, 15, p.MinutesRemaining(p.Start))
	// pasado el fin → nunca negativo
	assert.Equal(t, 0, p.MinutesRemaining(time.Date(2026, 3, 2, 10, 20, 0, 0, time.UTC)))
}

func TestPeriod_MinutesUntilStart(t *testing.T) {
	p := Period{Asset: "btc", Start: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC), Length: 15 * time.Minute}

	assert.Equal(t, 2, p.MinutesUntilStart(time.Date(2026, 3, 2, 10, 12, 30, 0, time.UTC)))
	assert.Equal(t, 0, p.MinutesUntilStart(time.Date(2026, 3, 2, 10, 16, 0, 0, time.UTC)))
}

func TestPeriod_StartedEnded(t *testing.T) {
	p := Period{Asset: "btc", Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), Length: 15 * time.Minute}

	assert.False(t, p.Started(p.Start.Add(-time.Second)))
	assert.True(t, p.Started(p.Start))
	assert.False(t, p.Ended(p.End().Add(-time.Second)))
	assert.True(t, p.Ended(p.End()))
}

func TestPeriod_Slug(t *testing.T) {
	// 2024-01-01 00:00:00 UTC = 1704067200
	p := Period{Asset: "BTC", Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Length: 15 * time.Minute}
	assert.Equal(t, "btc-updown-15m-1704067200", p.Slug())

	hourly := Period{Asset: "eth", Start: p.Start, Length: time.Hour}
	assert.Equal(t, "eth-updown-60m-1704067200", hourly.Slug())
}

func TestCurrentPeriod_DSTSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-03-08: a las 02:00 EST el reloj salta a 03:00 EDT. El período
	// que arranca a la 01:45 termina en la siguiente frontera de pared,
	// que tras el salto es las 03:00.
	start := time.Date(2026, 3, 8, 1, 45, 0, 0, loc)
	p := Period{Asset: "btc", Start: start, Length: 15 * time.Minute}

	assert.Equal(t, 3, p.End().Hour())
	assert.Equal(t, 0, p.End().Minute())

	// Y el período vigente a las 03:07 EDT arranca en las 03:00
	now := time.Date(2026, 3, 8, 3, 7, 0, 0, loc)
	cur := CurrentPeriod(now, "btc", 15*time.Minute, loc)
	assert.Equal(t, 3, cur.Start.Hour())
	assert.Equal(t, 0, cur.Start.Minute())
}
