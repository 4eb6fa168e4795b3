package notify_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/updown/internal/adapters/notify"
	"github.com/alejandrodnm/updown/internal/domain"
)

func sampleInput() notify.StatusInput {
	return notify.StatusInput{
		Assets: []notify.AssetStatus{
			{
				Asset: "btc", Slug: "btc-updown-15m-1772446500", State: "PLACED",
				UpPrice: 0.52, DownPrice: 0.48, Signal: "GOOD", MinutesLeft: 12,
			},
			{
				Asset: "eth", State: "IDLE",
			},
		},
		Totals: domain.ProfitTotals{
			Trades: 4, Redemptions: 1,
			Spent: 11.0, SellRevenue: 0.15, Redeemed: 10.0,
		},
		PendingReds: 2,
	}
}

func TestConsole_CompactStatus(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	c.PrintStatus(sampleInput())

	out := buf.String()
	assert.Contains(t, out, "btc:PLACED(U0.52/D0.48 GOOD 12m)")
	assert.Contains(t, out, "eth:IDLE")
	assert.Contains(t, out, "pend:2")
	// net = 10.00 + 0.15 - 11.00 = -0.85
	assert.Contains(t, out, "net:$-0.85")
	// modo compacto: una sola línea
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestConsole_CompactIdleHasNoPrices(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	c.PrintStatus(notify.StatusInput{Assets: []notify.AssetStatus{{Asset: "eth", State: "IDLE"}}})

	assert.NotContains(t, buf.String(), "(")
}

func TestConsole_TableStatus(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	c.PrintStatus(sampleInput())

	out := buf.String()
	assert.Contains(t, out, "btc")
	assert.Contains(t, out, "btc-updown-15m-1772446500")
	assert.Contains(t, out, "GOOD")
	assert.Contains(t, out, "pending redemptions: 2")
	assert.Contains(t, out, "net $-0.85")
}

func TestConsole_Banner(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	c.PrintBanner([]string{"btc", "eth"}, 15, 0.55, 5, true)

	out := buf.String()
	assert.Contains(t, out, "SIMULATION")
	assert.Contains(t, out, "btc,eth")
	assert.Contains(t, out, "period: 15m")
}

func TestConsole_Redemption(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	c.PrintRedemption(domain.RedemptionRecord{
		Asset:       "btc",
		PeriodStart: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		Winner:      domain.SideUp,
		Payout:      5.0,
		CostBasis:   2.75,
		Simulated:   true,
	})

	out := buf.String()
	assert.Contains(t, out, "btc 10:15 resolved Up [SIM]")
	assert.Contains(t, out, "pnl $+2.25")
}
