package notify

// console.go — display de estado del bot en consola.
//
// Dos modos: compacto (una línea por ciclo de status, pensado para
// logs) y tabla (tablewriter, pensado para terminal interactivo).

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/updown/internal/domain"
)

// AssetStatus es el snapshot de un orquestador para el display.
type AssetStatus struct {
	Asset       string
	Slug        string
	State       string
	UpPrice     float64
	DownPrice   float64
	Signal      string
	MinutesLeft int
	UpFilled    bool
	DownFilled  bool
	Simulated   bool
}

// StatusInput agrupa todo lo que PrintStatus necesita.
type StatusInput struct {
	Assets      []AssetStatus
	Totals      domain.ProfitTotals
	PendingReds int
}

// Console imprime el estado del bot.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un display que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un display para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// PrintBanner imprime la configuración efectiva al arrancar.
func (c *Console) PrintBanner(assets []string, periodMins int, priceLimit, shares float64, simulation bool) {
	mode := "LIVE"
	if simulation {
		mode = "SIMULATION"
	}
	fmt.Fprintf(c.out, "\n=== updown [%s] ===\n", mode)
	fmt.Fprintf(c.out, "  assets: %s | period: %dm | limit: %.2f | shares: %.1f\n\n",
		strings.Join(assets, ","), periodMins, priceLimit, shares)
}

// PrintStatus imprime el estado actual en el modo configurado.
func (c *Console) PrintStatus(in StatusInput) {
	if c.table {
		c.printTable(in)
		return
	}
	c.printCompact(in)
}

// printCompact imprime una línea por ciclo de status.
func (c *Console) printCompact(in StatusInput) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", now)
	for _, a := range in.Assets {
		fmt.Fprintf(&sb, " %s:%s", a.Asset, a.State)
		if a.UpPrice > 0 || a.DownPrice > 0 {
			fmt.Fprintf(&sb, "(U%.2f/D%.2f", a.UpPrice, a.DownPrice)
			if a.Signal != "" {
				fmt.Fprintf(&sb, " %s", a.Signal)
			}
			fmt.Fprintf(&sb, " %dm)", a.MinutesLeft)
		}
	}
	fmt.Fprintf(&sb, " | pend:%d | net:$%.2f", in.PendingReds, in.Totals.Net())

	fmt.Fprintln(c.out, sb.String())
}

// printTable imprime la tabla completa con el PnL acumulado.
func (c *Console) printTable(in StatusInput) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] %d assets — pending redemptions: %d\n",
		now, len(in.Assets), in.PendingReds)

	table := tablewriter.NewWriter(c.out)
	table.Header("Asset", "Market", "State", "Up", "Down", "Signal", "Left", "Filled")

	for _, a := range in.Assets {
		filled := "-"
		switch {
		case a.UpFilled && a.DownFilled:
			filled = "U+D"
		case a.UpFilled:
			filled = "U"
		case a.DownFilled:
			filled = "D"
		}

		table.Append(
			a.Asset,
			truncate(a.Slug, 30),
			a.State,
			priceLabel(a.UpPrice),
			priceLabel(a.DownPrice),
			a.Signal,
			fmt.Sprintf("%dm", a.MinutesLeft),
			filled,
		)
	}
	table.Render()

	t := in.Totals
	fmt.Fprintf(c.out, "  trades:%d redeemed:%d | spent $%.2f | sells $%.2f | payouts $%.2f | net $%.2f\n\n",
		t.Trades, t.Redemptions, t.Spent, t.SellRevenue, t.Redeemed, t.Net())
}

// PrintRedemption imprime el banner de una posición liquidada.
func (c *Console) PrintRedemption(r domain.RedemptionRecord) {
	tag := ""
	if r.Simulated {
		tag = " [SIM]"
	}
	fmt.Fprintf(c.out, ">>> %s %s resolved %s%s — payout $%.2f, cost $%.2f, pnl $%+.2f\n",
		r.Asset, r.PeriodStart.Format("15:04"), r.Winner, tag,
		r.Payout, r.CostBasis, r.Profit())
}

// --- helpers ---

func priceLabel(p float64) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
