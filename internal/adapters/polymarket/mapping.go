package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alejandrodnm/updown/internal/domain"
)

// winnerPrice es el precio de outcome a partir del cual Gamma considera
// el outcome resuelto como ganador.
const winnerPrice = 0.999

// mapGammaMarket convierte un gammaMarket DTO a domain.MarketDescriptor.
// Gamma serializa tokens, outcomes y precios como strings JSON anidados;
// el orden de los tres arrays es el mismo.
func mapGammaMarket(gm gammaMarket) (domain.MarketDescriptor, error) {
	tokens, err := parseNestedArray(gm.ClobTokenIDs)
	if err != nil {
		return domain.MarketDescriptor{}, fmt.Errorf("clobTokenIds: %w", err)
	}
	outcomes, err := parseNestedArray(gm.Outcomes)
	if err != nil {
		return domain.MarketDescriptor{}, fmt.Errorf("outcomes: %w", err)
	}
	if len(tokens) != 2 || len(outcomes) != 2 {
		return domain.MarketDescriptor{}, fmt.Errorf("market %s: expected 2 outcomes, got %d", gm.Slug, len(outcomes))
	}

	m := domain.MarketDescriptor{
		Slug:        gm.Slug,
		ConditionID: gm.ConditionID,
		Active:      gm.Active,
		Closed:      gm.Closed,
	}

	for i, outcome := range outcomes {
		switch strings.ToLower(outcome) {
		case "up", "yes":
			m.UpTokenID = tokens[i]
		case "down", "no":
			m.DownTokenID = tokens[i]
		default:
			return domain.MarketDescriptor{}, fmt.Errorf("market %s: unexpected outcome %q", gm.Slug, outcome)
		}
	}
	if m.UpTokenID == "" || m.DownTokenID == "" {
		return domain.MarketDescriptor{}, fmt.Errorf("market %s: missing up/down token", gm.Slug)
	}

	if gm.Closed {
		if winner, ok := resolveWinner(gm.OutcomePrices, outcomes); ok {
			m.Winner = &winner
		}
	}

	return m, nil
}

// resolveWinner determina el lado ganador a partir de los precios finales.
// Un mercado cerrado sin precio ≥ winnerPrice aún no tiene resolución firme.
func resolveWinner(outcomePrices string, outcomes []string) (domain.Side, bool) {
	prices, err := parseNestedArray(outcomePrices)
	if err != nil || len(prices) != len(outcomes) {
		return "", false
	}
	for i, raw := range prices {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p < winnerPrice {
			continue
		}
		switch strings.ToLower(outcomes[i]) {
		case "up", "yes":
			return domain.SideUp, true
		case "down", "no":
			return domain.SideDown, true
		}
	}
	return "", false
}

// parseNestedArray decodifica un array JSON serializado como string,
// p.ej. `["Up","Down"]`.
func parseNestedArray(raw string) ([]string, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty nested array")
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse nested array: %w", err)
	}
	return out, nil
}

// mapOrderStatus traduce el estado del CLOB al estado de dominio.
func mapOrderStatus(status string, matched, original float64) domain.OrderStatus {
	switch strings.ToUpper(status) {
	case "LIVE", "DELAYED":
		if matched > 0 && matched < original {
			return domain.OrderStatusPartial
		}
		return domain.OrderStatusPending
	case "MATCHED":
		return domain.OrderStatusFilled
	case "CANCELED", "CANCELLED":
		// Una orden cancelada con matches parciales conserva lo ejecutado.
		if matched > 0 {
			return domain.OrderStatusPartial
		}
		return domain.OrderStatusCancelled
	case "EXPIRED":
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatusPending
	}
}
