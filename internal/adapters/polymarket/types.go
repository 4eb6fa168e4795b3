package polymarket

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es un mercado de Gamma. Gamma serializa los arrays de
// tokens, outcomes y precios como strings JSON anidados.
type gammaMarket struct {
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	Slug          string `json:"slug"`
	EndDateISO    string `json:"endDateIso"`
	ClobTokenIDs  string `json:"clobTokenIds"`  // p.ej. `["123","456"]`
	Outcomes      string `json:"outcomes"`      // p.ej. `["Up","Down"]`
	OutcomePrices string `json:"outcomePrices"` // p.ej. `["0.52","0.48"]`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
}

// --- CLOB API ---

// priceResponse es la respuesta de GET /price.
type priceResponse struct {
	Price string `json:"price"`
}

// clobOrderResponse es la respuesta de POST /order.
type clobOrderResponse struct {
	Success   bool   `json:"success"`
	ErrorMsg  string `json:"errorMsg"`
	OrderID   string `json:"orderID"`
	Status    string `json:"status"`
	TakingAmt string `json:"takingAmount"`
	MakingAmt string `json:"makingAmount"`
}

// clobOpenOrder es una orden en GET /data/order/{id}.
type clobOpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
}

// clobCancelResponse es la respuesta de DELETE /order.
type clobCancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// --- Data API ---

// dataPosition es una posición de GET /positions del data-api.
type dataPosition struct {
	ConditionID string  `json:"conditionId"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Size        float64 `json:"size"`
	CurValue    float64 `json:"currentValue"`
	Redeemable  bool    `json:"redeemable"`
}
