package polymarket

// trading.go — Real order execution via Polymarket CLOB API.
//
// Implements ports.OrderExecutor using AuthClient for L1/L2 auth. Entry
// buys are GTC limit orders; risk-management sells are FAK marketable
// limits priced to cross the book.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

// Discount aplicado bajo el mejor bid para que un sell FAK cruce el book
// aunque el primer nivel se mueva entre la consulta y la orden.
const marketSellSlippage = 0.02

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth *AuthClient
}

// NewTradingClient creates a TradingClient over an authenticated client.
func NewTradingClient(auth *AuthClient) *TradingClient {
	return &TradingClient{auth: auth}
}

// PlaceLimitBuy signs and submits a GTC limit buy to the CLOB.
func (tc *TradingClient) PlaceLimitBuy(ctx context.Context, intent domain.OrderIntent) (domain.OrderHandle, error) {
	resp, err := tc.submitOrder(ctx, intent.TokenID, gomodel.BUY, intent.Price, intent.Size, "GTC")
	if err != nil {
		return domain.OrderHandle{}, fmt.Errorf("trading.PlaceLimitBuy: %w", err)
	}

	handle := domain.OrderHandle{
		ID:         uuid.New().String(),
		ExternalID: resp.OrderID,
		Intent:     intent,
		Status:     domain.OrderStatusPending,
		PlacedAt:   time.Now().UTC(),
	}
	if resp.Status == "matched" {
		handle.Status = domain.OrderStatusFilled
		handle.FilledSize = intent.Size
	}
	return handle, nil
}

// QueryOrder refreshes an order's status from the CLOB. Returns
// ports.ErrNotFound when the order is no longer known to the book; the
// engine decides what a vanished order means.
func (tc *TradingClient) QueryOrder(ctx context.Context, handle domain.OrderHandle) (domain.OrderHandle, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return handle, fmt.Errorf("trading.QueryOrder: creds: %w", err)
	}

	var o clobOpenOrder
	if err := tc.auth.doL2(ctx, http.MethodGet, "/data/order/"+handle.ExternalID, nil, &o); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == 404 {
			return handle, ports.ErrNotFound
		}
		return handle, fmt.Errorf("trading.QueryOrder %s: %w", handle.ExternalID, err)
	}

	matched := parseUnits(o.SizeMatched)
	original := parseUnits(o.OriginalSize)
	if original <= 0 {
		original = handle.Intent.Size
	}

	handle.FilledSize = matched
	handle.Status = mapOrderStatus(o.Status, matched, original)
	if matched >= original && matched > 0 {
		handle.Status = domain.OrderStatusFilled
	}
	return handle, nil
}

// CancelOrder cancels a single order. A cancel for an order that already
// left the book is treated as success.
func (tc *TradingClient) CancelOrder(ctx context.Context, handle domain.OrderHandle) error {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("trading.CancelOrder: creds: %w", err)
	}

	body := map[string]string{"orderID": handle.ExternalID}
	var resp clobCancelResponse
	if err := tc.auth.doL2(ctx, http.MethodDelete, "/order", body, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == 404 {
			return nil
		}
		return fmt.Errorf("trading.CancelOrder %s: %w", handle.ExternalID, err)
	}
	return nil
}

// MarketSell dumps shares at whatever the book pays: a FAK limit priced
// under the current best bid. Returns the realized price per share.
func (tc *TradingClient) MarketSell(ctx context.Context, tokenID string, shares float64) (float64, error) {
	bid, err := tc.auth.SellPrice(ctx, tokenID)
	if err != nil {
		return 0, fmt.Errorf("trading.MarketSell: %w", err)
	}
	limit := math.Max(0.01, roundPrice(bid-marketSellSlippage))

	resp, err := tc.submitOrder(ctx, tokenID, gomodel.SELL, limit, shares, "FAK")
	if err != nil {
		return 0, fmt.Errorf("trading.MarketSell: %w", err)
	}

	// En un sell el maker entrega tokens y recibe USDC.
	sold := parseMicroUnits(resp.MakingAmt)
	received := parseMicroUnits(resp.TakingAmt)
	if sold <= 0 {
		return 0, ports.Transient("trading.MarketSell",
			fmt.Errorf("token %s: nothing matched", tokenID))
	}
	return received / sold, nil
}

// submitOrder builds, signs and posts one order. A venue rejection comes
// back as *ports.RejectedError.
func (tc *TradingClient) submitOrder(ctx context.Context, tokenID string, side gomodel.Side, price, size float64, orderType string) (*clobOrderResponse, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return nil, fmt.Errorf("creds: %w", err)
	}

	signed, err := tc.auth.buildSignedOrder(tokenID, side, price, size, false)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	sideStr := "BUY"
	if side == gomodel.SELL {
		sideStr = "SELL"
	}
	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       tokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          sideStr,
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: orderType,
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, &ports.RejectedError{Reason: se.Body}
		}
		return nil, fmt.Errorf("post: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return nil, &ports.RejectedError{OrderID: resp.OrderID, Reason: resp.ErrorMsg}
	}
	return &resp, nil
}

// roundPrice rounds to the 0.01 tick.
func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}

// parseMicroUnits converts a micro-unit amount string (e.g. "1000000")
// to float units. POST /order amounts use 6 decimals for both USDC and
// shares.
func parseMicroUnits(s string) float64 {
	if s == "" {
		return 0
	}
	n := new(big.Int)
	if _, ok := n.SetString(s, 10); !ok {
		return 0
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f / 1_000_000
}

// parseUnits parses a plain decimal string. GET /data/order sizes come
// in share units ("20" or "20.5"), not micro-units.
func parseUnits(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
