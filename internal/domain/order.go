package domain

import "time"

// Side is one of the two binary outcomes of a period market.
type Side string

const (
	SideUp   Side = "Up"
	SideDown Side = "Down"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// OrderStatus is the lifecycle of an order on the venue.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// OrderIntent is an immutable request to buy one side of a period market.
type OrderIntent struct {
	Asset   string
	Period  Period
	Side    Side
	TokenID string
	Price   float64
	Size    float64 // shares
}

// OrderHandle tracks a placed order. Status is owned by the execution
// collaborator; the orchestrator polls it and only issues cancels.
type OrderHandle struct {
	ID         string // local UUID
	ExternalID string // venue order ID ("SIM-…" in simulation)
	Intent     OrderIntent
	Status     OrderStatus
	FilledSize float64
	PlacedAt   time.Time
}

// Filled reports whether the order is fully filled.
func (h OrderHandle) Filled() bool {
	return h.Status == OrderStatusFilled
}

// Dead reports whether the order can no longer fill. A dead order counts
// as "never filled" for risk decisions.
func (h OrderHandle) Dead() bool {
	switch h.Status {
	case OrderStatusRejected, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}
