package models

import "time"

// CheckoutLineItem is one purchased line as reported by the payment
// processor. AmountTotal is the total charged for the line, in minor
// currency units (cents).
type CheckoutLineItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	AmountTotal int64  `json:"amount_total"`
}

// CheckoutEvent is the verified, typed form of a completed-checkout webhook
// delivery. It is read-only once built by the event router.
type CheckoutEvent struct {
	SessionID     string             `json:"session_id"`
	OrderRef      string             `json:"order_ref"`
	PaymentStatus string             `json:"payment_status"`
	BuyerEmail    string             `json:"buyer_email"`
	BuyerName     string             `json:"buyer_name,omitempty"`
	PaymentMethod string             `json:"payment_method"`
	LineItems     []CheckoutLineItem `json:"line_items"`
	Shipping      *ShippingAddress   `json:"shipping,omitempty"`
	// Billing backs the shipping address when the processor collected no
	// shipping details.
	Billing *ShippingAddress `json:"billing,omitempty"`
}

// PlacedItem is a display-ready order line carried on OrderPlacedEvent.
type PlacedItem struct {
	Name     string  `json:"name"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderPlacedEvent is emitted once per materialized order. It feeds the
// notification dispatcher and the best-effort SNS fan-out.
type OrderPlacedEvent struct {
	Type        string           `json:"type"`
	OrderID     string           `json:"order_id"`
	OrderRef    string           `json:"order_ref"`
	SessionID   string           `json:"session_id"`
	BuyerEmail  string           `json:"buyer_email"`
	BuyerName   string           `json:"buyer_name,omitempty"`
	TotalAmount float64          `json:"total_amount"`
	Items       []PlacedItem     `json:"items"`
	Shipping    *ShippingAddress `json:"shipping,omitempty"`
	PlacedAt    time.Time        `json:"placed_at"`
}

const EventTypeOrderPlaced = "order_placed"
