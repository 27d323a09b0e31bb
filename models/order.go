package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order statuses. "Paid" is the materialization starting point; the later
// transitions belong to the admin fulfillment workflow.
const (
	OrderStatusPaid       = "Paid"
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"
)

// ValidOrderStatuses is the closed set accepted by the admin status update.
var ValidOrderStatuses = []string{
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"product"`
	Quantity  int64              `bson:"qty" json:"qty"`
	// UnitPrice is the price actually charged for one unit, derived from the
	// processor-reported line amount, not the catalog price.
	UnitPrice float64 `bson:"unit_price" json:"unit_price"`
}

type ShippingAddress struct {
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
}

// OrderMetadata threads the checkout session back to the order. Both fields
// carry unique indexes; SessionID is the storage-level idempotency key.
type OrderMetadata struct {
	SessionID string `bson:"session_id" json:"session_id"`
	// OrderRef is omitted when empty so the sparse unique index skips orders
	// whose checkout carried no correlation ref.
	OrderRef string `bson:"order_id,omitempty" json:"order_id"`
}

type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Items           []OrderItem         `bson:"orderItems" json:"order_items"`
	ShippingAddress ShippingAddress     `bson:"shippingAddress" json:"shipping_address"`
	PaymentMethod   string              `bson:"paymentMethod" json:"payment_method"`
	TotalAmount     float64             `bson:"total_amount" json:"total_amount"`
	DatePlaced      time.Time           `bson:"datePlaced" json:"date_placed"`
	Status          string              `bson:"status" json:"status"`
	Metadata        OrderMetadata       `bson:"metadata" json:"metadata"`
}

// OrderItemView is an order line with catalog display fields resolved, as
// returned by the order lookup endpoints.
type OrderItemView struct {
	OrderItem
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// OrderView is an Order with resolved display fields.
type OrderView struct {
	Order
	ItemViews []OrderItemView `json:"items"`
}

// UserOrderStats aggregates a buyer's order history.
type UserOrderStats struct {
	TotalOrders       int64   `bson:"totalOrders" json:"total_orders"`
	TotalSpent        float64 `bson:"totalSpent" json:"total_spent"`
	AverageOrderValue float64 `bson:"averageOrderValue" json:"average_order_value"`
}
