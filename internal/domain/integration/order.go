package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Marketplace Order Model
// ---------------------------------------------------------------------------

// OrderStatus represents the marketplace-side status of an order.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// IsValid checks if the order status is valid.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation.
func (s OrderStatus) String() string {
	return string(s)
}

// MarketplaceOrderItem is one line item of a marketplace order. UnitPrice is
// expressed in the major currency unit as reported by the marketplace.
type MarketplaceOrderItem struct {
	ExternalProductID string
	Quantity          int
	UnitPrice         decimal.Decimal
}

// MarketplaceOrder is an order as fetched from the marketplace API.
type MarketplaceOrder struct {
	ExternalOrderID string
	Status          OrderStatus
	Currency        string
	Items           []MarketplaceOrderItem
	CreatedAt       time.Time
}

// ---------------------------------------------------------------------------
// Inventory Order Draft
// ---------------------------------------------------------------------------

// OrderDraftLine is one translated line of an inventory order. UnitPriceMinor
// is the price in the minor currency unit the inventory system expects.
type OrderDraftLine struct {
	InternalProductID string
	Quantity          int
	UnitPriceMinor    int64
}

// OrderDraft is the payload used to create an order in the inventory system.
// It carries only the line items that could be translated; the ordered
// quantity of each line is reserved on creation.
type OrderDraft struct {
	ExternalOrderID string
	Currency        string
	Lines           []OrderDraftLine
	OrderedAt       time.Time
}

// minorUnitsPerMajor is the conversion factor between the major currency
// unit used by the marketplace and the minor unit used by inventory.
var minorUnitsPerMajor = decimal.NewFromInt(100)

// ToMinorUnit converts a major-unit price to the minor unit. The conversion
// must be exact; a price with sub-minor-unit precision is rejected.
func ToMinorUnit(price decimal.Decimal) (int64, error) {
	minor := price.Mul(minorUnitsPerMajor)
	if !minor.IsInteger() {
		return 0, ErrPriceNotRepresentable
	}
	return minor.IntPart(), nil
}
