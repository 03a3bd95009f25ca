package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent is an order.created message from the storefront. It registers
// the expected amount before the shopper reaches the gateway.
type OrderEvent struct {
	Type        string          `json:"type"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Customer    Customer        `json:"customer"`
	ItemCount   int             `json:"item_count"`
	Timestamp   time.Time       `json:"timestamp"`
}
