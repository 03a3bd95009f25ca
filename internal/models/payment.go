package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPaid      PaymentStatus = "paid"
	StatusFailed    PaymentStatus = "failed"
	StatusCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether the status was set by a confirmed gateway notification.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCancelled
}

// Item is a cart line. It only enriches gateway metadata.
type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity" binding:"gte=0"`
	Price    decimal.Decimal `json:"price"`
	Size     string          `json:"size,omitempty"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// PaymentRequest is the checkout payload posted by the storefront.
type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone,omitempty"`
	Reference     string          `json:"reference"`
	Items         []Item          `json:"items" binding:"dive"`
}

func (r *PaymentRequest) Customer() Customer {
	return Customer{
		Name:  strings.TrimSpace(r.CustomerName),
		Email: strings.TrimSpace(r.CustomerEmail),
		Phone: strings.TrimSpace(r.CustomerPhone),
	}
}

// Payment is the ledger row for one checkout reference.
type Payment struct {
	Reference        string          `json:"reference"`
	GatewayPaymentID string          `json:"payment_id,omitempty"`
	Status           PaymentStatus   `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	Customer         Customer        `json:"customer"`
	ItemCount        int             `json:"item_count"`
	Environment      string          `json:"environment"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// StatusUpdate is one effective transition requested by a confirmed notification.
type StatusUpdate struct {
	Reference        string
	GatewayPaymentID string
	Status           PaymentStatus
	AmountGross      decimal.Decimal
	CustomerEmail    string
}

type PaymentEvent struct {
	Type      string          `json:"type"`
	Reference string          `json:"reference"`
	PaymentID string          `json:"payment_id"`
	Status    PaymentStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// NotificationRecord is the audit row written for every received IPN.
type NotificationRecord struct {
	ID         string    `json:"id"`
	PaymentID  string    `json:"payment_id"`
	Reference  string    `json:"reference"`
	Status     string    `json:"status"`
	Outcome    string    `json:"outcome"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
