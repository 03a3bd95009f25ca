package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
	"payfast-gateway/internal/storage"
)

type CustomerView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PaymentView is the status answer shown to the storefront.
type PaymentView struct {
	ID        string               `json:"id"`
	Reference string               `json:"reference"`
	Status    models.PaymentStatus `json:"status"`
	Amount    decimal.Decimal      `json:"amount"`
	Customer  CustomerView         `json:"customer"`
	CreatedAt time.Time            `json:"createdAt"`
}

type StatusResult struct {
	Valid       bool         `json:"valid"`
	Provisional bool         `json:"provisional"`
	Payment     *PaymentView `json:"payment"`
}

// StatusService answers "is this payment done?" without ever writing: the
// ledger is authoritative once the callback verifier has recorded a terminal
// status, otherwise the gateway is asked and the answer is provisional.
type StatusService struct {
	store    storage.Store
	resolver *StatusResolver
	log      *logger.Logger
	now      func() time.Time
}

func NewStatusService(store storage.Store, resolver *StatusResolver, log *logger.Logger) *StatusService {
	return &StatusService{store: store, resolver: resolver, log: log, now: time.Now}
}

func (s *StatusService) Verify(ctx context.Context, paymentID, reference string) (*StatusResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	reference = strings.TrimSpace(reference)
	if paymentID == "" && reference == "" {
		return nil, apperr.Validation("payment_id", "payment_id or reference is required")
	}

	payment, err := s.lookup(ctx, paymentID, reference)
	if err != nil {
		return nil, err
	}

	if payment != nil && payment.Status.IsTerminal() {
		s.log.LogPayment("STATUS", payment.Reference, fmt.Sprintf("Recorded status %s", payment.Status))
		return &StatusResult{
			Valid:   payment.Status == models.StatusPaid,
			Payment: viewOf(payment, paymentID),
		}, nil
	}

	if reference == "" && payment != nil {
		reference = payment.Reference
	}

	if _, err := s.resolver.Resolve(ctx, paymentID, reference); err != nil {
		return nil, err
	}

	if payment == nil {
		payment = &models.Payment{Reference: reference, CreatedAt: s.now().UTC()}
	}
	payment.Status = models.StatusPaid

	s.log.LogPayment("STATUS", payment.Reference, "Gateway confirmed payment, awaiting notification")
	return &StatusResult{
		Valid:       true,
		Provisional: true,
		Payment:     viewOf(payment, paymentID),
	}, nil
}

// lookup returns nil without error when the ledger has no row.
func (s *StatusService) lookup(ctx context.Context, paymentID, reference string) (*models.Payment, error) {
	if paymentID != "" {
		payment, err := s.store.GetPaymentByGatewayID(ctx, paymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, apperr.ErrPaymentNotFound) {
			return nil, fmt.Errorf("failed to look up payment: %w", err)
		}
	}

	if reference != "" {
		payment, err := s.store.GetPayment(ctx, reference)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, apperr.ErrPaymentNotFound) {
			return nil, fmt.Errorf("failed to look up payment: %w", err)
		}
	}
	return nil, nil
}

func viewOf(p *models.Payment, paymentID string) *PaymentView {
	id := p.GatewayPaymentID
	if id == "" {
		id = paymentID
	}
	return &PaymentView{
		ID:        id,
		Reference: p.Reference,
		Status:    p.Status,
		Amount:    p.Amount,
		Customer:  CustomerView{Name: p.Customer.Name, Email: p.Customer.Email},
		CreatedAt: p.CreatedAt,
	}
}
