package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/config"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
	"payfast-gateway/internal/payfast"
	"payfast-gateway/internal/storage"
	"payfast-gateway/internal/utils"
)

// ErrLiveMode is returned by sandbox-only operations in live mode.
var ErrLiveMode = errors.New("not available in live mode")

type PaymentService struct {
	store     storage.Store
	initiator *payfast.Initiator
	cfg       config.PayFastConfig
	log       *logger.Logger
}

func NewPaymentService(store storage.Store, initiator *payfast.Initiator, cfg config.PayFastConfig, log *logger.Logger) *PaymentService {
	return &PaymentService{
		store:     store,
		initiator: initiator,
		cfg:       cfg,
		log:       log,
	}
}

// Initiate builds the signed redirect for req and records a pending ledger
// row. A ledger failure is logged; the shopper still gets the redirect.
func (s *PaymentService) Initiate(ctx context.Context, req *models.PaymentRequest) (*payfast.Redirect, error) {
	redirect, err := s.initiator.Build(req)
	if err != nil {
		s.log.LogPayment("INIT_REJECTED", "new", err.Error())
		return nil, err
	}

	s.log.LogPayment("INIT", redirect.Reference,
		fmt.Sprintf("Redirect built for R%s in %s mode", redirect.Amount, redirect.Environment))

	amount, _ := decimal.NewFromString(redirect.Amount)
	payment := &models.Payment{
		Reference:   redirect.Reference,
		Status:      models.StatusPending,
		Amount:      amount,
		Description: req.Description,
		Customer:    req.Customer(),
		ItemCount:   len(req.Items),
		Environment: redirect.Environment,
	}

	if err := s.store.SavePayment(ctx, payment); err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to record pending payment %s: %v", payment.Reference, err))
	} else {
		s.log.LogDatabase("SAVE", "payments", fmt.Sprintf("Pending payment %s saved", payment.Reference))
	}

	return redirect, nil
}

// RegisterOrder records a pending ledger row for an order announced by the
// storefront, so notifications can be reconciled against its amount. Invalid
// events are logged and skipped; only ledger failures are returned.
func (s *PaymentService) RegisterOrder(ctx context.Context, event *models.OrderEvent) error {
	amount := event.Amount.Round(2)
	if event.Reference == "" || !amount.IsPositive() {
		s.log.Warn("ORDER", fmt.Sprintf("Skipping order event %q with amount %s", event.Reference, event.Amount))
		return nil
	}

	payment := &models.Payment{
		Reference:   event.Reference,
		Status:      models.StatusPending,
		Amount:      amount,
		Description: event.Description,
		Customer:    event.Customer,
		ItemCount:   event.ItemCount,
		Environment: s.cfg.Environment(),
	}
	if err := s.store.SavePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to register order %s: %w", event.Reference, err)
	}

	s.log.LogPayment("ORDER_REGISTERED", event.Reference, fmt.Sprintf("Expecting R%s", amount.StringFixed(2)))
	return nil
}

// InitiateTest starts a R5.00 sandbox payment with a generated reference.
func (s *PaymentService) InitiateTest(ctx context.Context) (*payfast.Redirect, error) {
	if s.cfg.LiveMode {
		return nil, apperr.Validation("mode", ErrLiveMode.Error())
	}

	req := &models.PaymentRequest{
		Amount:        decimal.NewFromInt(5),
		Description:   "Sandbox test payment",
		CustomerName:  "Test User",
		CustomerEmail: "test@example.com",
		CustomerPhone: "+27123456789",
		Reference:     utils.GenerateReference(s.cfg.ReferencePrefix),
		Items: []models.Item{
			{Name: "Test Item", Quantity: 1, Price: decimal.NewFromInt(5)},
		},
	}
	return s.Initiate(ctx, req)
}

// RecentNotifications returns the latest notification log entries for reference.
func (s *PaymentService) RecentNotifications(ctx context.Context, reference string, limit int) ([]*models.NotificationRecord, error) {
	if reference == "" {
		return nil, apperr.Validation("reference", "is required")
	}
	records, err := s.store.ListNotifications(ctx, reference, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return records, nil
}
