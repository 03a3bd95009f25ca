package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/config"
	"payfast-gateway/internal/kafka"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
	"payfast-gateway/internal/payfast"
	"payfast-gateway/internal/storage"
)

// Audit outcomes besides the error kinds.
const (
	OutcomeHandled   = "handled"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

var amountTolerance = decimal.RequireFromString("0.01")

// ClaimStore remembers which (payment id, gateway status) pairs have been
// committed to the ledger, shared across instances.
type ClaimStore interface {
	Seen(ctx context.Context, paymentID, status string) (bool, error)
	Mark(ctx context.Context, paymentID, status string) error
}

type EventPublisher interface {
	PublishPaymentEvent(event *models.PaymentEvent) error
}

type NotificationResult struct {
	PaymentID string               `json:"paymentId"`
	Reference string               `json:"reference"`
	Status    models.PaymentStatus `json:"status,omitempty"`
	Method    string               `json:"method,omitempty"`
	Duplicate bool                 `json:"duplicate"`
	Ignored   bool                 `json:"ignored,omitempty"`
}

// NotificationService is the callback verifier: the only path that moves a
// payment into a terminal status.
type NotificationService struct {
	store     storage.Store
	claims    ClaimStore
	publisher EventPublisher
	resolver  *StatusResolver
	cfg       config.PayFastConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewNotificationService(
	store storage.Store,
	claims ClaimStore,
	publisher EventPublisher,
	resolver *StatusResolver,
	cfg config.PayFastConfig,
	log *logger.Logger,
) *NotificationService {
	return &NotificationService{
		store:     store,
		claims:    claims,
		publisher: publisher,
		resolver:  resolver,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// GatewayStatus maps a gateway payment_status to a ledger status.
func GatewayStatus(status string) (models.PaymentStatus, bool) {
	switch status {
	case "COMPLETE":
		return models.StatusPaid, true
	case "FAILED":
		return models.StatusFailed, true
	case "CANCELLED":
		return models.StatusCancelled, true
	default:
		return "", false
	}
}

// Handle verifies one notification body and applies it. Every outcome,
// including rejects, is written to the notification log.
func (s *NotificationService) Handle(ctx context.Context, contentType string, body []byte) (*NotificationResult, error) {
	decoded, err := payfast.DecodeNotification(contentType, body)
	if err != nil {
		s.audit(ctx, nil, apperr.Kind(err))
		s.log.LogSecurity("MALFORMED_IPN", err.Error())
		return nil, err
	}

	n, err := payfast.ParseNotification(decoded.Values)
	if err != nil {
		s.audit(ctx, &payfast.Notification{Values: decoded.Values}, apperr.Kind(err))
		s.log.LogSecurity("INCOMPLETE_IPN", err.Error())
		return nil, err
	}

	s.log.LogPayment("IPN_RECEIVED", n.Reference,
		fmt.Sprintf("Notification for payment %s with status %s (%s body)", n.PaymentID, n.Status, decoded.Encoding))

	result, err := s.process(ctx, n)
	if err != nil {
		s.audit(ctx, n, apperr.Kind(err))
		return nil, err
	}

	switch {
	case result.Duplicate:
		s.audit(ctx, n, OutcomeDuplicate)
	case result.Ignored:
		s.audit(ctx, n, OutcomeIgnored)
	default:
		s.audit(ctx, n, OutcomeHandled)
	}
	return result, nil
}

func (s *NotificationService) process(ctx context.Context, n *payfast.Notification) (*NotificationResult, error) {
	if err := s.checkSignature(n); err != nil {
		return nil, err
	}

	result := &NotificationResult{PaymentID: n.PaymentID, Reference: n.Reference}
	status, known := GatewayStatus(n.Status)
	recorded := s.lookupPayment(ctx, n.Reference)

	// A transition already on record is acknowledged without asking the
	// gateway again.
	if known && s.alreadyRecorded(ctx, n, status, recorded) {
		s.log.LogPayment("DUPLICATE", n.Reference, fmt.Sprintf("Payment %s already processed as %s", n.PaymentID, n.Status))
		result.Status = status
		result.Duplicate = true
		return result, nil
	}

	resolution, err := s.resolver.Resolve(ctx, n.PaymentID, n.Reference)
	if err != nil {
		s.log.LogPayment("UNCONFIRMED", n.Reference, fmt.Sprintf("Payment %s not confirmed: %v", n.PaymentID, err))
		return nil, err
	}
	result.Method = resolution.Method

	if !known {
		s.log.Warn("IPN", fmt.Sprintf("Ignoring unknown payment status %q for payment %s", n.Status, n.PaymentID))
		result.Ignored = true
		return result, nil
	}
	result.Status = status

	amount, amountOK := n.Amount()
	expected := s.reconcileAmount(n, recorded, amount, amountOK)
	if !amountOK {
		amount = expected
	}

	applied, err := s.store.UpdatePaymentStatus(ctx, models.StatusUpdate{
		Reference:        n.Reference,
		GatewayPaymentID: n.PaymentID,
		Status:           status,
		AmountGross:      amount,
		CustomerEmail:    n.CustomerEmail,
	})
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to record status %s for %s: %v", status, n.Reference, err))
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	// Marked only after the ledger commit: a crash before this line leaves no
	// marker, and the gateway retry is processed normally.
	if err := s.claims.Mark(ctx, n.PaymentID, n.Status); err != nil {
		s.log.Error("IPN", fmt.Sprintf("Failed to mark payment %s as processed, relying on ledger idempotency: %v", n.PaymentID, err))
	}

	if !applied {
		s.log.LogPayment("DUPLICATE", n.Reference, fmt.Sprintf("Payment already %s", status))
		result.Duplicate = true
		return result, nil
	}

	s.log.LogPayment("STATUS_UPDATED", n.Reference, fmt.Sprintf("Payment %s marked %s via %s", n.PaymentID, status, resolution.Method))
	s.publish(status, n, amount)
	return result, nil
}

// alreadyRecorded reports whether this (payment id, status) transition was
// processed before, by the shared marker or by the ledger row itself.
func (s *NotificationService) alreadyRecorded(ctx context.Context, n *payfast.Notification, status models.PaymentStatus, recorded *models.Payment) bool {
	seen, err := s.claims.Seen(ctx, n.PaymentID, n.Status)
	if err != nil {
		s.log.Warn("IPN", fmt.Sprintf("Marker lookup failed for payment %s, checking ledger: %v", n.PaymentID, err))
	}
	if seen {
		return true
	}

	if recorded == nil || recorded.Status != status {
		return false
	}
	return recorded.GatewayPaymentID == "" || recorded.GatewayPaymentID == n.PaymentID
}

// lookupPayment returns the ledger row for reference, nil when there is none
// or the ledger cannot be read.
func (s *NotificationService) lookupPayment(ctx context.Context, reference string) *models.Payment {
	payment, err := s.store.GetPayment(ctx, reference)
	if err != nil {
		if !errors.Is(err, apperr.ErrPaymentNotFound) {
			s.log.Warn("DATABASE", fmt.Sprintf("Ledger lookup failed for %s: %v", reference, err))
		}
		return nil
	}
	return payment
}

func (s *NotificationService) checkSignature(n *payfast.Notification) error {
	passphrase := s.cfg.Credentials().Passphrase

	if n.Signature == "" || passphrase == "" {
		if s.cfg.RequireSignature {
			s.log.LogSecurity("SIGNATURE_MISSING", fmt.Sprintf("Rejecting unsigned notification for payment %s", n.PaymentID))
			return fmt.Errorf("%w: signature required", apperr.ErrInvalidSignature)
		}
		s.log.LogSecurity("SIGNATURE_SKIPPED", fmt.Sprintf("Accepting notification for payment %s without signature check", n.PaymentID))
		return nil
	}

	if !payfast.VerifyNotification(n.Values, passphrase) {
		s.log.LogSecurity("SIGNATURE_MISMATCH", fmt.Sprintf("Signature mismatch for payment %s", n.PaymentID))
		return apperr.ErrInvalidSignature
	}
	return nil
}

// reconcileAmount warns when the gateway amount differs from the ledger and
// returns the ledger amount, zero when unknown. The sandbox reports R0.00 so a
// mismatch is never fatal.
func (s *NotificationService) reconcileAmount(n *payfast.Notification, recorded *models.Payment, gross decimal.Decimal, grossOK bool) decimal.Decimal {
	if recorded == nil {
		return decimal.Zero
	}

	if grossOK && recorded.Amount.IsPositive() && recorded.Amount.Sub(gross).Abs().GreaterThan(amountTolerance) {
		s.log.LogSecurity("AMOUNT_MISMATCH",
			fmt.Sprintf("Payment %s: gateway reported %s, expected %s", n.Reference, gross.StringFixed(2), recorded.Amount.StringFixed(2)))
	}
	return recorded.Amount
}

func (s *NotificationService) publish(status models.PaymentStatus, n *payfast.Notification, amount decimal.Decimal) {
	eventType, ok := kafka.EventTypeForStatus(status)
	if !ok {
		return
	}

	event := &models.PaymentEvent{
		Type:      eventType,
		Reference: n.Reference,
		PaymentID: n.PaymentID,
		Status:    status,
		Amount:    amount,
		Timestamp: s.now().UTC(),
	}

	if err := s.publisher.PublishPaymentEvent(event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", eventType, n.Reference, err))
		s.log.LogProcess("FALLBACK", fmt.Sprintf("Payment %s recorded despite Kafka publish failure", n.Reference))
	}
}

func (s *NotificationService) audit(ctx context.Context, n *payfast.Notification, outcome string) {
	record := &models.NotificationRecord{
		ID:         uuid.NewString(),
		Outcome:    outcome,
		ReceivedAt: s.now().UTC(),
	}
	if n != nil {
		record.PaymentID = n.PaymentID
		record.Reference = n.Reference
		record.Status = n.Status
		record.Payload = n.Payload()
	}

	if err := s.store.SaveNotification(ctx, record); err != nil {
		s.log.Warn("DATABASE", fmt.Sprintf("Failed to write notification log: %v", err))
	}
}
