package storage

import (
	"context"

	"payfast-gateway/internal/models"
)

// Store is the payment ledger. The callback verifier is its only writer of
// terminal statuses; the status query only reads it.
type Store interface {
	// SavePayment records a pending payment. An existing reference is left untouched.
	SavePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, reference string) (*models.Payment, error)
	GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)

	// UpdatePaymentStatus applies update only when the stored status differs.
	// applied is false when the payment already had that status.
	UpdatePaymentStatus(ctx context.Context, update models.StatusUpdate) (applied bool, err error)

	SaveNotification(ctx context.Context, record *models.NotificationRecord) error
	ListNotifications(ctx context.Context, reference string, limit int) ([]*models.NotificationRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
