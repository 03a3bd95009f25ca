package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
	"payfast-gateway/internal/payfast"
	"payfast-gateway/internal/storage"
)

type saveFailingStore struct {
	*storage.InMemoryStore
}

func (s *saveFailingStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return errors.New("Error 1045: Access denied")
}

func checkoutRequest() *models.PaymentRequest {
	return &models.PaymentRequest{
		Amount:        decimal.RequireFromString("1500"),
		Description:   "Home jersey",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
		Reference:     "INF123",
		Items: []models.Item{
			{Name: "Home jersey", Quantity: 1, Price: decimal.RequireFromString("1000")},
			{Name: "Scarf", Quantity: 2, Price: decimal.RequireFromString("250")},
		},
	}
}

func TestInitiateRecordsPendingPayment(t *testing.T) {
	store := storage.NewInMemoryStore()
	cfg := sandboxPayFast()
	svc := NewPaymentService(store, payfast.NewInitiator(cfg), cfg, logger.NewNop())

	redirect, err := svc.Initiate(context.Background(), checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "1500.00", redirect.Amount)

	payment, err := store.GetPayment(context.Background(), "INF123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("1500")))
	assert.Equal(t, 2, payment.ItemCount)
	assert.Equal(t, "sandbox", payment.Environment)
	assert.Equal(t, "jane@x.com", payment.Customer.Email)
}

func TestInitiateSurvivesLedgerFailure(t *testing.T) {
	cfg := sandboxPayFast()
	svc := NewPaymentService(&saveFailingStore{storage.NewInMemoryStore()}, payfast.NewInitiator(cfg), cfg, logger.NewNop())

	redirect, err := svc.Initiate(context.Background(), checkoutRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, redirect.Fields.Signature())
}

func TestInitiateRejectsInvalidRequest(t *testing.T) {
	store := storage.NewInMemoryStore()
	cfg := sandboxPayFast()
	svc := NewPaymentService(store, payfast.NewInitiator(cfg), cfg, logger.NewNop())

	req := checkoutRequest()
	req.Amount = decimal.Zero
	_, err := svc.Initiate(context.Background(), req)

	var validationErr *apperr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "amount", validationErr.Field)

	_, err = store.GetPayment(context.Background(), "INF123")
	assert.ErrorIs(t, err, apperr.ErrPaymentNotFound)
}

func TestInitiateTest(t *testing.T) {
	cfg := sandboxPayFast()
	svc := NewPaymentService(storage.NewInMemoryStore(), payfast.NewInitiator(cfg), cfg, logger.NewNop())

	redirect, err := svc.InitiateTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5.00", redirect.Amount)
	assert.True(t, strings.HasPrefix(redirect.Reference, "INF"))

	live := livePayFast()
	svc = NewPaymentService(storage.NewInMemoryStore(), payfast.NewInitiator(live), live, logger.NewNop())
	_, err = svc.InitiateTest(context.Background())
	assert.Equal(t, "validation", apperr.Kind(err))
}

func TestRecentNotifications(t *testing.T) {
	store := storage.NewInMemoryStore()
	cfg := sandboxPayFast()
	svc := NewPaymentService(store, payfast.NewInitiator(cfg), cfg, logger.NewNop())

	require.NoError(t, store.SaveNotification(context.Background(), &models.NotificationRecord{ID: "1", Reference: "INF123", Outcome: OutcomeHandled}))

	records, err := svc.RecentNotifications(context.Background(), "INF123", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = svc.RecentNotifications(context.Background(), "", 10)
	assert.Equal(t, "validation", apperr.Kind(err))
}

func TestRegisterOrder(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryStore()
	cfg := sandboxPayFast()
	svc := NewPaymentService(store, payfast.NewInitiator(cfg), cfg, logger.NewNop())

	require.NoError(t, svc.RegisterOrder(ctx, &models.OrderEvent{
		Type:      "order.created",
		Reference: "INF777",
		Amount:    decimal.RequireFromString("249.999"),
		ItemCount: 3,
	}))

	payment, err := store.GetPayment(ctx, "INF777")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, payment.Status)
	assert.Equal(t, "250.00", payment.Amount.StringFixed(2))
	assert.Equal(t, 3, payment.ItemCount)

	t.Run("invalid events are skipped", func(t *testing.T) {
		assert.NoError(t, svc.RegisterOrder(ctx, &models.OrderEvent{Reference: "INF778"}))
		assert.NoError(t, svc.RegisterOrder(ctx, &models.OrderEvent{Amount: decimal.NewFromInt(10)}))

		_, err := store.GetPayment(ctx, "INF778")
		assert.ErrorIs(t, err, apperr.ErrPaymentNotFound)
	})

	t.Run("ledger failure is returned for redelivery", func(t *testing.T) {
		failing := NewPaymentService(&saveFailingStore{storage.NewInMemoryStore()}, payfast.NewInitiator(cfg), cfg, logger.NewNop())
		err := failing.RegisterOrder(ctx, &models.OrderEvent{Reference: "INF779", Amount: decimal.NewFromInt(10)})
		assert.Error(t, err)
	})
}
