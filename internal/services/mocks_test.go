package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"payfast-gateway/internal/config"
	"payfast-gateway/internal/models"
	"payfast-gateway/internal/payfast"
	"payfast-gateway/internal/storage"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// MockConfirmer implements payfast.Confirmer for testing
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, q payfast.ConfirmQuery) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPaymentEvent(event *models.PaymentEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.PaymentEvent
}

func (p *recordingPublisher) PublishPaymentEvent(event *models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// failingStore fails status updates until healed.
type failingStore struct {
	*storage.InMemoryStore
	mu     sync.Mutex
	broken bool
}

func (s *failingStore) UpdatePaymentStatus(ctx context.Context, update models.StatusUpdate) (bool, error) {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return false, errors.New("connection reset by peer")
	}
	return s.InMemoryStore.UpdatePaymentStatus(ctx, update)
}

func (s *failingStore) heal() {
	s.mu.Lock()
	s.broken = false
	s.mu.Unlock()
}

// brokenClaims fails every marker read and write.
type brokenClaims struct{}

func (brokenClaims) Seen(ctx context.Context, paymentID, status string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (brokenClaims) Mark(ctx context.Context, paymentID, status string) error {
	return errors.New("redis: connection refused")
}

func sandboxPayFast() config.PayFastConfig {
	return config.PayFastConfig{
		BaseURL:         "https://shop.example.co.za",
		ValidateTimeout: 2 * time.Second,
		SourceTag:       "infinite-store-sa",
		ReferencePrefix: "INF",
	}
}

func livePayFast() config.PayFastConfig {
	cfg := sandboxPayFast()
	cfg.LiveMode = true
	cfg.MerchantID = "12345678"
	cfg.MerchantKey = "abcdefghijklm"
	cfg.Passphrase = "live-secret-phrase"
	cfg.RequireSignature = true
	return cfg
}

// ipnBody encodes values as a form body, signed with passphrase when it is
// not empty.
func ipnBody(values map[string]string, passphrase string) []byte {
	if passphrase != "" {
		values[payfast.FieldSignature] = payfast.SignNotification(values, passphrase)
	}
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return []byte(form.Encode())
}

func completeIPN() map[string]string {
	return map[string]string{
		"m_payment_id":   "",
		"pf_payment_id":  "1089250",
		"payment_status": "COMPLETE",
		"item_name":      "Order",
		"amount_gross":   "100.00",
		"amount_fee":     "-2.30",
		"amount_net":     "97.70",
		"custom_str1":    "INF123",
		"name_first":     "Jane",
		"name_last":      "Doe",
		"email_address":  "jane@x.com",
		"merchant_id":    config.SandboxMerchantID,
	}
}
