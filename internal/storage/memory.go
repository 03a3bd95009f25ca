package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/models"
)

type InMemoryStore struct {
	payments      map[string]*models.Payment
	notifications []*models.NotificationRecord
	mutex         sync.RWMutex
	now           func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		payments: make(map[string]*models.Payment),
		now:      time.Now,
	}
}

func (s *InMemoryStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.payments[payment.Reference]; exists {
		return nil
	}

	p := *payment
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	s.payments[p.Reference] = &p
	return nil
}

func (s *InMemoryStore) GetPayment(ctx context.Context, reference string) (*models.Payment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	payment, exists := s.payments[reference]
	if !exists {
		return nil, apperr.ErrPaymentNotFound
	}

	p := *payment
	return &p, nil
}

func (s *InMemoryStore) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, payment := range s.payments {
		if payment.GatewayPaymentID == gatewayPaymentID {
			p := *payment
			return &p, nil
		}
	}
	return nil, apperr.ErrPaymentNotFound
}

func (s *InMemoryStore) UpdatePaymentStatus(ctx context.Context, update models.StatusUpdate) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	payment, exists := s.payments[update.Reference]
	if !exists {
		s.payments[update.Reference] = &models.Payment{
			Reference:        update.Reference,
			GatewayPaymentID: update.GatewayPaymentID,
			Status:           update.Status,
			Amount:           update.AmountGross,
			Customer:         models.Customer{Email: update.CustomerEmail},
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return true, nil
	}

	if payment.Status == update.Status {
		return false, nil
	}

	payment.Status = update.Status
	payment.GatewayPaymentID = update.GatewayPaymentID
	payment.UpdatedAt = now
	return true, nil
}

func (s *InMemoryStore) SaveNotification(ctx context.Context, record *models.NotificationRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r := *record
	s.notifications = append(s.notifications, &r)
	return nil
}

func (s *InMemoryStore) ListNotifications(ctx context.Context, reference string, limit int) ([]*models.NotificationRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var records []*models.NotificationRecord
	for _, r := range s.notifications {
		if r.Reference == reference {
			c := *r
			records = append(records, &c)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ReceivedAt.After(records[j].ReceivedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
