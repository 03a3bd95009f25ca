package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultClaimTTL = 72 * time.Hour

func claimKey(paymentID, status string) string {
	return fmt.Sprintf("ipn:%s:%s", paymentID, status)
}

// Redis records (payment id, status) pairs that reached the ledger, so a
// redelivered notification is recognised by every instance of the service.
type Redis struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &Redis{Client: client, ttl: ttl}
}

// Seen reports whether the pair was marked and has not expired.
func (r *Redis) Seen(ctx context.Context, paymentID, status string) (bool, error) {
	n, err := r.Client.Exists(ctx, claimKey(paymentID, status)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read notification marker: %w", err)
	}
	return n > 0, nil
}

// Mark records the pair. Call it only after the transition is committed.
func (r *Redis) Mark(ctx context.Context, paymentID, status string) error {
	err := r.Client.Set(ctx, claimKey(paymentID, status), time.Now().UTC().Format(time.RFC3339), r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to mark notification: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// MemoryClaims is the single-process marker store used when no Redis address
// is configured.
type MemoryClaims struct {
	mu     sync.Mutex
	claims map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryClaims(ttl time.Duration) *MemoryClaims {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &MemoryClaims{claims: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *MemoryClaims) Seen(ctx context.Context, paymentID, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := claimKey(paymentID, status)
	expires, ok := m.claims[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(expires) {
		delete(m.claims, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryClaims) Mark(ctx context.Context, paymentID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.claims[claimKey(paymentID, status)] = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryClaims) Ping(ctx context.Context) error {
	return nil
}
