package services

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
)

var promoNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func newPromoService() *PromoService {
	return NewPromoService(DefaultPromoCodes(), logger.NewNop()).
		WithClock(func() time.Time { return promoNow })
}

func TestPromoValidate(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		total        string
		wantDiscount string
		wantErr      error
		wantMessage  string
	}{
		{name: "percentage", code: "WELCOME10", total: "1234", wantDiscount: "123"},
		{name: "case insensitive", code: "welcome10", total: "1000", wantDiscount: "100"},
		{name: "rounds half up", code: "JERSEY25", total: "1502", wantDiscount: "376"},
		{name: "fixed", code: "SAVE200", total: "3000", wantDiscount: "200"},
		{name: "unknown", code: "FREE", total: "5000", wantErr: ErrPromoNotFound, wantMessage: "invalid promo code"},
		{name: "minimum order", code: "SAVE200", total: "2999.99", wantErr: ErrPromoMinOrder, wantMessage: "minimum order amount of R3000 required for this code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := newPromoService().Validate(tt.code, decimal.RequireFromString(tt.total))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.EqualError(t, err, tt.wantMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDiscount, quote.Discount.String())
			assert.True(t, quote.Total.Equal(decimal.RequireFromString(tt.total).Sub(quote.Discount)))
		})
	}
}

func TestPromoExpired(t *testing.T) {
	svc := NewPromoService(DefaultPromoCodes(), logger.NewNop()).
		WithClock(func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) })

	_, err := svc.Validate("BIGDEAL", decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, ErrPromoExpired)

	_, err = svc.Validate("WELCOME10", decimal.NewFromInt(5000))
	assert.NoError(t, err)
}

func TestPromoApplyRespectsMaxUses(t *testing.T) {
	svc := newPromoService()

	applied, err := svc.Apply("bigdeal")
	require.NoError(t, err)
	assert.Equal(t, 1, applied.CurrentUses)

	_, err = svc.Apply("BIGDEAL")
	assert.ErrorIs(t, err, ErrPromoExhausted)

	_, err = svc.Validate("BIGDEAL", decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, ErrPromoExhausted)
}

func TestPromoApplyConcurrent(t *testing.T) {
	svc := newPromoService()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Apply("JERSEY25"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
}

func TestCalculateDiscountCapsFixed(t *testing.T) {
	promo := models.PromoCode{Discount: decimal.NewFromInt(200), DiscountType: models.DiscountFixed}
	assert.Equal(t, "150", CalculateDiscount(promo, decimal.NewFromInt(150)).String())
}
