package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
)

var (
	ErrPromoNotFound  = errors.New("invalid promo code")
	ErrPromoExpired   = errors.New("this promo code has expired")
	ErrPromoExhausted = errors.New("this promo code has reached its usage limit")
	ErrPromoMinOrder  = errors.New("minimum order amount not reached")
)

// MinOrderError is returned when the order total is below the code's minimum.
type MinOrderError struct {
	MinOrderAmount decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("minimum order amount of R%s required for this code", e.MinOrderAmount.String())
}

func (e *MinOrderError) Unwrap() error {
	return ErrPromoMinOrder
}

// DefaultPromoCodes is the storefront's launch catalogue.
func DefaultPromoCodes() []models.PromoCode {
	return []models.PromoCode{
		{
			Code:           "WELCOME10",
			Discount:       decimal.NewFromInt(10),
			DiscountType:   models.DiscountPercentage,
			ExpiryDate:     time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC),
			MaxUses:        100,
			Description:    "10% off for new customers",
			MinOrderAmount: decimal.NewFromInt(1000),
		},
		{
			Code:           "JERSEY25",
			Discount:       decimal.NewFromInt(25),
			DiscountType:   models.DiscountPercentage,
			ExpiryDate:     time.Date(2025, 2, 15, 23, 59, 59, 0, time.UTC),
			MaxUses:        5,
			Description:    "25% off all jerseys - Limited to 5 customers!",
			MinOrderAmount: decimal.NewFromInt(1500),
		},
		{
			Code:           "SAVE200",
			Discount:       decimal.NewFromInt(200),
			DiscountType:   models.DiscountFixed,
			ExpiryDate:     time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
			MaxUses:        50,
			Description:    "R200 off orders over R3000",
			MinOrderAmount: decimal.NewFromInt(3000),
		},
		{
			Code:           "BIGDEAL",
			Discount:       decimal.NewFromInt(30),
			DiscountType:   models.DiscountPercentage,
			ExpiryDate:     time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC),
			MaxUses:        1,
			Description:    "30% off everything - One time use only!",
			MinOrderAmount: decimal.NewFromInt(2000),
		},
	}
}

// PromoQuote is a validated code with the discount it gives on an order.
type PromoQuote struct {
	Promo    models.PromoCode `json:"promo"`
	Discount decimal.Decimal  `json:"discount"`
	Total    decimal.Decimal  `json:"total"`
}

type PromoService struct {
	mu    sync.Mutex
	codes map[string]*models.PromoCode
	log   *logger.Logger
	now   func() time.Time
}

func NewPromoService(codes []models.PromoCode, log *logger.Logger) *PromoService {
	s := &PromoService{
		codes: make(map[string]*models.PromoCode, len(codes)),
		log:   log,
		now:   time.Now,
	}
	for i := range codes {
		p := codes[i]
		s.codes[strings.ToUpper(p.Code)] = &p
	}
	return s
}

// WithClock replaces the clock used for expiry checks.
func (s *PromoService) WithClock(now func() time.Time) *PromoService {
	s.now = now
	return s
}

// Validate checks code against orderTotal and quotes the discount.
func (s *PromoService) Validate(code string, orderTotal decimal.Decimal) (*PromoQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	promo, err := s.usable(code)
	if err != nil {
		return nil, err
	}

	if promo.MinOrderAmount.IsPositive() && orderTotal.LessThan(promo.MinOrderAmount) {
		return nil, &MinOrderError{MinOrderAmount: promo.MinOrderAmount}
	}

	discount := CalculateDiscount(*promo, orderTotal)
	return &PromoQuote{
		Promo:    *promo,
		Discount: discount,
		Total:    orderTotal.Sub(discount),
	}, nil
}

// Apply records one use of code.
func (s *PromoService) Apply(code string) (*models.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	promo, err := s.usable(code)
	if err != nil {
		return nil, err
	}

	promo.CurrentUses++
	s.log.Info("PROMO", fmt.Sprintf("Promo code %s used %d/%d", promo.Code, promo.CurrentUses, promo.MaxUses))

	applied := *promo
	return &applied, nil
}

// usable must be called with mu held.
func (s *PromoService) usable(code string) (*models.PromoCode, error) {
	promo, ok := s.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrPromoNotFound
	}
	if s.now().After(promo.ExpiryDate) {
		return nil, ErrPromoExpired
	}
	if promo.CurrentUses >= promo.MaxUses {
		return nil, ErrPromoExhausted
	}
	return promo, nil
}

// CalculateDiscount rounds percentage discounts to whole rand and never
// discounts more than the order total.
func CalculateDiscount(promo models.PromoCode, orderTotal decimal.Decimal) decimal.Decimal {
	if promo.DiscountType == models.DiscountPercentage {
		return orderTotal.Mul(promo.Discount).Div(decimal.NewFromInt(100)).Round(0)
	}
	return decimal.Min(promo.Discount, orderTotal)
}
