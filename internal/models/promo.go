package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type PromoCode struct {
	Code           string          `json:"code"`
	Discount       decimal.Decimal `json:"discount"`
	DiscountType   DiscountType    `json:"discountType"`
	ExpiryDate     time.Time       `json:"expiryDate"`
	MaxUses        int             `json:"maxUses"`
	CurrentUses    int             `json:"currentUses"`
	Description    string          `json:"description"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
}

type PromoValidateRequest struct {
	Code       string          `json:"code" binding:"required"`
	OrderTotal decimal.Decimal `json:"orderTotal"`
}

type PromoApplyRequest struct {
	Code string `json:"code" binding:"required"`
}
