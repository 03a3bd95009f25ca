package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
	"payfast-gateway/internal/services"
	"payfast-gateway/internal/utils"
)

type PromoCodes interface {
	Validate(code string, orderTotal decimal.Decimal) (*services.PromoQuote, error)
	Apply(code string) (*models.PromoCode, error)
}

type PromoHandler struct {
	promos PromoCodes
	log    *logger.Logger
}

func NewPromoHandler(promos PromoCodes, log *logger.Logger) *PromoHandler {
	return &PromoHandler{promos: promos, log: log}
}

func (h *PromoHandler) Register(r gin.IRouter) {
	promo := r.Group("/promo")
	{
		promo.POST("/validate", h.Validate)
		promo.POST("/apply", h.Apply)
	}
}

// Validate answers 200 for rejected codes too; valid tells the storefront
// whether to show the discount.
func (h *PromoHandler) Validate(c *gin.Context) {
	var req models.PromoValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse(bindError(err)))
		return
	}

	quote, err := h.promos.Validate(req.Code, req.OrderTotal)
	if err != nil {
		if !isPromoRejection(err) {
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"valid":   false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"valid":    true,
		"discount": quote.Discount,
		"total":    quote.Total,
		"promo":    quote.Promo,
	})
}

func (h *PromoHandler) Apply(c *gin.Context) {
	var req models.PromoApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse(bindError(err)))
		return
	}

	promo, err := h.promos.Apply(req.Code)
	switch {
	case errors.Is(err, services.ErrPromoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error(), "kind": "not_found"})
		return
	case errors.Is(err, services.ErrPromoExpired), errors.Is(err, services.ErrPromoExhausted):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "kind": "conflict"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Promo code applied", promo))
}

func isPromoRejection(err error) bool {
	return errors.Is(err, services.ErrPromoNotFound) ||
		errors.Is(err, services.ErrPromoExpired) ||
		errors.Is(err, services.ErrPromoExhausted) ||
		errors.Is(err, services.ErrPromoMinOrder)
}
