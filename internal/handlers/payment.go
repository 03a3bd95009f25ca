package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/config"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
	"payfast-gateway/internal/payfast"
	"payfast-gateway/internal/services"
	"payfast-gateway/internal/utils"
)

const maxNotificationBody = 64 << 10

type PaymentInitiator interface {
	Initiate(ctx context.Context, req *models.PaymentRequest) (*payfast.Redirect, error)
	InitiateTest(ctx context.Context) (*payfast.Redirect, error)
	RecentNotifications(ctx context.Context, reference string, limit int) ([]*models.NotificationRecord, error)
}

type NotificationProcessor interface {
	Handle(ctx context.Context, contentType string, body []byte) (*services.NotificationResult, error)
}

type StatusVerifier interface {
	Verify(ctx context.Context, paymentID, reference string) (*services.StatusResult, error)
}

type PaymentHandler struct {
	payments      PaymentInitiator
	notifications NotificationProcessor
	status        StatusVerifier
	cfg           config.PayFastConfig
	log           *logger.Logger
}

func NewPaymentHandler(
	payments PaymentInitiator,
	notifications NotificationProcessor,
	status StatusVerifier,
	cfg config.PayFastConfig,
	log *logger.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		notifications: notifications,
		status:        status,
		cfg:           cfg,
		log:           log,
	}
}

func (h *PaymentHandler) Register(r gin.IRouter) {
	payment := r.Group("/payment")
	{
		payment.POST("/initiate", h.Initiate)
		payment.POST("/test-initiate", h.InitiateTest)
		payment.POST("/notify", h.Notify)
		payment.GET("/notify", h.NotifyAlive)
		payment.GET("/verify", h.Verify)
		payment.GET("/config-check", h.ConfigCheck)
		payment.GET("/notifications", h.Notifications)
	}
}

func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	redirect, err := h.payments.Initiate(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, redirect)
}

func (h *PaymentHandler) InitiateTest(c *gin.Context) {
	redirect, err := h.payments.InitiateTest(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, redirect)
}

func (h *PaymentHandler) redirect(c *gin.Context, redirect *payfast.Redirect) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"redirectUrl": redirect.URL,
		"fields":      redirect.Fields,
		"reference":   redirect.Reference,
		"amount":      redirect.Amount,
		"environment": redirect.Environment,
	})
}

// Notify is the gateway's server-to-server callback. Any non-2xx answer makes
// the gateway redeliver.
func (h *PaymentHandler) Notify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxNotificationBody)
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, apperr.ErrMalformedNotification)
		return
	}

	result, err := h.notifications.Handle(c.Request.Context(), c.ContentType(), body)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Notification processed",
		"paymentId": result.PaymentID,
		"reference": result.Reference,
		"status":    result.Status,
		"duplicate": result.Duplicate,
	})
}

func (h *PaymentHandler) NotifyAlive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "PayFast notification endpoint is active",
	})
}

func (h *PaymentHandler) Verify(c *gin.Context) {
	result, err := h.status.Verify(c.Request.Context(), c.Query("payment_id"), c.Query("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"valid":       result.Valid,
		"provisional": result.Provisional,
		"payment":     result.Payment,
	})
}

// ConfigCheck reports which settings are present without revealing them.
func (h *PaymentHandler) ConfigCheck(c *gin.Context) {
	creds := h.cfg.Credentials()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"environment":    h.cfg.Environment(),
		"merchantId":     maskMerchantID(creds.MerchantID),
		"hasMerchantId":  creds.MerchantID != "",
		"hasMerchantKey": creds.MerchantKey != "",
		"hasPassphrase":  creds.Passphrase != "",
		"hasBaseUrl":     h.cfg.BaseURL != "",
		"processUrl":     creds.ProcessURL,
		"timestamp":      time.Now().UTC(),
	})
}

func (h *PaymentHandler) Notifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		h.fail(c, apperr.Validation("limit", "must be a positive integer"))
		return
	}

	records, err := h.payments.RecentNotifications(c.Request.Context(), c.Query("reference"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Notifications retrieved", records))
}

func (h *PaymentHandler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("API", c.Request.Method+" "+c.FullPath()+": "+err.Error())
	}
	c.JSON(status, utils.ErrorResponse(err))
}

func maskMerchantID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= 4 {
		return "***"
	}
	return id[:4] + "***"
}
