package payfast

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/logger"
)

// ConfirmQuery identifies the payment to confirm. PaymentID wins when both
// are set.
type ConfirmQuery struct {
	PaymentID string
	Reference string
}

func (q ConfirmQuery) paramString() string {
	if q.PaymentID != "" {
		return FieldPaymentID + "=" + q.PaymentID
	}
	return FieldCustomStr1 + "=" + q.Reference
}

// Confirmer performs the server-to-server confirmation round trip.
type Confirmer interface {
	Confirm(ctx context.Context, q ConfirmQuery) error
}

// Client confirms payments against the gateway validate endpoint. It never
// retries; redelivery is the gateway's job.
type Client struct {
	http        *resty.Client
	validateURL string
	timeout     time.Duration
	log         *logger.Logger
}

func NewClient(validateURL string, timeout time.Duration, log *logger.Logger) *Client {
	httpClient := resty.New()
	httpClient.SetTimeout(timeout)
	httpClient.SetRetryCount(0)

	return &Client{
		http:        httpClient,
		validateURL: validateURL,
		timeout:     timeout,
		log:         log,
	}
}

// Confirm returns nil when the gateway answers VALID, ErrUnconfirmedPayment
// for any other answer and ErrUpstreamUnavailable when the gateway cannot be
// reached in time.
func (c *Client) Confirm(ctx context.Context, q ConfirmQuery) error {
	if q.PaymentID == "" && q.Reference == "" {
		return apperr.Validation("payment_id", "payment id or reference is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"pfParamString": q.paramString()}).
		Post(c.validateURL)

	if err != nil {
		c.log.Warn("PAYFAST", fmt.Sprintf("Validate request failed for %s: %v", q.paramString(), err))
		return fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode() >= http.StatusInternalServerError {
		c.log.Warn("PAYFAST", fmt.Sprintf("Validate endpoint returned %d", resp.StatusCode()))
		return fmt.Errorf("%w: status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode())
	}

	result := strings.TrimSpace(resp.String())
	if resp.IsSuccess() && result == "VALID" {
		c.log.LogPayment("CONFIRMED", q.PaymentID, "Gateway confirmed "+q.paramString())
		return nil
	}

	c.log.LogSecurity("UNCONFIRMED", fmt.Sprintf("Gateway answered %q (status %d) for %s", result, resp.StatusCode(), q.paramString()))
	return fmt.Errorf("%w: gateway answered %q", apperr.ErrUnconfirmedPayment, result)
}
