package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Gateway callback rejects and confirmation outcomes.
var (
	ErrMalformedNotification  = errors.New("malformed notification")
	ErrIncompleteNotification = errors.New("incomplete notification")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrUnconfirmedPayment     = errors.New("payment not confirmed by gateway")
	ErrUpstreamUnavailable    = errors.New("payment gateway unavailable")
	ErrPaymentNotFound        = errors.New("payment not found")
)

// ValidationError reports bad caller input and names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation builds a *ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError reports a deployment misconfiguration.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Setting, e.Message)
}

func Configuration(setting, message string) error {
	return &ConfigurationError{Setting: setting, Message: message}
}

func Kind(err error) string {
	var validationErr *ValidationError
	var configErr *ConfigurationError

	switch {
	case err == nil:
		return ""

	case errors.As(err, &validationErr):
		return "validation"

	case errors.As(err, &configErr):
		return "configuration"

	case errors.Is(err, ErrMalformedNotification):
		return "malformed_notification"

	case errors.Is(err, ErrIncompleteNotification):
		return "incomplete_notification"

	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"

	case errors.Is(err, ErrUnconfirmedPayment):
		return "unconfirmed_payment"

	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"

	case errors.Is(err, ErrPaymentNotFound):
		return "not_found"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	var validationErr *ValidationError
	var configErr *ConfigurationError

	switch {
	case err == nil:
		return http.StatusOK

	case errors.As(err, &validationErr),
		errors.Is(err, ErrMalformedNotification),
		errors.Is(err, ErrIncompleteNotification),
		errors.Is(err, ErrUnconfirmedPayment):
		return http.StatusBadRequest

	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized

	case errors.Is(err, ErrPaymentNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	case errors.As(err, &configErr):
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message safe to show a caller. Internal failures are
// reduced to a generic message so driver or network text never leaks.
func Public(err error) string {
	switch Kind(err) {
	case "internal", "timeout", "canceled":
		return "internal server error"
	case "upstream_unavailable":
		return ErrUpstreamUnavailable.Error()
	default:
		return err.Error()
	}
}
