package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("wrapped: %w", ErrInvalidSignature)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: Validation("amount", "must be greater than zero"), want: "validation"},
		{name: "configuration", err: Configuration("PUBLIC_BASE_URL", "missing"), want: "configuration"},
		{name: "malformed", err: ErrMalformedNotification, want: "malformed_notification"},
		{name: "incomplete", err: ErrIncompleteNotification, want: "incomplete_notification"},
		{name: "invalid_signature_wrapped", err: wrapped, want: "invalid_signature"},
		{name: "unconfirmed", err: ErrUnconfirmedPayment, want: "unconfirmed_payment"},
		{name: "upstream", err: ErrUpstreamUnavailable, want: "upstream_unavailable"},
		{name: "not_found", err: ErrPaymentNotFound, want: "not_found"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "unknown", err: errors.New("unknown"), want: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("wrapped: %w", Validation("reference", "too long"))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "validation_wrapped", err: wrapped, want: http.StatusBadRequest},
		{name: "configuration", err: Configuration("PAYFAST_MODE", "bad"), want: http.StatusInternalServerError},
		{name: "malformed", err: ErrMalformedNotification, want: http.StatusBadRequest},
		{name: "incomplete", err: ErrIncompleteNotification, want: http.StatusBadRequest},
		{name: "invalid_signature", err: ErrInvalidSignature, want: http.StatusUnauthorized},
		{name: "unconfirmed", err: ErrUnconfirmedPayment, want: http.StatusBadRequest},
		{name: "upstream", err: ErrUpstreamUnavailable, want: http.StatusServiceUnavailable},
		{name: "not_found", err: ErrPaymentNotFound, want: http.StatusNotFound},
		{name: "unknown", err: errors.New("unknown"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPublicHidesInternalText(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("failed to update payment: %w", errors.New("dial tcp 10.0.0.5:3306: connection refused"))
	if got := Public(err); got != "internal server error" {
		t.Fatalf("expected generic message, got %q", got)
	}

	upstream := fmt.Errorf("validate: %w: read timeout", ErrUpstreamUnavailable)
	if got := Public(upstream); got != ErrUpstreamUnavailable.Error() {
		t.Fatalf("expected upstream message, got %q", got)
	}

	v := Validation("customerEmail", "invalid email format")
	if got := Public(v); got != "customerEmail: invalid email format" {
		t.Fatalf("unexpected message %q", got)
	}
}
