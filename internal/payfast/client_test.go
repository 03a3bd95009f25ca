package payfast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/logger"
)

func validateServer(t *testing.T, status int, body string, delay time.Duration, seen *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if seen != nil {
			seen.Store(r.PostForm.Get("pfParamString"))
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientConfirmValid(t *testing.T) {
	var seen atomic.Value
	srv := validateServer(t, http.StatusOK, "VALID\n", 0, &seen)

	client := NewClient(srv.URL, time.Second, logger.NewNop())
	err := client.Confirm(context.Background(), ConfirmQuery{PaymentID: "1089250", Reference: "INF123"})

	require.NoError(t, err)
	assert.Equal(t, "pf_payment_id=1089250", seen.Load())
}

func TestClientConfirmByReference(t *testing.T) {
	var seen atomic.Value
	srv := validateServer(t, http.StatusOK, "VALID", 0, &seen)

	client := NewClient(srv.URL, time.Second, logger.NewNop())
	require.NoError(t, client.Confirm(context.Background(), ConfirmQuery{Reference: "INF123"}))
	assert.Equal(t, "custom_str1=INF123", seen.Load())
}

func TestClientConfirmInvalid(t *testing.T) {
	srv := validateServer(t, http.StatusOK, "INVALID", 0, nil)

	err := NewClient(srv.URL, time.Second, logger.NewNop()).
		Confirm(context.Background(), ConfirmQuery{PaymentID: "1"})

	assert.True(t, errors.Is(err, apperr.ErrUnconfirmedPayment))
}

func TestClientConfirmServerError(t *testing.T) {
	srv := validateServer(t, http.StatusBadGateway, "", 0, nil)

	err := NewClient(srv.URL, time.Second, logger.NewNop()).
		Confirm(context.Background(), ConfirmQuery{PaymentID: "1"})

	assert.True(t, errors.Is(err, apperr.ErrUpstreamUnavailable))
}

func TestClientConfirmTimeout(t *testing.T) {
	srv := validateServer(t, http.StatusOK, "VALID", 300*time.Millisecond, nil)

	start := time.Now()
	err := NewClient(srv.URL, 50*time.Millisecond, logger.NewNop()).
		Confirm(context.Background(), ConfirmQuery{PaymentID: "1"})

	assert.True(t, errors.Is(err, apperr.ErrUpstreamUnavailable))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestClientConfirmMakesOneAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second, logger.NewNop()).
		Confirm(context.Background(), ConfirmQuery{PaymentID: "1"})

	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientConfirmNeedsIdentifier(t *testing.T) {
	err := NewClient("http://127.0.0.1:1", time.Second, logger.NewNop()).
		Confirm(context.Background(), ConfirmQuery{})

	var vErr *apperr.ValidationError
	assert.True(t, errors.As(err, &vErr))
}
