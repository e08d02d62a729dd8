package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testKey    = "prv_test_key"
	testSecret = "test_integrity"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:         url,
		PrivateKey:      testKey,
		IntegritySecret: testSecret,
		Timeout:         timeout,
	}, zaptest.NewLogger(t))
}

func sampleRequest() TransactionRequest {
	return TransactionRequest{
		AmountInCents:     28500,
		Currency:          "COP",
		Reference:         "tx-001",
		CustomerEmail:     "buyer@example.com",
		PaymentMethodType: MethodCard,
		PaymentMethod:     &PaymentMethod{Type: MethodCard, Installments: 1, Token: "tok_test_123"},
	}
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func TestProcessPayment_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))

		var got TransactionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, Sign("tx-001", 28500, "COP", testSecret), got.Signature)
		assert.Equal(t, "tok_test_123", got.PaymentMethod.Token)

		writeJSON(w, http.StatusCreated, `{"data":{"id":"gw-42","status":"APPROVED","reference":"tx-001",
			"amount_in_cents":28500,"currency":"COP","payment_method_type":"CARD"}}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL, time.Second).ProcessPayment(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "gw-42", resp.Data.ID)
	require.Equal(t, StatusApproved, resp.Data.Status)
	require.Equal(t, "CARD", resp.Data.PaymentMethodType)
	require.Nil(t, resp.Data.StatusMessage)
}

func TestProcessPayment_CallerSignatureIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got TransactionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, Sign(got.Reference, got.AmountInCents, got.Currency, testSecret), got.Signature)
		writeJSON(w, http.StatusCreated, `{"data":{"id":"gw-1","status":"DECLINED"}}`)
	}))
	defer srv.Close()

	req := sampleRequest()
	req.Signature = "forged"
	_, err := newTestClient(t, srv.URL, time.Second).ProcessPayment(context.Background(), req)
	require.NoError(t, err)
}

func TestProcessPayment_Rejected(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		contentType  string
		body         string
		wantMessages []string
	}{
		{
			name:         "field messages",
			status:       http.StatusUnprocessableEntity,
			contentType:  "application/json",
			body:         `{"error":{"type":"INPUT_VALIDATION_ERROR","messages":{"customer_email":["is invalid"],"amount_in_cents":["must be positive"]}}}`,
			wantMessages: []string{"amount_in_cents: must be positive", "customer_email: is invalid"},
		},
		{
			name:         "list messages",
			status:       http.StatusBadRequest,
			contentType:  "application/json",
			body:         `{"error":{"type":"INVALID_REQUEST","messages":["token expired"]}}`,
			wantMessages: []string{"token expired"},
		},
		{
			name:         "reason only",
			status:       http.StatusUnauthorized,
			contentType:  "application/json",
			body:         `{"error":{"type":"INVALID_ACCESS_TOKEN","reason":"bad bearer token"}}`,
			wantMessages: []string{"bad bearer token"},
		},
		{
			name:         "top level message",
			status:       http.StatusInternalServerError,
			contentType:  "application/json",
			body:         `{"message":"internal failure"}`,
			wantMessages: []string{"internal failure"},
		},
		{
			name:         "unstructured body",
			status:       http.StatusBadGateway,
			contentType:  "text/html",
			body:         `<html>bad gateway</html>`,
			wantMessages: []string{genericRejection},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, time.Second).ProcessPayment(context.Background(), sampleRequest())
			require.Error(t, err)
			require.ErrorIs(t, err, ErrRejected)
			require.NotErrorIs(t, err, ErrUnreachable)

			var rej *RejectedError
			require.True(t, errors.As(err, &rej))
			require.Equal(t, tt.status, rej.StatusCode)
			require.Equal(t, tt.wantMessages, rej.Messages)
			require.NotContains(t, err.Error(), testSecret)
		})
	}
}

func TestProcessPayment_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, time.Second).ProcessPayment(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrUnreachable)
	require.NotErrorIs(t, err, ErrRejected)
	require.NotContains(t, err.Error(), testKey)
}

func TestProcessPayment_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusCreated, `{"data":{"id":"late","status":"APPROVED"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 20*time.Millisecond).ProcessPayment(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestProcessPayment_BreakerOpensOnTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, time.Second)
	for i := 0; i < 5; i++ {
		_, err := c.ProcessPayment(context.Background(), sampleRequest())
		require.ErrorIs(t, err, ErrUnreachable)
	}

	_, err := c.ProcessPayment(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrUnreachable)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestProcessPayment_RejectionsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 10 {
			writeJSON(w, http.StatusUnprocessableEntity, `{"error":{"messages":["declined token"]}}`)
			return
		}
		writeJSON(w, http.StatusCreated, `{"data":{"id":"gw-ok","status":"APPROVED"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	for i := 0; i < 10; i++ {
		_, err := c.ProcessPayment(context.Background(), sampleRequest())
		require.ErrorIs(t, err, ErrRejected)
	}
	resp, err := c.ProcessPayment(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "gw-ok", resp.Data.ID)
}
