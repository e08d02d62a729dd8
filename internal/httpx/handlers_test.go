package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-checkout-payments/internal/gateway"
	"github.com/ariefcatur/go-checkout-payments/internal/memstore"
	"github.com/ariefcatur/go-checkout-payments/internal/products"
	"github.com/ariefcatur/go-checkout-payments/internal/redisx"
	"github.com/ariefcatur/go-checkout-payments/internal/transactions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type gatewayFunc func(ctx context.Context, req gateway.TransactionRequest) (gateway.TransactionResponse, error)

func (f gatewayFunc) ProcessPayment(ctx context.Context, req gateway.TransactionRequest) (gateway.TransactionResponse, error) {
	return f(ctx, req)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.data[key]; ok {
		return b, nil
	}
	return nil, redisx.ErrMiss
}

func (c *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) SetNX(_ context.Context, key string, val []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = val
	return true, nil
}

type testServer struct {
	srv     *httptest.Server
	cache   *memCache
	gateway gatewayFunc
}

func newTestServer(t *testing.T, gw gatewayFunc) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memstore.New()
	cache := &memCache{data: map[string][]byte{}}

	txSvc := transactions.NewService(store, store, gw, nil, transactions.Config{
		Fees:        transactions.Fees{BaseCents: 500, DeliveryCents: 8000},
		Currency:    "COP",
		ServiceName: "checkout-api",
	}, log)

	r := NewRouter("checkout-api", log)
	(&ProductsHandler{Svc: products.NewService(store, log), Cache: cache, Log: log}).Register(r)
	(&TransactionsHandler{Svc: txSvc, Cache: cache, Log: log}).Register(r)

	ts := &testServer{srv: httptest.NewServer(r), cache: cache, gateway: gw}
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		var raw any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]any); ok {
			out = m
		} else {
			out = map[string]any{"items": raw}
		}
	}
	return resp, out
}

func (ts *testServer) createProduct(t *testing.T, name string, qty int) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/products", map[string]any{
		"name": name, "price": "100.00", "quantity": qty,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["id"].(string)
}

func purchase(productID string, qty int) map[string]any {
	return map[string]any{
		"productId":       productID,
		"quantity":        qty,
		"paymentMethod":   map[string]any{"type": "CARD", "installments": 1, "token": "tok_test_1"},
		"deliveryAddress": "Calle 1 # 2-3",
		"customerName":    "Ana Perez",
		"customerEmail":   "ana@example.com",
	}
}

func approveAll(_ context.Context, req gateway.TransactionRequest) (gateway.TransactionResponse, error) {
	return gateway.TransactionResponse{Data: gateway.TransactionData{
		ID: "gw-1", Status: gateway.StatusApproved, Reference: req.Reference, AmountInCents: req.AmountInCents,
	}}, nil
}

func TestCreateTransaction_Approved(t *testing.T) {
	ts := newTestServer(t, approveAll)
	pid := ts.createProduct(t, "espresso machine", 5)

	// Warm the product cache so the purchase has something to invalidate.
	resp, _ := ts.do(t, http.MethodGet, "/products/"+pid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := ts.cache.Get(context.Background(), redisx.ProductViewKey(pid))
	require.NoError(t, err)

	resp, body := ts.do(t, http.MethodPost, "/transactions", purchase(pid, 2))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "APPROVED", body["status"])
	assert.Equal(t, "285", body["amount"])
	assert.Equal(t, "payment approved", body["message"])
	assert.Equal(t, "gw-1", body["gatewayTransactionId"])

	_, err = ts.cache.Get(context.Background(), redisx.ProductViewKey(pid))
	require.ErrorIs(t, err, redisx.ErrMiss)

	resp, product := ts.do(t, http.MethodGet, "/products/"+pid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, product["quantity"])

	id := body["id"].(string)
	resp, got := ts.do(t, http.MethodGet, "/transactions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, got["id"])

	resp, list := ts.do(t, http.MethodGet, "/products/"+pid+"/transactions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["items"], 1)
}

func TestCreateTransaction_Errors(t *testing.T) {
	tests := []struct {
		name     string
		gw       gatewayFunc
		qty      int
		wantCode int
		wantTxID bool
	}{
		{name: "insufficient stock", gw: approveAll, qty: 6, wantCode: http.StatusBadRequest},
		{
			name: "gateway rejected",
			gw: func(context.Context, gateway.TransactionRequest) (gateway.TransactionResponse, error) {
				return gateway.TransactionResponse{}, &gateway.RejectedError{StatusCode: 422, Messages: []string{"token: expired"}}
			},
			qty: 1, wantCode: http.StatusBadRequest, wantTxID: true,
		},
		{
			name: "gateway unreachable",
			gw: func(context.Context, gateway.TransactionRequest) (gateway.TransactionResponse, error) {
				return gateway.TransactionResponse{}, &gateway.UnreachableError{Err: errors.New("dial tcp 10.0.0.1:443: i/o timeout")}
			},
			qty: 1, wantCode: http.StatusBadGateway, wantTxID: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.gw)
			pid := ts.createProduct(t, "espresso machine", 5)

			resp, body := ts.do(t, http.MethodPost, "/transactions", purchase(pid, tt.qty))
			require.Equal(t, tt.wantCode, resp.StatusCode, body)
			require.NotEmpty(t, body["error"])
			if tt.wantTxID {
				require.NotEmpty(t, body["transactionId"])
				_, err := ts.cache.Get(context.Background(), redisx.TransactionViewKey(body["transactionId"].(string)))
				require.NoError(t, err)
			} else {
				require.Nil(t, body["transactionId"])
			}
			assert.NotContains(t, body["error"], "10.0.0.1")
		})
	}
}

func TestCreateTransaction_UnknownProduct(t *testing.T) {
	ts := newTestServer(t, approveAll)
	resp, _ := ts.do(t, http.MethodPost, "/transactions", purchase("6f1c1a52-3a7e-4b8e-9a51-3f3c7c9d2b10", 1))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTransaction_Validation(t *testing.T) {
	ts := newTestServer(t, approveAll)
	pid := ts.createProduct(t, "espresso machine", 5)

	bad := purchase(pid, 1)
	bad["customerEmail"] = "not-an-email"
	bad["quantity"] = 0
	delete(bad, "paymentMethod")

	resp, body := ts.do(t, http.MethodPost, "/transactions", bad)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation failed", body["error"])
	details := body["details"].([]any)
	assert.Len(t, details, 3)
	assert.Contains(t, details, "customerEmail: must satisfy email")

	resp, body = ts.do(t, http.MethodPost, "/transactions", "plain string")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid json", body["error"])
}

func TestProducts_CRUD(t *testing.T) {
	ts := newTestServer(t, approveAll)
	pid := ts.createProduct(t, "grinder", 2)

	resp, body := ts.do(t, http.MethodPost, "/products", map[string]any{"name": "grinder", "price": "1", "quantity": 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = ts.do(t, http.MethodPost, "/products", map[string]any{"name": "kettle", "price": "-1", "quantity": 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = ts.do(t, http.MethodPost, "/products", map[string]any{"name": "kettle", "price": "19.999", "quantity": 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = ts.do(t, http.MethodPut, "/products/"+pid, map[string]any{"price": "0.001"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, _ = ts.do(t, http.MethodGet, "/products/"+pid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPut, "/products/"+pid, map[string]any{"quantity": 7})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 7, body["quantity"])
	assert.Equal(t, "grinder", body["name"])

	// The cached view was dropped by the update.
	resp, body = ts.do(t, http.MethodGet, "/products/"+pid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 7, body["quantity"])

	resp, body = ts.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)

	resp, _ = ts.do(t, http.MethodDelete, "/products/"+pid, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/products/"+pid, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteProduct_InUse(t *testing.T) {
	ts := newTestServer(t, approveAll)
	pid := ts.createProduct(t, "grinder", 2)

	resp, _ := ts.do(t, http.MethodPost, "/transactions", purchase(pid, 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodDelete, "/products/"+pid, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode, body)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, approveAll)

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.srv.Client().Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	code, msg := statusFor(errors.Join(transactions.ErrGatewayRejected, transactions.ErrPersistence))
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, transactions.ErrPersistence.Error(), msg)

	code, _ = statusFor(transactions.ErrStockInconsistency)
	require.Equal(t, http.StatusInternalServerError, code)

	code, msg = statusFor(errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "internal server error", msg)
}
