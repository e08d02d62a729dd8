package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-checkout-payments/internal/products"
	"github.com/ariefcatur/go-checkout-payments/internal/transactions"
	"go.uber.org/zap"
)

type errorResp struct {
	Error         string   `json:"error"`
	Details       []string `json:"details,omitempty"`
	TransactionID string   `json:"transactionId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP. Server-side failures get a fixed
// message so internals (URLs, SQL, credentials) never reach the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, transactions.ErrPersistence):
		return http.StatusInternalServerError, transactions.ErrPersistence.Error()
	case errors.Is(err, transactions.ErrStockInconsistency):
		return http.StatusInternalServerError, transactions.ErrStockInconsistency.Error()
	case errors.Is(err, transactions.ErrGatewayUnreachable):
		return http.StatusBadGateway, transactions.ErrGatewayUnreachable.Error()

	case errors.Is(err, transactions.ErrProductNotFound),
		errors.Is(err, transactions.ErrNotFound),
		errors.Is(err, products.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, products.ErrInUse):
		return http.StatusConflict, err.Error()
	case errors.Is(err, transactions.ErrInvalidRequest),
		errors.Is(err, transactions.ErrInsufficientStock),
		errors.Is(err, transactions.ErrGatewayRejected),
		errors.Is(err, products.ErrInvalid),
		errors.Is(err, products.ErrNameTaken):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error, txID string) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", code), zap.String("transaction_id", txID), zap.Error(err))
	}
	writeJSON(w, code, errorResp{Error: msg, TransactionID: txID})
}
