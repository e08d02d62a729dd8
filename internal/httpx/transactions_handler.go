package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-checkout-payments/internal/gateway"
	"github.com/ariefcatur/go-checkout-payments/internal/redisx"
	"github.com/ariefcatur/go-checkout-payments/internal/transactions"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TransactionService interface {
	Create(ctx context.Context, in transactions.CreateInput) (transactions.Result, error)
	Get(ctx context.Context, id string) (transactions.Result, error)
	ListByProduct(ctx context.Context, productID string) ([]transactions.Result, error)
}

type TransactionsHandler struct {
	Svc   TransactionService
	Cache redisx.Cache
	Log   *zap.Logger
}

type paymentMethodReq struct {
	Type         string `json:"type" validate:"omitempty,oneof=CARD NEQUI PSE BANCOLOMBIA_TRANSFER"`
	Installments int    `json:"installments" validate:"omitempty,min=1,max=36"`
	Token        string `json:"token" validate:"required"`
}

type createTransactionReq struct {
	ProductID       string            `json:"productId" validate:"required"`
	Quantity        int               `json:"quantity" validate:"required,min=1"`
	PaymentMethod   *paymentMethodReq `json:"paymentMethod" validate:"required"`
	AcceptanceToken string            `json:"acceptanceToken"`
	DeliveryAddress string            `json:"deliveryAddress" validate:"required,max=500"`
	CustomerName    string            `json:"customerName" validate:"required,max=255"`
	CustomerEmail   string            `json:"customerEmail" validate:"required,email,max=255"`
}

func (req createTransactionReq) input() transactions.CreateInput {
	pm := gateway.PaymentMethod{
		Type:         req.PaymentMethod.Type,
		Installments: req.PaymentMethod.Installments,
		Token:        req.PaymentMethod.Token,
	}
	if pm.Type == "" {
		pm.Type = gateway.MethodCard
	}
	if pm.Installments == 0 {
		pm.Installments = 1
	}
	return transactions.CreateInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		PaymentMethod:   pm,
		AcceptanceToken: req.AcceptanceToken,
		DeliveryAddress: req.DeliveryAddress,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
	}
}

func (h *TransactionsHandler) Register(r chi.Router) {
	r.Post("/transactions", h.create)
	r.Get("/transactions/{id}", h.get)
	r.Get("/products/{id}/transactions", h.listByProduct)
}

func (h *TransactionsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionReq
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Svc.Create(r.Context(), req.input())
	if res.ID != "" {
		h.cacheView(r.Context(), res)
	}
	if res.Status == transactions.StatusApproved {
		// Stock changed; the cached product is stale.
		if err := h.Cache.Del(context.WithoutCancel(r.Context()), redisx.ProductViewKey(res.ProductID)); err != nil {
			h.Log.Warn("drop product view", zap.String("product_id", res.ProductID), zap.Error(err))
		}
	}
	if err != nil {
		writeError(w, h.Log, err, res.ID)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *TransactionsHandler) cacheView(ctx context.Context, res transactions.Result) {
	ctx = context.WithoutCancel(ctx)
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := h.Cache.Set(ctx, redisx.TransactionViewKey(res.ID), b, redisx.TTLTransactionView); err != nil {
		h.Log.Warn("cache transaction view", zap.String("transaction_id", res.ID), zap.Error(err))
	}
}

func (h *TransactionsHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key := redisx.TransactionViewKey(id)

	if b, err := h.Cache.Get(r.Context(), key); err == nil && len(b) > 0 {
		writeJSON(w, http.StatusOK, json.RawMessage(b))
		return
	}

	res, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err, "")
		return
	}
	h.cacheView(r.Context(), res)
	writeJSON(w, http.StatusOK, res)
}

func (h *TransactionsHandler) listByProduct(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListByProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
