package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-checkout-payments/internal/products"
	"github.com/ariefcatur/go-checkout-payments/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductService interface {
	Create(ctx context.Context, p products.Product) (products.Product, error)
	List(ctx context.Context) ([]products.Product, error)
	Get(ctx context.Context, id string) (products.Product, error)
	Update(ctx context.Context, id string, u products.Update) (products.Product, error)
	Delete(ctx context.Context, id string) error
}

type ProductsHandler struct {
	Svc   ProductService
	Cache redisx.Cache
	Log   *zap.Logger
}

type createProductReq struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description string           `json:"description" validate:"max=2000"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Quantity    *int             `json:"quantity" validate:"required,min=0"`
}

type updateProductReq struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity" validate:"omitempty,min=0"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Post("/products", h.create)
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Put("/products/{id}", h.update)
	r.Delete("/products/{id}", h.delete)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Svc.Create(r.Context(), products.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Quantity:    *req.Quantity,
	})
	if err != nil {
		writeError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key := redisx.ProductViewKey(id)

	if b, err := h.Cache.Get(r.Context(), key); err == nil && len(b) > 0 {
		writeJSON(w, http.StatusOK, json.RawMessage(b))
		return
	}

	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err, "")
		return
	}
	if b, err := json.Marshal(p); err == nil {
		if err := h.Cache.Set(r.Context(), key, b, redisx.TTLProductView); err != nil {
			h.Log.Warn("cache product view", zap.String("product_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateProductReq
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Svc.Update(r.Context(), id, products.Update{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(w, h.Log, err, "")
		return
	}
	h.forget(r.Context(), id)
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeError(w, h.Log, err, "")
		return
	}
	h.forget(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) forget(ctx context.Context, id string) {
	if err := h.Cache.Del(context.WithoutCancel(ctx), redisx.ProductViewKey(id)); err != nil {
		h.Log.Warn("drop product view", zap.String("product_id", id), zap.Error(err))
	}
}
