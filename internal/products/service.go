package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the catalog persistence. DecrementStock must be a single conditional
// update: it fails with ErrInsufficientStock instead of driving quantity negative.
type Store interface {
	CreateProduct(ctx context.Context, p Product) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	GetProductByName(ctx context.Context, name string) (Product, error)
	// UpdateProduct applies u to the stored row; fields left nil keep their
	// current value, so a catalog edit never rewrites a concurrent stock change.
	UpdateProduct(ctx context.Context, id string, u Update) (Product, error)
	DeleteProduct(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, id string, qty int) error
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log.Named("products")}
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.validate(); err != nil {
		return Product{}, err
	}
	if _, err := s.store.GetProductByName(ctx, p.Name); err == nil {
		s.log.Warn("product name already exists", zap.String("name", p.Name))
		return Product{}, ErrNameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Product{}, err
	}

	p.ID = uuid.NewString()
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.log.Info("product created", zap.String("product_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("product not found", zap.String("product_id", id))
		}
		return Product{}, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, u Update) (Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
		if name != p.Name {
			other, err := s.store.GetProductByName(ctx, name)
			switch {
			case err == nil && other.ID != id:
				s.log.Warn("rename to existing product name", zap.String("product_id", id), zap.String("name", name))
				return Product{}, ErrNameTaken
			case err != nil && !errors.Is(err, ErrNotFound):
				return Product{}, err
			}
		}
	}

	// Validate against the current row; the store re-applies u to whatever
	// it holds at write time.
	u.Apply(&p)
	if err := p.validate(); err != nil {
		return Product{}, err
	}
	updated, err := s.store.UpdateProduct(ctx, id, u)
	if err != nil {
		s.log.Error("update product", zap.String("product_id", id), zap.Error(err))
		return Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	s.log.Info("product updated", zap.String("product_id", id))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("product_id", id))
	return nil
}
