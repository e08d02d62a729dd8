// Package memstore keeps the catalog and the transaction log in process
// memory. It backs STORAGE=memory and the service tests, and mirrors the
// Postgres repos' error contract.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-checkout-payments/internal/products"
	"github.com/ariefcatur/go-checkout-payments/internal/transactions"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]products.Product
	txs      map[string]transactions.Transaction
}

func New() *Store {
	return &Store{
		products: make(map[string]products.Product),
		txs:      make(map[string]transactions.Transaction),
	}
}

func (s *Store) CreateProduct(_ context.Context, p products.Product) (products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return products.Product{}, fmt.Errorf("product %s already exists", p.ID)
	}
	if s.nameTakenLocked(p.Name, p.ID) {
		return products.Product{}, products.ErrNameTaken
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]products.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]products.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (products.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProductByName(_ context.Context, name string) (products.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Name == name {
			return p, nil
		}
	}
	return products.Product{}, products.ErrNotFound
}

// UpdateProduct applies u to the stored product under the lock, so fields
// the caller did not set (quantity in particular) keep their current value.
func (s *Store) UpdateProduct(_ context.Context, id string, u products.Update) (products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	if u.Name != nil && s.nameTakenLocked(*u.Name, id) {
		return products.Product{}, products.ErrNameTaken
	}
	u.Apply(&p)
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return p, nil
}

// DeleteProduct refuses while any transaction references the product, like
// the foreign key does in Postgres.
func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return products.ErrNotFound
	}
	for _, t := range s.txs {
		if t.ProductID == id {
			return products.ErrInUse
		}
	}
	delete(s.products, id)
	return nil
}

// DecrementStock checks and subtracts under one lock.
func (s *Store) DecrementStock(_ context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return products.ErrNotFound
	}
	if p.Quantity < qty {
		return fmt.Errorf("%w: product %s has %d, requested %d", products.ErrInsufficientStock, id, p.Quantity, qty)
	}
	p.Quantity -= qty
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

func (s *Store) nameTakenLocked(name, exceptID string) bool {
	for _, p := range s.products {
		if p.Name == name && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateTransaction(_ context.Context, t *transactions.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	if _, ok := s.products[t.ProductID]; !ok {
		return fmt.Errorf("transaction %s references %s: %w", t.ID, t.ProductID, products.ErrNotFound)
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	s.txs[t.ID] = cloneTx(*t)
	return nil
}

func (s *Store) SaveTransaction(_ context.Context, t *transactions.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.txs[t.ID]
	if !ok {
		return transactions.ErrNotFound
	}
	cur.Status = t.Status
	cur.GatewayTransactionID = clonePtr(t.GatewayTransactionID)
	cur.GatewayPaymentMethodType = clonePtr(t.GatewayPaymentMethodType)
	cur.GatewayStatusMessage = clonePtr(t.GatewayStatusMessage)
	cur.UpdatedAt = time.Now().UTC()
	t.UpdatedAt = cur.UpdatedAt
	s.txs[t.ID] = cur
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (transactions.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.txs[id]
	if !ok {
		return transactions.Transaction{}, transactions.ErrNotFound
	}
	return cloneTx(t), nil
}

// ListByProduct returns the newest attempts first.
func (s *Store) ListByProduct(_ context.Context, productID string) ([]transactions.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []transactions.Transaction{}
	for _, t := range s.txs {
		if t.ProductID == productID {
			out = append(out, cloneTx(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Stored copies never share gateway pointers with the caller's value.
func cloneTx(t transactions.Transaction) transactions.Transaction {
	t.GatewayTransactionID = clonePtr(t.GatewayTransactionID)
	t.GatewayPaymentMethodType = clonePtr(t.GatewayPaymentMethodType)
	t.GatewayStatusMessage = clonePtr(t.GatewayStatusMessage)
	return t
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
