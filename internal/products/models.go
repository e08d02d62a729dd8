package products

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrNameTaken         = errors.New("another product with this name already exists")
	ErrInUse             = errors.New("product is referenced by transactions")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalid           = errors.New("invalid product")
)

// maxPrice is the largest value the NUMERIC(12,2) price column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Update is a partial change; nil fields are left as they are.
type Update struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
}

func (u Update) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
}

func (p Product) validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name must not be empty", ErrInvalid)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	case !p.Price.Equal(p.Price.Round(2)):
		return fmt.Errorf("%w: price must have at most 2 decimal places", ErrInvalid)
	case p.Price.GreaterThan(maxPrice):
		return fmt.Errorf("%w: price must not exceed %s", ErrInvalid, maxPrice)
	case p.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalid)
	}
	return nil
}
