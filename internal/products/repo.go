package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const productColumns = `id::text, name, COALESCE(description, ''), price::text, quantity, created_at, updated_at`

// Repo is the Postgres implementation of Store.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, price, quantity)
		VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Price.String(), p.Quantity)
	out, err := scanProduct(row)
	if err != nil {
		return Product{}, mapWriteErr(err)
	}
	return out, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) GetProductByName(ctx context.Context, name string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE name=$1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) UpdateProduct(ctx context.Context, id string, u Update) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	var price *string
	if u.Price != nil {
		v := u.Price.String()
		price = &v
	}
	row := r.DB.QueryRow(ctx, `
		UPDATE products
		SET name        = COALESCE($2, name),
		    description = CASE WHEN $3::text IS NULL THEN description ELSE NULLIF($3::text, '') END,
		    price       = COALESCE($4::numeric, price),
		    quantity    = COALESCE($5::integer, quantity),
		    updated_at  = now()
		WHERE id=$1
		RETURNING `+productColumns,
		id, u.Name, u.Description, price, u.Quantity)
	out, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, mapWriteErr(err)
	}
	return out, nil
}

func (r *Repo) DeleteProduct(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock subtracts qty only while enough stock remains, so two
// concurrent approvals can never oversell the product.
func (r *Repo) DecrementStock(ctx context.Context, id string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id=$1 AND quantity >= $2`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var stock int
	err = r.DB.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, id, stock, qty)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
		ts    [2]time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Quantity, &ts[0], &ts[1]); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("decode price %q: %w", price, err)
	}
	p.Price = d
	p.CreatedAt, p.UpdatedAt = ts[0], ts[1]
	return p, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrNameTaken
		case pgForeignKeyViolation:
			return ErrInUse
		}
	}
	return err
}
