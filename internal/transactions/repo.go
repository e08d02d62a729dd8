package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id::text, product_id::text, quantity, amount::text, status,
	gateway_transaction_id, gateway_payment_method_type, gateway_status_message,
	delivery_address, customer_name, customer_email, created_at, updated_at`

// Repo is the Postgres implementation of Store.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) CreateTransaction(ctx context.Context, t *Transaction) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO transactions(id, product_id, quantity, amount, status,
			gateway_transaction_id, gateway_payment_method_type, gateway_status_message,
			delivery_address, customer_name, customer_email)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		t.ID, t.ProductID, t.Quantity, t.Amount.String(), string(t.Status),
		t.GatewayTransactionID, t.GatewayPaymentMethodType, t.GatewayStatusMessage,
		t.DeliveryAddress, t.CustomerName, t.CustomerEmail,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// SaveTransaction writes the mutable part of an attempt: its status and the
// gateway fields.
func (r *Repo) SaveTransaction(ctx context.Context, t *Transaction) error {
	err := r.DB.QueryRow(ctx, `
		UPDATE transactions
		SET status=$2, gateway_transaction_id=$3, gateway_payment_method_type=$4,
		    gateway_status_message=$5, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		t.ID, string(t.Status), t.GatewayTransactionID, t.GatewayPaymentMethodType, t.GatewayStatusMessage,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Repo) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Transaction{}, ErrNotFound
	}
	t, err := scanTransaction(r.DB.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return t, err
}

func (r *Repo) ListByProduct(ctx context.Context, productID string) ([]Transaction, error) {
	out := []Transaction{}
	if _, err := uuid.Parse(productID); err != nil {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE product_id=$1
		ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t      Transaction
		amount string
		status string
		ts     [2]time.Time
	)
	err := row.Scan(&t.ID, &t.ProductID, &t.Quantity, &amount, &status,
		&t.GatewayTransactionID, &t.GatewayPaymentMethodType, &t.GatewayStatusMessage,
		&t.DeliveryAddress, &t.CustomerName, &t.CustomerEmail, &ts[0], &ts[1])
	if err != nil {
		return Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	t.Amount = d
	t.Status = StatusFromGateway(status)
	t.CreatedAt, t.UpdatedAt = ts[0], ts[1]
	return t, nil
}
