package transactions

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID        string
	ProductID string
	Quantity  int
	// Amount is the total charged, fees included, in major currency units.
	Amount decimal.Decimal
	Status Status

	GatewayTransactionID     *string
	GatewayPaymentMethodType *string
	GatewayStatusMessage     *string

	DeliveryAddress string
	CustomerName    string
	CustomerEmail   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result is the caller-facing view of a purchase attempt.
type Result struct {
	ID                   string          `json:"id"`
	ProductID            string          `json:"productId"`
	Status               Status          `json:"status"`
	Amount               decimal.Decimal `json:"amount"`
	GatewayTransactionID *string         `json:"gatewayTransactionId"`
	Message              string          `json:"message"`
}

func (t *Transaction) View() Result {
	msg := "payment " + strings.ToLower(string(t.Status))
	if t.GatewayStatusMessage != nil && *t.GatewayStatusMessage != "" {
		msg = *t.GatewayStatusMessage
	}
	return Result{
		ID:                   t.ID,
		ProductID:            t.ProductID,
		Status:               t.Status,
		Amount:               t.Amount,
		GatewayTransactionID: t.GatewayTransactionID,
		Message:              msg,
	}
}

// transition moves the attempt to a new status. Re-entering the current
// status is a no-op; an illegal move forces ERROR.
func (t *Transaction) transition(to Status) {
	if to == t.Status {
		return
	}
	if !CanTransition(t.Status, to) {
		t.Status = StatusError
		return
	}
	t.Status = to
}

func (t *Transaction) fail(msg string) {
	t.transition(StatusError)
	t.GatewayStatusMessage = &msg
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
