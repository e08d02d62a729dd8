package transactions

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxTotalCents is the largest charge the NUMERIC(12,2) amount column can
// record.
const MaxTotalCents int64 = 999_999_999_999

// Fees are fixed per-transaction charges in minor currency units.
type Fees struct {
	BaseCents     int64
	DeliveryCents int64
}

// TotalCents rounds the product subtotal to whole minor units before adding
// the fees, so the result is an exact integer suitable for signing. Totals
// above MaxTotalCents are rejected with ErrInvalidRequest.
func (f Fees) TotalCents(price decimal.Decimal, qty int) (int64, error) {
	total := price.Mul(decimal.NewFromInt(int64(qty))).Mul(hundred).Round(0).
		Add(decimal.NewFromInt(f.BaseCents)).
		Add(decimal.NewFromInt(f.DeliveryCents))
	if total.GreaterThan(decimal.NewFromInt(MaxTotalCents)) {
		return 0, fmt.Errorf("%w: total of %s cents exceeds the %d limit", ErrInvalidRequest, total, MaxTotalCents)
	}
	if total.IsNegative() {
		return 0, fmt.Errorf("%w: total of %s cents is negative", ErrInvalidRequest, total)
	}
	return total.IntPart(), nil
}

// CentsToAmount converts minor units to the major unit stored locally.
func CentsToAmount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
