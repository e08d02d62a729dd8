package transactions

import "errors"

var (
	ErrNotFound       = errors.New("transaction not found")
	ErrInvalidRequest = errors.New("invalid transaction request")

	// Raised before the pending record exists; nothing is persisted.
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock for the requested quantity")

	// Raised after the pending record exists; the attempt is still persisted.
	ErrGatewayRejected    = errors.New("payment rejected by gateway")
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
	ErrPersistence        = errors.New("transaction persistence failure")
	ErrStockInconsistency = errors.New("payment approved but stock could not be updated")
)
