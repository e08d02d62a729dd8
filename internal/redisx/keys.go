package redisx

import (
	"fmt"
	"time"
)

const (
	// Cached result view: txn:view:{transaction_id} -> JSON transactions.Result
	KeyTransactionView = "txn:view:%s"

	// Cached catalog entry: product:view:{product_id} -> JSON products.Product
	KeyProductView = "product:view:%s"

	// Event dedup: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLTransactionView = 5 * time.Minute
	TTLProductView     = time.Minute
	TTLDedup           = 48 * time.Hour
)

func TransactionViewKey(id string) string { return fmt.Sprintf(KeyTransactionView, id) }

func ProductViewKey(id string) string { return fmt.Sprintf(KeyProductView, id) }

func DedupKey(consumer, eventID string) string { return fmt.Sprintf(KeyDedup, consumer, eventID) }
