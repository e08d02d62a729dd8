package transactions

import (
	"encoding/json"
	"time"
)

const (
	EventTransactionFinalized = "TransactionFinalized"

	TopicTransactionFinalized = "transaction.finalized"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // transaction id
	Payload       json.RawMessage `json:"payload"`
}

type TransactionFinalizedPayload struct {
	TransactionID        string `json:"transaction_id"`
	ProductID            string `json:"product_id"`
	Quantity             int    `json:"quantity"`
	Status               Status `json:"status"`
	AmountInCents        int64  `json:"amount_in_cents"`
	GatewayTransactionID string `json:"gateway_transaction_id,omitempty"`
	StockUpdated         bool   `json:"stock_updated"`
}

// PartitionKey keeps every event for a product on one partition, in order.
func PartitionKey(productID string) []byte { return []byte(productID) }
