// Package projector keeps the Redis read views coherent with finalized
// purchase attempts. It runs behind the transaction.finalized consumer.
package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkax "github.com/ariefcatur/go-checkout-payments/internal/kafka"
	"github.com/ariefcatur/go-checkout-payments/internal/redisx"
	"github.com/ariefcatur/go-checkout-payments/internal/transactions"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TransactionReader interface {
	Get(ctx context.Context, id string) (transactions.Result, error)
}

type Service struct {
	cache redisx.Cache
	txs   TransactionReader
	name  string
	log   *zap.Logger
}

// New builds the projector. name scopes its dedup keys.
func New(cache redisx.Cache, txs TransactionReader, name string, log *zap.Logger) *Service {
	return &Service{cache: cache, txs: txs, name: name, log: log.Named("projector")}
}

// HandleTransactionFinalized is installed as the consumer handler. A returned
// error leaves the offset uncommitted.
func (s *Service) HandleTransactionFinalized(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m.Headers, "x-event-type"); t != "" && t != transactions.EventTransactionFinalized {
		return nil
	}

	var env transactions.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// Redelivery cannot fix a malformed message.
		s.log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != transactions.EventTransactionFinalized {
		return nil
	}
	p, err := kafkax.UnwrapPayload[transactions.TransactionFinalizedPayload](env.Payload)
	if err != nil {
		s.log.Error("drop event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	dkey := redisx.DedupKey(s.name, env.EventID)
	first, err := s.cache.SetNX(ctx, dkey, []byte("1"), redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.log.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}

	log := s.log.With(
		zap.String("event_id", env.EventID),
		zap.String("transaction_id", p.TransactionID),
		zap.String("product_id", p.ProductID),
		zap.String("status", string(p.Status)))

	if err := s.project(ctx, p); err != nil {
		// Release the key so the consumer's next attempt is not skipped as a duplicate.
		_ = s.cache.Del(ctx, dkey)
		log.Error("project transaction", zap.Error(err))
		return err
	}
	log.Info("transaction projected", zap.Bool("stock_updated", p.StockUpdated))
	return nil
}

func (s *Service) project(ctx context.Context, p transactions.TransactionFinalizedPayload) error {
	if p.Status == transactions.StatusApproved {
		if err := s.cache.Del(ctx, redisx.ProductViewKey(p.ProductID)); err != nil {
			return fmt.Errorf("drop product view: %w", err)
		}
	}

	view, err := s.txs.Get(ctx, p.TransactionID)
	if errors.Is(err, transactions.ErrNotFound) {
		return s.cache.Del(ctx, redisx.TransactionViewKey(p.TransactionID))
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	b, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, redisx.TransactionViewKey(p.TransactionID), b, redisx.TTLTransactionView)
}
