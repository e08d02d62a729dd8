package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-checkout-payments/internal/gateway"
	kafkax "github.com/ariefcatur/go-checkout-payments/internal/kafka"
	"github.com/ariefcatur/go-checkout-payments/internal/metrics"
	"github.com/ariefcatur/go-checkout-payments/internal/products"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-checkout-payments/internal/transactions")

// ProductStore is the slice of the catalog the orchestrator needs.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (products.Product, error)
	DecrementStock(ctx context.Context, id string, qty int) error
}

type Store interface {
	CreateTransaction(ctx context.Context, t *Transaction) error
	SaveTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	ListByProduct(ctx context.Context, productID string) ([]Transaction, error)
}

type PaymentGateway interface {
	ProcessPayment(ctx context.Context, req gateway.TransactionRequest) (gateway.TransactionResponse, error)
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Config struct {
	Fees        Fees
	Currency    string
	ServiceName string
}

type CreateInput struct {
	ProductID       string
	Quantity        int
	PaymentMethod   gateway.PaymentMethod
	AcceptanceToken string
	DeliveryAddress string
	CustomerName    string
	CustomerEmail   string
}

// Service runs purchase attempts: it checks stock, prices the order, records
// a PENDING transaction, charges through the gateway and settles stock.
type Service struct {
	store    Store
	products ProductStore
	gateway  PaymentGateway
	events   Publisher // optional
	cfg      Config
	log      *zap.Logger
}

func NewService(store Store, ps ProductStore, gw PaymentGateway, events Publisher, cfg Config, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		products: ps,
		gateway:  gw,
		events:   events,
		cfg:      cfg,
		log:      log.Named("transactions"),
	}
}

// Create executes one purchase attempt.
//
// Failures before the PENDING record is written leave no trace. After that
// point the final state of the attempt is always saved, and the returned
// Result describes it even when err is non-nil.
func (s *Service) Create(ctx context.Context, in CreateInput) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "transactions.Create")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "purchase attempt failed")
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("product.id", in.ProductID), attribute.Int("purchase.quantity", in.Quantity))

	log := s.log.With(zap.String("product_id", in.ProductID))
	log.Info("creating transaction", zap.Int("quantity", in.Quantity))

	if in.ProductID == "" || in.Quantity <= 0 {
		return Result{}, fmt.Errorf("%w: product id and a positive quantity are required", ErrInvalidRequest)
	}

	product, err := s.products.GetProduct(ctx, in.ProductID)
	if errors.Is(err, products.ErrNotFound) {
		log.Warn("product not found")
		return Result{}, fmt.Errorf("%w: %s", ErrProductNotFound, in.ProductID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load product %s: %w", in.ProductID, err)
	}
	if product.Quantity < in.Quantity {
		log.Warn("insufficient stock", zap.Int("available", product.Quantity), zap.Int("requested", in.Quantity))
		return Result{}, fmt.Errorf("%w: %d available, %d requested", ErrInsufficientStock, product.Quantity, in.Quantity)
	}

	cents, err := s.cfg.Fees.TotalCents(product.Price, in.Quantity)
	if err != nil {
		log.Warn("total out of range", zap.String("price", product.Price.String()), zap.Error(err))
		return Result{}, err
	}
	tx := &Transaction{
		ID:              uuid.NewString(),
		ProductID:       product.ID,
		Quantity:        in.Quantity,
		Amount:          CentsToAmount(cents),
		Status:          StatusPending,
		DeliveryAddress: in.DeliveryAddress,
		CustomerName:    in.CustomerName,
		CustomerEmail:   in.CustomerEmail,
	}
	log = log.With(zap.String("transaction_id", tx.ID))
	span.SetAttributes(attribute.String("transaction.id", tx.ID))

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		log.Error("open pending transaction", zap.Error(err))
		return Result{}, fmt.Errorf("%w: open pending transaction: %w", ErrPersistence, err)
	}
	log.Info("transaction pending", zap.Int64("amount_in_cents", cents))

	// The attempt is on record now; whatever happens below, its final state
	// is written before returning.
	stockUpdated := false
	defer func() {
		res, err = s.finalize(ctx, tx, cents, stockUpdated, err, log)
	}()

	resp, err := s.gateway.ProcessPayment(ctx, gateway.TransactionRequest{
		AcceptanceToken:   in.AcceptanceToken,
		AmountInCents:     cents,
		Currency:          s.cfg.Currency,
		Reference:         tx.ID,
		CustomerEmail:     in.CustomerEmail,
		PaymentMethodType: in.PaymentMethod.Type,
		PaymentMethod:     &in.PaymentMethod,
	})
	if err != nil {
		tx.fail(err.Error())
		log.Error("payment gateway call failed", zap.Error(err))
		if errors.Is(err, gateway.ErrRejected) {
			return Result{}, fmt.Errorf("%w: %w", ErrGatewayRejected, err)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrGatewayUnreachable, err)
	}

	tx.GatewayTransactionID = strPtr(resp.Data.ID)
	tx.GatewayPaymentMethodType = strPtr(resp.Data.PaymentMethodType)
	tx.GatewayStatusMessage = nil
	if resp.Data.StatusMessage != nil {
		tx.GatewayStatusMessage = strPtr(*resp.Data.StatusMessage)
	}
	tx.transition(StatusFromGateway(resp.Data.Status))
	if resp.Data.Reference != "" && resp.Data.Reference != tx.ID {
		log.Warn("gateway echoed a different reference", zap.String("gateway_reference", resp.Data.Reference))
	}

	if tx.Status != StatusApproved {
		log.Warn("transaction not approved",
			zap.String("gateway_status", resp.Data.Status),
			zap.String("status", string(tx.Status)))
		return Result{}, nil
	}

	// The customer has been charged; settle stock even if the caller went away.
	if err := s.products.DecrementStock(context.WithoutCancel(ctx), product.ID, in.Quantity); err != nil {
		metrics.StockInconsistencies.Inc()
		log.Error("stock update after approved payment failed", zap.Error(err))
		msg := "payment approved but stock update failed"
		tx.GatewayStatusMessage = &msg
		return Result{}, fmt.Errorf("%w: %w", ErrStockInconsistency, err)
	}
	stockUpdated = true
	log.Info("stock decremented", zap.Int("quantity", in.Quantity))
	return Result{}, nil
}

// finalize writes the attempt's final state and reports it. cause is the
// error the attempt is already failing with, if any.
func (s *Service) finalize(ctx context.Context, tx *Transaction, cents int64, stockUpdated bool, cause error, log *zap.Logger) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		log.Error("persist final transaction state",
			zap.String("status", string(tx.Status)),
			zap.Error(err))
		return tx.View(), errors.Join(cause, fmt.Errorf("%w: save final state: %w", ErrPersistence, err))
	}

	metrics.TransactionsTotal.WithLabelValues(string(tx.Status)).Inc()
	s.publishFinalized(ctx, tx, cents, stockUpdated)
	log.Info("transaction finalized", zap.String("status", string(tx.Status)))
	return tx.View(), cause
}

func (s *Service) publishFinalized(ctx context.Context, tx *Transaction, cents int64, stockUpdated bool) {
	if s.events == nil {
		return
	}
	payload := TransactionFinalizedPayload{
		TransactionID: tx.ID,
		ProductID:     tx.ProductID,
		Quantity:      tx.Quantity,
		Status:        tx.Status,
		AmountInCents: cents,
		StockUpdated:  stockUpdated,
	}
	if tx.GatewayTransactionID != nil {
		payload.GatewayTransactionID = *tx.GatewayTransactionID
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventTransactionFinalized,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.cfg.ServiceName,
		CorrelationID: tx.ID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	s.events.Publish(PartitionKey(tx.ProductID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventTransactionFinalized)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) Get(ctx context.Context, id string) (Result, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return t.View(), nil
}

// ListByProduct returns every recorded attempt against a product.
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]Result, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, err
	}
	txs, err := s.store.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(txs))
	for i := range txs {
		out = append(out, txs[i].View())
	}
	return out, nil
}
