package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-checkout-payments/internal/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-checkout-payments/internal/gateway")

type Config struct {
	BaseURL         string
	PrivateKey      string // bearer credential
	IntegritySecret string // signing key, never sent
	Timeout         time.Duration
}

// Client talks to the card-payment gateway's REST API.
type Client struct {
	http    *resty.Client
	secret  string
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	log = log.Named("gateway")
	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.PrivateKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	return &Client{
		http:    hc,
		secret:  cfg.IntegritySecret,
		breaker: newBreaker("payment-gateway", log),
		log:     log,
	}
}

// ProcessPayment signs req and creates the transaction on the gateway.
// Errors are either *RejectedError or *UnreachableError.
func (c *Client) ProcessPayment(ctx context.Context, req TransactionRequest) (TransactionResponse, error) {
	ctx, span := tracer.Start(ctx, "gateway.ProcessPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.reference", req.Reference),
		attribute.Int64("payment.amount_in_cents", req.AmountInCents),
	)

	req.Signature = Sign(req.Reference, req.AmountInCents, req.Currency, c.secret)

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, req)
	})
	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		err = &UnreachableError{Err: err}
		outcome = "unreachable"
	case errors.Is(err, ErrUnreachable):
		outcome = "unreachable"
	case err != nil:
		outcome = "rejected"
	}
	metrics.GatewayRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.log.Error("gateway call failed",
			zap.String("reference", req.Reference),
			zap.String("outcome", outcome),
			zap.Error(err))
		return TransactionResponse{}, err
	}

	out := res.(TransactionResponse)
	span.SetAttributes(attribute.String("payment.status", out.Data.Status))
	c.log.Info("gateway call succeeded",
		zap.String("reference", req.Reference),
		zap.String("gateway_transaction_id", out.Data.ID),
		zap.String("status", out.Data.Status))
	return out, nil
}

func (c *Client) post(ctx context.Context, req TransactionRequest) (TransactionResponse, error) {
	var (
		out  TransactionResponse
		body errorBody
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&body).
		Post("/transactions")
	if err != nil {
		return TransactionResponse{}, &UnreachableError{Err: err}
	}
	if !resp.IsSuccess() {
		return TransactionResponse{}, &RejectedError{
			StatusCode: resp.StatusCode(),
			Messages:   body.messages(),
		}
	}
	return out, nil
}
