package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is done with and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	defaultAttempts = 5
	defaultBackoff  = 200 * time.Millisecond
)

type Consumer struct {
	r        *kafka.Reader
	workers  int
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:        r,
		workers:  workers,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		log:      log.Named("kafka.consumer").With(zap.String("topic", topic), zap.String("group", group)),
	}
}

// Start fetches until ctx is done, fanning messages out to a worker pool.
// A failing message is retried in its worker with backoff; the offset is
// committed once the handler succeeds or the attempts run out. It returns nil
// on shutdown.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log := c.log.With(zap.Int("worker", id))
			for m := range jobs {
				if err := handleWithRetry(ctx, h, m, c.attempts, c.backoff, log); err != nil {
					if ctx.Err() != nil {
						// Uncommitted; the group redelivers it after restart.
						continue
					}
					log.Error("dropping message after retries",
						zap.Int("partition", m.Partition),
						zap.Int64("offset", m.Offset),
						zap.Int("attempts", c.attempts),
						zap.Error(err))
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.Error("commit offset", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i)
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handleWithRetry runs h up to attempts times, doubling the wait after each
// failure. It stops early when ctx is done and returns the last error.
func handleWithRetry(ctx context.Context, h Handler, m kafka.Message, attempts int, backoff time.Duration, log *zap.Logger) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		log.Warn("handle message",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", i),
			zap.Error(err))
		if i == attempts {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
		backoff *= 2
	}
	return err
}
