package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

// Handler processes one decoded sync event. Returning nil commits the
// message.
type Handler func(ctx context.Context, env Envelope, run model.SyncRun) error

// messageReader is the subset of *kafka.Reader the Consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads ReservationsSynced events in a consumer group.
type Consumer struct {
	r   messageReader
	log *slog.Logger
}

// NewConsumer joins group on topic.
func NewConsumer(brokers []string, group, topic string, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return &Consumer{r: r, log: logger}
}

// Run hands every message to h until ctx is cancelled. Undecodable messages
// are logged and committed; a handler error leaves the message uncommitted
// and is logged. Run returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		env, run, err := DecodeSynced(m.Value)
		if err != nil {
			c.log.Warn("dropping undecodable event", "offset", m.Offset, "error", err)
		} else if err := h(ctx, env, run); err != nil {
			c.log.Error("handling event failed", "event_id", env.EventID, "error", err)
			continue
		}

		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Warn("committing offset failed", "offset", m.Offset, "error", err)
		}
	}
}
