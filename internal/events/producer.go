package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

// ErrClosed is returned by PublishSynced after Close.
var ErrClosed = errors.New("events: producer closed")

// DefaultBuffer is the inbox capacity used when none is given.
const DefaultBuffer = 256

// messageWriter is the subset of *kafka.Writer the Producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues events on an inbox channel and writes them from a single
// goroutine, so a slow broker never blocks a sync.
type Producer struct {
	w       messageWriter
	name    string
	inbox   chan kafka.Message
	closeCh chan struct{}
	done    chan struct{}
	now     func() time.Time
	log     *slog.Logger

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewProducer creates a Producer for topic on brokers. Call Start before
// publishing.
func NewProducer(brokers []string, topic, name string, buf int, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newProducer(w, name, buf, logger)
}

func newProducer(w messageWriter, name string, buf int, logger *slog.Logger) *Producer {
	if buf <= 0 {
		buf = DefaultBuffer
	}
	return &Producer{
		w:       w,
		name:    name,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
		log:     logger,
	}
}

// Start runs the writer loop until ctx is cancelled or Close is called.
// Either way the producer stops accepting events and queued messages are
// flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-ctx.Done():
				p.stop()
				p.drain()
				return
			case <-p.closeCh:
				p.stop()
				p.drain()
				return
			}
		}
	}()
}

// stop rejects further events. Publishers blocked on a full inbox are
// released through closeCh before the write lock is taken.
func (p *Producer) stop() {
	p.stopOnce.Do(func() { close(p.closeCh) })
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.log.Warn("closing kafka writer", "error", err)
			}
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("publishing event failed", "key", string(m.Key), "error", err)
	}
}

// PublishSynced enqueues a ReservationsSynced event for run. It blocks only
// while the inbox is full.
func (p *Producer) PublishSynced(ctx context.Context, run model.SyncRun) error {
	env, err := NewSyncedEnvelope(p.name, run, p.now())
	if err != nil {
		return fmt.Errorf("encode sync event: %w", err)
	}
	value, err := marshalEnvelope(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   PartitionKey(run.TenantID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(EventReservationsSynced)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-p.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to be written.
// It must be called after Start.
func (p *Producer) Close() {
	p.stop()
	<-p.done
}
