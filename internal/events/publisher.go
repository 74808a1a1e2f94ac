package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	ResourceCreated = "resource.created"
	ResourceUpdated = "resource.updated"
	ResourceDeleted = "resource.deleted"
	MediaOrphaned   = "media.orphaned"
)

type Event struct {
	Type       string    `json:"type"`
	Kind       string    `json:"kind,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	OwnerID    string    `json:"owner_id,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

func (e Event) key() string {
	if e.ResourceID != "" {
		return e.ResourceID
	}
	return e.Identifier
}

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("publisher closed")
)

const defaultQueueSize = 1024

// Publisher sends lifecycle events from a background worker so callers never
// wait on the broker. A nil *Publisher drops events.
type Publisher struct {
	writer  Writer
	log     *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan kafkago.Message
	done   chan struct{}
}

func NewPublisher(brokers []string, topic string, log *zap.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, log)
}

func NewPublisherWithWriter(w Writer, log *zap.Logger) *Publisher {
	return newPublisher(w, log, defaultQueueSize)
}

func newPublisher(w Writer, log *zap.Logger, size int) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Publisher{
		writer:  w,
		log:     log,
		timeout: 5 * time.Second,
		queue:   make(chan kafkago.Message, size),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.log.Warn("publish event failed", zap.String("type", messageType(msg)), zap.String("key", string(msg.Key)), zap.Error(err))
		}
		cancel()
	}
}

func messageType(msg kafkago.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "type" {
			return string(h.Value)
		}
	}
	return ""
}

// Publish queues one event and returns without waiting for the broker. The
// caller's context does not cancel delivery. Delivery failures are logged.
func (p *Publisher) Publish(_ context.Context, ev Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafkago.Message{
		Key:     []byte(ev.key()),
		Value:   b,
		Time:    ev.At,
		Headers: []kafkago.Header{{Key: "type", Value: []byte(ev.Type)}},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publish %s: %w", ev.Type, ErrClosed)
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.log.Warn("event dropped", zap.String("type", ev.Type), zap.String("key", ev.key()), zap.Error(ErrQueueFull))
		return fmt.Errorf("publish %s: %w", ev.Type, ErrQueueFull)
	}
}

// Close flushes queued events and closes the writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
