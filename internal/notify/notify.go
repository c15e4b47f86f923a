// Package notify delivers storefront events such as cart, payment and order
// changes to interested subscribers.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TopicCartUpdated        = "cart.updated"
	TopicPaymentVerified    = "payment.verified"
	TopicPaymentRejected    = "payment.rejected"
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"

	// TopicAll subscribes a handler to every topic.
	TopicAll = "*"
)

type Event struct {
	Topic      string      `json:"topic"`
	Subject    string      `json:"subject"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(topic, subject string, payload interface{}) Event {
	return Event{Topic: topic, Subject: subject, OccurredAt: time.Now().UTC(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Handler func(ctx context.Context, ev Event) error

// Bus is an in-process publisher. Handlers run synchronously in subscription
// order; a failing handler is logged and does not stop the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[string][]Handler), logger: logger.Named("notify")}
}

func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[ev.Topic])+len(b.handlers[TopicAll]))
	targets = append(targets, b.handlers[ev.Topic]...)
	if ev.Topic != TopicAll {
		targets = append(targets, b.handlers[TopicAll]...)
	}
	b.mu.RUnlock()

	for _, h := range targets {
		if err := h(ctx, ev); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("topic", ev.Topic),
				zap.String("subject", ev.Subject),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
