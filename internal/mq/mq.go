package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storefront-hq/backoffice/config"
	"github.com/storefront-hq/backoffice/types"
)

const attrEventType = "event_type"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// OrderEvents publishes and consumes order lifecycle events on a single channel.
type OrderEvents struct {
	backend Backend
	channel string
}

// NewOrderEvents wraps backend for the given channel.
func NewOrderEvents(backend Backend, channel string) *OrderEvents {
	return &OrderEvents{backend: backend, channel: channel}
}

// NewFromConfig connects to the configured broker. It returns nil when events are disabled.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*OrderEvents, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.TrimSpace(cfg.Backend) {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return NewOrderEvents(backend, cfg.Channel), nil
}

// PublishOrderEvent sends event as JSON with its type as a message attribute.
func (o *OrderEvents) PublishOrderEvent(ctx context.Context, event types.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	_, err = o.backend.Publish(ctx, o.channel, data, map[string]string{attrEventType: string(event.Type)})
	return err
}

// SubscribeOrderEvents blocks delivering decoded events to handle until ctx is done.
// Undecodable messages are acknowledged and dropped so they are not redelivered forever.
func (o *OrderEvents) SubscribeOrderEvents(ctx context.Context, handle func(ctx context.Context, event types.OrderEvent) error, onDrop func(msg Message, err error)) error {
	return o.backend.Subscribe(ctx, o.channel, func(ctx context.Context, msg Message) error {
		var event types.OrderEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			if onDrop != nil {
				onDrop(msg, err)
			}
			return nil
		}
		return handle(ctx, event)
	})
}

// Close closes the underlying backend. It is a no-op on a nil receiver.
func (o *OrderEvents) Close() error {
	if o == nil {
		return nil
	}
	return o.backend.Close()
}
