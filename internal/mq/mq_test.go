package mq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/storefront-hq/backoffice/config"
	"github.com/storefront-hq/backoffice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback delivers published messages to the subscriber synchronously.
type loopback struct {
	published []Message
	channel   string
	closed    bool
}

func (l *loopback) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	l.channel = channel
	l.published = append(l.published, Message{ID: "m1", Data: data, Attributes: attrs})
	return "m1", nil
}

func (l *loopback) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for _, msg := range l.published {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (l *loopback) Close() error {
	l.closed = true
	return nil
}

func TestOrderEventsRoundTrip(t *testing.T) {
	backend := &loopback{}
	events := NewOrderEvents(backend, "storefront.orders")
	ctx := context.Background()

	sent := types.OrderEvent{
		Type:      types.OrderEventCreated,
		OrderID:   12,
		Status:    types.OrderStatusPending,
		Total:     decimal.RequireFromString("19.90"),
		ItemCount: 2,
	}
	require.NoError(t, events.PublishOrderEvent(ctx, sent))
	assert.Equal(t, "storefront.orders", backend.channel)
	assert.Equal(t, "order.created", backend.published[0].Attributes[attrEventType])

	var got []types.OrderEvent
	err := events.SubscribeOrderEvents(ctx, func(_ context.Context, e types.OrderEvent) error {
		got = append(got, e)
		return nil
	}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].OrderID)
	assert.True(t, sent.Total.Equal(got[0].Total))

	require.NoError(t, events.Close())
	assert.True(t, backend.closed)
}

func TestSubscribeOrderEventsDropsGarbage(t *testing.T) {
	backend := &loopback{published: []Message{{ID: "bad", Data: []byte("{not json")}}}
	events := NewOrderEvents(backend, "orders")

	var dropped string
	err := events.SubscribeOrderEvents(context.Background(), func(context.Context, types.OrderEvent) error {
		return errors.New("should not be called")
	}, func(msg Message, _ error) {
		dropped = msg.ID
	})
	require.NoError(t, err)
	assert.Equal(t, "bad", dropped)
}

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name        string
		redelivered bool
		err         error
		want        ackRecorder
	}{
		{"handled", false, nil, ackRecorder{acked: true}},
		{"first failure requeues", false, errors.New("ses down"), ackRecorder{nacked: true, requeue: true}},
		{"failure after redelivery drops", true, errors.New("ses down"), ackRecorder{nacked: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ackRecorder{}
			settle(amqp.Delivery{Acknowledger: rec, DeliveryTag: 1, Redelivered: tt.redelivered}, tt.err)
			assert.Equal(t, tt.want, *rec)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	events, err := NewFromConfig(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, events)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.Error(t, err)
}
