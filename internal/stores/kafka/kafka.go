package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/orders"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type Conf struct {
	client producer
	topic  string
}

var _ orders.EventPublisher = (*Conf)(nil)

func NewConf(brokers []string, topic string) (*Conf, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &Conf{client: client, topic: topic}, nil
}

func (k *Conf) ProduceMessage(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("producing to %s: %w", topic, err)
	}
	return nil
}

func (k *Conf) PublishOrderEvent(ctx context.Context, eventType string, o orders.Order) error {
	event := OrderEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		OrderID:       o.ID,
		UserID:        o.UserID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		CancelledBy:   o.CancelledBy,
		Items:         o.OrderItems,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     time.Now().UTC(),
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return k.ProduceMessage(ctx, k.topic, []byte(o.ID), jsonData)
}

func (k *Conf) Close() {
	k.client.Close()
}
