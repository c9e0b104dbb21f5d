package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront-service/internal/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func TestNewConf_RequiresBrokers(t *testing.T) {
	_, err := NewConf(nil, "")
	assert.Error(t, err)
}

func TestPublishOrderEvent(t *testing.T) {
	p := &fakeProducer{}
	k := &Conf{client: p, topic: DefaultTopic}
	by := orders.CancelledByUser
	o := orders.Order{
		ID: "o-1", UserID: "u-1",
		OrderStatus: orders.StatusCancelled, PaymentStatus: orders.PaymentPending, CancelledBy: &by,
		OrderItems:  []orders.OrderItem{{ProductID: "p-1", Name: "Tea", Price: 100, Quantity: 2}},
		TotalAmount: 200,
	}

	require.NoError(t, k.PublishOrderEvent(context.Background(), orders.EventOrderCancelled, o))
	require.Len(t, p.records, 1)
	assert.Equal(t, DefaultTopic, p.records[0].Topic)
	assert.Equal(t, []byte("o-1"), p.records[0].Key)

	var event OrderEvent
	require.NoError(t, json.Unmarshal(p.records[0].Value, &event))
	assert.Equal(t, orders.EventOrderCancelled, event.Type)
	assert.Equal(t, "o-1", event.OrderID)
	assert.Equal(t, orders.StatusCancelled, event.OrderStatus)
	require.NotNil(t, event.CancelledBy)
	assert.Equal(t, orders.CancelledByUser, *event.CancelledBy)
	assert.NotEmpty(t, event.ID)

	k.Close()
	assert.True(t, p.closed)
}

func TestProduceMessage_Error(t *testing.T) {
	k := &Conf{client: &fakeProducer{err: errors.New("broker down")}, topic: DefaultTopic}
	err := k.ProduceMessage(context.Background(), DefaultTopic, nil, []byte("{}"))
	assert.ErrorContains(t, err, "broker down")
}
