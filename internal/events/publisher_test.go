package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bellavista/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_RecordOrder(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, nil)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	order := models.NewOrder("ORD-7", "s1", []models.CartLine{{ID: "5", Name: "Tiramisu", Price: 8.99, Quantity: 2}},
		0.08, time.Now(), "15-20 minutes")
	require.NoError(t, p.RecordOrder(context.Background(), order))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "s1", string(w.msgs[0].Key))
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte(OrderPlaced)}}, w.msgs[0].Headers)

	var evt OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &evt))
	assert.Equal(t, OrderPlaced, evt.Type)
	assert.Equal(t, "ORD-7", evt.OrderID)
	assert.Equal(t, order.Total, evt.Total)
	require.NotNil(t, evt.Order)
	assert.Len(t, evt.Order.Items, 1)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewPublisherWithWriter(&fakeWriter{err: boom}, nil)

	err := p.RecordOrder(context.Background(), &models.Order{OrderNumber: "ORD-1"})
	assert.ErrorIs(t, err, boom)
}

func TestPublisher_DisabledWithoutBrokers(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.RecordOrder(context.Background(), &models.Order{OrderNumber: "ORD-1"}))
	assert.NoError(t, p.Close())
}
