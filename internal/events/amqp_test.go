package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	kinds      []string
	published  []published
	declareErr error
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declareErr != nil {
		return f.declareErr
	}
	f.declared = append(f.declared, name)
	f.kinds = append(f.kinds, kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNewAMQPPublisher_DeclaresTopicExchange(t *testing.T) {
	ch := &fakeChannel{}
	_, err := NewAMQPPublisher(ch, "")
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultExchange}, ch.declared)
	assert.Equal(t, []string{"topic"}, ch.kinds)
}

func TestNewAMQPPublisher_DeclareError(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	_, err := NewAMQPPublisher(ch, "custom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewAMQPPublisher(ch, "custom.events")
	require.NoError(t, err)

	err = p.Publish(context.Background(), Event{
		Type:    TypeLeadScored,
		UserID:  "user-1",
		Payload: LeadScored{LeadID: "lead-1", PriorityScore: 7, PriorityLevel: "high", FirstScore: true},
	})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "custom.events", got.exchange)
	assert.Equal(t, TypeLeadScored, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.NotEmpty(t, got.msg.MessageId)

	var body struct {
		ID         string    `json:"id"`
		Type       string    `json:"type"`
		UserID     string    `json:"user_id"`
		OccurredAt time.Time `json:"occurred_at"`
		Payload    LeadScored
	}
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, got.msg.MessageId, body.ID)
	assert.Equal(t, "user-1", body.UserID)
	assert.False(t, body.OccurredAt.IsZero())
	assert.Equal(t, "lead-1", body.Payload.LeadID)
	assert.True(t, body.Payload.FirstScore)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewAMQPPublisher(ch, "")
	require.NoError(t, err)
	ch.publishErr = errors.New("channel closed")

	err = p.Publish(context.Background(), Event{Type: TypeFocusGenerated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeFocusGenerated)
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewAMQPPublisher(ch, "")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
