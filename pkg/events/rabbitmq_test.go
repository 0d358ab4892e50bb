package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel numbers publishes like a confirm-mode channel and leaves
// confirming to the test
type fakeChannel struct {
	mu        sync.Mutex
	next      uint64
	published []amqp.Publishing
	err       error
	confirms  chan amqp.Confirmation
	sent      chan uint64
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		next:     1,
		confirms: make(chan amqp.Confirmation),
		sent:     make(chan uint64, 16),
	}
}

func (f *fakeChannel) GetNextPublishSeqNo() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	tag := f.next
	f.next++
	f.published = append(f.published, msg)
	f.sent <- tag
	return nil
}

func (f *fakeChannel) Close() error {
	close(f.confirms)
	return nil
}

func (f *fakeChannel) messages() []amqp.Publishing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.Publishing(nil), f.published...)
}

func testEvent(eventType string, version int) WorkOrderEvent {
	return WorkOrderEvent{Type: eventType, TenantID: 3, WorkOrderID: "wo-1", Version: version}
}

func publishAsync(ctx context.Context, p *RabbitPublisher, event WorkOrderEvent) <-chan error {
	out := make(chan error, 1)
	go func() { out <- p.Publish(ctx, event) }()
	return out
}

func TestRabbitPublisher_Ack(t *testing.T) {
	ch := newFakeChannel()
	p := newRabbitPublisher(ch, ch.confirms, "work_orders", "crm-service")

	result := publishAsync(context.Background(), p, testEvent(WorkOrderCreated, 1))
	tag := <-ch.sent
	ch.confirms <- amqp.Confirmation{DeliveryTag: tag, Ack: true}

	require.NoError(t, <-result)

	msgs := ch.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "work_order.created:wo-1-1", msgs[0].MessageId)
	assert.Equal(t, amqp.Persistent, msgs[0].DeliveryMode)
	assert.Equal(t, "crm-service", msgs[0].Headers["x-source"])
}

func TestRabbitPublisher_Nack(t *testing.T) {
	ch := newFakeChannel()
	p := newRabbitPublisher(ch, ch.confirms, "work_orders", "crm-service")

	result := publishAsync(context.Background(), p, testEvent(WorkOrderCreated, 1))
	tag := <-ch.sent
	ch.confirms <- amqp.Confirmation{DeliveryTag: tag, Ack: false}

	err := <-result
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker rejected")
}

func TestRabbitPublisher_LateAckBelongsToEarlierPublish(t *testing.T) {
	ch := newFakeChannel()
	p := newRabbitPublisher(ch, ch.confirms, "work_orders", "crm-service")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	first := publishAsync(ctx, p, testEvent(WorkOrderCreated, 1))
	firstTag := <-ch.sent
	assert.ErrorIs(t, <-first, context.DeadlineExceeded)

	second := publishAsync(context.Background(), p, testEvent(WorkOrderUpdated, 2))
	secondTag := <-ch.sent
	require.NotEqual(t, firstTag, secondTag)

	// the ack for the timed-out publish arrives first and must not settle the second one
	ch.confirms <- amqp.Confirmation{DeliveryTag: firstTag, Ack: true}
	select {
	case err := <-second:
		t.Fatalf("second publish settled by a stale confirm: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	ch.confirms <- amqp.Confirmation{DeliveryTag: secondTag, Ack: false}
	assert.Error(t, <-second)
}

func TestRabbitPublisher_StaleConfirmsDoNotBlock(t *testing.T) {
	ch := newFakeChannel()
	p := newRabbitPublisher(ch, ch.confirms, "work_orders", "crm-service")

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		result := publishAsync(ctx, p, testEvent(WorkOrderUpdated, i+1))
		<-ch.sent
		assert.Error(t, <-result)
		cancel()
	}
	// nobody waits for these; the unbuffered send only completes if they are drained
	for tag := uint64(1); tag <= 3; tag++ {
		ch.confirms <- amqp.Confirmation{DeliveryTag: tag, Ack: true}
	}

	result := publishAsync(context.Background(), p, testEvent(WorkOrderDeleted, 3))
	tag := <-ch.sent
	ch.confirms <- amqp.Confirmation{DeliveryTag: tag, Ack: true}
	assert.NoError(t, <-result)
}

func TestRabbitPublisher_PublishError(t *testing.T) {
	ch := newFakeChannel()
	ch.err = errors.New("channel/connection is not open")
	p := newRabbitPublisher(ch, ch.confirms, "work_orders", "crm-service")

	err := p.Publish(context.Background(), testEvent(WorkOrderCreated, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish work_order.created")
	assert.Empty(t, p.waiting)
}

func TestRabbitPublisher_ChannelClosed(t *testing.T) {
	ch := newFakeChannel()
	p := newRabbitPublisher(ch, ch.confirms, "work_orders", "crm-service")

	result := publishAsync(context.Background(), p, testEvent(WorkOrderCreated, 1))
	<-ch.sent
	require.NoError(t, p.Close())

	assert.ErrorIs(t, <-result, errChannelClosed)
	assert.ErrorIs(t, p.Publish(context.Background(), testEvent(WorkOrderCreated, 1)), errChannelClosed)
}

func TestWorkOrderEvent_MessageID(t *testing.T) {
	saved := testEvent(WorkOrderUpdated, 4)
	deleted := testEvent(WorkOrderDeleted, 4)

	assert.Equal(t, "work_order.updated:wo-1-4", saved.MessageID())
	assert.NotEqual(t, saved.MessageID(), deleted.MessageID())
}
