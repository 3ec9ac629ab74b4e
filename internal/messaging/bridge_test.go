package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/jobmatch-be/shared/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	mu     sync.Mutex
	acks   []uint64
	nacks  []uint64
	queued []bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.queued = append(a.queued, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks), len(a.nacks)
}

type fakeSource struct {
	ch  chan amqp.Delivery
	err error
}

func (s *fakeSource) Consume(string) (<-chan amqp.Delivery, error) {
	return s.ch, s.err
}

type recordingPublisher struct {
	bodies      [][]byte
	contentType string
	err         error
}

func (p *recordingPublisher) Publish(ctx context.Context, body []byte, contentType string) error {
	p.bodies = append(p.bodies, body)
	p.contentType = contentType
	return p.err
}

func TestPublishCreated(t *testing.T) {
	pub := &recordingPublisher{}
	m := msg("m1", 0)

	require.NoError(t, PublishCreated(context.Background(), pub, m, "factory-1"))
	require.Len(t, pub.bodies, 1)
	assert.Equal(t, "application/json", pub.contentType)

	ev, err := DecodeEvent(pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, EventMessageCreated, ev.Type)
	assert.Equal(t, "factory-1", ev.RecipientID)
	assert.Equal(t, "m1", ev.Message.ID)
	assert.True(t, m.CreatedAt.Equal(ev.Message.CreatedAt))
}

func TestPublishCreated_PropagatesError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	assert.Error(t, PublishCreated(context.Background(), pub, msg("m1", 0), "factory-1"))
	assert.Len(t, pub.bodies, 1, "single attempt")
}

func TestDecodeEvent_Invalid(t *testing.T) {
	_, err := DecodeEvent([]byte("{"))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{"type":"message.created","message":{}}`))
	assert.Error(t, err)
}

func TestBridge_RelaysToHub(t *testing.T) {
	hub := NewHub(logger.NewDiscard(), 4)
	sub := hub.Subscribe("conv-1")
	defer sub.Close()

	ack := &fakeAcknowledger{}
	source := &fakeSource{ch: make(chan amqp.Delivery, 2)}

	body, err := json.Marshal(Event{Type: EventMessageCreated, Message: msg("m1", 0), RecipientID: "factory-1"})
	require.NoError(t, err)
	source.ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
	source.ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("garbage")}

	ctx, cancel := context.WithCancel(context.Background())
	bridge := NewBridge(source, hub, "api-test", logger.NewDiscard())
	assert.False(t, bridge.Healthy(), "not running yet")
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	select {
	case m := <-sub.C:
		assert.Equal(t, "m1", m.ID)
	case <-time.After(time.Second):
		t.Fatal("message not relayed")
	}

	require.Eventually(t, func() bool {
		acks, nacks := ack.counts()
		return acks == 1 && nacks == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []bool{false}, ack.queued, "malformed events are not requeued")

	assert.True(t, bridge.Healthy())

	cancel()
	assert.NoError(t, <-done)
	assert.False(t, bridge.Healthy())
}

func TestBridge_ClosedChannel(t *testing.T) {
	source := &fakeSource{ch: make(chan amqp.Delivery)}
	bridge := NewBridge(source, NewHub(logger.NewDiscard(), 0), "api-test", logger.NewDiscard())

	done := make(chan error, 1)
	go func() { done <- bridge.Run(context.Background()) }()
	require.Eventually(t, bridge.Healthy, time.Second, 5*time.Millisecond)

	// broker connection lost
	close(source.ch)
	assert.Error(t, <-done)
	assert.False(t, bridge.Healthy(), "a dead bridge reports unhealthy")
}

func TestBridge_ConsumeError(t *testing.T) {
	source := &fakeSource{err: errors.New("no queue")}
	err := NewBridge(source, NewHub(logger.NewDiscard(), 0), "api-test", logger.NewDiscard()).Run(context.Background())
	assert.ErrorContains(t, err, "failed to start bridge consumer")
}
