package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	return NewBroker(zaptest.NewLogger(t).Sugar())
}

func TestBroker_PublishReachesAllSubscribers(t *testing.T) {
	b := newTestBroker(t)

	ch1 := make(chan Message, 1)
	ch2 := make(chan Message, 1)
	b.Subscribe("t", ch1)
	b.Subscribe("t", ch2)

	require.NoError(t, b.Publish("t", "hello"))

	for _, ch := range []chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "t", msg.Topic)
			assert.Equal(t, "hello", msg.Payload)
		default:
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestBroker_PublishIsTopicScoped(t *testing.T) {
	b := newTestBroker(t)

	ch := make(chan Message, 1)
	b.Subscribe("a", ch)

	require.NoError(t, b.Publish("b", "nope"))
	assert.Empty(t, ch)
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBroker(t)

	ch := make(chan Message, 1)
	id := b.Subscribe("t", ch)
	b.Unsubscribe("t", id)

	require.NoError(t, b.Publish("t", "hello"))
	assert.Empty(t, ch)
	assert.Equal(t, 0, b.SubscriberCount("t"))
}

func TestBroker_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := newTestBroker(t)

	ch := make(chan Message, 1)
	b.Subscribe("t", ch)

	require.NoError(t, b.Publish("t", "first"))
	// Buffer is full now; this publish must not block.
	require.NoError(t, b.Publish("t", "second"))

	msg := <-ch
	assert.Equal(t, "first", msg.Payload)
	assert.Empty(t, ch)
}

func TestBroker_ForwarderSeesLocalPublishesOnly(t *testing.T) {
	b := newTestBroker(t)

	var forwarded []string
	b.AddForwarder(func(topic string, payload interface{}) {
		forwarded = append(forwarded, topic)
	})

	require.NoError(t, b.Publish("t", "local"))
	b.Inject("t", "remote")

	assert.Equal(t, []string{"t"}, forwarded)
}

func TestBroker_InjectDeliversLocally(t *testing.T) {
	b := newTestBroker(t)

	ch := make(chan Message, 1)
	b.Subscribe("t", ch)

	b.Inject("t", "remote")

	msg := <-ch
	assert.Equal(t, "remote", msg.Payload)
}

func TestBroker_PublishHookCountsDeliveries(t *testing.T) {
	b := newTestBroker(t)

	var seen []string
	b.SetPublishHook(func(topic string, elapsed time.Duration) {
		seen = append(seen, topic)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	})

	require.NoError(t, b.Publish("a", 1))
	b.Inject("b", 2)

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestBroker_DropHookFiresOnFullBuffer(t *testing.T) {
	b := newTestBroker(t)

	var drops int
	b.SetDropHook(func(topic string) {
		drops++
		assert.Equal(t, "t", topic)
	})

	ch := make(chan Message, 1)
	b.Subscribe("t", ch)

	require.NoError(t, b.Publish("t", "first"))
	require.NoError(t, b.Publish("t", "second"))

	assert.Equal(t, 1, drops)
}
