package pubsub

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is one broadcast as delivered to a subscriber.
type Message struct {
	Topic   string
	Payload interface{}
}

// SubscriberID identifies one subscription on one topic.
type SubscriberID uint64

// Broker is the in-process topic fan-out behind the router's Publish
// capability. Delivery is non-blocking: a subscriber whose channel is full
// misses the message (its next event of the same kind carries fresh state),
// so a slow connection can never stall the hot path.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[SubscriberID]chan<- Message
	nextID SubscriberID

	forwarders []func(topic string, payload interface{})
	onPublish  func(topic string, elapsed time.Duration)
	onDrop     func(topic string)

	logger *zap.SugaredLogger
}

func NewBroker(logger *zap.SugaredLogger) *Broker {
	return &Broker{
		topics: make(map[string]map[SubscriberID]chan<- Message),
		logger: logger,
	}
}

// Subscribe registers ch to receive every message published on topic.
// The channel is owned by the caller and should be buffered.
func (b *Broker) Subscribe(topic string, ch chan<- Message) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[SubscriberID]chan<- Message)
		b.topics[topic] = subs
	}
	subs[id] = ch
	return id
}

func (b *Broker) Unsubscribe(topic string, id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers payload to every local subscriber of topic and forwards
// it to any attached bridges (cross-instance replication).
func (b *Broker) Publish(topic string, payload interface{}) error {
	b.deliver(topic, payload)

	b.mu.RLock()
	forwarders := b.forwarders
	b.mu.RUnlock()
	for _, fwd := range forwarders {
		fwd(topic, payload)
	}
	return nil
}

// Inject delivers a message to local subscribers only, without re-forwarding.
// Used by bridges replaying remote traffic.
func (b *Broker) Inject(topic string, payload interface{}) {
	b.deliver(topic, payload)
}

func (b *Broker) deliver(topic string, payload interface{}) {
	b.mu.RLock()
	subs := b.topics[topic]
	targets := make([]chan<- Message, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	onPublish := b.onPublish
	onDrop := b.onDrop
	b.mu.RUnlock()

	start := time.Now()
	msg := Message{Topic: topic, Payload: payload}
	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
			b.logger.Warnw("subscriber buffer full, dropping message", "topic", topic)
			if onDrop != nil {
				onDrop(topic)
			}
		}
	}

	if onPublish != nil {
		onPublish(topic, time.Since(start))
	}
}

// AddForwarder attaches a bridge invoked on every locally published message.
func (b *Broker) AddForwarder(fwd func(topic string, payload interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwarders = append(b.forwarders, fwd)
}

// SetPublishHook installs an observer called once per delivered broadcast,
// local or injected, with the fan-out duration. Used for metrics.
func (b *Broker) SetPublishHook(hook func(topic string, elapsed time.Duration)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPublish = hook
}

// SetDropHook installs an observer called once per message dropped on a full
// subscriber buffer.
func (b *Broker) SetDropHook(hook func(topic string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = hook
}

// SubscriberCount reports the number of subscribers on a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
