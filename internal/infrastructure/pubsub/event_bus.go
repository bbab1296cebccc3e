package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	eventsChannel    = "codeshare:topics"
	forwardQueueSize = 256
	publishTimeout   = 2 * time.Second
)

// Event is one topic broadcast as replicated between server instances.
type Event struct {
	InstanceID string          `json:"instance_id"`
	Topic      string          `json:"topic"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// EventBus replicates topic traffic across instances over Redis pub/sub so
// participants of one session connected to different instances see the same
// broadcasts. Local delivery never waits on Redis: outbound events go through
// a bounded queue drained by Run, and the queue drops on overflow, same
// policy as subscriber delivery.
type EventBus struct {
	client     *redis.Client
	broker     *Broker
	instanceID string
	queue      chan Event
	logger     *zap.SugaredLogger
}

func NewEventBus(client *redis.Client, broker *Broker, logger *zap.SugaredLogger) *EventBus {
	bus := &EventBus{
		client:     client,
		broker:     broker,
		instanceID: uuid.New().String(),
		queue:      make(chan Event, forwardQueueSize),
		logger:     logger,
	}
	broker.AddForwarder(bus.forward)
	return bus
}

// forward enqueues a local broadcast for replication without ever blocking
// the publishing caller.
func (eb *EventBus) forward(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		eb.logger.Warnw("failed to marshal payload for replication", "topic", topic, "error", err)
		return
	}

	event := Event{
		InstanceID: eb.instanceID,
		Topic:      topic,
		Timestamp:  time.Now(),
		Payload:    data,
	}

	select {
	case eb.queue <- event:
	default:
		eb.logger.Warnw("replication queue full, dropping broadcast", "topic", topic)
	}
}

// publish sends one queued event to the shared Redis channel. Failures are
// logged and absorbed; the local fan-out already happened.
func (eb *EventBus) publish(ctx context.Context, event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		eb.logger.Warnw("failed to marshal replication event", "topic", event.Topic, "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := eb.client.Publish(sendCtx, eventsChannel, raw).Err(); err != nil {
		eb.logger.Warnw("failed to replicate broadcast", "topic", event.Topic, "error", err)
	}
}

// Run drains the outbound queue and consumes remote events, injecting them
// into the local broker until ctx is cancelled. Events originating from this
// instance are skipped.
func (eb *EventBus) Run(ctx context.Context) error {
	pubsub := eb.client.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-eb.queue:
			eb.publish(ctx, event)
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("replication channel closed")
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal replication event", "error", err)
				continue
			}
			if event.InstanceID == eb.instanceID {
				continue
			}

			eb.broker.Inject(event.Topic, event.Payload)
			eb.logger.Debugw("injected replicated broadcast", "topic", event.Topic)
		}
	}
}
