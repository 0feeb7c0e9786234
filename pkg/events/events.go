package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hueshift/hueshift/pkg/types"
)

// EventType represents the type of event
type EventType string

const (
	EventRolloutStarted    EventType = "rollout.started"
	EventRolloutStateMoved EventType = "rollout.state_moved"
	EventRolloutCommitted  EventType = "rollout.committed"
	EventRolloutRolledBack EventType = "rollout.rolled_back"
	EventRolloutFailed     EventType = "rollout.failed"
	EventTrafficSwitched   EventType = "traffic.switched"
	EventSlotHealthChanged EventType = "slot.health_changed"
)

// Event represents a rollout lifecycle event
type Event struct {
	ID        string            `json:"id,omitempty"`
	Type      EventType         `json:"type"`
	App       string            `json:"app"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// StateMoved builds the event for a state machine transition.
func StateMoved(app, rolloutID string, state types.RunState) *Event {
	return &Event{
		Type: EventRolloutStateMoved,
		App:  app,
		Metadata: map[string]string{
			"rollout_id": rolloutID,
			"state":      string(state),
		},
	}
}

// Terminal builds the event for a finished run.
func Terminal(app string, record *types.RolloutRecord) *Event {
	t := EventRolloutFailed
	switch record.Outcome {
	case types.OutcomeCommitted:
		t = EventRolloutCommitted
	case types.OutcomeRolledBack:
		t = EventRolloutRolledBack
	}
	return &Event{
		Type:    t,
		App:     app,
		Message: record.Reason,
		Metadata: map[string]string{
			"rollout_id": record.RequestID,
			"version":    record.Version,
			"to_slot":    string(record.ToSlot),
		},
	}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}
