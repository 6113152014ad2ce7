package engine

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventTopologyChanged EventType = "topology_changed"
	EventLayoutStep      EventType = "layout_step"
	EventPositionsSaved  EventType = "positions_saved"
)

// Event represents an event that occurred in the engine
type Event struct {
	Type       EventType   `json:"type"`
	DataSource string      `json:"data_source"`
	Payload    interface{} `json:"payload,omitempty"`
}

// TopologyPayload summarizes one applied cycle
type TopologyPayload struct {
	NodesCreated []string `json:"nodes_created,omitempty"`
	NodesRemoved []string `json:"nodes_removed,omitempty"`
	EdgesAdded   int      `json:"edges_added"`
	EdgesRemoved int      `json:"edges_removed"`
}

// StepPayload carries the positions after one simulation step
type StepPayload struct {
	Seq       uint64              `json:"seq"`
	Alpha     float64             `json:"alpha"`
	Settled   bool                `json:"settled"`
	Positions map[string]Position `json:"positions"`
}

// Position is a node coordinate in step payloads
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SavedPayload reports a persistence attempt
type SavedPayload struct {
	OK bool `json:"ok"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
