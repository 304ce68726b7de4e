package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTaskCreated      = "task_created"
	EventTaskUpdated      = "task_updated"
	EventTaskDeleted      = "task_deleted"
	EventCalendarLinked   = "calendar_linked"
	EventCalendarUnlinked = "calendar_unlinked"
)

// TaskEventPayload is the task snapshot carried by task_* events. For
// task_deleted the row is already gone, so the payload keeps the remote
// event reference the subscriber needs for cleanup.
type TaskEventPayload struct {
	TaskID      int64     `json:"task_id"`
	UserID      int64     `json:"user_id"`
	Type        string    `json:"type"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	ProjectID   *int64    `json:"project_id,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
}

// AccountEventPayload accompanies calendar_linked / calendar_unlinked.
type AccountEventPayload struct {
	UserID int64 `json:"user_id"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// TaskPayloadFrom extracts the TaskEventPayload from a task_* event.
func TaskPayloadFrom(event *Event) (TaskEventPayload, error) {
	var p TaskEventPayload
	err := json.Unmarshal(event.Payload, &p)
	return p, err
}

// AccountPayloadFrom extracts the AccountEventPayload from a calendar_* event.
func AccountPayloadFrom(event *Event) (AccountEventPayload, error) {
	var p AccountEventPayload
	err := json.Unmarshal(event.Payload, &p)
	return p, err
}
