package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe(EventTaskCreated, handler)

	payload := TaskEventPayload{TaskID: 7, UserID: 42, Type: "status", Label: "Time Off", Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}
	err := bus.PublishJSON(EventTaskCreated, payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventTaskCreated {
		t.Errorf("expected type %s, got %s", EventTaskCreated, received.Type)
	}

	decoded, err := TaskPayloadFrom(received)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded.TaskID != 7 || decoded.UserID != 42 || decoded.Label != "Time Off" {
		t.Errorf("payload round trip mismatch: %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	err := bus.PublishJSON("unknown", nil)
	if err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestAccountPayloadRoundTrip(t *testing.T) {
	bus := NewEventBus()

	var got AccountEventPayload
	bus.Subscribe(EventCalendarUnlinked, func(event *Event) error {
		p, err := AccountPayloadFrom(event)
		if err != nil {
			return err
		}
		got = p
		return nil
	})

	if err := bus.PublishJSON(EventCalendarUnlinked, AccountEventPayload{UserID: 99}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if got.UserID != 99 {
		t.Errorf("expected UserID 99, got %d", got.UserID)
	}
}

func TestTaskPayloadKeepsEventID(t *testing.T) {
	event, err := json.Marshal(TaskEventPayload{TaskID: 3, UserID: 1, EventID: "AAMkAD"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded, err := TaskPayloadFrom(&Event{Type: EventTaskDeleted, Payload: event})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.EventID != "AAMkAD" {
		t.Errorf("expected event id to survive, got %q", decoded.EventID)
	}
}
