package models

import (
	"fmt"
	"time"
)

// EventPayload is the provider-shaped representation of one task: an all-day
// event spanning exactly one day. Payloads are computed on every sync and
// never persisted.
type EventPayload struct {
	Subject  string
	Body     string
	Start    time.Time
	End      time.Time
	Category string
}

// Validate enforces the all-day contract: midnight start, end exactly one
// day later.
func (p *EventPayload) Validate() error {
	if p.Subject == "" {
		return fmt.Errorf("event payload has no subject")
	}
	if p.Category == "" {
		return fmt.Errorf("event payload has no category")
	}
	h, m, s := p.Start.Clock()
	if h != 0 || m != 0 || s != 0 {
		return fmt.Errorf("all-day event must start at midnight, got %s", p.Start.Format(time.RFC3339))
	}
	if !p.End.Equal(p.Start.AddDate(0, 0, 1)) {
		return fmt.Errorf("all-day event must span exactly one day, got %s to %s",
			p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
	}
	return nil
}
