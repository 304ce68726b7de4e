package outlook

import (
	"plansync/internal/models"
)

// Calendar is a user calendar as returned by the provider.
type Calendar struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Category is an entry in the user's master category list. Events reference
// categories by display name; the list itself defines the color.
type Category struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color,omitempty"`
}

// DateTimeZone is the provider's zoned timestamp. DateTime carries no offset;
// TimeZone qualifies it.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// ItemBody is an event description.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Event is the provider event resource, limited to the fields the engine
// reads and writes.
type Event struct {
	ID         string        `json:"id,omitempty"`
	Subject    string        `json:"subject"`
	Body       *ItemBody     `json:"body,omitempty"`
	Start      *DateTimeZone `json:"start,omitempty"`
	End        *DateTimeZone `json:"end,omitempty"`
	IsAllDay   bool          `json:"isAllDay"`
	Categories []string      `json:"categories,omitempty"`
}

const wireDateTime = "2006-01-02T15:04:05"

// FromPayload converts a mapped payload into the provider event shape.
// All events the engine writes are all-day events in UTC.
func FromPayload(p *models.EventPayload) *Event {
	ev := &Event{
		Subject:  p.Subject,
		IsAllDay: true,
		Start:    &DateTimeZone{DateTime: p.Start.UTC().Format(wireDateTime), TimeZone: "UTC"},
		End:      &DateTimeZone{DateTime: p.End.UTC().Format(wireDateTime), TimeZone: "UTC"},
	}
	if p.Category != "" {
		ev.Categories = []string{p.Category}
	}
	if p.Body != "" {
		ev.Body = &ItemBody{ContentType: "text", Content: p.Body}
	}
	return ev
}

// calendarList and similar envelopes carry paged collections.
type calendarList struct {
	Value    []Calendar `json:"value"`
	NextLink string     `json:"@odata.nextLink,omitempty"`
}

type categoryList struct {
	Value    []Category `json:"value"`
	NextLink string     `json:"@odata.nextLink,omitempty"`
}

type eventList struct {
	Value    []Event `json:"value"`
	NextLink string  `json:"@odata.nextLink,omitempty"`
}
