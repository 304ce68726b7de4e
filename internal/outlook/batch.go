package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// BatchRequest is one sub-request inside a $batch call. IDs are chosen by
// the caller and echo back in the matching BatchResponse.
type BatchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

// BatchResponse is one sub-response. Sub-requests fail individually; the
// outer call only fails when the whole batch does.
type BatchResponse struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// OK reports whether the sub-request succeeded.
func (r *BatchResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// NotFound reports whether the sub-request hit a missing resource.
func (r *BatchResponse) NotFound() bool {
	return r.Status == http.StatusNotFound
}

// Event decodes the sub-response body as an event.
func (r *BatchResponse) Event() (*Event, error) {
	var event Event
	if err := json.Unmarshal(r.Body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode batched event: %w", err)
	}
	return &event, nil
}

// Err converts a failed sub-response into an APIError.
func (r *BatchResponse) Err() error {
	if r.OK() {
		return nil
	}
	apiErr := &APIError{StatusCode: r.Status}
	var envelope errorResponse
	if err := json.Unmarshal(r.Body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

type batchEnvelope struct {
	Requests []BatchRequest `json:"requests"`
}

type batchResult struct {
	Responses []BatchResponse `json:"responses"`
}

// NewEventCreate builds a batched event creation.
func NewEventCreate(id, calendarID string, event *Event) BatchRequest {
	return BatchRequest{
		ID:      id,
		Method:  http.MethodPost,
		URL:     "/me/calendars/" + url.PathEscape(calendarID) + "/events",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    event,
	}
}

// NewEventUpdate builds a batched event patch.
func NewEventUpdate(id, eventID string, event *Event) BatchRequest {
	return BatchRequest{
		ID:      id,
		Method:  http.MethodPatch,
		URL:     "/me/events/" + url.PathEscape(eventID),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    event,
	}
}

// Batch submits up to BatchLimit sub-requests in one round trip. Responses
// come back keyed by request id, not in submission order.
func (s *Session) Batch(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if len(requests) > BatchLimit {
		return nil, fmt.Errorf("batch of %d exceeds provider limit of %d", len(requests), BatchLimit)
	}

	var result batchResult
	if err := s.do(ctx, "batch", http.MethodPost, "/$batch", batchEnvelope{Requests: requests}, &result); err != nil {
		return nil, err
	}

	if len(result.Responses) != len(requests) {
		return nil, fmt.Errorf("batch returned %d responses for %d requests", len(result.Responses), len(requests))
	}

	return result.Responses, nil
}
