package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plansync/internal/config"
	"plansync/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// BatchLimit is the provider's hard cap on requests per $batch call.
	BatchLimit = 20
)

// Client talks to the calendar provider on behalf of the registered OAuth
// application. It is safe for concurrent use; per-user state lives in
// Session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	oauth      *oauth2.Config
	limiter    *rate.Limiter
	logger     *zerolog.Logger
}

func NewClient(cfg config.OutlookConfig, logger *zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 8
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		oauth:   oauthConfig(cfg),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Session is one user's calendar connection.
type Session struct {
	client *Client
	tokens oauth2.TokenSource
}

// do performs one authenticated request. A nil out discards the response
// body; a 204 is treated as an empty success.
func (s *Session) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	c := s.client

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	token, err := s.tokens.Token()
	if err != nil {
		metrics.IncProviderRequest(operation, "auth_error")
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncProviderRequest(operation, "error")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.IncProviderRequest(operation, statusClass(resp.StatusCode))

	if resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		c.logger.Debug().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("code", apiErr.Code).
			Msg("provider request failed")
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var envelope errorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// ListCalendars returns every calendar in the user's mailbox.
func (s *Session) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var calendars []Calendar
	path := "/me/calendars?$top=100"
	for {
		var page calendarList
		if err := s.do(ctx, "list_calendars", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		calendars = append(calendars, page.Value...)
		if page.NextLink == "" {
			return calendars, nil
		}
		path = s.relativize(page.NextLink)
	}
}

// GetCalendar fetches one calendar by id. A stale cached id surfaces as a
// not-found APIError.
func (s *Session) GetCalendar(ctx context.Context, id string) (*Calendar, error) {
	var calendar Calendar
	path := "/me/calendars/" + url.PathEscape(id)
	if err := s.do(ctx, "get_calendar", http.MethodGet, path, nil, &calendar); err != nil {
		return nil, err
	}
	return &calendar, nil
}

// CreateCalendar creates a calendar with the given display name.
func (s *Session) CreateCalendar(ctx context.Context, name string) (*Calendar, error) {
	var calendar Calendar
	body := Calendar{Name: name}
	if err := s.do(ctx, "create_calendar", http.MethodPost, "/me/calendars", body, &calendar); err != nil {
		return nil, err
	}
	return &calendar, nil
}

// ListCategories returns the user's master category list.
func (s *Session) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	path := "/me/outlook/masterCategories?$top=100"
	for {
		var page categoryList
		if err := s.do(ctx, "list_categories", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		categories = append(categories, page.Value...)
		if page.NextLink == "" {
			return categories, nil
		}
		path = s.relativize(page.NextLink)
	}
}

// CreateCategory adds an entry to the master category list.
func (s *Session) CreateCategory(ctx context.Context, displayName, color string) (*Category, error) {
	var category Category
	body := Category{DisplayName: displayName, Color: color}
	if err := s.do(ctx, "create_category", http.MethodPost, "/me/outlook/masterCategories", body, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateEvent creates an event in the given calendar and returns it with the
// provider-assigned id.
func (s *Session) CreateEvent(ctx context.Context, calendarID string, event *Event) (*Event, error) {
	var created Event
	path := "/me/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := s.do(ctx, "create_event", http.MethodPost, path, event, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEvent patches an existing event. Event ids are mailbox-global, so no
// calendar id is needed.
func (s *Session) UpdateEvent(ctx context.Context, eventID string, event *Event) (*Event, error) {
	var updated Event
	path := "/me/events/" + url.PathEscape(eventID)
	if err := s.do(ctx, "update_event", http.MethodPatch, path, event, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEvent removes an event. Callers that tolerate missing events check
// IsNotFound on the returned error.
func (s *Session) DeleteEvent(ctx context.Context, eventID string) error {
	path := "/me/events/" + url.PathEscape(eventID)
	return s.do(ctx, "delete_event", http.MethodDelete, path, nil, nil)
}

// ListEvents returns every event in the calendar, following pagination. Only
// id and subject are requested; the engine never diffs event contents.
func (s *Session) ListEvents(ctx context.Context, calendarID string) ([]Event, error) {
	var events []Event
	path := "/me/calendars/" + url.PathEscape(calendarID) + "/events?$select=id,subject&$top=100"
	for {
		var page eventList
		if err := s.do(ctx, "list_events", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		events = append(events, page.Value...)
		if page.NextLink == "" {
			return events, nil
		}
		path = s.relativize(page.NextLink)
	}
}

// relativize strips the base URL from a next-page link so it can be passed
// back through do.
func (s *Session) relativize(nextLink string) string {
	return strings.TrimPrefix(nextLink, s.client.baseURL)
}
