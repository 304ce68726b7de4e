package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"plansync/internal/config"
	"plansync/internal/database"
	"plansync/internal/events"
	"plansync/internal/jobs"
	"plansync/internal/models"

	"github.com/rs/zerolog"
)

type fakeTrigger struct {
	mu         sync.Mutex
	syncCalls  int
	bulkCalls  int
	syncResult bool
	syncErr    error
	jobID      string
	bulkErr    error
	lastTaskID int64
	lastUserID int64
}

func (f *fakeTrigger) SyncTaskNow(_ context.Context, taskID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls++
	f.lastTaskID = taskID
	f.lastUserID = userID
	return f.syncResult, f.syncErr
}

func (f *fakeTrigger) StartBulkSync(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	f.lastUserID = userID
	return f.jobID, f.bulkErr
}

func (f *fakeTrigger) RemoveEventAsync(int64, string) {}

type testServer struct {
	ts      *httptest.Server
	db      *database.DB
	trigger *fakeTrigger
	tracker *jobs.Tracker
	bus     *events.EventBus
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, cfg config.APIConfig) *testServer {
	t.Helper()
	db := newTestDB(t)
	trigger := &fakeTrigger{}
	tracker := jobs.NewTracker(jobs.NewMemoryJobStore(time.Minute))
	bus := events.NewEventBus()
	logger := zerolog.Nop()

	server := NewHTTPServer(cfg, db, trigger, tracker, bus, &logger)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, db: db, trigger: trigger, tracker: tracker, bus: bus}
}

func authedConfig(keys ...config.APIClientKey) config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth:    config.APIAuthConfig{Enabled: true, APIKeys: keys},
	}
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getURL(t *testing.T, url string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func seedTask(t *testing.T, db *database.DB, task models.Task) models.Task {
	t.Helper()
	if err := db.UpsertTask(context.Background(), &task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func TestSyncTaskEndpoint(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	srv.trigger.syncResult = true

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 42, UserID: 7}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		Synced bool `json:"synced"`
	}
	decodeResponse(t, resp, &body)
	if !body.Synced {
		t.Fatalf("expected synced=true")
	}
	if srv.trigger.lastTaskID != 42 || srv.trigger.lastUserID != 7 {
		t.Fatalf("wrong trigger call: task=%d user=%d", srv.trigger.lastTaskID, srv.trigger.lastUserID)
	}
}

func TestSyncTaskEndpointProviderFailure(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	srv.trigger.syncErr = context.DeadlineExceeded

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 1, UserID: 7}, nil)

	// A failed sync is still a 200; the caller's local write never fails
	// on it.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Synced bool `json:"synced"`
	}
	decodeResponse(t, resp, &body)
	if body.Synced {
		t.Fatalf("expected synced=false")
	}
}

func TestSyncTaskEndpointValidation(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 0, UserID: 7}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing task_id, got %d", resp.StatusCode)
	}

	resp = getURL(t, srv.ts.URL+"/api/v1/sync/task", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", resp.StatusCode)
	}

	if srv.trigger.syncCalls != 0 {
		t.Fatalf("expected no trigger calls, got %d", srv.trigger.syncCalls)
	}
}

func TestSyncBulkEndpoint(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	srv.trigger.jobID = "job-123"

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/bulk", syncBulkRequest{UserID: 7}, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var body struct {
		JobID string `json:"job_id"`
	}
	decodeResponse(t, resp, &body)
	if body.JobID != "job-123" {
		t.Fatalf("expected job-123, got %s", body.JobID)
	}
}

func TestSyncBulkEndpointFailure(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	srv.trigger.bulkErr = context.DeadlineExceeded

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/bulk", syncBulkRequest{UserID: 7}, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestSyncJobEndpoint(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	job, err := srv.tracker.Create(context.Background(), 7)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	resp := getURL(t, srv.ts.URL+"/api/v1/sync/jobs/"+job.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var got models.SyncJob
	decodeResponse(t, resp, &got)
	if got.ID != job.ID || got.UserID != 7 || got.Status != models.JobStatusInProgress {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestSyncJobEndpointNotFound(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	resp := getURL(t, srv.ts.URL+"/api/v1/sync/jobs/no-such-job", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = getURL(t, srv.ts.URL+"/api/v1/sync/jobs/", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty id, got %d", resp.StatusCode)
	}
}

func TestTaskEventCreatePersistsAndPublishes(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	received := make(chan events.TaskEventPayload, 1)
	srv.bus.Subscribe(events.EventTaskCreated, func(event *events.Event) error {
		p, err := events.TaskPayloadFrom(event)
		if err != nil {
			return err
		}
		received <- p
		return nil
	})

	body := taskEventRequest{
		Type: "created",
		Task: models.Task{ID: 5, UserID: 7, Date: time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), Type: models.TaskTypeStatus, Label: models.StatusTimeOff},
	}
	resp := postJSON(t, srv.ts.URL+"/api/v1/events/tasks", body, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	stored, err := srv.db.GetTask(context.Background(), 5)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if stored == nil || stored.Label != models.StatusTimeOff {
		t.Fatalf("task not persisted: %+v", stored)
	}

	select {
	case p := <-received:
		if p.TaskID != 5 || p.UserID != 7 || p.Label != models.StatusTimeOff {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("task_created not published")
	}
}

func TestTaskEventUpdateKeepsEventReference(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	ctx := context.Background()

	seedTask(t, srv.db, models.Task{ID: 5, UserID: 7, Date: time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), Type: models.TaskTypeStatus, Label: models.StatusTimeOff})
	if err := srv.db.SetTaskEventID(ctx, 5, "ev-1"); err != nil {
		t.Fatalf("set event id: %v", err)
	}

	body := taskEventRequest{
		Type: "updated",
		Task: models.Task{ID: 5, UserID: 7, Date: time.Date(2024, time.June, 11, 0, 0, 0, 0, time.UTC), Type: models.TaskTypeStatus, Label: models.StatusOutOfOffice},
	}
	resp := postJSON(t, srv.ts.URL+"/api/v1/events/tasks", body, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	stored, err := srv.db.GetTask(ctx, 5)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if stored.Label != models.StatusOutOfOffice {
		t.Fatalf("task not updated: %+v", stored)
	}
	// The collaborator snapshot carries no event_id; the stored remote
	// reference must survive the update.
	if stored.EventID == nil || *stored.EventID != "ev-1" {
		t.Fatalf("event reference lost on update: %+v", stored.EventID)
	}
}

func TestTaskEventDeleteCarriesEventID(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	ctx := context.Background()

	seedTask(t, srv.db, models.Task{ID: 5, UserID: 7, Date: time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), Type: models.TaskTypeStatus, Label: models.StatusTimeOff})
	if err := srv.db.SetTaskEventID(ctx, 5, "ev-9"); err != nil {
		t.Fatalf("set event id: %v", err)
	}

	received := make(chan events.TaskEventPayload, 1)
	srv.bus.Subscribe(events.EventTaskDeleted, func(event *events.Event) error {
		p, err := events.TaskPayloadFrom(event)
		if err != nil {
			return err
		}
		received <- p
		return nil
	})

	body := taskEventRequest{Type: "deleted", Task: models.Task{ID: 5, UserID: 7}}
	resp := postJSON(t, srv.ts.URL+"/api/v1/events/tasks", body, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	stored, err := srv.db.GetTask(ctx, 5)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if stored != nil {
		t.Fatalf("task not deleted: %+v", stored)
	}

	select {
	case p := <-received:
		if p.EventID != "ev-9" {
			t.Fatalf("expected event reference ev-9, got %q", p.EventID)
		}
	case <-time.After(time.Second):
		t.Fatalf("task_deleted not published")
	}
}

func TestTaskEventUnknownType(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	body := taskEventRequest{Type: "archived", Task: models.Task{ID: 5, UserID: 7}}
	resp := postJSON(t, srv.ts.URL+"/api/v1/events/tasks", body, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAccountEventLink(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	received := make(chan events.AccountEventPayload, 1)
	srv.bus.Subscribe(events.EventCalendarLinked, func(event *events.Event) error {
		p, err := events.AccountPayloadFrom(event)
		if err != nil {
			return err
		}
		received <- p
		return nil
	})

	body := accountEventRequest{Type: "linked", UserID: 7, RefreshToken: "refresh-token"}
	resp := postJSON(t, srv.ts.URL+"/api/v1/events/accounts", body, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	account, err := srv.db.GetCalendarAccount(context.Background(), 7)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !account.Connected() {
		t.Fatalf("account not connected: %+v", account)
	}

	select {
	case p := <-received:
		if p.UserID != 7 {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("calendar_linked not published")
	}
}

func TestAccountEventUnlink(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})
	ctx := context.Background()

	if err := srv.db.SaveCalendarAccount(ctx, &models.CalendarAccount{UserID: 7, RefreshToken: "refresh-token"}); err != nil {
		t.Fatalf("save account: %v", err)
	}

	received := make(chan events.AccountEventPayload, 1)
	srv.bus.Subscribe(events.EventCalendarUnlinked, func(event *events.Event) error {
		p, err := events.AccountPayloadFrom(event)
		if err != nil {
			return err
		}
		received <- p
		return nil
	})

	body := accountEventRequest{Type: "unlinked", UserID: 7}
	resp := postJSON(t, srv.ts.URL+"/api/v1/events/accounts", body, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	account, err := srv.db.GetCalendarAccount(ctx, 7)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account != nil {
		t.Fatalf("account not deleted: %+v", account)
	}

	select {
	case p := <-received:
		if p.UserID != 7 {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("calendar_unlinked not published")
	}
}

func TestAccountEventValidation(t *testing.T) {
	srv := newTestServer(t, config.APIConfig{})

	resp := postJSON(t, srv.ts.URL+"/api/v1/events/accounts", accountEventRequest{Type: "linked", UserID: 7}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without refresh_token, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.ts.URL+"/api/v1/events/accounts", accountEventRequest{Type: "suspended", UserID: 7}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", resp.StatusCode)
	}
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	key := config.APIClientKey{Key: "crud-key", Extra: "crud-secret", Name: "crud"}
	srv := newTestServer(t, authedConfig(key))
	srv.trigger.syncResult = true

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 1, UserID: 7}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without headers, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 1, UserID: 7},
		map[string]string{"x-api-key": "crud-key", "x-api-extra": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong extra, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 1, UserID: 7},
		map[string]string{"x-api-key": "crud-key", "x-api-extra": "crud-secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid credentials, got %d", resp.StatusCode)
	}
}

func TestAuthEnforcesPermissions(t *testing.T) {
	key := config.APIClientKey{Key: "poller", Extra: "poll-secret", Name: "dashboard", Permissions: []string{PermSyncRead}}
	srv := newTestServer(t, authedConfig(key))
	headers := map[string]string{"x-api-key": "poller", "x-api-extra": "poll-secret"}

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 1, UserID: 7}, headers)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for write without permission, got %d", resp.StatusCode)
	}

	// The read permission lets the key through; the job just does not exist.
	resp = getURL(t, srv.ts.URL+"/api/v1/sync/jobs/no-such-job", headers)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on permitted read, got %d", resp.StatusCode)
	}
}

func TestRateLimitPerKey(t *testing.T) {
	key := config.APIClientKey{Key: "crud-key", Extra: "crud-secret", Name: "crud"}
	cfg := authedConfig(key)
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
	srv := newTestServer(t, cfg)
	srv.trigger.syncResult = true
	headers := map[string]string{"x-api-key": "crud-key", "x-api-extra": "crud-secret"}

	resp := postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 1, UserID: 7}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request should pass, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.ts.URL+"/api/v1/sync/task", syncTaskRequest{TaskID: 1, UserID: 7}, headers)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", resp.StatusCode)
	}
}

func TestHealthzSkipsAuth(t *testing.T) {
	key := config.APIClientKey{Key: "crud-key", Extra: "crud-secret", Name: "crud"}
	srv := newTestServer(t, authedConfig(key))

	resp := getURL(t, srv.ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 without credentials, got %d", resp.StatusCode)
	}
}
