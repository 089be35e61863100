package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intracal/internal/config"
	"intracal/internal/model"
	"intracal/internal/web"
)

type fakeStore struct {
	mu        sync.Mutex
	calendars []model.CalendarDescriptor
	labels    []model.Label
	events    map[string][]model.EventRecord
	failFetch map[string]bool

	shares map[string]model.ShareSet

	created       []model.EventRecord
	failCreate    bool
	submittedSet  model.ShareSet
	submittedMode model.ApplyMode
	nextID        int
}

func (f *fakeStore) ListVisibleCalendars(context.Context) ([]model.CalendarDescriptor, error) {
	return f.calendars, nil
}

func (f *fakeStore) ListLabels(context.Context) ([]model.Label, error) {
	return f.labels, nil
}

func (f *fakeStore) FetchEvents(_ context.Context, calendarID string, _, _ time.Time) ([]model.EventRecord, error) {
	if f.failFetch[calendarID] {
		return nil, errors.New("store timeout")
	}
	return f.events[calendarID], nil
}

func (f *fakeStore) CreateEvent(_ context.Context, draft model.EventDraft, start, end time.Time, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", errors.New("store rejected event")
	}
	f.nextID++
	id := fmt.Sprintf("ev-%d", f.nextID)
	f.created = append(f.created, model.EventRecord{
		ID: id, CalendarID: draft.CalendarID, LabelID: draft.LabelID,
		Title: draft.Title, Start: start, End: end, AllDay: draft.AllDay,
	})
	return id, nil
}

func (f *fakeStore) UpdateEvent(context.Context, string, model.EventPatch) error { return nil }
func (f *fakeStore) DeleteEvent(context.Context, string) error                   { return nil }

func (f *fakeStore) FetchShareGrants(_ context.Context, scopeID string) (model.ShareSet, error) {
	if set, ok := f.shares[scopeID]; ok {
		return set, nil
	}
	return model.NewShareSet(), nil
}

func (f *fakeStore) SubmitShareGrants(_ context.Context, _ string, set model.ShareSet, mode model.ApplyMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submittedSet = set
	f.submittedMode = mode
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func newTestServer(store *fakeStore) http.Handler {
	return web.NewServer(testConfig(), store).Handler()
}

func TestListEvents(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		calendars: []model.CalendarDescriptor{
			{ID: "team", BaseColor: "#4096FF", Visible: true},
			{ID: "broken", BaseColor: "#FF0000", Visible: true},
			{ID: "hidden", Visible: false},
		},
		labels: []model.Label{{ID: "urgent", Name: "Urgent", Color: "#FF0000"}},
		events: map[string][]model.EventRecord{
			"team": {
				{ID: "e1", CalendarID: "team", Title: "standup", Start: start, End: start.Add(time.Hour)},
				{ID: "e2", CalendarID: "team", Title: "incident", LabelID: "urgent", Start: start, End: start.Add(time.Hour)},
			},
		},
		failFetch: map[string]bool{"broken": true},
	}
	handler := newTestServer(store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []struct {
			ID              string `json:"id"`
			BackgroundColor string `json:"background_color"`
			TextColor       string `json:"text_color"`
		} `json:"events"`
		FailedCalendarIDs []string `json:"failed_calendar_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Events, 2)
	assert.Equal(t, []string{"broken"}, resp.FailedCalendarIDs)

	colors := map[string]string{}
	for _, e := range resp.Events {
		colors[e.ID] = e.BackgroundColor
	}
	assert.Equal(t, "#4096FF", colors["e1"])
	assert.Equal(t, "#FF0000", colors["e2"]) // label wins
}

func TestCreateRecurringEvent(t *testing.T) {
	store := &fakeStore{}
	handler := newTestServer(store)

	body := `{
		"calendar_id": "team",
		"title": "standup",
		"start": "2024-01-01T09:00:00Z",
		"end": "2024-01-01T09:30:00Z",
		"recurrence": {"frequency": "DAILY", "interval": 1, "count": 3}
	}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Created int      `json:"created"`
		Failed  int      `json:"failed"`
		Total   int      `json:"total"`
		IDs     []string `json:"event_ids"`
		Summary string   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Created)
	assert.Zero(t, resp.Failed)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.IDs, 3)
	assert.Equal(t, "Daily, 3 times", resp.Summary)

	require.Len(t, store.created, 3)
	for i, rec := range store.created {
		assert.Equal(t, "team", rec.CalendarID)
		assert.Equal(t, time.Date(2024, 1, 1+i, 9, 0, 0, 0, time.UTC), rec.Start)
		assert.Equal(t, 30*time.Minute, rec.End.Sub(rec.Start))
	}
}

func TestCreateEventWithRRuleString(t *testing.T) {
	store := &fakeStore{}
	handler := newTestServer(store)

	body := `{
		"calendar_id": "team",
		"title": "retro",
		"start": "2024-01-01T15:00:00Z",
		"end": "2024-01-01T16:00:00Z",
		"rrule": "FREQ=WEEKLY;COUNT=2;BYDAY=MO"
	}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, store.created, 2)
	assert.Equal(t, time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC), store.created[1].Start)
}

func TestCreateEventValidation(t *testing.T) {
	handler := newTestServer(&fakeStore{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing_title", body: `{"calendar_id":"team","start":"2024-01-01T09:00:00Z","end":"2024-01-01T10:00:00Z"}`},
		{name: "end_before_start", body: `{"calendar_id":"team","title":"x","start":"2024-01-01T09:00:00Z","end":"2024-01-01T08:00:00Z"}`},
		{name: "zero_count", body: `{"calendar_id":"team","title":"x","start":"2024-01-01T09:00:00Z","end":"2024-01-01T10:00:00Z","recurrence":{"frequency":"DAILY","count":-1}}`},
		{name: "bad_frequency", body: `{"calendar_id":"team","title":"x","start":"2024-01-01T09:00:00Z","end":"2024-01-01T10:00:00Z","recurrence":{"frequency":"HOURLY"}}`},
		{name: "not_json", body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateShares(t *testing.T) {
	existing := model.NewShareSet()
	existing.Members["10"] = model.RoleReader

	store := &fakeStore{shares: map[string]model.ShareSet{"team": existing}}
	handler := newTestServer(store)

	body := `{
		"mode": "MERGE",
		"grants": [
			{"target_type": "MEMBER", "target_id": "10", "role": "EDITOR"},
			{"target_type": "MEMBER", "target_id": "11"},
			{"target_type": "DEPARTMENT", "target_id": "dev", "role": "BUSY_ONLY"}
		]
	}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/calendars/team/shares", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The store receives the already-combined state under REPLACE.
	assert.Equal(t, model.ApplyReplace, store.submittedMode)
	assert.Equal(t, model.RoleEditor, store.submittedSet.Members["10"])
	// Default role applied to the grant without one.
	assert.Equal(t, model.RoleReader, store.submittedSet.Members["11"])
	assert.Equal(t, model.RoleBusyOnly, store.submittedSet.Departments["dev"])
}

func TestUpdateSharesValidation(t *testing.T) {
	handler := newTestServer(&fakeStore{})

	rec := httptest.NewRecorder()
	body := `{"mode": "UPSERT", "grants": []}`
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/calendars/team/shares", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedEndpoint(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		calendars: []model.CalendarDescriptor{{ID: "team", BaseColor: "#4096FF", Visible: true}},
		events: map[string][]model.EventRecord{
			"team": {{ID: "e1", CalendarID: "team", Title: "standup", Start: start, End: start.Add(time.Hour)}},
		},
	}
	handler := newTestServer(store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed.ics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:standup")
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	handler := web.NewServer(cfg, &fakeStore{}).Handler()

	// /health stays open.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Everything else requires credentials.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "secret")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
