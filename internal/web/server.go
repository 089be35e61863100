// Package web is the HTTP adapter between the intranet UI and the
// calendar core. It owns no calendar logic: handlers validate input,
// call the engines, and shape responses.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"intracal/internal/agg"
	"intracal/internal/config"
	appLog "intracal/internal/log"
	"intracal/internal/model"
	"intracal/internal/series"
)

// EventStore is the slice of the store client the web layer depends
// on; tests substitute a fake.
type EventStore interface {
	ListVisibleCalendars(ctx context.Context) ([]model.CalendarDescriptor, error)
	ListLabels(ctx context.Context) ([]model.Label, error)
	FetchEvents(ctx context.Context, calendarID string, start, end time.Time) ([]model.EventRecord, error)
	CreateEvent(ctx context.Context, draft model.EventDraft, start, end time.Time, requestID string) (string, error)
	UpdateEvent(ctx context.Context, eventID string, patch model.EventPatch) error
	DeleteEvent(ctx context.Context, eventID string) error
	FetchShareGrants(ctx context.Context, scopeID string) (model.ShareSet, error)
	SubmitShareGrants(ctx context.Context, scopeID string, set model.ShareSet, mode model.ApplyMode) error
}

// snapshotTTL bounds how stale the cached aggregation pass may be when
// served to the UI; the cron refresh usually beats it.
const snapshotTTL = 30 * time.Second

type Server struct {
	cfg       *config.Config
	store     EventStore
	agg       *agg.Aggregator
	submitter *series.Submitter
	validate  *validator.Validate
	loc       *time.Location
	mux       *http.ServeMux

	// Cached aggregation pass for the default window.
	snapMu   sync.RWMutex
	snapshot *snapshot
}

type snapshot struct {
	result     agg.Result
	rangeStart time.Time
	rangeEnd   time.Time
	updatedAt  time.Time
}

// NewServer constructs the HTTP adapter around the given store.
func NewServer(cfg *config.Config, st EventStore) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		agg:       agg.New(st),
		submitter: series.NewSubmitter(st, series.DefaultInFlight),
		validate:  validator.New(),
		loc:       resolveLocationOrLocal(cfg.Timezone),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PATCH /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("PUT /api/calendars/{id}/shares", s.handleUpdateShares)
	s.mux.HandleFunc("GET /feed.ics", s.handleFeed)
}

// Handler returns the http.Handler for this server, with basic auth
// applied when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="intracal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// defaultWindow is [today - backfill, today + window] in the display
// location.
func (s *Server) defaultWindow(now time.Time) agg.Window {
	now = now.In(s.loc)
	return agg.Window{
		Start: now.AddDate(0, 0, -s.cfg.BackfillDays),
		End:   now.AddDate(0, 0, s.cfg.WindowDays),
	}
}

// Refresh runs one aggregation pass over the default window and caches
// it. The cron scheduler calls this periodically; handlers call it
// lazily when the snapshot went stale.
func (s *Server) Refresh(ctx context.Context) (agg.Result, error) {
	window := s.defaultWindow(time.Now())

	result, err := s.aggregate(ctx, window)
	if err != nil {
		return agg.Result{}, err
	}

	s.snapMu.Lock()
	s.snapshot = &snapshot{
		result:     result,
		rangeStart: window.Start,
		rangeEnd:   window.End,
		updatedAt:  time.Now(),
	}
	s.snapMu.Unlock()

	appLog.Info("snapshot refreshed",
		"events", len(result.Events),
		"failed_calendars", len(result.FailedCalendarIDs),
	)
	return result, nil
}

// aggregate performs one pass for an arbitrary window.
func (s *Server) aggregate(ctx context.Context, window agg.Window) (agg.Result, error) {
	calendars, err := s.store.ListVisibleCalendars(ctx)
	if err != nil {
		return agg.Result{}, err
	}

	labels, err := s.store.ListLabels(ctx)
	if err != nil {
		// Labels only influence colors; aggregation proceeds without them.
		appLog.Warn("aggregate: label list unavailable", "err", err)
		labels = nil
	}
	labelColors := make(map[string]string, len(labels))
	for _, l := range labels {
		labelColors[l.ID] = l.Color
	}

	return s.agg.Aggregate(ctx, calendars, window, labelColors), nil
}

// currentSnapshot returns a fresh-enough cached pass, refreshing if
// needed.
func (s *Server) currentSnapshot(ctx context.Context) (*snapshot, error) {
	s.snapMu.RLock()
	snap := s.snapshot
	s.snapMu.RUnlock()
	if snap != nil && time.Since(snap.updatedAt) < snapshotTTL {
		return snap, nil
	}

	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.snapMu.RLock()
	snap = s.snapshot
	s.snapMu.RUnlock()
	return snap, nil
}

// invalidateSnapshot drops the cached pass after a mutation so the next
// read reflects it.
func (s *Server) invalidateSnapshot() {
	s.snapMu.Lock()
	s.snapshot = nil
	s.snapMu.Unlock()
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
