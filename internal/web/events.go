package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"intracal/internal/agg"
	appLog "intracal/internal/log"
	"intracal/internal/model"
	"intracal/internal/recur"
)

// eventDTO is the JSON view of a renderable event.
type eventDTO struct {
	ID              string    `json:"id"`
	CalendarID      string    `json:"calendar_id"`
	LabelID         string    `json:"label_id,omitempty"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	AllDay          bool      `json:"all_day"`
	BackgroundColor string    `json:"background_color"`
	BorderColor     string    `json:"border_color"`
	TextColor       string    `json:"text_color"`
}

type eventsResponse struct {
	Events            []eventDTO `json:"events"`
	FailedCalendarIDs []string   `json:"failed_calendar_ids,omitempty"`
	RangeStart        time.Time  `json:"range_start"`
	RangeEnd          time.Time  `json:"range_end"`
	Timezone          string     `json:"timezone"`
}

// handleListEvents serves the aggregated window.
//
// GET /api/events?days=7&backfill=1
//
// Default-window requests are served from the snapshot cache; explicit
// days/backfill parameters bypass it.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if q.Get("days") == "" && q.Get("backfill") == "" {
		snap, err := s.currentSnapshot(ctx)
		if err != nil {
			appLog.Error("api events: aggregation failed", err)
			writeError(w, http.StatusBadGateway, "event store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, s.toEventsResponse(snap.result, snap.rangeStart, snap.rangeEnd))
		return
	}

	days := parseIntDefault(q.Get("days"), s.cfg.WindowDays)
	if days <= 0 {
		days = s.cfg.WindowDays
	}
	backfill := parseIntDefault(q.Get("backfill"), s.cfg.BackfillDays)
	if backfill < 0 {
		backfill = 0
	}

	now := time.Now().In(s.loc)
	window := agg.Window{
		Start: now.AddDate(0, 0, -backfill),
		End:   now.AddDate(0, 0, days),
	}

	result, err := s.aggregate(ctx, window)
	if err != nil {
		appLog.Error("api events: aggregation failed", err)
		writeError(w, http.StatusBadGateway, "event store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.toEventsResponse(result, window.Start, window.End))
}

func (s *Server) toEventsResponse(result agg.Result, rangeStart, rangeEnd time.Time) eventsResponse {
	dtos := make([]eventDTO, 0, len(result.Events))
	for _, e := range result.Events {
		dtos = append(dtos, eventDTO{
			ID:              e.ID,
			CalendarID:      e.CalendarID,
			LabelID:         e.LabelID,
			Title:           e.Title,
			Start:           e.Start,
			End:             e.End,
			AllDay:          e.AllDay,
			BackgroundColor: e.BackgroundColor,
			BorderColor:     e.BorderColor,
			TextColor:       e.TextColor,
		})
	}
	return eventsResponse{
		Events:            dtos,
		FailedCalendarIDs: result.FailedCalendarIDs,
		RangeStart:        rangeStart,
		RangeEnd:          rangeEnd,
		Timezone:          s.loc.String(),
	}
}

// recurrenceDTO mirrors the recurrence form of the event editor.
type recurrenceDTO struct {
	Frequency    string `json:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY YEARLY"`
	Interval     int    `json:"interval" validate:"omitempty,min=1"`
	Weekdays     []int  `json:"weekdays" validate:"dive,min=0,max=6"`
	Until        string `json:"until" validate:"omitempty,datetime=2006-01-02"`
	Count        int    `json:"count" validate:"omitempty,min=1"`
	MaxInstances int    `json:"max_instances" validate:"omitempty,min=1"`
}

type createEventRequest struct {
	CalendarID string    `json:"calendar_id" validate:"required"`
	Title      string    `json:"title" validate:"required"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required,gtfield=Start"`
	AllDay     bool      `json:"all_day"`
	LabelID    string    `json:"label_id"`

	// Recurrence is the structured rule from the form; RRule is the
	// RFC 5545 alternative used by sync clients. At most one may be set.
	Recurrence *recurrenceDTO `json:"recurrence"`
	RRule      string         `json:"rrule"`
}

type createFailureDTO struct {
	Start time.Time `json:"start"`
	Error string    `json:"error"`
}

type createEventResponse struct {
	Created  int                `json:"created"`
	Failed   int                `json:"failed"`
	Total    int                `json:"total"`
	EventIDs []string           `json:"event_ids"`
	Failures []createFailureDTO `json:"failures,omitempty"`
	Summary  string             `json:"summary,omitempty"`
}

// handleCreateEvent persists a new event. With an enabled recurrence
// rule the series is expanded first and each occurrence is submitted as
// an independent create; already-created occurrences survive later
// failures.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Recurrence != nil && req.RRule != "" {
		writeError(w, http.StatusBadRequest, "recurrence and rrule are mutually exclusive")
		return
	}

	rule, err := s.buildRule(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occurrences := []model.Occurrence{{Start: req.Start, End: req.End}}
	summary := ""
	if rule.Enabled {
		occurrences = recur.Expand(rule, req.Start, req.End)
		summary = recur.Summarize(rule)
	}

	draft := model.EventDraft{
		CalendarID: req.CalendarID,
		Title:      req.Title,
		LabelID:    req.LabelID,
		AllDay:     req.AllDay,
	}
	report := s.submitter.Submit(ctx, draft, occurrences)
	s.invalidateSnapshot()

	resp := createEventResponse{
		Created: report.Created,
		Failed:  report.Failed,
		Total:   len(occurrences),
		Summary: summary,
	}
	for _, o := range report.Outcomes {
		if o.Err != nil {
			resp.Failures = append(resp.Failures, createFailureDTO{
				Start: o.Occurrence.Start,
				Error: o.Err.Error(),
			})
			continue
		}
		resp.EventIDs = append(resp.EventIDs, o.EventID)
	}

	status := http.StatusCreated
	if report.Created == 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// buildRule turns the request's recurrence description (structured or
// RRULE string) into a validated rule. Requests without one yield a
// disabled rule.
func (s *Server) buildRule(req createEventRequest) (model.RecurrenceRule, error) {
	var rule model.RecurrenceRule

	switch {
	case req.RRule != "":
		parsed, err := recur.ParseRRule(req.RRule)
		if err != nil {
			return rule, err
		}
		rule = parsed
	case req.Recurrence != nil:
		dto := req.Recurrence
		rule = model.RecurrenceRule{
			Enabled:      true,
			Frequency:    model.Frequency(dto.Frequency),
			Interval:     dto.Interval,
			Count:        dto.Count,
			MaxInstances: dto.MaxInstances,
		}
		if rule.Interval < 1 {
			rule.Interval = 1
		}
		for _, wd := range dto.Weekdays {
			rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
		}
		switch {
		case dto.Count > 0:
			rule.Termination = model.TerminateCount
		case dto.Until != "":
			until, err := time.ParseInLocation("2006-01-02", dto.Until, s.loc)
			if err != nil {
				return rule, err
			}
			rule.Termination = model.TerminateUntil
			rule.Until = until
		default:
			rule.Termination = model.TerminateNever
		}
	default:
		return rule, nil
	}

	if err := recur.Validate(rule); err != nil {
		return rule, err
	}
	return rule, nil
}

type updateEventRequest struct {
	Title   *string    `json:"title"`
	Start   *time.Time `json:"start"`
	End     *time.Time `json:"end"`
	AllDay  *bool      `json:"all_day"`
	LabelID *string    `json:"label_id"`
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "missing event id")
		return
	}

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Start != nil && req.End != nil && !req.End.After(*req.Start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	patch := model.EventPatch{
		Title:   req.Title,
		Start:   req.Start,
		End:     req.End,
		AllDay:  req.AllDay,
		LabelID: req.LabelID,
	}
	if err := s.store.UpdateEvent(r.Context(), eventID, patch); err != nil {
		appLog.Error("api events: update failed", err, "event_id", eventID)
		writeError(w, http.StatusBadGateway, "event store unavailable")
		return
	}
	s.invalidateSnapshot()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "missing event id")
		return
	}

	if err := s.store.DeleteEvent(r.Context(), eventID); err != nil {
		appLog.Error("api events: delete failed", err, "event_id", eventID)
		writeError(w, http.StatusBadGateway, "event store unavailable")
		return
	}
	s.invalidateSnapshot()
	w.WriteHeader(http.StatusNoContent)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
