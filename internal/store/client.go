// Package store is the HTTP client for the remote event store. It is
// the only component that crosses the process boundary; everything it
// returns is already normalized into the canonical model types.
package store

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

	appLog "intracal/internal/log"
	"intracal/internal/model"
)

// DefaultTimeout bounds a single store round trip when the caller does
// not configure one.
const DefaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	client  *http.Client

	// loc is the wall-clock location assumed for legacy timestamps that
	// arrive without an offset.
	loc *time.Location
}

// NewClient creates a store client for the given base URL, e.g.
// "https://intranet.example.com/api/store". A non-positive timeout
// falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, loc *time.Location) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		loc:     loc,
	}
}

// ListVisibleCalendars returns the caller's calendar list with its
// visibility flags. Undecodable rows are logged and skipped.
func (c *Client) ListVisibleCalendars(ctx context.Context) ([]model.CalendarDescriptor, error) {
	var rows []rawRecord
	if err := c.doJSON(ctx, http.MethodGet, "/calendars", nil, nil, "", &rows); err != nil {
		return nil, err
	}

	calendars := make([]model.CalendarDescriptor, 0, len(rows))
	for _, row := range rows {
		cal, err := decodeCalendar(row)
		if err != nil {
			appLog.Warn("store: skipping calendar row", "err", err)
			continue
		}
		calendars = append(calendars, cal)
	}
	return calendars, nil
}

// ListLabels returns all labels. Undecodable rows are logged and
// skipped.
func (c *Client) ListLabels(ctx context.Context) ([]model.Label, error) {
	var rows []rawRecord
	if err := c.doJSON(ctx, http.MethodGet, "/labels", nil, nil, "", &rows); err != nil {
		return nil, err
	}

	labels := make([]model.Label, 0, len(rows))
	for _, row := range rows {
		label, err := decodeLabel(row)
		if err != nil {
			appLog.Warn("store: skipping label row", "err", err)
			continue
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// FetchEvents returns the events of one calendar intersecting the
// [start, end] window.
func (c *Client) FetchEvents(ctx context.Context, calendarID string, start, end time.Time) ([]model.EventRecord, error) {
	query := url.Values{
		"start": {start.Format(time.RFC3339)},
		"end":   {end.Format(time.RFC3339)},
	}

	var rows []rawRecord
	path := "/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, "", &rows); err != nil {
		return nil, err
	}

	records := make([]model.EventRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeEvent(row, c.loc)
		if err != nil {
			appLog.Warn("store: skipping event row", "calendar_id", calendarID, "err", err)
			continue
		}
		if rec.CalendarID == "" {
			rec.CalendarID = calendarID
		}
		records = append(records, rec)
	}
	return records, nil
}

// CreateEvent persists one event and returns its store-assigned id.
// requestID travels as X-Request-Id so retried submissions stay
// attributable.
func (c *Client) CreateEvent(ctx context.Context, draft model.EventDraft, start, end time.Time, requestID string) (string, error) {
	body := map[string]any{
		"calendarId": draft.CalendarID,
		"title":      draft.Title,
		"start":      start.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
		"allDay":     draft.AllDay,
	}
	if draft.LabelID != "" {
		body["labelId"] = draft.LabelID
	}

	var resp rawRecord
	path := "/calendars/" + url.PathEscape(draft.CalendarID) + "/events"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, requestID, &resp); err != nil {
		return "", err
	}

	id := resp.str("id", "ID", "eventId", "EVENT_ID")
	if id == "" {
		return "", fmt.Errorf("store: create event: response carries no id")
	}
	return id, nil
}

// UpdateEvent applies a partial update to one event.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, patch model.EventPatch) error {
	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Start != nil {
		body["start"] = patch.Start.Format(time.RFC3339)
	}
	if patch.End != nil {
		body["end"] = patch.End.Format(time.RFC3339)
	}
	if patch.AllDay != nil {
		body["allDay"] = *patch.AllDay
	}
	if patch.LabelID != nil {
		body["labelId"] = *patch.LabelID
	}
	if len(body) == 0 {
		return nil
	}

	path := "/events/" + url.PathEscape(eventID)
	return c.doJSON(ctx, http.MethodPatch, path, nil, body, "", nil)
}

// DeleteEvent removes one event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	path := "/events/" + url.PathEscape(eventID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, "", nil)
}

// FetchShareGrants returns the current share set of a scope (typically
// a calendar id). Undecodable rows are logged and skipped.
func (c *Client) FetchShareGrants(ctx context.Context, scopeID string) (model.ShareSet, error) {
	var rows []rawRecord
	path := "/calendars/" + url.PathEscape(scopeID) + "/shares"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, "", &rows); err != nil {
		return model.ShareSet{}, err
	}

	set := model.NewShareSet()
	for _, row := range rows {
		grant, err := decodeGrant(row)
		if err != nil {
			appLog.Warn("store: skipping share grant row", "scope_id", scopeID, "err", err)
			continue
		}
		if m := set.Mapping(grant.TargetType); m != nil {
			m[grant.TargetID] = grant.Role
		}
	}
	return set, nil
}

// SubmitShareGrants sends a share set for a scope under the given
// apply mode. The server performs the actual combination and the
// enforcement; this call only ships the prepared request.
func (c *Client) SubmitShareGrants(ctx context.Context, scopeID string, set model.ShareSet, mode model.ApplyMode) error {
	grants := set.Grants()
	wireGrants := make([]map[string]string, 0, len(grants))
	for _, g := range grants {
		wireGrants = append(wireGrants, map[string]string{
			"targetType": string(g.TargetType),
			"targetId":   g.TargetID,
			"role":       string(g.Role),
		})
	}

	body := map[string]any{
		"mode":   string(mode),
		"grants": wireGrants,
	}
	path := "/calendars/" + url.PathEscape(scopeID) + "/shares"
	return c.doJSON(ctx, http.MethodPut, path, nil, body, "", nil)
}

// doJSON performs one round trip. in (when non-nil) is sent as a JSON
// body; out (when non-nil) receives the decoded JSON response.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in any, requestID string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("store: encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("store: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for the log line, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		appLog.Debug("store: non-2xx response", "method", method, "path", path, "status", resp.StatusCode, "body", string(snippet))
		return fmt.Errorf("store: %s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("store: decode response: %w", err)
	}
	return nil
}
