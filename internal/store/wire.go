package store

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"intracal/internal/model"
)

// The event store grew out of several backend generations, and its
// payloads still show it: the same field arrives as camelCase from the
// newer endpoints and as UPPER_SNAKE from the legacy ones, booleans as
// JSON bools or as "Y"/"N" flags. This file is the single place where
// those shapes are resolved into the canonical model types; nothing
// past this boundary sees a raw payload.

type rawRecord map[string]json.RawMessage

// str returns the first present, non-empty string field among keys.
func (r rawRecord) str(keys ...string) string {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// boolish returns the first present field among keys, accepting JSON
// bools, "Y"/"N" flags, "true"/"false" strings and 0/1 numbers.
func (r rawRecord) boolish(keys ...string) bool {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			switch strings.ToUpper(strings.TrimSpace(s)) {
			case "Y", "YES", "TRUE", "1":
				return true
			default:
				return false
			}
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n != 0
		}
	}
	return false
}

// timeAt returns the first present field among keys parsed as RFC 3339
// or as the legacy "2006-01-02 15:04:05" form (store-local wall clock).
func (r rawRecord) timeAt(loc *time.Location, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
			return t, true
		}
		if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func decodeCalendar(r rawRecord) (model.CalendarDescriptor, error) {
	cal := model.CalendarDescriptor{
		ID:          r.str("id", "ID", "calendarId", "CALENDAR_ID"),
		DisplayName: r.str("displayName", "DISPLAY_NAME", "name", "NAME"),
		BaseColor:   r.str("baseColor", "BASE_COLOR", "color", "COLOR"),
		Visible:     r.boolish("visible", "VISIBLE", "IS_VISIBLE", "visibleYn", "VISIBLE_YN"),
	}
	if cal.ID == "" {
		return cal, errors.New("calendar record without id")
	}
	return cal, nil
}

func decodeLabel(r rawRecord) (model.Label, error) {
	label := model.Label{
		ID:    r.str("id", "ID", "labelId", "LABEL_ID"),
		Name:  r.str("name", "NAME", "labelName", "LABEL_NAME"),
		Color: r.str("color", "COLOR", "labelColor", "LABEL_COLOR"),
	}
	if label.ID == "" {
		return label, errors.New("label record without id")
	}
	return label, nil
}

func decodeEvent(r rawRecord, loc *time.Location) (model.EventRecord, error) {
	rec := model.EventRecord{
		ID:         r.str("id", "ID", "eventId", "EVENT_ID"),
		CalendarID: r.str("calendarId", "CALENDAR_ID"),
		LabelID:    r.str("labelId", "LABEL_ID"),
		Title:      r.str("title", "TITLE", "subject", "SUBJECT"),
		AllDay:     r.boolish("allDay", "ALL_DAY", "allDayYn", "ALL_DAY_YN"),
	}
	if rec.ID == "" {
		return rec, errors.New("event record without id")
	}

	start, ok := r.timeAt(loc, "start", "startAt", "START_DATE", "START_DT")
	if !ok {
		return rec, errors.New("event record without start")
	}
	end, ok := r.timeAt(loc, "end", "endAt", "END_DATE", "END_DT")
	if !ok {
		return rec, errors.New("event record without end")
	}
	rec.Start = start
	rec.End = end
	return rec, nil
}

func decodeGrant(r rawRecord) (model.ShareGrant, error) {
	grant := model.ShareGrant{
		TargetType: model.TargetType(strings.ToUpper(r.str("targetType", "TARGET_TYPE"))),
		TargetID:   r.str("targetId", "TARGET_ID"),
		Role:       model.Role(strings.ToUpper(r.str("role", "ROLE", "authority", "AUTHORITY"))),
	}
	if grant.TargetID == "" {
		return grant, errors.New("share grant without target id")
	}
	if !model.KnownRole(grant.Role) {
		return grant, errors.New("share grant with unknown role")
	}
	return grant, nil
}
