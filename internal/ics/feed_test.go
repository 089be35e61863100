package ics_test

import (
	"bytes"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intracal/internal/ics"
	"intracal/internal/model"
)

func TestFeed(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	events := []model.RenderableEvent{
		{
			EventRecord: model.EventRecord{
				ID: "e1", CalendarID: "team", Title: "standup",
				Start: start, End: start.Add(30 * time.Minute),
			},
			BackgroundColor: "#4096FF",
		},
		{
			EventRecord: model.EventRecord{
				ID: "e2", CalendarID: "team", Title: "holiday",
				Start:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
				End:    time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
				AllDay: true,
			},
			BackgroundColor: "#FF0000",
		},
	}

	out := ics.Feed("Intranet calendar", events, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "X-WR-CALNAME:Intranet calendar")
	assert.Contains(t, out, "SUMMARY:standup")
	assert.Contains(t, out, "COLOR:#4096FF")

	// The output parses back with the same library the sources use.
	cal, err := ical.ParseCalendar(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)
}

func TestFeedEmpty(t *testing.T) {
	out := ics.Feed("Empty", nil, time.Now())
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}
