package agg_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intracal/internal/agg"
	"intracal/internal/color"
	"intracal/internal/model"
)

type fakeSource struct {
	mu      sync.Mutex
	records map[string][]model.EventRecord
	fail    map[string]bool
	fetched []string
}

func (f *fakeSource) FetchEvents(_ context.Context, calendarID string, _, _ time.Time) ([]model.EventRecord, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, calendarID)
	f.mu.Unlock()

	if f.fail[calendarID] {
		return nil, errors.New("store timeout")
	}
	return f.records[calendarID], nil
}

func window() agg.Window {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return agg.Window{Start: start, End: start.AddDate(0, 0, 7)}
}

func TestAggregateOnlyVisibleCalendars(t *testing.T) {
	source := &fakeSource{
		records: map[string][]model.EventRecord{
			"team":    {{ID: "e1", CalendarID: "team", Title: "standup"}},
			"private": {{ID: "e2", CalendarID: "private", Title: "hidden"}},
		},
	}
	calendars := []model.CalendarDescriptor{
		{ID: "team", BaseColor: "#4096FF", Visible: true},
		{ID: "private", BaseColor: "#FF0000", Visible: false},
	}

	result := agg.New(source).Aggregate(context.Background(), calendars, window(), nil)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "e1", result.Events[0].ID)
	assert.Empty(t, result.FailedCalendarIDs)
	assert.Equal(t, []string{"team"}, source.fetched)
}

func TestAggregatePartialFailure(t *testing.T) {
	source := &fakeSource{
		records: map[string][]model.EventRecord{
			"a": {{ID: "e1", CalendarID: "a"}},
			"c": {{ID: "e3", CalendarID: "c"}},
		},
		fail: map[string]bool{"b": true},
	}
	calendars := []model.CalendarDescriptor{
		{ID: "a", BaseColor: "#4096FF", Visible: true},
		{ID: "b", BaseColor: "#FF0000", Visible: true},
		{ID: "c", BaseColor: "#00FF00", Visible: true},
	}

	result := agg.New(source).Aggregate(context.Background(), calendars, window(), nil)

	assert.Equal(t, []string{"b"}, result.FailedCalendarIDs)
	ids := make([]string, 0, len(result.Events))
	for _, e := range result.Events {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"e1", "e3"}, ids)
}

func TestAggregateColorResolution(t *testing.T) {
	source := &fakeSource{
		records: map[string][]model.EventRecord{
			"team": {
				{ID: "labeled", CalendarID: "team", LabelID: "urgent"},
				{ID: "unlabeled", CalendarID: "team"},
				{ID: "dangling_label", CalendarID: "team", LabelID: "deleted"},
			},
		},
	}
	calendars := []model.CalendarDescriptor{{ID: "team", BaseColor: "#4096FF", Visible: true}}
	labelColors := map[string]string{"urgent": "#FF0000"}

	result := agg.New(source).Aggregate(context.Background(), calendars, window(), labelColors)
	require.Len(t, result.Events, 3)

	byID := make(map[string]model.RenderableEvent, 3)
	for _, e := range result.Events {
		byID[e.ID] = e
	}

	assert.Equal(t, "#FF0000", byID["labeled"].BackgroundColor)
	assert.Equal(t, "#4096FF", byID["unlabeled"].BackgroundColor)
	// A label id missing from the table falls back to the calendar color.
	assert.Equal(t, "#4096FF", byID["dangling_label"].BackgroundColor)

	for _, e := range result.Events {
		assert.Equal(t, e.BackgroundColor, e.BorderColor)
		assert.Equal(t, color.ResolveText(e.BackgroundColor), e.TextColor)
	}
}

func TestAggregateInvalidCalendarColor(t *testing.T) {
	source := &fakeSource{
		records: map[string][]model.EventRecord{"x": {{ID: "e1", CalendarID: "x"}}},
	}
	calendars := []model.CalendarDescriptor{{ID: "x", BaseColor: "oops", Visible: true}}

	result := agg.New(source).Aggregate(context.Background(), calendars, window(), nil)
	require.Len(t, result.Events, 1)
	assert.Equal(t, color.DefaultBase, result.Events[0].BackgroundColor)
}

func TestAggregateIdempotent(t *testing.T) {
	source := &fakeSource{
		records: map[string][]model.EventRecord{
			"a": {{ID: "e1", CalendarID: "a"}, {ID: "e2", CalendarID: "a"}},
		},
		fail: map[string]bool{"b": true},
	}
	calendars := []model.CalendarDescriptor{
		{ID: "a", BaseColor: "#4096FF", Visible: true},
		{ID: "b", BaseColor: "#FF0000", Visible: true},
	}

	aggregator := agg.New(source)
	first := aggregator.Aggregate(context.Background(), calendars, window(), nil)
	second := aggregator.Aggregate(context.Background(), calendars, window(), nil)

	assert.ElementsMatch(t, first.Events, second.Events)
	assert.Equal(t, first.FailedCalendarIDs, second.FailedCalendarIDs)
}
