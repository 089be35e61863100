// Package agg assembles the renderable event list for a time window by
// fanning out one fetch per visible calendar and resolving each
// record's colors. Failures stay per-calendar: the aggregate result is
// always returned, possibly partial, never an error.
package agg

import (
	"context"
	"sync"
	"time"

	"intracal/internal/color"
	appLog "intracal/internal/log"
	"intracal/internal/model"
)

// Window is the half-open-ish fetch range handed to the event store.
type Window struct {
	Start time.Time
	End   time.Time
}

// EventSource is the event-store collaborator the aggregator fetches
// from. Implementations must be safe for concurrent use.
type EventSource interface {
	FetchEvents(ctx context.Context, calendarID string, start, end time.Time) ([]model.EventRecord, error)
}

// Result is the outcome of one aggregation pass. Events carries the
// records of every calendar that answered; FailedCalendarIDs the ids of
// those that did not, in the order of the visible set. Event ordering
// is unspecified; presentation layers sort as needed.
type Result struct {
	Events            []model.RenderableEvent
	FailedCalendarIDs []string
}

type Aggregator struct {
	source EventSource
}

func New(source EventSource) *Aggregator {
	return &Aggregator{source: source}
}

// Aggregate fetches the window's events for every visible calendar in
// calendars, concurrently and independently, and maps each record
// through the color resolver using labelColors (label id -> hex color)
// and the owning calendar's base color.
func (a *Aggregator) Aggregate(ctx context.Context, calendars []model.CalendarDescriptor, window Window, labelColors map[string]string) Result {
	visible := make([]model.CalendarDescriptor, 0, len(calendars))
	for _, cal := range calendars {
		if cal.Visible {
			visible = append(visible, cal)
		}
	}

	// One result slot per calendar; slots are disjoint, so the
	// goroutines share nothing and no locking is needed.
	type slot struct {
		records []model.EventRecord
		err     error
	}
	slots := make([]slot, len(visible))

	var wg sync.WaitGroup
	for i, cal := range visible {
		wg.Add(1)
		go func(i int, cal model.CalendarDescriptor) {
			defer wg.Done()
			records, err := a.source.FetchEvents(ctx, cal.ID, window.Start, window.End)
			slots[i] = slot{records: records, err: err}
		}(i, cal)
	}
	wg.Wait()

	var result Result
	for i, cal := range visible {
		if slots[i].err != nil {
			appLog.Warn("aggregate: calendar fetch failed",
				"calendar_id", cal.ID,
				"err", slots[i].err,
			)
			result.FailedCalendarIDs = append(result.FailedCalendarIDs, cal.ID)
			continue
		}
		for _, rec := range slots[i].records {
			result.Events = append(result.Events, render(rec, cal.BaseColor, labelColors))
		}
	}
	return result
}

// render resolves the color triple for one record. The label color
// participates only when the record carries a label id that resolves in
// the table.
func render(rec model.EventRecord, calendarColor string, labelColors map[string]string) model.RenderableEvent {
	labelColor := ""
	if rec.LabelID != "" {
		labelColor = labelColors[rec.LabelID]
	}

	base := color.ResolveBase(calendarColor, labelColor)
	return model.RenderableEvent{
		EventRecord:     rec,
		BackgroundColor: base,
		BorderColor:     base,
		TextColor:       color.ResolveText(base),
	}
}
