// Package ics serializes an aggregation snapshot as a subscribable
// iCalendar feed. Recurring series were materialized at creation time,
// so the feed carries plain VEVENTs and never an RRULE.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"intracal/internal/model"
)

const productID = "-//intracal//calendar feed//EN"

// colorProperty is the RFC 7986 COLOR property; the feed carries each
// event's resolved background color so external clients can mirror the
// intranet palette.
const colorProperty = ical.ComponentProperty("COLOR")

// Feed renders the given events as an iCalendar document. name becomes
// the calendar display name; now is used for DTSTAMP.
func Feed(name string, events []model.RenderableEvent, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ev := cal.AddEvent(e.ID + "@" + e.CalendarID)
		ev.SetDtStampTime(now)
		ev.SetSummary(e.Title)

		if e.AllDay {
			ev.SetAllDayStartAt(e.Start)
			ev.SetAllDayEndAt(e.End)
		} else {
			ev.SetStartAt(e.Start)
			ev.SetEndAt(e.End)
		}

		if e.BackgroundColor != "" {
			ev.SetProperty(colorProperty, e.BackgroundColor)
		}
	}

	return cal.Serialize()
}
