// Package recur materializes recurrence rules into concrete occurrence
// lists. Expansion happens once, at event-creation time; the persisted
// events carry no notion of a series afterwards.
package recur

import (
	"fmt"
	"time"

	"intracal/internal/model"
)

const (
	// DefaultMaxInstances is the hard expansion cap applied when the
	// rule does not set one.
	DefaultMaxInstances = 200

	// WeeklyScanHorizonDays bounds the day-by-day scan used for WEEKLY
	// rules, roughly ten years. A rule whose weekday set never matches
	// inside the horizon simply yields what was accumulated; hitting
	// the horizon is silent truncation, not an error.
	WeeklyScanHorizonDays = 3660
)

// Validate checks a rule for the malformed shapes that expansion does
// not guard against itself. Callers run it before Expand; Expand never
// fails on its own.
func Validate(rule model.RecurrenceRule) error {
	if !rule.Enabled {
		return nil
	}
	switch rule.Frequency {
	case model.FreqDaily, model.FreqWeekly, model.FreqMonthly, model.FreqYearly:
	default:
		return fmt.Errorf("recur: unknown frequency %q", rule.Frequency)
	}
	if rule.Interval < 1 {
		return fmt.Errorf("recur: interval must be >= 1, got %d", rule.Interval)
	}
	switch rule.Termination {
	case model.TerminateNever, "":
	case model.TerminateCount:
		if rule.Count < 1 {
			return fmt.Errorf("recur: count must be >= 1, got %d", rule.Count)
		}
	case model.TerminateUntil:
		if rule.Until.IsZero() {
			return fmt.Errorf("recur: until date is not set")
		}
	default:
		return fmt.Errorf("recur: unknown termination mode %q", rule.Termination)
	}
	for _, wd := range rule.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("recur: weekday out of range: %d", wd)
		}
	}
	return nil
}

// Expand materializes rule against the anchor range [anchorStart,
// anchorEnd]. The anchor is the first occurrence (for WEEKLY rules,
// provided its weekday qualifies), every occurrence keeps the anchor's
// duration, and output is strictly ascending by start with no
// duplicates. A disabled rule yields nothing.
//
// Expand assumes Validate passed; it never returns an error, and a rule
// that cannot advance yields whatever was accumulated up to the guard
// limits.
func Expand(rule model.RecurrenceRule, anchorStart, anchorEnd time.Time) []model.Occurrence {
	if !rule.Enabled {
		return nil
	}

	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	limit := rule.MaxInstances
	if limit <= 0 {
		limit = DefaultMaxInstances
	}
	if rule.Termination == model.TerminateCount && rule.Count > 0 && rule.Count < limit {
		limit = rule.Count
	}

	// Exclusive upper bound on starts under UNTIL_DATE: the first
	// instant of the day after the until date.
	var untilBound time.Time
	if rule.Termination == model.TerminateUntil && !rule.Until.IsZero() {
		u := rule.Until
		untilBound = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, anchorStart.Location()).AddDate(0, 0, 1)
	}

	duration := anchorEnd.Sub(anchorStart)

	out := make([]model.Occurrence, 0, limit)
	emit := func(start time.Time) bool {
		if !untilBound.IsZero() && !start.Before(untilBound) {
			return false
		}
		out = append(out, model.Occurrence{Start: start, End: start.Add(duration)})
		return len(out) < limit
	}

	switch rule.Frequency {
	case model.FreqWeekly:
		expandWeekly(rule, anchorStart, interval, emit)
	case model.FreqMonthly:
		for start := anchorStart; emit(start); {
			start = addMonthsClamped(start, interval)
		}
	case model.FreqYearly:
		for start := anchorStart; emit(start); {
			start = addMonthsClamped(start, 12*interval)
		}
	default: // DAILY
		for start := anchorStart; emit(start); {
			start = start.AddDate(0, 0, interval)
		}
	}

	return out
}

// expandWeekly scans forward one day at a time from the anchor. A day
// qualifies when its weekday is in the rule's set and it falls in an
// active week: floor(daysSinceAnchor/7) mod interval == 0. The scan is
// bounded by WeeklyScanHorizonDays so it terminates even under NEVER.
func expandWeekly(rule model.RecurrenceRule, anchorStart time.Time, interval int, emit func(time.Time) bool) {
	weekdays := make(map[time.Weekday]bool, len(rule.Weekdays))
	for _, wd := range rule.Weekdays {
		weekdays[wd] = true
	}
	if len(weekdays) == 0 {
		weekdays[anchorStart.Weekday()] = true
	}

	for day := 0; day <= WeeklyScanHorizonDays; day++ {
		if (day/7)%interval != 0 {
			continue
		}
		start := anchorStart.AddDate(0, 0, day)
		if !weekdays[start.Weekday()] {
			continue
		}
		if !emit(start) {
			return
		}
	}
}

// addMonthsClamped advances t by the given number of months, clamping
// the day-of-month to the target month's last day (Jan 31 + 1 month ->
// Feb 28/29). Advancement is applied step over step, so a clamped day
// stays clamped for the rest of the series; Go's AddDate would instead
// roll the overflow into the next month and break ordering.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// First of the target month; time.Date normalizes month overflow.
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
