package recur

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"intracal/internal/model"
)

var weekdayShort = map[time.Weekday]string{
	time.Sunday:    "Sun",
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
}

// Summarize renders a human-readable description of the rule for form
// display, e.g. "Every 2 weeks on Mon, Wed, Fri, until 2024-01-14".
func Summarize(rule model.RecurrenceRule) string {
	if !rule.Enabled {
		return "Does not repeat"
	}

	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	var b strings.Builder
	switch rule.Frequency {
	case model.FreqDaily:
		if interval == 1 {
			b.WriteString("Daily")
		} else {
			fmt.Fprintf(&b, "Every %d days", interval)
		}
	case model.FreqWeekly:
		if interval == 1 {
			b.WriteString("Weekly")
		} else {
			fmt.Fprintf(&b, "Every %d weeks", interval)
		}
		if names := weekdayNames(rule.Weekdays); names != "" {
			b.WriteString(" on ")
			b.WriteString(names)
		}
	case model.FreqMonthly:
		if interval == 1 {
			b.WriteString("Monthly")
		} else {
			fmt.Fprintf(&b, "Every %d months", interval)
		}
	case model.FreqYearly:
		if interval == 1 {
			b.WriteString("Yearly")
		} else {
			fmt.Fprintf(&b, "Every %d years", interval)
		}
	default:
		b.WriteString("Repeats")
	}

	switch rule.Termination {
	case model.TerminateCount:
		if rule.Count == 1 {
			b.WriteString(", once")
		} else if rule.Count > 1 {
			fmt.Fprintf(&b, ", %d times", rule.Count)
		}
	case model.TerminateUntil:
		if !rule.Until.IsZero() {
			fmt.Fprintf(&b, ", until %s", rule.Until.Format("2006-01-02"))
		}
	}

	return b.String()
}

func weekdayNames(weekdays []time.Weekday) string {
	if len(weekdays) == 0 {
		return ""
	}
	uniq := make([]time.Weekday, 0, len(weekdays))
	seen := make(map[time.Weekday]bool, len(weekdays))
	for _, wd := range weekdays {
		if wd < time.Sunday || wd > time.Saturday || seen[wd] {
			continue
		}
		seen[wd] = true
		uniq = append(uniq, wd)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	names := make([]string, len(uniq))
	for i, wd := range uniq {
		names[i] = weekdayShort[wd]
	}
	return strings.Join(names, ", ")
}
