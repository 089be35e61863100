package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"intracal/internal/model"
)

// RRULE interop for the subset of RFC 5545 this system understands.
// Clients syncing from external calendars submit rules as RRULE
// strings, and the ICS feed renders rules back out in the same form.

var freqToRRule = map[model.Frequency]rrule.Frequency{
	model.FreqDaily:   rrule.DAILY,
	model.FreqWeekly:  rrule.WEEKLY,
	model.FreqMonthly: rrule.MONTHLY,
	model.FreqYearly:  rrule.YEARLY,
}

var weekdayToRRule = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// ParseRRule converts an RFC 5545 RRULE value (without the "RRULE:"
// prefix) into a RecurrenceRule. Frequencies finer than DAILY are
// rejected; BY* parts this system does not model are ignored.
func ParseRRule(s string) (model.RecurrenceRule, error) {
	var rule model.RecurrenceRule

	opt, err := rrule.StrToROption(s)
	if err != nil {
		return rule, fmt.Errorf("recur: parse rrule: %w", err)
	}

	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = model.FreqDaily
	case rrule.WEEKLY:
		rule.Frequency = model.FreqWeekly
	case rrule.MONTHLY:
		rule.Frequency = model.FreqMonthly
	case rrule.YEARLY:
		rule.Frequency = model.FreqYearly
	default:
		return rule, fmt.Errorf("recur: unsupported rrule frequency in %q", s)
	}

	rule.Enabled = true
	rule.Interval = opt.Interval
	if rule.Interval < 1 {
		rule.Interval = 1
	}

	for _, wd := range opt.Byweekday {
		// rrule weekday numbering starts at Monday.
		rule.Weekdays = append(rule.Weekdays, time.Weekday((wd.Day()+1)%7))
	}

	switch {
	case opt.Count > 0:
		rule.Termination = model.TerminateCount
		rule.Count = opt.Count
	case !opt.Until.IsZero():
		rule.Termination = model.TerminateUntil
		rule.Until = opt.Until
	default:
		rule.Termination = model.TerminateNever
	}

	return rule, nil
}

// RuleString renders the rule as an RFC 5545 RRULE value. A disabled
// rule renders as the empty string.
func RuleString(rule model.RecurrenceRule) (string, error) {
	if !rule.Enabled {
		return "", nil
	}
	if err := Validate(rule); err != nil {
		return "", err
	}

	opt := rrule.ROption{
		Freq:     freqToRRule[rule.Frequency],
		Interval: rule.Interval,
	}

	if rule.Frequency == model.FreqWeekly {
		for _, wd := range rule.Weekdays {
			opt.Byweekday = append(opt.Byweekday, weekdayToRRule[wd])
		}
	}

	switch rule.Termination {
	case model.TerminateCount:
		opt.Count = rule.Count
	case model.TerminateUntil:
		u := rule.Until
		opt.Until = time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
	}

	if _, err := rrule.NewRRule(opt); err != nil {
		return "", fmt.Errorf("recur: build rrule: %w", err)
	}
	return opt.RRuleString(), nil
}
