package model

import "time"

// Frequency is the repetition unit of a recurrence rule.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// TerminationMode controls how a recurrence rule stops producing
// occurrences. The hard instance cap applies regardless of mode.
type TerminationMode string

const (
	TerminateNever TerminationMode = "NEVER"
	TerminateUntil TerminationMode = "UNTIL_DATE"
	TerminateCount TerminationMode = "COUNT"
)

// RecurrenceRule is the abstract description of a repeating pattern.
// It is always paired with one anchor time range; the rule itself is
// never persisted, only the occurrences materialized from it.
type RecurrenceRule struct {
	Enabled   bool
	Frequency Frequency

	// Interval is the step between occurrences in Frequency units.
	// Must be >= 1 for an enabled rule.
	Interval int

	// Weekdays restricts WEEKLY rules to the given days. When empty,
	// expansion defaults it to the anchor's weekday. Ignored for other
	// frequencies.
	Weekdays []time.Weekday

	Termination TerminationMode

	// Until is the last calendar day (inclusive) on which an occurrence
	// may start. Only the date part is significant. Valid when
	// Termination == TerminateUntil.
	Until time.Time

	// Count is the number of occurrences to produce. Valid when
	// Termination == TerminateCount.
	Count int

	// MaxInstances caps the expansion regardless of termination mode.
	// Zero means the engine default.
	MaxInstances int
}

// Occurrence is one concrete start/end pair produced by expanding a
// recurrence rule. End-Start is constant across one expansion.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Duration returns the occurrence length.
func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// CalendarDescriptor is one entry of a user's calendar list.
type CalendarDescriptor struct {
	ID          string
	DisplayName string

	// BaseColor is a 6-hex-digit color ("#RRGGBB") used when an event
	// carries no label color.
	BaseColor string

	// Visible is toggled by the user; only visible calendars take part
	// in aggregation.
	Visible bool
}

// Label is an event tag with its own color, independent of any calendar.
type Label struct {
	ID    string
	Name  string
	Color string
}

// EventRecord is the raw event unit as retrieved from the event store.
// Its ID is scoped to the owning calendar.
type EventRecord struct {
	ID         string
	CalendarID string
	LabelID    string // empty when the event has no label
	Title      string
	Start      time.Time
	End        time.Time
	AllDay     bool
}

// RenderableEvent is an EventRecord with its display colors resolved.
// It is recomputed on every aggregation pass, never cached beyond one
// fetch window.
type RenderableEvent struct {
	EventRecord

	BackgroundColor string
	BorderColor     string
	TextColor       string
}

// EventDraft carries the per-series constant fields of a create-event
// request; start/end come from the individual occurrence.
type EventDraft struct {
	CalendarID string
	Title      string
	LabelID    string
	AllDay     bool
}

// EventPatch is a partial update for an existing event. Nil fields are
// left unchanged by the store.
type EventPatch struct {
	Title   *string
	Start   *time.Time
	End     *time.Time
	AllDay  *bool
	LabelID *string
}

// TargetType distinguishes the kinds of share-grant targets.
type TargetType string

const (
	TargetMember     TargetType = "MEMBER"
	TargetDepartment TargetType = "DEPARTMENT"
	TargetPosition   TargetType = "POSITION"
)

// TargetTypes lists all known target types in canonical order.
var TargetTypes = []TargetType{TargetMember, TargetDepartment, TargetPosition}

// Role is the access level a share grant confers.
type Role string

const (
	RoleNone        Role = "NONE"
	RoleBusyOnly    Role = "BUSY_ONLY"
	RoleReader      Role = "READER"
	RoleContributor Role = "CONTRIBUTOR"
	RoleEditor      Role = "EDITOR"
)

// KnownRole reports whether r is one of the defined roles.
func KnownRole(r Role) bool {
	switch r {
	case RoleNone, RoleBusyOnly, RoleReader, RoleContributor, RoleEditor:
		return true
	}
	return false
}

// ShareGrant is one (target, role) entry as produced by the share picker.
type ShareGrant struct {
	TargetType TargetType
	TargetID   string
	Role       Role
}

// ShareSet holds the normalized grants for one scope: one mapping per
// target type, keyed by target id. The mappings are duplicate-free by
// construction.
type ShareSet struct {
	Members     map[string]Role
	Departments map[string]Role
	Positions   map[string]Role
}

// NewShareSet returns an empty ShareSet with all mappings allocated.
func NewShareSet() ShareSet {
	return ShareSet{
		Members:     make(map[string]Role),
		Departments: make(map[string]Role),
		Positions:   make(map[string]Role),
	}
}

// Mapping returns the mapping for the given target type, or nil for an
// unknown type.
func (s ShareSet) Mapping(t TargetType) map[string]Role {
	switch t {
	case TargetMember:
		return s.Members
	case TargetDepartment:
		return s.Departments
	case TargetPosition:
		return s.Positions
	}
	return nil
}

// Clone returns a deep copy; mutating the copy never affects s.
func (s ShareSet) Clone() ShareSet {
	out := NewShareSet()
	for _, t := range TargetTypes {
		dst := out.Mapping(t)
		for id, role := range s.Mapping(t) {
			dst[id] = role
		}
	}
	return out
}

// Len returns the total number of grants across all target types.
func (s ShareSet) Len() int {
	return len(s.Members) + len(s.Departments) + len(s.Positions)
}

// Grants flattens the set into a grant list, grouped by target type in
// canonical order. Ordering within a type is unspecified.
func (s ShareSet) Grants() []ShareGrant {
	out := make([]ShareGrant, 0, s.Len())
	for _, t := range TargetTypes {
		for id, role := range s.Mapping(t) {
			out = append(out, ShareGrant{TargetType: t, TargetID: id, Role: role})
		}
	}
	return out
}

// ApplyMode selects how an incoming share set combines with an
// existing one.
type ApplyMode string

const (
	ApplyMerge   ApplyMode = "MERGE"
	ApplyReplace ApplyMode = "REPLACE"
)
