// Package series persists a recurring series as independent events:
// one create call per occurrence, fanned out with a bounded in-flight
// window. There is no transaction — a failed occurrence never cancels
// or rolls back the others; the created set is simply the subset that
// succeeded.
package series

import (
	"context"
	"time"

	"github.com/google/uuid"

	appLog "intracal/internal/log"
	"intracal/internal/model"
)

// DefaultInFlight is the submission window used when the caller does
// not set one; small enough not to overwhelm the event store.
const DefaultInFlight = 5

// Creator is the event-store collaborator that persists one event per
// call. requestID is a client-generated id so a retried submission can
// be attributed on the server side.
type Creator interface {
	CreateEvent(ctx context.Context, draft model.EventDraft, start, end time.Time, requestID string) (string, error)
}

// Outcome records the fate of one occurrence's submission.
type Outcome struct {
	Occurrence model.Occurrence
	RequestID  string
	EventID    string // set on success
	Err        error  // set on failure
}

// Report summarizes one series submission. Outcomes is index-aligned
// with the occurrence list passed to Submit.
type Report struct {
	Outcomes []Outcome
	Created  int
	Failed   int
}

// Submitter fans out create calls with at most inFlight in flight.
type Submitter struct {
	creator  Creator
	inFlight int
}

func NewSubmitter(creator Creator, inFlight int) *Submitter {
	if inFlight <= 0 {
		inFlight = DefaultInFlight
	}
	return &Submitter{creator: creator, inFlight: inFlight}
}

// Submit persists every occurrence of the draft's series and reports
// per-occurrence outcomes. It always runs the full list to completion;
// callers decide what to surface about partial failure.
func (s *Submitter) Submit(ctx context.Context, draft model.EventDraft, occurrences []model.Occurrence) Report {
	report := Report{Outcomes: make([]Outcome, len(occurrences))}

	sem := make(chan struct{}, s.inFlight)
	done := make(chan int, len(occurrences))

	for i, occ := range occurrences {
		sem <- struct{}{}
		go func(i int, occ model.Occurrence) {
			defer func() { <-sem }()

			requestID := uuid.NewString()
			eventID, err := s.creator.CreateEvent(ctx, draft, occ.Start, occ.End, requestID)
			report.Outcomes[i] = Outcome{
				Occurrence: occ,
				RequestID:  requestID,
				EventID:    eventID,
				Err:        err,
			}
			done <- i
		}(i, occ)
	}

	for range occurrences {
		<-done
	}

	for _, o := range report.Outcomes {
		if o.Err != nil {
			report.Failed++
			appLog.Warn("series: occurrence create failed",
				"calendar_id", draft.CalendarID,
				"start", o.Occurrence.Start.Format(time.RFC3339),
				"request_id", o.RequestID,
				"err", o.Err,
			)
			continue
		}
		report.Created++
	}

	if report.Failed > 0 {
		appLog.Warn("series: partial submission",
			"calendar_id", draft.CalendarID,
			"created", report.Created,
			"failed", report.Failed,
		)
	}
	return report
}
