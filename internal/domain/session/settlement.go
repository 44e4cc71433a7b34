package session

import (
	"math"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// SettlementRecord is one participant's settled statistics for one class
// meeting. Created once per participant per settlement run, immutable
// thereafter.
type SettlementRecord struct {
	// ID is the unique identifier of the record.
	ID string

	// ParticipantID is the student the record belongs to.
	ParticipantID shared.ParticipantID

	// Date is the calendar day of the meeting.
	Date time.Time

	// Window is the settled session window.
	Window Window

	// Subject is the subject taught in the period.
	Subject string

	// PeriodNumber is the period's ordinal within the school day.
	PeriodNumber int

	// FocusRatePercent is the settled focus percentage, always in [0,100].
	FocusRatePercent int

	// OutOfSeatCount is the number of AWAY events in the run.
	OutOfSeatCount int

	// CreatedAt is when the record was persisted.
	CreatedAt time.Time
}

// Outcome is the result of reducing one participant's event stream.
type Outcome struct {
	LossSeconds      int64
	FocusRatePercent int
	OutOfSeatCount   int
}

// Reduce runs the per-participant attention state machine over an event
// stream ordered by detected-at ascending.
//
// The participant starts FOCUSED. AWAY/UNFOCUS opens a loss interval unless
// one is already open (repeating a loss state does not restart the clock);
// FOCUS/RESTROOM/ACTIVITY closes it and accrues the elapsed seconds. Events
// outside the window contribute neither transitions nor loss time. A loss
// interval still open at the end of the stream is charged through the
// window's end: a participant who never returns loses the rest of the
// session.
//
// OutOfSeatCount counts AWAY events over the full, unfiltered stream,
// out-of-window ones included, matching what gets linked to the record.
func Reduce(events []*monitoring.AttentionEvent, w Window) Outcome {
	var (
		lossSeconds int64
		lossStart   *time.Time
		awayCount   int
	)

	for _, e := range events {
		if e.Type == monitoring.EventAway {
			awayCount++
		}
		if !w.Contains(e.DetectedAt) {
			continue
		}

		switch {
		case e.Type.StartsLoss():
			if lossStart == nil {
				t := e.DetectedAt
				lossStart = &t
			}
		case e.Type.EndsLoss():
			if lossStart != nil {
				lossSeconds += int64(e.DetectedAt.Sub(*lossStart) / time.Second)
				lossStart = nil
			}
		}
	}

	if lossStart != nil {
		lossSeconds += int64(w.End.Sub(*lossStart) / time.Second)
	}

	total := w.TotalSeconds()
	rate := int(math.Round(100 * float64(total-lossSeconds) / float64(total)))
	if rate < 0 {
		rate = 0
	} else if rate > 100 {
		rate = 100
	}

	return Outcome{
		LossSeconds:      lossSeconds,
		FocusRatePercent: rate,
		OutOfSeatCount:   awayCount,
	}
}

// NewSettlementRecord builds the record for one participant's outcome.
func NewSettlementRecord(id string, participantID shared.ParticipantID, w Window, subject string, periodNumber int, out Outcome, now time.Time) *SettlementRecord {
	return &SettlementRecord{
		ID:               id,
		ParticipantID:    participantID,
		Date:             time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, w.Start.Location()),
		Window:           w,
		Subject:          subject,
		PeriodNumber:     periodNumber,
		FocusRatePercent: out.FocusRatePercent,
		OutOfSeatCount:   out.OutOfSeatCount,
		CreatedAt:        now,
	}
}
