package query

import (
	"context"
	"math"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATISTICS QUERY
// Aggregates a participant's settlement records into daily, weekly, or
// monthly focus statistics for the dashboard charts.
// ══════════════════════════════════════════════════════════════════════════════

// StatisticsPeriod selects the aggregation span.
type StatisticsPeriod string

const (
	PeriodDaily   StatisticsPeriod = "daily"
	PeriodWeekly  StatisticsPeriod = "weekly"
	PeriodMonthly StatisticsPeriod = "monthly"
)

// IsValid checks if the period is one of the known values.
func (p StatisticsPeriod) IsValid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

// GetStatisticsQuery contains the statistics request.
type GetStatisticsQuery struct {
	// ParticipantID is the student whose records are aggregated.
	ParticipantID shared.ParticipantID

	// Period selects the aggregation span.
	Period StatisticsPeriod

	// Reference is a timestamp inside the requested span. Zero means now.
	Reference time.Time
}

// PeriodEntry is the per-record breakdown inside the span.
type PeriodEntry struct {
	Date             time.Time `json:"date"`
	Subject          string    `json:"subject"`
	PeriodNumber     int       `json:"period_number"`
	FocusRatePercent int       `json:"focus_rate_percent"`
	OutOfSeatCount   int       `json:"out_of_seat_count"`
}

// GetStatisticsResult contains the aggregated statistics.
type GetStatisticsResult struct {
	ParticipantID shared.ParticipantID `json:"participant_id"`
	Period        StatisticsPeriod     `json:"period"`
	From          time.Time            `json:"from"`
	To            time.Time            `json:"to"`

	// SessionCount is the number of settled meetings in the span.
	SessionCount int `json:"session_count"`

	// AverageFocusRate is the mean focus rate, rounded. Zero sessions
	// yields zero, not a division error.
	AverageFocusRate int `json:"average_focus_rate"`

	// TotalOutOfSeat sums the out-of-seat counts.
	TotalOutOfSeat int `json:"total_out_of_seat"`

	Entries []PeriodEntry `json:"entries"`
}

// GetStatisticsHandler handles the GetStatisticsQuery.
type GetStatisticsHandler struct {
	settlements session.SettlementRepository

	now func() time.Time
}

// NewGetStatisticsHandler creates a new GetStatisticsHandler.
func NewGetStatisticsHandler(settlements session.SettlementRepository) *GetStatisticsHandler {
	return &GetStatisticsHandler{
		settlements: settlements,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the reference clock. Test hook.
func (h *GetStatisticsHandler) WithClock(now func() time.Time) *GetStatisticsHandler {
	h.now = now
	return h
}

// Handle executes the query.
func (h *GetStatisticsHandler) Handle(ctx context.Context, q GetStatisticsQuery) (*GetStatisticsResult, error) {
	if !q.ParticipantID.IsValid() {
		return nil, shared.NewDomainError("query", "GetStatistics", shared.ErrInvalidID, "participant ID cannot be empty")
	}
	if !q.Period.IsValid() {
		return nil, shared.NewDomainError("query", "GetStatistics", shared.ErrValidation, "unknown statistics period")
	}

	ref := q.Reference
	if ref.IsZero() {
		ref = h.now()
	}
	from, to := spanFor(q.Period, ref)

	records, err := h.settlements.ListByParticipant(ctx, q.ParticipantID, from, to)
	if err != nil {
		return nil, err
	}

	result := &GetStatisticsResult{
		ParticipantID: q.ParticipantID,
		Period:        q.Period,
		From:          from,
		To:            to,
		SessionCount:  len(records),
		Entries:       make([]PeriodEntry, 0, len(records)),
	}

	var rateSum int
	for _, rec := range records {
		rateSum += rec.FocusRatePercent
		result.TotalOutOfSeat += rec.OutOfSeatCount
		result.Entries = append(result.Entries, PeriodEntry{
			Date:             rec.Date,
			Subject:          rec.Subject,
			PeriodNumber:     rec.PeriodNumber,
			FocusRatePercent: rec.FocusRatePercent,
			OutOfSeatCount:   rec.OutOfSeatCount,
		})
	}
	if len(records) > 0 {
		result.AverageFocusRate = int(math.Round(float64(rateSum) / float64(len(records))))
	}

	return result, nil
}

// spanFor maps a period and reference timestamp to the inclusive date
// range of settlement records it covers.
func spanFor(p StatisticsPeriod, ref time.Time) (from, to time.Time) {
	switch p {
	case PeriodWeekly:
		from = timeutil.StartOfWeek(ref)
		to = from.AddDate(0, 0, 7).Add(-time.Nanosecond)
	case PeriodMonthly:
		from = timeutil.StartOfMonth(ref)
		to = from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	default:
		from, to = timeutil.DayBounds(ref)
		to = to.Add(-time.Nanosecond)
	}
	return from, to
}
