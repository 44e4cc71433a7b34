package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

type stubSettlements struct {
	records  []*session.SettlementRecord
	lastFrom time.Time
	lastTo   time.Time
}

func (s *stubSettlements) ListByParticipant(_ context.Context, _ shared.ParticipantID, from, to time.Time) ([]*session.SettlementRecord, error) {
	s.lastFrom, s.lastTo = from, to
	return s.records, nil
}

func (s *stubSettlements) ListByParticipants(context.Context, []shared.ParticipantID, time.Time) ([]*session.SettlementRecord, error) {
	return s.records, nil
}

func (s *stubSettlements) SettleBatch(context.Context, []*session.SettlementRecord, map[string][]string) error {
	return nil
}

func TestGetStatistics(t *testing.T) {
	ref := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC) // Thursday

	t.Run("aggregates and rounds the mean", func(t *testing.T) {
		repo := &stubSettlements{records: []*session.SettlementRecord{
			{FocusRatePercent: 90, OutOfSeatCount: 1, Subject: "math", PeriodNumber: 1},
			{FocusRatePercent: 81, OutOfSeatCount: 0, Subject: "history", PeriodNumber: 2},
			{FocusRatePercent: 70, OutOfSeatCount: 2, Subject: "math", PeriodNumber: 3},
		}}
		h := NewGetStatisticsHandler(repo)

		res, err := h.Handle(context.Background(), GetStatisticsQuery{
			ParticipantID: "s1", Period: PeriodDaily, Reference: ref,
		})
		require.NoError(t, err)

		assert.Equal(t, 3, res.SessionCount)
		// 241/3 = 80.33 rounds down.
		assert.Equal(t, 80, res.AverageFocusRate)
		assert.Equal(t, 3, res.TotalOutOfSeat)
		assert.Len(t, res.Entries, 3)
	})

	t.Run("zero sessions yields zero average", func(t *testing.T) {
		h := NewGetStatisticsHandler(&stubSettlements{})
		res, err := h.Handle(context.Background(), GetStatisticsQuery{
			ParticipantID: "s1", Period: PeriodDaily, Reference: ref,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.SessionCount)
		assert.Equal(t, 0, res.AverageFocusRate)
	})

	t.Run("daily span", func(t *testing.T) {
		repo := &stubSettlements{}
		h := NewGetStatisticsHandler(repo)
		_, err := h.Handle(context.Background(), GetStatisticsQuery{
			ParticipantID: "s1", Period: PeriodDaily, Reference: ref,
		})
		require.NoError(t, err)

		assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), repo.lastFrom)
		assert.True(t, repo.lastTo.Before(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("weekly span starts monday", func(t *testing.T) {
		repo := &stubSettlements{}
		h := NewGetStatisticsHandler(repo)
		_, err := h.Handle(context.Background(), GetStatisticsQuery{
			ParticipantID: "s1", Period: PeriodWeekly, Reference: ref,
		})
		require.NoError(t, err)

		assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), repo.lastFrom)
		assert.True(t, repo.lastTo.Before(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("monthly span", func(t *testing.T) {
		repo := &stubSettlements{}
		h := NewGetStatisticsHandler(repo)
		_, err := h.Handle(context.Background(), GetStatisticsQuery{
			ParticipantID: "s1", Period: PeriodMonthly, Reference: ref,
		})
		require.NoError(t, err)

		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.lastFrom)
		assert.True(t, repo.lastTo.Before(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("zero reference falls back to the clock", func(t *testing.T) {
		repo := &stubSettlements{}
		h := NewGetStatisticsHandler(repo).WithClock(func() time.Time { return ref })
		res, err := h.Handle(context.Background(), GetStatisticsQuery{
			ParticipantID: "s1", Period: PeriodDaily,
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), res.From)
	})

	t.Run("validation", func(t *testing.T) {
		h := NewGetStatisticsHandler(&stubSettlements{})

		_, err := h.Handle(context.Background(), GetStatisticsQuery{Period: PeriodDaily})
		assert.ErrorIs(t, err, shared.ErrInvalidID)

		_, err = h.Handle(context.Background(), GetStatisticsQuery{ParticipantID: "s1", Period: "hourly"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
