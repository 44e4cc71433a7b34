package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

func ingestFixture() (*fakeDirectory, *fakeEventLog, *fakeBroadcaster) {
	dir := newFakeDirectory()
	dir.sessions["class-1"] = "class-1"
	dir.addParticipant("class-1", &student.Participant{ID: "s1", DisplayName: "Dana", Number: 1})
	return dir, &fakeEventLog{}, &fakeBroadcaster{}
}

func TestIngestEvent(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)

	t.Run("persists and broadcasts", func(t *testing.T) {
		dir, events, bus := ingestFixture()
		h := NewIngestEventHandler(events, dir, bus, nil).
			WithClock(func() time.Time { return now })

		res, err := h.Handle(context.Background(), IngestEventCommand{
			SessionID:     "class-1",
			ParticipantID: "s1",
			Type:          monitoring.EventAway,
			DetectedAt:    now,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, res.EventID)
		assert.True(t, res.BroadcastOK)
		require.Len(t, events.appended, 1)
		assert.Equal(t, monitoring.EventAway, events.appended[0].Type)

		require.Len(t, bus.published, 1)
		assert.Equal(t, "session/class-1", bus.published[0].topic)
		n, ok := bus.published[0].payload.(*monitoring.Notification)
		require.True(t, ok)
		assert.Equal(t, "Dana left the session", n.Message)
		assert.Equal(t, int64(1), n.TotalAwayCount)
	})

	t.Run("unknown participant rejected before write", func(t *testing.T) {
		dir, events, bus := ingestFixture()
		h := NewIngestEventHandler(events, dir, bus, nil)

		_, err := h.Handle(context.Background(), IngestEventCommand{
			SessionID:     "class-1",
			ParticipantID: "ghost",
			Type:          monitoring.EventAway,
			DetectedAt:    now,
		})
		assert.ErrorIs(t, err, student.ErrParticipantNotFound)
		assert.Empty(t, events.appended)
		assert.Empty(t, bus.published)
	})

	t.Run("empty session rejected", func(t *testing.T) {
		dir, events, bus := ingestFixture()
		h := NewIngestEventHandler(events, dir, bus, nil)

		_, err := h.Handle(context.Background(), IngestEventCommand{
			ParticipantID: "s1",
			Type:          monitoring.EventAway,
		})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.ErrorIs(t, err, shared.ErrInvalidID)
	})

	t.Run("publish failure keeps the event", func(t *testing.T) {
		dir, events, bus := ingestFixture()
		bus.publishErr = errors.New("bus down")
		h := NewIngestEventHandler(events, dir, bus, nil).
			WithClock(func() time.Time { return now })

		res, err := h.Handle(context.Background(), IngestEventCommand{
			SessionID:     "class-1",
			ParticipantID: "s1",
			Type:          monitoring.EventUnfocus,
			DetectedAt:    now,
		})
		require.NoError(t, err)
		assert.False(t, res.BroadcastOK)
		assert.Len(t, events.appended, 1)
	})

	t.Run("zero detected-at uses ingestion clock", func(t *testing.T) {
		dir, events, bus := ingestFixture()
		h := NewIngestEventHandler(events, dir, bus, nil).
			WithClock(func() time.Time { return now })

		_, err := h.Handle(context.Background(), IngestEventCommand{
			SessionID:     "class-1",
			ParticipantID: "s1",
			Type:          monitoring.EventFocus,
		})
		require.NoError(t, err)
		assert.Equal(t, now, events.appended[0].DetectedAt)
	})

	t.Run("day tallies accumulate across events", func(t *testing.T) {
		dir, events, bus := ingestFixture()
		h := NewIngestEventHandler(events, dir, bus, nil).
			WithClock(func() time.Time { return now })

		cmd := IngestEventCommand{
			SessionID:     "class-1",
			ParticipantID: "s1",
			Type:          monitoring.EventAway,
			DetectedAt:    now,
		}
		_, err := h.Handle(context.Background(), cmd)
		require.NoError(t, err)
		cmd.DetectedAt = now.Add(10 * time.Minute)
		res, err := h.Handle(context.Background(), cmd)
		require.NoError(t, err)

		assert.Equal(t, int64(2), res.Notification.TotalAwayCount)
		assert.Equal(t, int64(0), res.Notification.TotalUnfocusCount)

		// A report on another day starts its own tally.
		cmd.DetectedAt = now.AddDate(0, 0, 1)
		res, err = h.Handle(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Notification.TotalAwayCount)
	})
}
