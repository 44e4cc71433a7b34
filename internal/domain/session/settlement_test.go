package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
)

func mustEvent(t *testing.T, id string, typ monitoring.EventType, at time.Time) *monitoring.AttentionEvent {
	t.Helper()
	e, err := monitoring.NewAttentionEvent(id, "student-1", typ, at, at)
	require.NoError(t, err)
	return e
}

func TestWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("inverted window rejected", func(t *testing.T) {
		_, err := NewWindow(start, start.Add(-time.Minute))
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("zero length window is legal", func(t *testing.T) {
		w, err := NewWindow(start, start)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.TotalSeconds())
	})

	t.Run("contains is inclusive on both bounds", func(t *testing.T) {
		w, err := NewWindow(start, start.Add(50*time.Minute))
		require.NoError(t, err)

		assert.True(t, w.Contains(start))
		assert.True(t, w.Contains(start.Add(50*time.Minute)))
		assert.False(t, w.Contains(start.Add(-time.Second)))
		assert.False(t, w.Contains(start.Add(50*time.Minute+time.Second)))
	})
}

func TestReduce(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	window, err := NewWindow(start, start.Add(50*time.Minute))
	require.NoError(t, err)

	t.Run("alternating loss intervals", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventAway, start.Add(5*time.Minute)),
			mustEvent(t, "e2", monitoring.EventFocus, start.Add(20*time.Minute)),
			mustEvent(t, "e3", monitoring.EventUnfocus, start.Add(30*time.Minute)),
			mustEvent(t, "e4", monitoring.EventFocus, start.Add(40*time.Minute)),
		}

		out := Reduce(events, window)
		assert.Equal(t, int64(1500), out.LossSeconds)
		assert.Equal(t, 50, out.FocusRatePercent)
		assert.Equal(t, 1, out.OutOfSeatCount)
	})

	t.Run("no events settles at full focus", func(t *testing.T) {
		out := Reduce(nil, window)
		assert.Equal(t, int64(0), out.LossSeconds)
		assert.Equal(t, 100, out.FocusRatePercent)
		assert.Equal(t, 0, out.OutOfSeatCount)
	})

	t.Run("closed interval followed by an unreturned one", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventAway, start.Add(5*time.Minute)),
			mustEvent(t, "e2", monitoring.EventFocus, start.Add(10*time.Minute)),
			mustEvent(t, "e3", monitoring.EventUnfocus, start.Add(30*time.Minute)),
		}

		// 300s closed plus 1200s charged to the window end.
		out := Reduce(events, window)
		assert.Equal(t, int64(1500), out.LossSeconds)
		assert.Equal(t, 50, out.FocusRatePercent)
		assert.Equal(t, 1, out.OutOfSeatCount)
	})

	t.Run("unreturned loss charged through window end", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventAway, start.Add(25*time.Minute)),
		}

		out := Reduce(events, window)
		assert.Equal(t, int64(1500), out.LossSeconds)
		assert.Equal(t, 50, out.FocusRatePercent)
	})

	t.Run("repeated loss states do not restart the clock", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventAway, start.Add(10*time.Minute)),
			mustEvent(t, "e2", monitoring.EventUnfocus, start.Add(20*time.Minute)),
			mustEvent(t, "e3", monitoring.EventFocus, start.Add(30*time.Minute)),
		}

		out := Reduce(events, window)
		assert.Equal(t, int64(1200), out.LossSeconds)
	})

	t.Run("restroom and activity close loss intervals", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventAway, start.Add(5*time.Minute)),
			mustEvent(t, "e2", monitoring.EventRestroom, start.Add(10*time.Minute)),
			mustEvent(t, "e3", monitoring.EventUnfocus, start.Add(20*time.Minute)),
			mustEvent(t, "e4", monitoring.EventActivity, start.Add(25*time.Minute)),
		}

		out := Reduce(events, window)
		assert.Equal(t, int64(600), out.LossSeconds)
	})

	t.Run("closing event without open interval is a no-op", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventFocus, start.Add(10*time.Minute)),
			mustEvent(t, "e2", monitoring.EventFocus, start.Add(20*time.Minute)),
		}

		out := Reduce(events, window)
		assert.Equal(t, int64(0), out.LossSeconds)
		assert.Equal(t, 100, out.FocusRatePercent)
	})

	t.Run("out of window events neither open nor close", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			// Before the window: must not open a loss interval.
			mustEvent(t, "e1", monitoring.EventAway, start.Add(-10*time.Minute)),
			mustEvent(t, "e2", monitoring.EventUnfocus, start.Add(10*time.Minute)),
			// After the window: must not close the open interval early.
			mustEvent(t, "e3", monitoring.EventFocus, start.Add(60*time.Minute)),
		}

		out := Reduce(events, window)
		assert.Equal(t, int64(2400), out.LossSeconds)
		// The out-of-window AWAY still counts.
		assert.Equal(t, 1, out.OutOfSeatCount)
	})

	t.Run("enter and exit do not touch loss state", func(t *testing.T) {
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventAway, start.Add(10*time.Minute)),
			mustEvent(t, "e2", monitoring.EventExit, start.Add(15*time.Minute)),
			mustEvent(t, "e3", monitoring.EventEnter, start.Add(18*time.Minute)),
			mustEvent(t, "e4", monitoring.EventFocus, start.Add(20*time.Minute)),
		}

		out := Reduce(events, window)
		assert.Equal(t, int64(600), out.LossSeconds)
	})

	t.Run("rate is clamped into the percent range", func(t *testing.T) {
		short, err := NewWindow(start, start)
		require.NoError(t, err)

		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventAway, start),
		}
		// Total is floored at 1s while the open interval charges 0s, so
		// the rate stays within bounds.
		out := Reduce(events, short)
		assert.GreaterOrEqual(t, out.FocusRatePercent, 0)
		assert.LessOrEqual(t, out.FocusRatePercent, 100)
	})

	t.Run("rate rounds to nearest percent", func(t *testing.T) {
		// 100s window with 33s loss: 67/100 exactly. Use 3s window with
		// 1s loss for a rounding case: 2/3 = 66.67 -> 67.
		w, err := NewWindow(start, start.Add(3*time.Second))
		require.NoError(t, err)
		events := []*monitoring.AttentionEvent{
			mustEvent(t, "e1", monitoring.EventUnfocus, start.Add(time.Second)),
			mustEvent(t, "e2", monitoring.EventFocus, start.Add(2*time.Second)),
		}

		out := Reduce(events, w)
		assert.Equal(t, 67, out.FocusRatePercent)
	})
}

func TestNewSettlementRecord(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	w, err := NewWindow(start, start.Add(50*time.Minute))
	require.NoError(t, err)

	rec := NewSettlementRecord("rec-1", "student-1", w, "math", 2, Outcome{
		LossSeconds:      300,
		FocusRatePercent: 90,
		OutOfSeatCount:   1,
	}, start.Add(time.Hour))

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "math", rec.Subject)
	assert.Equal(t, 2, rec.PeriodNumber)
	assert.Equal(t, 90, rec.FocusRatePercent)
	assert.Equal(t, 1, rec.OutOfSeatCount)
}
