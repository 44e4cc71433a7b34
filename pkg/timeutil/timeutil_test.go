package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Almaty")
	assert.NoError(t, err)

	at := time.Date(2026, 3, 2, 23, 59, 30, 0, loc)
	start, end := DayBounds(at)

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, loc), end)

	// Half-open: midnight belongs to the next day.
	nextStart, _ := DayBounds(end)
	assert.Equal(t, end, nextStart)
}

func TestStartOfWeek(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday maps to itself",
			in:   time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC), // Monday
			want: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "midweek",
			in:   time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC), // Thursday
			want: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday belongs to the preceding monday",
			in:   time.Date(2026, 3, 8, 1, 0, 0, 0, time.UTC), // Sunday
			want: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StartOfWeek(tc.in))
		})
	}
}

func TestStartOfMonth(t *testing.T) {
	in := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(in))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	assert.True(t, SameDay(a, time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)))
	assert.False(t, SameDay(a, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)))

	// Comparison happens in the first argument's location.
	almaty, err := time.LoadLocation("Asia/Almaty")
	assert.NoError(t, err)
	lateUTC := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC) // 02:00 next day in Almaty
	assert.False(t, SameDay(time.Date(2026, 3, 2, 12, 0, 0, 0, almaty), lateUTC))
}

func TestAt(t *testing.T) {
	day := time.Date(2026, 3, 2, 18, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC), At(day, 8, 30, 0))
}
