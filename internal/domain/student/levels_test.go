package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *LevelTable {
	t.Helper()
	table, err := NewLevelTable([]LevelThreshold{
		{Level: 1, RequiredXP: 0},
		{Level: 2, RequiredXP: 100},
		{Level: 3, RequiredXP: 300},
		{Level: 4, RequiredXP: 600},
	})
	require.NoError(t, err)
	return table
}

func TestNewLevelTable(t *testing.T) {
	t.Run("empty table rejected", func(t *testing.T) {
		_, err := NewLevelTable(nil)
		assert.ErrorIs(t, err, ErrEmptyLevelTable)
	})

	t.Run("duplicate level rejected", func(t *testing.T) {
		_, err := NewLevelTable([]LevelThreshold{
			{Level: 2, RequiredXP: 100},
			{Level: 2, RequiredXP: 200},
		})
		assert.ErrorIs(t, err, ErrNonMonotonicLevels)
	})

	t.Run("non increasing xp rejected", func(t *testing.T) {
		_, err := NewLevelTable([]LevelThreshold{
			{Level: 2, RequiredXP: 300},
			{Level: 3, RequiredXP: 200},
		})
		assert.ErrorIs(t, err, ErrNonMonotonicLevels)
	})

	t.Run("unsorted input is ordered", func(t *testing.T) {
		table, err := NewLevelTable([]LevelThreshold{
			{Level: 3, RequiredXP: 300},
			{Level: 1, RequiredXP: 0},
			{Level: 2, RequiredXP: 100},
		})
		require.NoError(t, err)
		assert.Equal(t, Level(3), table.LevelFor(500))
	})
}

func TestLevelFor(t *testing.T) {
	table := testTable(t)

	cases := []struct {
		xp   XP
		want Level
	}{
		{xp: -50, want: 1}, // below every threshold: floor
		{xp: 0, want: 1},
		{xp: 99, want: 1},
		{xp: 100, want: 2}, // exact threshold unlocks
		{xp: 299, want: 2},
		{xp: 300, want: 3},
		{xp: 10000, want: 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, table.LevelFor(tc.xp), "xp=%d", tc.xp)
	}
}

func TestParticipantXP(t *testing.T) {
	t.Run("negative awards go below zero", func(t *testing.T) {
		p := &Participant{ID: "s1", CurrentXP: 15, CurrentLevel: 1}
		p.AddXP(-20)
		assert.Equal(t, XP(-5), p.CurrentXP)

		table := testTable(t)
		p.UpdateLevel(table.LevelFor(p.CurrentXP))
		assert.Equal(t, FloorLevel, p.CurrentLevel)
	})

	t.Run("level never drops below positive", func(t *testing.T) {
		p := &Participant{ID: "s1", CurrentLevel: 3}
		p.UpdateLevel(0)
		assert.Equal(t, Level(3), p.CurrentLevel)
		p.UpdateLevel(-1)
		assert.Equal(t, Level(3), p.CurrentLevel)
	})

	t.Run("awards accumulate", func(t *testing.T) {
		p := &Participant{ID: "s1"}
		p.AddXP(85)
		p.AddXP(92)
		assert.Equal(t, XP(177), p.CurrentXP)
	})
}
