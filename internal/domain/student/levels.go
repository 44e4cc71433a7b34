package student

import "sort"

// LevelThreshold maps a level to the cumulative XP required to hold it.
type LevelThreshold struct {
	Level      Level
	RequiredXP XP
}

// LevelTable is the ordered threshold table, seeded externally and
// read-only during operation. Thresholds must be strictly increasing in
// both level and required XP.
type LevelTable struct {
	thresholds []LevelThreshold
}

// NewLevelTable validates and builds a level table. The input need not be
// sorted; it is ordered by level here.
func NewLevelTable(thresholds []LevelThreshold) (*LevelTable, error) {
	if len(thresholds) == 0 {
		return nil, ErrEmptyLevelTable
	}

	sorted := make([]LevelThreshold, len(thresholds))
	copy(sorted, thresholds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Level == sorted[i-1].Level || sorted[i].RequiredXP <= sorted[i-1].RequiredXP {
			return nil, ErrNonMonotonicLevels
		}
	}

	return &LevelTable{thresholds: sorted}, nil
}

// LevelFor returns the largest level whose required XP does not exceed xp.
// Below every threshold the participant holds the floor level.
func (t *LevelTable) LevelFor(xp XP) Level {
	level := FloorLevel
	for _, th := range t.thresholds {
		if th.RequiredXP > xp {
			break
		}
		level = th.Level
	}
	return level
}

// Thresholds returns a copy of the ordered threshold table.
func (t *LevelTable) Thresholds() []LevelThreshold {
	out := make([]LevelThreshold, len(t.thresholds))
	copy(out, t.thresholds)
	return out
}
