// Package student contains the participant model and the gamification
// ledger: cumulative XP, level thresholds, and the audit trail of XP
// changes. This is a pure domain layer with zero external dependencies.
package student

import (
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// Domain errors for the student package.
var (
	ErrParticipantNotFound = shared.NewDomainError("student", "Find", shared.ErrNotFound, "participant not found")
	ErrEmptyLevelTable     = shared.NewDomainError("student", "Levels", shared.ErrInvalidInput, "level table is empty")
	ErrNonMonotonicLevels  = shared.NewDomainError("student", "Levels", shared.ErrInvalidInput, "level thresholds must increase with level")
)

// XP is a cumulative experience-point total. Deliberately unclamped:
// negative awards are accepted and a total may go below zero.
type XP int

// Int returns the XP as a plain int.
func (x XP) Int() int { return int(x) }

// Level is a gamification level. Level 1 is the floor.
type Level int

// FloorLevel is the level every participant holds before reaching any
// threshold.
const FloorLevel Level = 1

// Participant is a student enrolled in a class group.
type Participant struct {
	// ID is the unique identifier of the participant.
	ID shared.ParticipantID

	// ClassID is the class group the participant belongs to.
	ClassID shared.ClassID

	// DisplayName is the name shown on the teacher dashboard.
	DisplayName string

	// Number is the participant's roster number within the class.
	Number int

	// CurrentXP is the cumulative experience-point total.
	CurrentXP XP

	// CurrentLevel is the level derived from CurrentXP.
	CurrentLevel Level

	// CreatedAt / UpdatedAt are bookkeeping timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddXP applies an XP delta. No clamping in either direction.
func (p *Participant) AddXP(amount XP) {
	p.CurrentXP += amount
}

// UpdateLevel sets the participant's level. Non-positive levels are ignored.
func (p *Participant) UpdateLevel(level Level) {
	if level > 0 {
		p.CurrentLevel = level
	}
}

// XPChange is one audit entry in the XP history, written for every award
// regardless of source (settlement or manual teacher grant).
type XPChange struct {
	// ID is the unique identifier of the entry.
	ID string

	// ParticipantID is the student the change belongs to.
	ParticipantID shared.ParticipantID

	// Amount is the signed XP delta.
	Amount XP

	// NewTotal is the cumulative XP after the change.
	NewTotal XP

	// Reason is the human-readable cause ("focus settlement", teacher note).
	Reason string

	// CreatedAt is when the change was recorded.
	CreatedAt time.Time
}
