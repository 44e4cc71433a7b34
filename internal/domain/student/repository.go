package student

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// Repository defines storage operations for participants.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create persists a newly enrolled participant.
	Create(ctx context.Context, p *Participant) error

	// GetByID returns a participant by ID.
	// Returns ErrParticipantNotFound if the participant does not exist.
	GetByID(ctx context.Context, id shared.ParticipantID) (*Participant, error)

	// ListByClass returns all participants of a class group, ordered by
	// roster number.
	ListByClass(ctx context.Context, classID shared.ClassID) ([]*Participant, error)

	// UpdateProgress persists a participant's current XP and level.
	UpdateProgress(ctx context.Context, p *Participant) error
}

// LevelRepository loads the externally seeded level threshold table.
type LevelRepository interface {
	LoadTable(ctx context.Context) (*LevelTable, error)
}

// XPHistoryRepository is the append-only audit trail of XP changes.
type XPHistoryRepository interface {
	// SaveChange appends one XP-change entry.
	SaveChange(ctx context.Context, change *XPChange) error

	// ListByParticipant returns a participant's XP changes inside
	// [from, to], newest first.
	ListByParticipant(ctx context.Context, id shared.ParticipantID, from, to time.Time) ([]*XPChange, error)

	// LastReason returns the reason of the participant's most recent
	// change, or "" when no change exists.
	LastReason(ctx context.Context, id shared.ParticipantID) (string, error)
}
