package classgroup

import (
	"context"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

// Repository defines storage operations for class groups.
type Repository interface {
	// Create persists a new class group.
	// Returns ErrInviteCodeTaken when the invite code collides.
	Create(ctx context.Context, c *ClassGroup) error

	// GetByID returns a class group by ID.
	GetByID(ctx context.Context, id shared.ClassID) (*ClassGroup, error)

	// GetByInviteCode returns the class a student is joining.
	GetByInviteCode(ctx context.Context, code string) (*ClassGroup, error)

	// ListByTeacher returns the teacher's class groups.
	ListByTeacher(ctx context.Context, teacherID string) ([]*ClassGroup, error)

	// Update persists mutable class fields (grade, class number, modes).
	Update(ctx context.Context, c *ClassGroup) error

	// Delete soft-deletes a class group.
	Delete(ctx context.Context, id shared.ClassID) error
}

// SessionInfo is what the Directory resolves a session ID to. A session is
// one class's one monitored meeting; as long as the class exists, its
// session exists implicitly.
type SessionInfo struct {
	SessionID shared.SessionID
	ClassID   shared.ClassID
}

// Directory is the roster-resolution collaborator the monitoring and
// settlement paths depend on. Backed by the class/participant store.
type Directory interface {
	// ResolveParticipant returns the participant for an ID.
	// Returns student.ErrParticipantNotFound on unknown IDs.
	ResolveParticipant(ctx context.Context, id shared.ParticipantID) (*student.Participant, error)

	// ListParticipantsForClass returns the full class roster.
	ListParticipantsForClass(ctx context.Context, classID shared.ClassID) ([]*student.Participant, error)

	// ResolveSession maps a session ID to its owning class.
	// Returns session.ErrSessionNotFound on unknown IDs.
	ResolveSession(ctx context.Context, sessionID shared.SessionID) (*SessionInfo, error)
}
