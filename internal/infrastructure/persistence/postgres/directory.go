package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

// Directory implements classgroup.Directory on top of the class and
// participant tables. Sessions are implicit: a session ID is its class
// group's ID, so resolving a session is a liveness check on the class.
type Directory struct {
	conn         *Connection
	participants *ParticipantRepository
}

// NewDirectory creates the roster-resolution directory.
func NewDirectory(conn *Connection, participants *ParticipantRepository) *Directory {
	return &Directory{conn: conn, participants: participants}
}

// ResolveParticipant returns the participant for an ID.
func (d *Directory) ResolveParticipant(ctx context.Context, id shared.ParticipantID) (*student.Participant, error) {
	return d.participants.GetByID(ctx, id)
}

// ListParticipantsForClass returns the full class roster.
func (d *Directory) ListParticipantsForClass(ctx context.Context, classID shared.ClassID) ([]*student.Participant, error) {
	return d.participants.ListByClass(ctx, classID)
}

// ResolveSession maps a session ID to its owning class.
func (d *Directory) ResolveSession(ctx context.Context, sessionID shared.SessionID) (*classgroup.SessionInfo, error) {
	const query = `SELECT id FROM class_groups WHERE id = $1 AND deleted_at IS NULL`

	var classID string
	err := d.conn.Pool().QueryRow(ctx, query, sessionID.String()).Scan(&classID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("directory: resolve session: %w", err)
	}

	return &classgroup.SessionInfo{
		SessionID: sessionID,
		ClassID:   shared.ClassID(classID),
	}, nil
}
