package monitoring

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// EventLogRepository is the append-only store of attention events.
// Implementations live in infrastructure/persistence.
type EventLogRepository interface {
	// Append persists a new attention event with a nil settlement ref.
	Append(ctx context.Context, event *AttentionEvent) error

	// FindUnsettled returns all events with a nil settlement ref belonging
	// to the given participants, ordered by detected-at ascending.
	FindUnsettled(ctx context.Context, participantIDs []shared.ParticipantID) ([]*AttentionEvent, error)

	// CountUnsettledByType counts a participant's unsettled events of one
	// type created inside [dayStart, dayEnd). The day bounds are an explicit
	// parameter, derived from the triggering event's own timestamp, so the
	// tally is deterministic under test and across timezones.
	CountUnsettledByType(ctx context.Context, participantID shared.ParticipantID, t EventType, dayStart, dayEnd time.Time) (int64, error)
}

// ConnectedParticipant is the presence entry for one live connection.
// Ephemeral: created on join, destroyed on leave, never persisted.
type ConnectedParticipant struct {
	ParticipantID shared.ParticipantID `json:"participant_id"`
	DisplayName   string               `json:"display_name"`
	Number        int                  `json:"number,omitempty"` // class roster number, if known
}

// PresenceTracker tracks which participants are connected to which session.
// Implementations must update their internal indices atomically per
// join/leave so readers never observe a participant counted but not listed.
// Operations never fail; leaving an untracked connection is a no-op.
type PresenceTracker interface {
	// Join registers a connection. Idempotent per connection ID: a re-join
	// overwrites the prior entry for that connection.
	Join(connID shared.ConnectionID, sessionID shared.SessionID, p ConnectedParticipant)

	// Leave removes a connection and returns the removed participant along
	// with its session, or ok=false if the connection was untracked.
	Leave(connID shared.ConnectionID) (p ConnectedParticipant, sessionID shared.SessionID, ok bool)

	// CountFor returns the number of connections in a session.
	CountFor(sessionID shared.SessionID) int

	// ListFor returns the participants currently connected to a session.
	ListFor(sessionID shared.SessionID) []ConnectedParticipant
}

// Broadcaster publishes payloads to a session topic. Delivery is
// best-effort: callers persist first and never roll back on publish failure.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload any) error
}
