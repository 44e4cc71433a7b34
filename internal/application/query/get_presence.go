// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"sort"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PRESENCE QUERY
// Answers "who is in the session right now" from the live connection
// tracker. Purely in-memory; an empty result is a session with nobody
// connected, not an error.
// ══════════════════════════════════════════════════════════════════════════════

// GetPresenceQuery identifies the session to inspect.
type GetPresenceQuery struct {
	SessionID shared.SessionID
}

// GetPresenceResult lists the connected participants.
type GetPresenceResult struct {
	SessionID    shared.SessionID                  `json:"session_id"`
	Count        int                               `json:"count"`
	Participants []monitoring.ConnectedParticipant `json:"participants"`
}

// GetPresenceHandler handles the GetPresenceQuery.
type GetPresenceHandler struct {
	tracker monitoring.PresenceTracker
}

// NewGetPresenceHandler creates a new GetPresenceHandler.
func NewGetPresenceHandler(tracker monitoring.PresenceTracker) *GetPresenceHandler {
	return &GetPresenceHandler{tracker: tracker}
}

// Handle executes the query. Results are ordered by roster number so the
// dashboard list is stable across refreshes.
func (h *GetPresenceHandler) Handle(_ context.Context, q GetPresenceQuery) (*GetPresenceResult, error) {
	if !q.SessionID.IsValid() {
		return nil, shared.NewDomainError("query", "GetPresence", shared.ErrInvalidID, "session ID cannot be empty")
	}

	participants := h.tracker.ListFor(q.SessionID)
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].Number != participants[j].Number {
			return participants[i].Number < participants[j].Number
		}
		return participants[i].ParticipantID < participants[j].ParticipantID
	})

	return &GetPresenceResult{
		SessionID:    q.SessionID,
		Count:        len(participants),
		Participants: participants,
	}, nil
}
