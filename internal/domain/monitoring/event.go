// Package monitoring contains the domain model for live classroom
// monitoring: attention events streamed from student devices, the
// notifications derived from them, and live presence bookkeeping.
// This is a pure domain layer with zero external dependencies.
package monitoring

import (
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// Domain errors for the monitoring package.
var (
	ErrUnknownEventType  = shared.NewDomainError("monitoring", "Validate", shared.ErrInvalidInput, "unknown event type")
	ErrEmptyParticipant  = shared.NewDomainError("monitoring", "Validate", shared.ErrInvalidID, "participant ID cannot be empty")
	ErrEventNotFound     = shared.NewDomainError("monitoring", "Find", shared.ErrNotFound, "attention event not found")
	ErrEventAlreadyLinked = shared.NewDomainError("monitoring", "Link", shared.ErrAlreadyProcessed, "attention event already linked to a settlement")
)

// EventType classifies an attention event reported by a student device.
type EventType string

const (
	// EventAway - the student left their seat / the camera frame.
	EventAway EventType = "AWAY"

	// EventUnfocus - the student is present but not paying attention.
	EventUnfocus EventType = "UNFOCUS"

	// EventFocus - the student returned to a focused state.
	EventFocus EventType = "FOCUS"

	// EventRestroom - the student left with a restroom pass.
	EventRestroom EventType = "RESTROOM"

	// EventActivity - the student switched to a sanctioned activity.
	EventActivity EventType = "ACTIVITY"

	// EventEnter - the student's device connected to the session.
	EventEnter EventType = "ENTER"

	// EventExit - the student's device disconnected from the session.
	EventExit EventType = "EXIT"
)

// IsValid checks if the event type is one of the known values.
func (t EventType) IsValid() bool {
	switch t {
	case EventAway, EventUnfocus, EventFocus, EventRestroom, EventActivity, EventEnter, EventExit:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event type.
func (t EventType) String() string { return string(t) }

// StartsLoss reports whether the event opens a loss interval: the
// participant stops being focused.
func (t EventType) StartsLoss() bool {
	return t == EventAway || t == EventUnfocus
}

// EndsLoss reports whether the event closes a loss interval: the participant
// is focused again, or is excused (restroom, sanctioned activity).
func (t EventType) EndsLoss() bool {
	return t == EventFocus || t == EventRestroom || t == EventActivity
}

// AttentionEvent is an immutable fact recorded when a student device reports
// an attention change. The settlement reference starts out nil and is set
// exactly once, inside the settlement transaction; events are never deleted.
type AttentionEvent struct {
	// ID is the unique identifier of the event.
	ID string

	// ParticipantID is the student the event belongs to.
	ParticipantID shared.ParticipantID

	// Type is the kind of attention change.
	Type EventType

	// DetectedAt is when the device detected the change. Defaults to the
	// ingestion clock when the device did not supply it.
	DetectedAt time.Time

	// SettlementRef is nil while the event is unsettled. A settlement run
	// sets it to the consuming record's ID; at most one record ever
	// references an event.
	SettlementRef *string

	// CreatedAt is when the event was persisted.
	CreatedAt time.Time
}

// NewAttentionEvent validates and builds an attention event. A zero
// detectedAt falls back to now (the ingestion clock supplied by the caller).
func NewAttentionEvent(id string, participantID shared.ParticipantID, t EventType, detectedAt, now time.Time) (*AttentionEvent, error) {
	if !participantID.IsValid() {
		return nil, ErrEmptyParticipant
	}
	if !t.IsValid() {
		return nil, ErrUnknownEventType
	}
	if detectedAt.IsZero() {
		detectedAt = now
	}
	return &AttentionEvent{
		ID:            id,
		ParticipantID: participantID,
		Type:          t,
		DetectedAt:    detectedAt,
		CreatedAt:     now,
	}, nil
}

// IsSettled reports whether the event has been consumed by a settlement run.
func (e *AttentionEvent) IsSettled() bool {
	return e.SettlementRef != nil
}

// LinkSettlement marks the event as consumed by the given settlement record.
// Linking is one-shot: relinking an already settled event is an error.
func (e *AttentionEvent) LinkSettlement(recordID string) error {
	if e.SettlementRef != nil {
		return ErrEventAlreadyLinked
	}
	e.SettlementRef = &recordID
	return nil
}
