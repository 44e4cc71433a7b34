package session

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// SettlementRepository persists settlement records and the links back to
// the consumed attention events. Implementations live in
// infrastructure/persistence.
type SettlementRepository interface {
	// SettleBatch persists all records of one settlement run and sets the
	// settlement ref on every consumed event, in a single transaction.
	// consumed maps each record ID to the IDs of the events it consumes.
	// Any failure rolls the whole run back: no partial records, no
	// half-linked events.
	SettleBatch(ctx context.Context, records []*SettlementRecord, consumed map[string][]string) error

	// ListByParticipant returns a participant's settlement records with a
	// date inside [from, to], ordered by date then period ascending.
	ListByParticipant(ctx context.Context, participantID shared.ParticipantID, from, to time.Time) ([]*SettlementRecord, error)

	// ListByParticipants returns the records for a set of participants on
	// one calendar day, for class-wide reporting.
	ListByParticipants(ctx context.Context, participantIDs []shared.ParticipantID, date time.Time) ([]*SettlementRecord, error)
}
