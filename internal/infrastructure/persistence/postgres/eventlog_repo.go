package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// EventLogRepository implements monitoring.EventLogRepository on PostgreSQL.
type EventLogRepository struct {
	conn *Connection
}

// NewEventLogRepository creates the attention-event repository.
func NewEventLogRepository(conn *Connection) *EventLogRepository {
	return &EventLogRepository{conn: conn}
}

// Append persists a new attention event. The settlement ref column stays
// NULL until a settlement run claims the event.
func (r *EventLogRepository) Append(ctx context.Context, event *monitoring.AttentionEvent) error {
	const query = `
        INSERT INTO attention_events (id, participant_id, event_type, detected_at, created_at)
        VALUES ($1, $2, $3, $4, $5)`

	_, err := r.conn.Pool().Exec(ctx, query,
		event.ID,
		event.ParticipantID.String(),
		event.Type.String(),
		event.DetectedAt,
		event.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return monitoring.ErrEmptyParticipant
		}
		return fmt.Errorf("eventlog: append: %w", err)
	}
	return nil
}

// FindUnsettled returns all unsettled events of the given participants,
// ordered by detected-at ascending so the settlement reducer can replay
// them in order.
func (r *EventLogRepository) FindUnsettled(ctx context.Context, participantIDs []shared.ParticipantID) ([]*monitoring.AttentionEvent, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}

	const query = `
        SELECT id, participant_id, event_type, detected_at, settlement_id, created_at
        FROM attention_events
        WHERE participant_id = ANY($1) AND settlement_id IS NULL
        ORDER BY detected_at ASC, created_at ASC`

	ids := make([]string, len(participantIDs))
	for i, id := range participantIDs {
		ids[i] = id.String()
	}

	rows, err := r.conn.Pool().Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("eventlog: find unsettled: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountUnsettledByType counts a participant's unsettled events of one type
// inside [dayStart, dayEnd).
func (r *EventLogRepository) CountUnsettledByType(ctx context.Context, participantID shared.ParticipantID, t monitoring.EventType, dayStart, dayEnd time.Time) (int64, error) {
	const query = `
        SELECT COUNT(*)
        FROM attention_events
        WHERE participant_id = $1
          AND event_type = $2
          AND settlement_id IS NULL
          AND detected_at >= $3 AND detected_at < $4`

	var count int64
	err := r.conn.Pool().QueryRow(ctx, query,
		participantID.String(), t.String(), dayStart, dayEnd).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("eventlog: count by type: %w", err)
	}
	return count, nil
}

func scanEvents(rows pgx.Rows) ([]*monitoring.AttentionEvent, error) {
	var events []*monitoring.AttentionEvent
	for rows.Next() {
		var (
			e             monitoring.AttentionEvent
			participantID string
			eventType     string
		)
		if err := rows.Scan(&e.ID, &participantID, &eventType, &e.DetectedAt, &e.SettlementRef, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		e.ParticipantID = shared.ParticipantID(participantID)
		e.Type = monitoring.EventType(eventType)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: rows: %w", err)
	}
	return events, nil
}
