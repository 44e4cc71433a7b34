package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// SettlementRepository implements session.SettlementRepository on
// PostgreSQL.
type SettlementRepository struct {
	conn *Connection
}

// NewSettlementRepository creates the settlement-record repository.
func NewSettlementRepository(conn *Connection) *SettlementRepository {
	return &SettlementRepository{conn: conn}
}

// SettleBatch persists a settlement run atomically: all records are
// inserted and every consumed event gets its settlement ref set, in one
// transaction. Claiming guards against double settlement with a
// settlement_id IS NULL predicate; a claim that matches fewer rows than
// expected means another run got there first, and the whole transaction
// rolls back.
func (r *SettlementRepository) SettleBatch(ctx context.Context, records []*session.SettlementRecord, consumed map[string][]string) error {
	if len(records) == 0 {
		return nil
	}

	const insertRecord = `
        INSERT INTO settlement_records
            (id, participant_id, record_date, window_start, window_end,
             subject, period_number, focus_rate_percent, out_of_seat_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	const claimEvents = `
        UPDATE attention_events
        SET settlement_id = $1
        WHERE id = ANY($2) AND settlement_id IS NULL`

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, rec := range records {
			_, err := tx.Exec(ctx, insertRecord,
				rec.ID,
				rec.ParticipantID.String(),
				rec.Date,
				rec.Window.Start,
				rec.Window.End,
				rec.Subject,
				rec.PeriodNumber,
				rec.FocusRatePercent,
				rec.OutOfSeatCount,
				rec.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("settlement: insert record %s: %w", rec.ID, err)
			}

			eventIDs := consumed[rec.ID]
			if len(eventIDs) == 0 {
				continue
			}
			tag, err := tx.Exec(ctx, claimEvents, rec.ID, eventIDs)
			if err != nil {
				return fmt.Errorf("settlement: link events for record %s: %w", rec.ID, err)
			}
			if int(tag.RowsAffected()) != len(eventIDs) {
				return session.ErrSettlementInProgress
			}
		}
		return nil
	})
}

// ListByParticipant returns a participant's records dated inside [from, to],
// ordered by date then period ascending.
func (r *SettlementRepository) ListByParticipant(ctx context.Context, participantID shared.ParticipantID, from, to time.Time) ([]*session.SettlementRecord, error) {
	const query = `
        SELECT id, participant_id, record_date, window_start, window_end,
               subject, period_number, focus_rate_percent, out_of_seat_count, created_at
        FROM settlement_records
        WHERE participant_id = $1 AND record_date >= $2 AND record_date <= $3
        ORDER BY record_date ASC, period_number ASC`

	rows, err := r.conn.Pool().Query(ctx, query, participantID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("settlement: list by participant: %w", err)
	}
	defer rows.Close()

	return scanSettlementRecords(rows)
}

// ListByParticipants returns the records of a set of participants on one
// calendar day.
func (r *SettlementRepository) ListByParticipants(ctx context.Context, participantIDs []shared.ParticipantID, date time.Time) ([]*session.SettlementRecord, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}

	const query = `
        SELECT id, participant_id, record_date, window_start, window_end,
               subject, period_number, focus_rate_percent, out_of_seat_count, created_at
        FROM settlement_records
        WHERE participant_id = ANY($1) AND record_date = $2
        ORDER BY participant_id ASC, period_number ASC`

	ids := make([]string, len(participantIDs))
	for i, id := range participantIDs {
		ids[i] = id.String()
	}

	rows, err := r.conn.Pool().Query(ctx, query, ids, date)
	if err != nil {
		return nil, fmt.Errorf("settlement: list by participants: %w", err)
	}
	defer rows.Close()

	return scanSettlementRecords(rows)
}

func scanSettlementRecords(rows pgx.Rows) ([]*session.SettlementRecord, error) {
	var records []*session.SettlementRecord
	for rows.Next() {
		var (
			rec           session.SettlementRecord
			participantID string
		)
		err := rows.Scan(
			&rec.ID, &participantID, &rec.Date,
			&rec.Window.Start, &rec.Window.End,
			&rec.Subject, &rec.PeriodNumber,
			&rec.FocusRatePercent, &rec.OutOfSeatCount, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("settlement: scan: %w", err)
		}
		rec.ParticipantID = shared.ParticipantID(participantID)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settlement: rows: %w", err)
	}
	return records, nil
}
