package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

// ParticipantRepository implements student.Repository on PostgreSQL.
type ParticipantRepository struct {
	conn *Connection
}

// NewParticipantRepository creates the participant repository.
func NewParticipantRepository(conn *Connection) *ParticipantRepository {
	return &ParticipantRepository{conn: conn}
}

const participantColumns = `
    id, class_id, display_name, number, current_xp, current_level, created_at, updated_at`

// Create persists a newly enrolled participant.
func (r *ParticipantRepository) Create(ctx context.Context, p *student.Participant) error {
	const query = `
        INSERT INTO participants
            (id, class_id, display_name, number, current_xp, current_level, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.conn.Pool().Exec(ctx, query,
		p.ID.String(), p.ClassID.String(), p.DisplayName, p.Number,
		p.CurrentXP.Int(), int(p.CurrentLevel), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("participant: create: %w", err)
	}
	return nil
}

// GetByID returns a participant by ID.
func (r *ParticipantRepository) GetByID(ctx context.Context, id shared.ParticipantID) (*student.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = $1`

	p, err := scanParticipant(r.conn.Pool().QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, student.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("participant: get by id: %w", err)
	}
	return p, nil
}

// ListByClass returns a class roster ordered by roster number.
func (r *ParticipantRepository) ListByClass(ctx context.Context, classID shared.ClassID) ([]*student.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE class_id = $1 ORDER BY number ASC`

	rows, err := r.conn.Pool().Query(ctx, query, classID.String())
	if err != nil {
		return nil, fmt.Errorf("participant: list by class: %w", err)
	}
	defer rows.Close()

	var out []*student.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("participant: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("participant: rows: %w", err)
	}
	return out, nil
}

// UpdateProgress persists the participant's XP and level.
func (r *ParticipantRepository) UpdateProgress(ctx context.Context, p *student.Participant) error {
	const query = `
        UPDATE participants
        SET current_xp = $2, current_level = $3, updated_at = $4
        WHERE id = $1`

	tag, err := r.conn.Pool().Exec(ctx, query,
		p.ID.String(), p.CurrentXP.Int(), int(p.CurrentLevel), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("participant: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return student.ErrParticipantNotFound
	}
	return nil
}

func scanParticipant(row pgx.Row) (*student.Participant, error) {
	var (
		p       student.Participant
		id      string
		classID string
		xp      int
		level   int
	)
	err := row.Scan(&id, &classID, &p.DisplayName, &p.Number, &xp, &level, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = shared.ParticipantID(id)
	p.ClassID = shared.ClassID(classID)
	p.CurrentXP = student.XP(xp)
	p.CurrentLevel = student.Level(level)
	return &p, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// LEVEL RULES
// ═══════════════════════════════════════════════════════════════════════════

// LevelRepository implements student.LevelRepository on PostgreSQL. The
// level_rules table is seeded externally and read-only here.
type LevelRepository struct {
	conn *Connection
}

// NewLevelRepository creates the level-rule repository.
func NewLevelRepository(conn *Connection) *LevelRepository {
	return &LevelRepository{conn: conn}
}

// LoadTable reads the full threshold table.
func (r *LevelRepository) LoadTable(ctx context.Context) (*student.LevelTable, error) {
	const query = `SELECT level, required_xp FROM level_rules ORDER BY level ASC`

	rows, err := r.conn.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("levels: load table: %w", err)
	}
	defer rows.Close()

	var thresholds []student.LevelThreshold
	for rows.Next() {
		var level, requiredXP int
		if err := rows.Scan(&level, &requiredXP); err != nil {
			return nil, fmt.Errorf("levels: scan: %w", err)
		}
		thresholds = append(thresholds, student.LevelThreshold{
			Level:      student.Level(level),
			RequiredXP: student.XP(requiredXP),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("levels: rows: %w", err)
	}

	return student.NewLevelTable(thresholds)
}

// ═══════════════════════════════════════════════════════════════════════════
// XP HISTORY
// ═══════════════════════════════════════════════════════════════════════════

// XPHistoryRepository implements student.XPHistoryRepository on PostgreSQL.
type XPHistoryRepository struct {
	conn *Connection
}

// NewXPHistoryRepository creates the XP-history repository.
func NewXPHistoryRepository(conn *Connection) *XPHistoryRepository {
	return &XPHistoryRepository{conn: conn}
}

// SaveChange appends one audit entry.
func (r *XPHistoryRepository) SaveChange(ctx context.Context, change *student.XPChange) error {
	const query = `
        INSERT INTO xp_history (id, participant_id, amount, new_total, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.conn.Pool().Exec(ctx, query,
		change.ID,
		change.ParticipantID.String(),
		change.Amount.Int(),
		change.NewTotal.Int(),
		change.Reason,
		change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("xphistory: save: %w", err)
	}
	return nil
}

// ListByParticipant returns changes inside [from, to], newest first.
func (r *XPHistoryRepository) ListByParticipant(ctx context.Context, id shared.ParticipantID, from, to time.Time) ([]*student.XPChange, error) {
	const query = `
        SELECT id, participant_id, amount, new_total, reason, created_at
        FROM xp_history
        WHERE participant_id = $1 AND created_at >= $2 AND created_at <= $3
        ORDER BY created_at DESC`

	rows, err := r.conn.Pool().Query(ctx, query, id.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("xphistory: list: %w", err)
	}
	defer rows.Close()

	var out []*student.XPChange
	for rows.Next() {
		var (
			c        student.XPChange
			pid      string
			amount   int
			newTotal int
		)
		if err := rows.Scan(&c.ID, &pid, &amount, &newTotal, &c.Reason, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("xphistory: scan: %w", err)
		}
		c.ParticipantID = shared.ParticipantID(pid)
		c.Amount = student.XP(amount)
		c.NewTotal = student.XP(newTotal)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("xphistory: rows: %w", err)
	}
	return out, nil
}

// LastReason returns the most recent change's reason, or "" when the
// participant has no history yet.
func (r *XPHistoryRepository) LastReason(ctx context.Context, id shared.ParticipantID) (string, error) {
	const query = `
        SELECT reason FROM xp_history
        WHERE participant_id = $1
        ORDER BY created_at DESC
        LIMIT 1`

	var reason string
	err := r.conn.Pool().QueryRow(ctx, query, id.String()).Scan(&reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("xphistory: last reason: %w", err)
	}
	return reason, nil
}
