package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ClassGroupRepository implements classgroup.Repository on PostgreSQL.
// Deletes are soft: a deleted class keeps its settlement history but
// disappears from every lookup.
type ClassGroupRepository struct {
	conn *Connection
}

// NewClassGroupRepository creates the class-group repository.
func NewClassGroupRepository(conn *Connection) *ClassGroupRepository {
	return &ClassGroupRepository{conn: conn}
}

const classGroupColumns = `
    id, teacher_id, grade, class_num, invite_code,
    allow_digital_mode, allow_normal_mode, allow_theme_change,
    created_at, updated_at`

// Create persists a new class group.
func (r *ClassGroupRepository) Create(ctx context.Context, c *classgroup.ClassGroup) error {
	const query = `
        INSERT INTO class_groups
            (id, teacher_id, grade, class_num, invite_code,
             allow_digital_mode, allow_normal_mode, allow_theme_change,
             created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.conn.Pool().Exec(ctx, query,
		c.ID.String(), c.TeacherID, c.Grade, c.ClassNum, c.InviteCode,
		c.AllowDigitalMode, c.AllowNormalMode, c.AllowThemeChange,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return classgroup.ErrInviteCodeTaken
		}
		return fmt.Errorf("classgroup: create: %w", err)
	}
	return nil
}

// GetByID returns a class group by ID.
func (r *ClassGroupRepository) GetByID(ctx context.Context, id shared.ClassID) (*classgroup.ClassGroup, error) {
	query := `SELECT` + classGroupColumns + ` FROM class_groups WHERE id = $1 AND deleted_at IS NULL`

	c, err := scanClassGroup(r.conn.Pool().QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, classgroup.ErrClassNotFound
		}
		return nil, fmt.Errorf("classgroup: get by id: %w", err)
	}
	return c, nil
}

// GetByInviteCode returns the class a student is joining.
func (r *ClassGroupRepository) GetByInviteCode(ctx context.Context, code string) (*classgroup.ClassGroup, error) {
	query := `SELECT` + classGroupColumns + ` FROM class_groups WHERE invite_code = $1 AND deleted_at IS NULL`

	c, err := scanClassGroup(r.conn.Pool().QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, classgroup.ErrInviteCodeNotFound
		}
		return nil, fmt.Errorf("classgroup: get by invite code: %w", err)
	}
	return c, nil
}

// ListByTeacher returns the teacher's class groups, oldest first.
func (r *ClassGroupRepository) ListByTeacher(ctx context.Context, teacherID string) ([]*classgroup.ClassGroup, error) {
	query := `SELECT` + classGroupColumns + ` FROM class_groups
        WHERE teacher_id = $1 AND deleted_at IS NULL
        ORDER BY created_at ASC`

	rows, err := r.conn.Pool().Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("classgroup: list by teacher: %w", err)
	}
	defer rows.Close()

	var out []*classgroup.ClassGroup
	for rows.Next() {
		c, err := scanClassGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("classgroup: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("classgroup: rows: %w", err)
	}
	return out, nil
}

// Update persists mutable class fields.
func (r *ClassGroupRepository) Update(ctx context.Context, c *classgroup.ClassGroup) error {
	const query = `
        UPDATE class_groups
        SET grade = $2, class_num = $3,
            allow_digital_mode = $4, allow_normal_mode = $5, allow_theme_change = $6,
            updated_at = $7
        WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.conn.Pool().Exec(ctx, query,
		c.ID.String(), c.Grade, c.ClassNum,
		c.AllowDigitalMode, c.AllowNormalMode, c.AllowThemeChange,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("classgroup: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return classgroup.ErrClassNotFound
	}
	return nil
}

// Delete soft-deletes a class group.
func (r *ClassGroupRepository) Delete(ctx context.Context, id shared.ClassID) error {
	const query = `
        UPDATE class_groups SET deleted_at = NOW()
        WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.conn.Pool().Exec(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("classgroup: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return classgroup.ErrClassNotFound
	}
	return nil
}

func scanClassGroup(row pgx.Row) (*classgroup.ClassGroup, error) {
	var (
		c  classgroup.ClassGroup
		id string
	)
	err := row.Scan(
		&id, &c.TeacherID, &c.Grade, &c.ClassNum, &c.InviteCode,
		&c.AllowDigitalMode, &c.AllowNormalMode, &c.AllowThemeChange,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ID = shared.ClassID(id)
	return &c, nil
}
