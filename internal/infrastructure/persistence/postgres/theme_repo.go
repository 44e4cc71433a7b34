package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/student"
	"github.com/classpulse/classpulse-backend/internal/domain/theme"
)

// ThemeRepository implements theme.Repository on PostgreSQL. The catalogue
// is seeded externally and read-only here.
type ThemeRepository struct {
	conn *Connection
}

// NewThemeRepository creates the theme repository.
func NewThemeRepository(conn *Connection) *ThemeRepository {
	return &ThemeRepository{conn: conn}
}

// ListAll returns the full catalogue ordered by required level.
func (r *ThemeRepository) ListAll(ctx context.Context) ([]*theme.Theme, error) {
	const query = `SELECT id, name, required_level FROM themes ORDER BY required_level ASC, name ASC`

	rows, err := r.conn.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("theme: list all: %w", err)
	}
	defer rows.Close()

	return scanThemes(rows)
}

// ListUnlocked returns the themes available at the given level.
func (r *ThemeRepository) ListUnlocked(ctx context.Context, level student.Level) ([]*theme.Theme, error) {
	const query = `
        SELECT id, name, required_level FROM themes
        WHERE required_level <= $1
        ORDER BY required_level ASC, name ASC`

	rows, err := r.conn.Pool().Query(ctx, query, int(level))
	if err != nil {
		return nil, fmt.Errorf("theme: list unlocked: %w", err)
	}
	defer rows.Close()

	return scanThemes(rows)
}

func scanThemes(rows pgx.Rows) ([]*theme.Theme, error) {
	var out []*theme.Theme
	for rows.Next() {
		var (
			t     theme.Theme
			level int
		)
		if err := rows.Scan(&t.ID, &t.Name, &level); err != nil {
			return nil, fmt.Errorf("theme: scan: %w", err)
		}
		t.RequiredLevel = student.Level(level)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("theme: rows: %w", err)
	}
	return out, nil
}
