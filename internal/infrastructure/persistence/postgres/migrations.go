package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ═══════════════════════════════════════════════════════════════════════════
// SCHEMA MIGRATIONS
// ═══════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS class_groups (
    id                 UUID PRIMARY KEY,
    teacher_id         UUID NOT NULL,
    grade              INT NOT NULL CHECK (grade > 0),
    class_num          INT NOT NULL CHECK (class_num > 0),
    invite_code        VARCHAR(5) NOT NULL UNIQUE,
    allow_digital_mode BOOLEAN NOT NULL DEFAULT TRUE,
    allow_normal_mode  BOOLEAN NOT NULL DEFAULT TRUE,
    allow_theme_change BOOLEAN NOT NULL DEFAULT TRUE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_class_groups_teacher
    ON class_groups(teacher_id) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS participants (
    id            UUID PRIMARY KEY,
    class_id      UUID NOT NULL REFERENCES class_groups(id),
    display_name  VARCHAR(100) NOT NULL,
    number        INT NOT NULL,
    current_xp    INT NOT NULL DEFAULT 0,
    current_level INT NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_participants_class
    ON participants(class_id, number);
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS settlement_records (
    id                 UUID PRIMARY KEY,
    participant_id     UUID NOT NULL REFERENCES participants(id),
    record_date        DATE NOT NULL,
    window_start       TIMESTAMPTZ NOT NULL,
    window_end         TIMESTAMPTZ NOT NULL,
    subject            VARCHAR(100) NOT NULL DEFAULT '',
    period_number      INT NOT NULL DEFAULT 0,
    focus_rate_percent INT NOT NULL CHECK (focus_rate_percent BETWEEN 0 AND 100),
    out_of_seat_count  INT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settlement_participant_date
    ON settlement_records(participant_id, record_date);

CREATE TABLE IF NOT EXISTS attention_events (
    id             UUID PRIMARY KEY,
    participant_id UUID NOT NULL REFERENCES participants(id),
    event_type     VARCHAR(20) NOT NULL,
    detected_at    TIMESTAMPTZ NOT NULL,
    settlement_id  UUID REFERENCES settlement_records(id),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_attention_events_unsettled
    ON attention_events(participant_id, detected_at)
    WHERE settlement_id IS NULL;

CREATE INDEX IF NOT EXISTS idx_attention_events_type_day
    ON attention_events(participant_id, event_type, detected_at);
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS level_rules (
    level       INT PRIMARY KEY CHECK (level > 0),
    required_xp INT NOT NULL
);

CREATE TABLE IF NOT EXISTS xp_history (
    id             UUID PRIMARY KEY,
    participant_id UUID NOT NULL REFERENCES participants(id),
    amount         INT NOT NULL,
    new_total      INT NOT NULL,
    reason         VARCHAR(200) NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_xp_history_participant
    ON xp_history(participant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS themes (
    id             UUID PRIMARY KEY,
    name           VARCHAR(100) NOT NULL UNIQUE,
    required_level INT NOT NULL DEFAULT 1
);
`

// Migration is one versioned schema step.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// GetMigrations returns the full migration sequence in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "classes_and_participants", Up: migration001Up},
		{Version: 2, Name: "events_and_settlements", Up: migration002Up},
		{Version: 3, Name: "levels_xp_themes", Up: migration003Up},
	}
}

// Migrate applies pending migrations, tracking versions in
// schema_migrations. Each migration runs in its own transaction.
func Migrate(ctx context.Context, conn *Connection) error {
	const createTable = `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version    INT PRIMARY KEY,
            name       VARCHAR(100) NOT NULL,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`
	if _, err := conn.Pool().Exec(ctx, createTable); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	var current int
	err := conn.Pool().QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("postgres: read schema version: %w", err)
	}

	for _, m := range GetMigrations() {
		if m.Version <= current {
			continue
		}
		err := conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}
