package db

import (
	"context"
	"fmt"
)

// schemaStatements bootstraps the schedule tables. Statements are idempotent
// so the server can run them at every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS units (
		id BIGSERIAL PRIMARY KEY,
		organization_id BIGINT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		coverage_requirements JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		unit_id BIGINT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		employment_type TEXT NOT NULL DEFAULT 'full_time',
		can_night_shift BOOLEAN NOT NULL DEFAULT TRUE,
		allowed_shift_codes TEXT[],
		schedule_preferences JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS shift_types (
		id BIGSERIAL PRIMARY KEY,
		organization_id BIGINT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		start_at TEXT NOT NULL DEFAULT '',
		end_at TEXT NOT NULL DEFAULT '',
		break_minutes INT NOT NULL DEFAULT 0,
		UNIQUE (organization_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS shifts (
		id BIGSERIAL PRIMARY KEY,
		unit_id BIGINT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
		work_date DATE NOT NULL,
		shift_type_id BIGINT REFERENCES shift_types(id),
		start_at TEXT NOT NULL DEFAULT '',
		end_at TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		meta JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_unit_date ON shifts (unit_id, work_date)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id BIGSERIAL PRIMARY KEY,
		shift_id BIGINT NOT NULL REFERENCES shifts(id) ON DELETE CASCADE,
		member_id BIGINT REFERENCES members(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'draft',
		UNIQUE (shift_id, member_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_member ON assignments (member_id)`,
}

// EnsureSchema creates the schedule tables when they do not exist yet.
func (db *Database) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
