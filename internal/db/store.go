package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
	"github.com/jackc/pgx/v5"
)

// Store adapts the pgx pool to the schedule store contract.
type Store struct {
	db *Database
}

var _ schedule.Store = (*Store)(nil)

// NewStore wraps an open database.
func NewStore(db *Database) *Store {
	return &Store{db: db}
}

// WithTx runs fn inside one Postgres transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx schedule.Tx) error) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Tx implements schedule.Tx on a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

var _ schedule.Tx = (*Tx)(nil)

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.ErrNotFound
	}
	return err
}

// Unit implements schedule.Tx.
func (t *Tx) Unit(ctx context.Context, id int64) (models.Unit, error) {
	var u models.Unit
	var coverage []byte
	err := t.tx.QueryRow(ctx,
		`SELECT id, organization_id, code, name, coverage_requirements FROM units WHERE id = $1`,
		id).Scan(&u.ID, &u.OrgID, &u.Code, &u.Name, &coverage)
	if err != nil {
		return models.Unit{}, mapErr(err)
	}
	if len(coverage) > 0 {
		if err := json.Unmarshal(coverage, &u.Coverage); err != nil {
			return models.Unit{}, fmt.Errorf("invalid coverage for unit %d: %w", id, err)
		}
	}
	return u, nil
}

// MembersByUnit implements schedule.Tx.
func (t *Tx) MembersByUnit(ctx context.Context, unitID int64) ([]models.Member, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, unit_id, name, employment_type, can_night_shift, allowed_shift_codes, schedule_preferences
		 FROM members WHERE unit_id = $1 ORDER BY id`, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberInUnit implements schedule.Tx.
func (t *Tx) MemberInUnit(ctx context.Context, unitID, memberID int64) (models.Member, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, unit_id, name, employment_type, can_night_shift, allowed_shift_codes, schedule_preferences
		 FROM members WHERE unit_id = $1 AND id = $2`, unitID, memberID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to query member: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Member{}, err
		}
		return models.Member{}, schedule.ErrNotFound
	}
	return scanMember(rows)
}

func scanMember(rows pgx.Rows) (models.Member, error) {
	var m models.Member
	var prefs []byte
	if err := rows.Scan(&m.ID, &m.UnitID, &m.Name, &m.EmploymentType, &m.CanNightShift, &m.AllowedShiftCodes, &prefs); err != nil {
		return models.Member{}, fmt.Errorf("failed to scan member: %w", err)
	}
	if len(prefs) > 0 {
		var p models.SchedulePreferences
		if err := json.Unmarshal(prefs, &p); err != nil {
			return models.Member{}, fmt.Errorf("invalid preferences for member %d: %w", m.ID, err)
		}
		m.Preferences = &p
	}
	return m, nil
}

// ShiftTypes implements schedule.Tx.
func (t *Tx) ShiftTypes(ctx context.Context, orgID int64) ([]models.ShiftType, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, organization_id, code, name, start_at, end_at, break_minutes
		 FROM shift_types WHERE organization_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift types: %w", err)
	}
	defer rows.Close()

	var types []models.ShiftType
	for rows.Next() {
		var st models.ShiftType
		if err := rows.Scan(&st.ID, &st.OrgID, &st.Code, &st.Name, &st.StartAt, &st.EndAt, &st.BreakMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan shift type: %w", err)
		}
		types = append(types, st)
	}
	return types, rows.Err()
}

// ShiftTypeByID implements schedule.Tx.
func (t *Tx) ShiftTypeByID(ctx context.Context, id int64) (models.ShiftType, error) {
	var st models.ShiftType
	err := t.tx.QueryRow(ctx,
		`SELECT id, organization_id, code, name, start_at, end_at, break_minutes FROM shift_types WHERE id = $1`,
		id).Scan(&st.ID, &st.OrgID, &st.Code, &st.Name, &st.StartAt, &st.EndAt, &st.BreakMinutes)
	return st, mapErr(err)
}

// ShiftTypeByCode implements schedule.Tx.
func (t *Tx) ShiftTypeByCode(ctx context.Context, orgID int64, code string) (models.ShiftType, error) {
	var st models.ShiftType
	err := t.tx.QueryRow(ctx,
		`SELECT id, organization_id, code, name, start_at, end_at, break_minutes
		 FROM shift_types WHERE organization_id = $1 AND code = $2 ORDER BY id LIMIT 1`,
		orgID, code).Scan(&st.ID, &st.OrgID, &st.Code, &st.Name, &st.StartAt, &st.EndAt, &st.BreakMinutes)
	return st, mapErr(err)
}

// CreateShiftType implements schedule.Tx.
func (t *Tx) CreateShiftType(ctx context.Context, st *models.ShiftType) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO shift_types (organization_id, code, name, start_at, end_at, break_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		st.OrgID, st.Code, st.Name, st.StartAt, st.EndAt, st.BreakMinutes).Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("failed to insert shift type: %w", err)
	}
	return nil
}

// UpdateShiftType implements schedule.Tx.
func (t *Tx) UpdateShiftType(ctx context.Context, st *models.ShiftType) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE shift_types SET code = $2, name = $3, start_at = $4, end_at = $5, break_minutes = $6 WHERE id = $1`,
		st.ID, st.Code, st.Name, st.StartAt, st.EndAt, st.BreakMinutes)
	if err != nil {
		return fmt.Errorf("failed to update shift type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// DeleteShiftType implements schedule.Tx.
func (t *Tx) DeleteShiftType(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM shift_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete shift type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

const shiftColumns = `id, unit_id, work_date::text, shift_type_id, start_at, end_at, status, meta`

func scanShift(row pgx.Row) (models.Shift, error) {
	var s models.Shift
	var meta []byte
	if err := row.Scan(&s.ID, &s.UnitID, &s.WorkDate, &s.ShiftTypeID, &s.StartAt, &s.EndAt, &s.Status, &meta); err != nil {
		return models.Shift{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return models.Shift{}, fmt.Errorf("invalid meta for shift %d: %w", s.ID, err)
		}
	}
	return s, nil
}

// ShiftsInRange implements schedule.Tx.
func (t *Tx) ShiftsInRange(ctx context.Context, unitID int64, from, to string) ([]models.Shift, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		 WHERE unit_id = $1 AND work_date >= $2::date AND work_date <= $3::date
		 ORDER BY work_date, id`, unitID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// ShiftByUnitDateType implements schedule.Tx.
func (t *Tx) ShiftByUnitDateType(ctx context.Context, unitID int64, date string, shiftTypeID int64) (models.Shift, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		 WHERE unit_id = $1 AND work_date = $2::date AND shift_type_id = $3
		 ORDER BY id LIMIT 1`, unitID, date, shiftTypeID)
	s, err := scanShift(row)
	if err != nil {
		return models.Shift{}, mapErr(err)
	}
	return s, nil
}

// CreateShift implements schedule.Tx.
func (t *Tx) CreateShift(ctx context.Context, s *models.Shift) error {
	meta, err := json.Marshal(s.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode shift meta: %w", err)
	}
	err = t.tx.QueryRow(ctx,
		`INSERT INTO shifts (unit_id, work_date, shift_type_id, start_at, end_at, status, meta)
		 VALUES ($1, $2::date, $3, $4, $5, $6, $7) RETURNING id`,
		s.UnitID, s.WorkDate, s.ShiftTypeID, s.StartAt, s.EndAt, s.Status, meta).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// UpdateShift implements schedule.Tx.
func (t *Tx) UpdateShift(ctx context.Context, s *models.Shift) error {
	meta, err := json.Marshal(s.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode shift meta: %w", err)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE shifts SET work_date = $2::date, shift_type_id = $3, start_at = $4, end_at = $5, status = $6, meta = $7
		 WHERE id = $1`,
		s.ID, s.WorkDate, s.ShiftTypeID, s.StartAt, s.EndAt, s.Status, meta)
	if err != nil {
		return fmt.Errorf("failed to update shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// DeleteShift implements schedule.Tx.
func (t *Tx) DeleteShift(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// AssignmentsByShift implements schedule.Tx.
func (t *Tx) AssignmentsByShift(ctx context.Context, shiftID int64) ([]models.Assignment, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, shift_id, member_id, status FROM assignments WHERE shift_id = $1 ORDER BY id`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.ShiftID, &a.MemberID, &a.Status); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// MemberAssignmentOn implements schedule.Tx.
func (t *Tx) MemberAssignmentOn(ctx context.Context, unitID, memberID int64, date string) (models.Assignment, models.Shift, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT a.id, a.shift_id, a.member_id, a.status,
		        s.id, s.unit_id, s.work_date::text, s.shift_type_id, s.start_at, s.end_at, s.status, s.meta
		 FROM assignments a
		 JOIN shifts s ON s.id = a.shift_id
		 WHERE s.unit_id = $1 AND a.member_id = $2 AND s.work_date = $3::date
		 ORDER BY s.id LIMIT 1`, unitID, memberID, date)

	var a models.Assignment
	var s models.Shift
	var meta []byte
	err := row.Scan(&a.ID, &a.ShiftID, &a.MemberID, &a.Status,
		&s.ID, &s.UnitID, &s.WorkDate, &s.ShiftTypeID, &s.StartAt, &s.EndAt, &s.Status, &meta)
	if err != nil {
		return models.Assignment{}, models.Shift{}, mapErr(err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return models.Assignment{}, models.Shift{}, fmt.Errorf("invalid meta for shift %d: %w", s.ID, err)
		}
	}
	return a, s, nil
}

// ShiftsForMemberOn implements schedule.Tx.
func (t *Tx) ShiftsForMemberOn(ctx context.Context, unitID, memberID int64, date string) ([]models.Shift, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT DISTINCT s.id, s.unit_id, s.work_date::text, s.shift_type_id, s.start_at, s.end_at, s.status, s.meta
		 FROM shifts s
		 JOIN assignments a ON a.shift_id = s.id
		 WHERE s.unit_id = $1 AND a.member_id = $2 AND s.work_date = $3::date
		 ORDER BY s.id`, unitID, memberID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query member shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// CreateAssignment implements schedule.Tx.
func (t *Tx) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO assignments (shift_id, member_id, status) VALUES ($1, $2, $3) RETURNING id`,
		a.ShiftID, a.MemberID, a.Status).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// UpdateAssignment implements schedule.Tx.
func (t *Tx) UpdateAssignment(ctx context.Context, a *models.Assignment) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE assignments SET shift_id = $2, member_id = $3, status = $4 WHERE id = $1`,
		a.ID, a.ShiftID, a.MemberID, a.Status)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// DeleteAssignment implements schedule.Tx.
func (t *Tx) DeleteAssignment(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// DeleteAssignmentsByShift implements schedule.Tx.
func (t *Tx) DeleteAssignmentsByShift(ctx context.Context, shiftID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM assignments WHERE shift_id = $1`, shiftID); err != nil {
		return fmt.Errorf("failed to delete assignments for shift: %w", err)
	}
	return nil
}
