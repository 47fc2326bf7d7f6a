// Package schedule implements the scheduling core: solver request compilation,
// the external solver gateway, reconciliation of solver output into stored
// shifts, the night follow-up invariant, batch cell edits, and range deletion.
package schedule

import (
	"context"
	"errors"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

var (
	// ErrNotFound is returned by Tx lookups that matched no record.
	ErrNotFound = errors.New("record not found")
	// ErrMemberNotInUnit aborts batch operations referencing foreign members.
	ErrMemberNotInUnit = errors.New("member does not belong to unit")
	// ErrInvalidRange rejects unrecognized range selectors before any deletion.
	ErrInvalidRange = errors.New("invalid range selector")
	// ErrEmptyRoster rejects generation for units with no members.
	ErrEmptyRoster = errors.New("unit has no members")
	// ErrInvalidWindow rejects malformed generation windows before the solver runs.
	ErrInvalidWindow = errors.New("invalid generation window")
	// ErrSolverFailure marks failures reported by or about the external solver.
	ErrSolverFailure = errors.New("solver failed")
)

// Store opens transactions against the shift records. Every mutating operation
// of this package runs inside a single transaction: either all of its writes
// land, or none do.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the storage contract the scheduling core operates on. The pgx store
// implements it against Postgres; the memstore implements it in memory for
// tests and ephemeral environments.
type Tx interface {
	Unit(ctx context.Context, id int64) (models.Unit, error)
	MembersByUnit(ctx context.Context, unitID int64) ([]models.Member, error)
	MemberInUnit(ctx context.Context, unitID, memberID int64) (models.Member, error)

	ShiftTypes(ctx context.Context, orgID int64) ([]models.ShiftType, error)
	ShiftTypeByID(ctx context.Context, id int64) (models.ShiftType, error)
	ShiftTypeByCode(ctx context.Context, orgID int64, code string) (models.ShiftType, error)
	CreateShiftType(ctx context.Context, st *models.ShiftType) error
	UpdateShiftType(ctx context.Context, st *models.ShiftType) error
	DeleteShiftType(ctx context.Context, id int64) error

	ShiftsInRange(ctx context.Context, unitID int64, from, to string) ([]models.Shift, error)
	ShiftByUnitDateType(ctx context.Context, unitID int64, date string, shiftTypeID int64) (models.Shift, error)
	CreateShift(ctx context.Context, s *models.Shift) error
	UpdateShift(ctx context.Context, s *models.Shift) error
	DeleteShift(ctx context.Context, id int64) error

	AssignmentsByShift(ctx context.Context, shiftID int64) ([]models.Assignment, error)
	// MemberAssignmentOn returns the member's assignment on a date in the unit
	// together with its shift, or ErrNotFound. With duplicates present it
	// returns the one on the lowest shift id.
	MemberAssignmentOn(ctx context.Context, unitID, memberID int64, date string) (models.Assignment, models.Shift, error)
	// ShiftsForMemberOn lists every shift on a date holding an assignment for
	// the member, used by duplicate cleanup.
	ShiftsForMemberOn(ctx context.Context, unitID, memberID int64, date string) ([]models.Shift, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	UpdateAssignment(ctx context.Context, a *models.Assignment) error
	DeleteAssignment(ctx context.Context, id int64) error
	DeleteAssignmentsByShift(ctx context.Context, shiftID int64) error
}

// HolidayCalendar reports public-holiday dates inside a window. It is an
// external collaborator consumed by the constraint compiler.
type HolidayCalendar interface {
	HolidayDates(ctx context.Context, from, to string) ([]string, error)
}
