package schedule_test

import (
	"context"
	"errors"
	"testing"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCalendar struct {
	dates []string
	err   error
}

func (c *stubCalendar) HolidayDates(ctx context.Context, from, to string) ([]string, error) {
	return c.dates, c.err
}

func compile(t *testing.T, f *fixture, compiler *schedule.Compiler, opts schedule.GenerateOptions) (models.SolverRequest, schedule.Window, error) {
	t.Helper()
	var req models.SolverRequest
	var win schedule.Window
	var compileErr error
	err := f.store.WithTx(context.Background(), func(tx schedule.Tx) error {
		req, win, compileErr = compiler.Compile(context.Background(), tx, f.unit, opts)
		return nil
	})
	require.NoError(t, err)
	return req, win, compileErr
}

func TestCompileMonthWindow(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{}

	req, win, err := compile(t, f, compiler, schedule.GenerateOptions{Month: "2024-03"})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", win.Start)
	assert.Equal(t, "2024-03-31", win.End)
	assert.Equal(t, "2024-04-02", win.ExtendedEnd)

	// Days cover the extended window so the last night's follow-ups fit.
	require.Len(t, req.Days, 33)
	assert.Equal(t, "2024-03-01", req.Days[0])
	assert.Equal(t, "2024-04-02", req.Days[32])

	assert.Equal(t, "2024-03", req.Month)
	assert.Equal(t, f.unit.ID, req.Unit.ID)
	assert.Equal(t, "2024-03-31", req.Constraints.GenerationEndDate)
	assert.Len(t, req.Members, 3)
}

func TestCompileExplicitWindow(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{}

	req, win, err := compile(t, f, compiler, schedule.GenerateOptions{
		StartDate: "2024-03-10",
		EndDate:   "2024-03-16",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-10", win.Start)
	assert.Equal(t, "2024-03-16", win.End)
	assert.Equal(t, "2024-03-18", win.ExtendedEnd)
	assert.Equal(t, "2024-03", req.Month)
	assert.Len(t, req.Days, 9)
}

func TestCompileRequiresWindow(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{}

	_, _, err := compile(t, f, compiler, schedule.GenerateOptions{})
	require.ErrorIs(t, err, schedule.ErrInvalidWindow)
	assert.Contains(t, err.Error(), "month or start_date")
}

func TestCompileRejectsInvalidMonth(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{}

	_, _, err := compile(t, f, compiler, schedule.GenerateOptions{Month: "March 2024"})
	require.ErrorIs(t, err, schedule.ErrInvalidWindow)
}

func TestCompileRejectsReversedRange(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{}

	// A reversed range must fail outright; the two-day spillover extension
	// must not turn it into a short valid window.
	for _, end := range []string{"2024-03-09", "2024-03-08"} {
		_, _, err := compile(t, f, compiler, schedule.GenerateOptions{
			StartDate: "2024-03-10",
			EndDate:   end,
		})
		require.ErrorIs(t, err, schedule.ErrInvalidWindow)
		assert.Contains(t, err.Error(), "before start_date")
	}
}

func TestCompileEmptyRoster(t *testing.T) {
	f := newFixture(t)
	empty := f.store.SeedUnit(models.Unit{OrgID: 1, Code: "unit-b", Name: "Unit B"})
	compiler := &schedule.Compiler{}

	var compileErr error
	f.withTx(t, func(tx schedule.Tx) error {
		_, _, compileErr = compiler.Compile(context.Background(), tx, empty, schedule.GenerateOptions{Month: "2024-03"})
		return nil
	})
	require.ErrorIs(t, compileErr, schedule.ErrEmptyRoster)
}

func TestCompileDefaultConstraints(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{}

	req, _, err := compile(t, f, compiler, schedule.GenerateOptions{Month: "2024-03"})
	require.NoError(t, err)

	c := req.Constraints
	assert.Equal(t, 20.0, c.TimeLimit)
	assert.Equal(t, 7, c.MaxNightsPerMember)
	assert.Equal(t, 5, c.MaxConsecutiveWorkdays)
	assert.Equal(t, 8, c.MinOffDaysFullTime)
	assert.Equal(t, 4, c.MinOffDaysPartTime)
	assert.Nil(t, c.EnforceNightAfterRest)
	assert.Nil(t, c.DesiredDayHeadcount)
}

func TestCompileConstraintOverrides(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{}

	limit := 45.0
	nights := 4
	headcount := 3
	enforce := false
	req, _, err := compile(t, f, compiler, schedule.GenerateOptions{
		Month: "2024-03",
		Constraints: &schedule.ConstraintOverrides{
			TimeLimit:             &limit,
			MaxNightsPerMember:    &nights,
			DesiredDayHeadcount:   &headcount,
			EnforceNightAfterRest: &enforce,
		},
	})
	require.NoError(t, err)

	c := req.Constraints
	assert.Equal(t, 45.0, c.TimeLimit)
	assert.Equal(t, 4, c.MaxNightsPerMember)
	assert.Equal(t, 5, c.MaxConsecutiveWorkdays)
	require.NotNil(t, c.DesiredDayHeadcount)
	assert.Equal(t, 3, *c.DesiredDayHeadcount)
	require.NotNil(t, c.EnforceNightAfterRest)
	assert.False(t, *c.EnforceNightAfterRest)
}

func TestCompileAllowedCodes(t *testing.T) {
	f := newFixture(t)
	restricted := f.store.SeedMember(models.Member{
		UnitID:            f.unit.ID,
		Name:              "Watanabe",
		EmploymentType:    models.EmploymentPartTime,
		AllowedShiftCodes: []string{"early", " day "},
	})
	compiler := &schedule.Compiler{}

	req, _, err := compile(t, f, compiler, schedule.GenerateOptions{Month: "2024-03"})
	require.NoError(t, err)

	byID := map[int64]models.SolverMember{}
	for _, m := range req.Members {
		byID[m.ID] = m
	}

	// OFF and NIGHT_AFTER are always granted on top of the member's codes.
	assert.Equal(t, []string{"EARLY", "DAY", "OFF", "NIGHT_AFTER"}, byID[restricted.ID].AllowedShiftCodes)
	// Members without grants stay unrestricted.
	assert.Nil(t, byID[f.members[0].ID].AllowedShiftCodes)
}

func TestCompileMergesHolidays(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{Calendar: &stubCalendar{
		dates: []string{"2024-03-20", "2024-03-04"},
	}}

	req, _, err := compile(t, f, compiler, schedule.GenerateOptions{
		Month:        "2024-03",
		HolidayDates: []string{"2024-03-04", "not-a-date", "2024-03-29"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-04", "2024-03-20", "2024-03-29"}, req.Constraints.HolidayDates)
}

func TestCompileHolidayFeedFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	compiler := &schedule.Compiler{Calendar: &stubCalendar{err: errors.New("feed down")}}

	req, _, err := compile(t, f, compiler, schedule.GenerateOptions{Month: "2024-03"})
	require.NoError(t, err)
	assert.Empty(t, req.Constraints.HolidayDates)
}

func TestCompilePreserveCollectsHints(t *testing.T) {
	f := newFixture(t)
	f.seedShift(t, "2024-03-05", "DAY", f.members[0].ID, f.members[1].ID)
	f.seedShift(t, "2024-03-06", "NIGHT", f.members[1].ID)

	// Custom-coded shifts are invisible to the solver and excluded from hints.
	custom := f.store.SeedShiftType(models.ShiftType{OrgID: 1, Code: "SPECIAL", Name: "Special", StartAt: "10:00", EndAt: "14:00"})
	f.types["SPECIAL"] = custom
	f.seedShift(t, "2024-03-07", "SPECIAL", f.members[2].ID)

	compiler := &schedule.Compiler{}
	req, _, err := compile(t, f, compiler, schedule.GenerateOptions{
		Month:            "2024-03",
		PreserveExisting: true,
	})
	require.NoError(t, err)

	require.Len(t, req.ExistingAssignments, 3)
	assert.Contains(t, req.ExistingAssignments, models.ExistingAssignment{UserID: f.members[0].ID, Date: "2024-03-05", ShiftCode: "DAY"})
	assert.Contains(t, req.ExistingAssignments, models.ExistingAssignment{UserID: f.members[1].ID, Date: "2024-03-05", ShiftCode: "DAY"})
	assert.Contains(t, req.ExistingAssignments, models.ExistingAssignment{UserID: f.members[1].ID, Date: "2024-03-06", ShiftCode: "NIGHT"})
}

func TestCompileWithoutPreserveSendsNoHints(t *testing.T) {
	f := newFixture(t)
	f.seedShift(t, "2024-03-05", "DAY", f.members[0].ID)

	compiler := &schedule.Compiler{}
	req, _, err := compile(t, f, compiler, schedule.GenerateOptions{Month: "2024-03"})
	require.NoError(t, err)
	assert.Empty(t, req.ExistingAssignments)
}
