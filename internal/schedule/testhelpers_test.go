package schedule_test

import (
	"context"
	"testing"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/memstore"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
	"github.com/stretchr/testify/require"
)

// fixture seeds one organization with a full shift-type catalog and a small
// roster, backed by the in-memory store.
type fixture struct {
	store   *memstore.Store
	unit    models.Unit
	types   map[string]models.ShiftType
	members []models.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	unit := store.SeedUnit(models.Unit{
		OrgID: 1,
		Code:  "unit-a",
		Name:  "Unit A",
		Coverage: models.CoverageRequirements{
			Early: 1, Day: 2, Late: 1, Night: 1,
		},
	})

	types := map[string]models.ShiftType{}
	for _, st := range []models.ShiftType{
		{OrgID: 1, Code: "EARLY", Name: "Early", StartAt: "07:00", EndAt: "16:00"},
		{OrgID: 1, Code: "DAY", Name: "Day", StartAt: "09:00", EndAt: "18:00"},
		{OrgID: 1, Code: "LATE", Name: "Late", StartAt: "11:00", EndAt: "20:00"},
		{OrgID: 1, Code: "NIGHT", Name: "Night", StartAt: "16:00", EndAt: "10:00"},
		{OrgID: 1, Code: "NIGHT_AFTER", Name: "Night After", StartAt: "00:00", EndAt: "10:00"},
		{OrgID: 1, Code: "OFF", Name: "Off"},
	} {
		types[st.Code] = store.SeedShiftType(st)
	}

	members := []models.Member{
		store.SeedMember(models.Member{UnitID: unit.ID, Name: "Sato", EmploymentType: models.EmploymentFullTime, CanNightShift: true}),
		store.SeedMember(models.Member{UnitID: unit.ID, Name: "Suzuki", EmploymentType: models.EmploymentFullTime, CanNightShift: true}),
		store.SeedMember(models.Member{UnitID: unit.ID, Name: "Tanaka", EmploymentType: models.EmploymentPartTime}),
	}

	return &fixture{store: store, unit: unit, types: types, members: members}
}

func (f *fixture) withTx(t *testing.T, fn func(tx schedule.Tx) error) {
	t.Helper()
	require.NoError(t, f.store.WithTx(context.Background(), fn))
}

// seedShift creates a shift of the given code with one assignment per member id.
func (f *fixture) seedShift(t *testing.T, date, code string, memberIDs ...int64) models.Shift {
	t.Helper()
	ctx := context.Background()
	st, ok := f.types[code]
	require.True(t, ok, "unknown code %s", code)
	var created models.Shift
	f.withTx(t, func(tx schedule.Tx) error {
		created = models.Shift{
			UnitID:      f.unit.ID,
			WorkDate:    date,
			ShiftTypeID: &st.ID,
			StartAt:     st.StartAt,
			EndAt:       st.EndAt,
			Status:      models.ShiftStatusDraft,
		}
		if err := tx.CreateShift(ctx, &created); err != nil {
			return err
		}
		for _, id := range memberIDs {
			id := id
			a := models.Assignment{ShiftID: created.ID, MemberID: &id, Status: models.AssignmentStatusDraft}
			if err := tx.CreateAssignment(ctx, &a); err != nil {
				return err
			}
		}
		return nil
	})
	return created
}

// shiftByCode looks up the shift of a code on a date, reporting whether one exists.
func (f *fixture) shiftByCode(t *testing.T, date, code string) (models.Shift, bool) {
	t.Helper()
	ctx := context.Background()
	st, ok := f.types[code]
	require.True(t, ok, "unknown code %s", code)
	var shift models.Shift
	found := false
	f.withTx(t, func(tx schedule.Tx) error {
		sh, err := tx.ShiftByUnitDateType(ctx, f.unit.ID, date, st.ID)
		if err == nil {
			shift = sh
			found = true
			return nil
		}
		if err == schedule.ErrNotFound {
			return nil
		}
		return err
	})
	return shift, found
}

// assignedMembers returns the member ids assigned to a shift, in id order.
func (f *fixture) assignedMembers(t *testing.T, shiftID int64) []int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	f.withTx(t, func(tx schedule.Tx) error {
		assignments, err := tx.AssignmentsByShift(ctx, shiftID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.MemberID != nil {
				ids = append(ids, *a.MemberID)
			}
		}
		return nil
	})
	return ids
}

// shiftsOn lists the unit's shifts on a single date.
func (f *fixture) shiftsOn(t *testing.T, date string) []models.Shift {
	t.Helper()
	ctx := context.Background()
	var shifts []models.Shift
	f.withTx(t, func(tx schedule.Tx) error {
		var err error
		shifts, err = tx.ShiftsInRange(ctx, f.unit.ID, date, date)
		return err
	})
	return shifts
}
