package schedule_test

import (
	"context"
	"testing"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ensureFollowUps(t *testing.T, f *fixture, memberID int64, night models.Shift, source schedule.FollowUpSource, preserve bool) {
	t.Helper()
	f.withTx(t, func(tx schedule.Tx) error {
		return schedule.EnsureNightFollowUps(context.Background(), tx, f.unit, memberID, night, source, preserve)
	})
}

func TestNightFollowUpsCreated(t *testing.T) {
	f := newFixture(t)
	member := f.members[0]
	night := f.seedShift(t, "2024-03-10", "NIGHT", member.ID)

	ensureFollowUps(t, f, member.ID, night, schedule.SourceManual, true)

	after, ok := f.shiftByCode(t, "2024-03-11", "NIGHT_AFTER")
	require.True(t, ok, "NIGHT_AFTER shift on D+1 should exist")
	assert.Equal(t, []int64{member.ID}, f.assignedMembers(t, after.ID))
	assert.Equal(t, models.NightFollowUpAfter, after.Meta.NightFollowUp)
	assert.Equal(t, "night_follow_up", after.Meta.GeneratedVia)
	require.NotNil(t, after.Meta.SourceShiftID)
	assert.Equal(t, night.ID, *after.Meta.SourceShiftID)
	assert.Equal(t, "00:00", after.StartAt)
	assert.Equal(t, "10:00", after.EndAt)

	rest, ok := f.shiftByCode(t, "2024-03-12", "OFF")
	require.True(t, ok, "OFF shift on D+2 should exist")
	assert.Equal(t, []int64{member.ID}, f.assignedMembers(t, rest.ID))
	assert.Equal(t, models.NightFollowUpRest, rest.Meta.NightFollowUp)
	require.NotNil(t, rest.Meta.SourceShiftID)
	assert.Equal(t, night.ID, *rest.Meta.SourceShiftID)
}

func TestNightFollowUpsOptimizerTags(t *testing.T) {
	f := newFixture(t)
	member := f.members[1]
	night := f.seedShift(t, "2024-03-10", "NIGHT", member.ID)

	ensureFollowUps(t, f, member.ID, night, schedule.SourceOptimizer, false)

	after, ok := f.shiftByCode(t, "2024-03-11", "NIGHT_AFTER")
	require.True(t, ok)
	assert.Equal(t, models.OptimizerFollowUpNightAfter, after.Meta.OptimizerFollowUp)
	assert.Equal(t, "optimizer", after.Meta.GeneratedVia)
	assert.Empty(t, after.Meta.NightFollowUp)

	rest, ok := f.shiftByCode(t, "2024-03-12", "OFF")
	require.True(t, ok)
	assert.Equal(t, models.OptimizerFollowUpRest, rest.Meta.OptimizerFollowUp)
}

func TestNightFollowUpsPreserveManualSlot(t *testing.T) {
	f := newFixture(t)
	member := f.members[0]
	night := f.seedShift(t, "2024-03-10", "NIGHT", member.ID)
	// The member already has a manually planned DAY shift on D+1.
	day := f.seedShift(t, "2024-03-11", "DAY", member.ID)

	ensureFollowUps(t, f, member.ID, night, schedule.SourceManual, true)

	kept := f.shiftsOn(t, "2024-03-11")
	require.Len(t, kept, 1)
	assert.Equal(t, day.ID, kept[0].ID)
	require.NotNil(t, kept[0].ShiftTypeID)
	assert.Equal(t, f.types["DAY"].ID, *kept[0].ShiftTypeID)

	// D+2 was empty, so the rest day is still derived.
	_, ok := f.shiftByCode(t, "2024-03-12", "OFF")
	assert.True(t, ok)
}

func TestNightFollowUpsOverwriteWithoutPreserve(t *testing.T) {
	f := newFixture(t)
	member := f.members[0]
	night := f.seedShift(t, "2024-03-10", "NIGHT", member.ID)
	f.seedShift(t, "2024-03-11", "DAY", member.ID)

	ensureFollowUps(t, f, member.ID, night, schedule.SourceManual, false)

	shifts := f.shiftsOn(t, "2024-03-11")
	require.Len(t, shifts, 1)
	require.NotNil(t, shifts[0].ShiftTypeID)
	assert.Equal(t, f.types["NIGHT_AFTER"].ID, *shifts[0].ShiftTypeID)
	assert.Equal(t, models.NightFollowUpAfter, shifts[0].Meta.NightFollowUp)
}

func TestNightFollowUpsRestampStaleDerivation(t *testing.T) {
	f := newFixture(t)
	member := f.members[0]
	night := f.seedShift(t, "2024-03-10", "NIGHT", member.ID)

	// A leftover derivation from an earlier chain occupies D+1 with the wrong
	// type. Its tags mark it auto-derived, so preserve does not protect it.
	stale := f.seedShift(t, "2024-03-11", "DAY", member.ID)
	f.withTx(t, func(tx schedule.Tx) error {
		stale.Meta.NightFollowUp = models.NightFollowUpAfter
		return tx.UpdateShift(context.Background(), &stale)
	})

	ensureFollowUps(t, f, member.ID, night, schedule.SourceManual, true)

	shifts := f.shiftsOn(t, "2024-03-11")
	require.Len(t, shifts, 1)
	require.NotNil(t, shifts[0].ShiftTypeID)
	assert.Equal(t, f.types["NIGHT_AFTER"].ID, *shifts[0].ShiftTypeID)
	require.NotNil(t, shifts[0].Meta.SourceShiftID)
	assert.Equal(t, night.ID, *shifts[0].Meta.SourceShiftID)
}

func TestNightFollowUpsIdempotent(t *testing.T) {
	f := newFixture(t)
	member := f.members[0]
	night := f.seedShift(t, "2024-03-10", "NIGHT", member.ID)

	ensureFollowUps(t, f, member.ID, night, schedule.SourceManual, true)
	first := append(f.shiftsOn(t, "2024-03-11"), f.shiftsOn(t, "2024-03-12")...)

	ensureFollowUps(t, f, member.ID, night, schedule.SourceManual, true)
	second := append(f.shiftsOn(t, "2024-03-11"), f.shiftsOn(t, "2024-03-12")...)

	assert.Equal(t, first, second)
	require.Len(t, second, 2)
	assert.Equal(t, []int64{member.ID}, f.assignedMembers(t, second[0].ID))
	assert.Equal(t, []int64{member.ID}, f.assignedMembers(t, second[1].ID))
}

func TestNightFollowUpsJoinExistingShiftOfTargetType(t *testing.T) {
	f := newFixture(t)
	// Another member already has a NIGHT_AFTER shift on D+1; the chain attaches
	// to it instead of duplicating the shift.
	other := f.members[1]
	existing := f.seedShift(t, "2024-03-11", "NIGHT_AFTER", other.ID)

	member := f.members[0]
	night := f.seedShift(t, "2024-03-10", "NIGHT", member.ID)
	ensureFollowUps(t, f, member.ID, night, schedule.SourceManual, false)

	shifts := f.shiftsOn(t, "2024-03-11")
	require.Len(t, shifts, 1)
	assert.Equal(t, existing.ID, shifts[0].ID)
	assert.ElementsMatch(t, []int64{member.ID, other.ID}, f.assignedMembers(t, shifts[0].ID))
}
