package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

// DeleteShiftRange bulk-deletes a unit's shifts in the resolved range and
// cascades deletion to the night follow-up shifts derived from deleted NIGHT
// shifts. It returns the total number of shift records removed.
func DeleteShiftRange(ctx context.Context, tx Tx, unit models.Unit, req models.DeleteRangeRequest) (models.DeleteRangeResult, error) {
	win, err := resolveDeleteRange(req)
	if err != nil {
		return models.DeleteRangeResult{}, err
	}

	cat, err := shiftTypeCatalog(ctx, tx, unit.OrgID)
	if err != nil {
		return models.DeleteRangeResult{}, err
	}

	shifts, err := tx.ShiftsInRange(ctx, unit.ID, win.StartDate, win.EndDate)
	if err != nil {
		return models.DeleteRangeResult{}, fmt.Errorf("failed to load shifts in range: %w", err)
	}

	deleted := make(map[int64]bool)
	count := 0
	for _, shift := range shifts {
		if deleted[shift.ID] {
			continue
		}
		nightMembers, err := membersIfNight(ctx, tx, cat, shift)
		if err != nil {
			return models.DeleteRangeResult{}, err
		}
		if err := deleteShiftRecord(ctx, tx, shift.ID); err != nil {
			return models.DeleteRangeResult{}, err
		}
		deleted[shift.ID] = true
		count++

		n, err := cascadeNightFollowUps(ctx, tx, unit, cat, shift, nightMembers, deleted)
		if err != nil {
			return models.DeleteRangeResult{}, err
		}
		count += n
	}

	return models.DeleteRangeResult{Deleted: count, Range: win}, nil
}

func resolveDeleteRange(req models.DeleteRangeRequest) (models.DateWindow, error) {
	switch req.RangeType {
	case models.RangeTypeDay:
		if _, err := models.ParseDate(req.TargetDate); err != nil {
			return models.DateWindow{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		return models.DateWindow{StartDate: req.TargetDate, EndDate: req.TargetDate}, nil
	case models.RangeTypeWeek:
		start, end, err := models.WeekBounds(req.TargetDate)
		if err != nil {
			return models.DateWindow{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		return models.DateWindow{StartDate: start, EndDate: end}, nil
	case models.RangeTypeMonth:
		start, end, err := models.MonthBounds(req.Month)
		if err != nil {
			return models.DateWindow{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		return models.DateWindow{StartDate: start, EndDate: end}, nil
	default:
		return models.DateWindow{}, fmt.Errorf("%w: %q", ErrInvalidRange, req.RangeType)
	}
}

// membersIfNight returns the assigned member ids when the shift is
// NIGHT-coded, nil otherwise.
func membersIfNight(ctx context.Context, tx Tx, cat catalog, shift models.Shift) ([]int64, error) {
	if shift.ShiftTypeID == nil || cat.codeByID[*shift.ShiftTypeID] != models.ShiftCodeNight {
		return nil, nil
	}
	assignments, err := tx.AssignmentsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments for shift %d: %w", shift.ID, err)
	}
	var members []int64
	for _, a := range assignments {
		if a.MemberID != nil {
			members = append(members, *a.MemberID)
		}
	}
	return members, nil
}

// cascadeNightFollowUps removes the NIGHT_AFTER (D+1) and OFF (D+2) records
// of each member who was on the deleted NIGHT shift, as long as those slots
// are still linked by type and date. Assignments of other members keep their
// shifts alive.
func cascadeNightFollowUps(ctx context.Context, tx Tx, unit models.Unit, cat catalog, nightShift models.Shift, members []int64, deleted map[int64]bool) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	count := 0
	for _, slot := range followUpSlots {
		date, err := models.AddDays(nightShift.WorkDate, slot.offset)
		if err != nil {
			return count, err
		}
		targetType, ok := cat.byCode[slot.code]
		if !ok {
			continue
		}
		shift, err := tx.ShiftByUnitDateType(ctx, unit.ID, date, targetType.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return count, fmt.Errorf("failed to look up %s shift on %s: %w", slot.code, date, err)
		}
		if deleted[shift.ID] {
			continue
		}
		assignments, err := tx.AssignmentsByShift(ctx, shift.ID)
		if err != nil {
			return count, fmt.Errorf("failed to load assignments for shift %d: %w", shift.ID, err)
		}
		remaining := 0
		for _, a := range assignments {
			if a.MemberID != nil && containsMember(members, *a.MemberID) {
				if err := tx.DeleteAssignment(ctx, a.ID); err != nil {
					return count, fmt.Errorf("failed to delete assignment %d: %w", a.ID, err)
				}
				continue
			}
			remaining++
		}
		if remaining == 0 {
			if err := tx.DeleteShift(ctx, shift.ID); err != nil {
				return count, fmt.Errorf("failed to delete shift %d: %w", shift.ID, err)
			}
			deleted[shift.ID] = true
			count++
		}
	}
	return count, nil
}

func deleteShiftRecord(ctx context.Context, tx Tx, shiftID int64) error {
	if err := tx.DeleteAssignmentsByShift(ctx, shiftID); err != nil {
		return fmt.Errorf("failed to delete assignments for shift %d: %w", shiftID, err)
	}
	if err := tx.DeleteShift(ctx, shiftID); err != nil {
		return fmt.Errorf("failed to delete shift %d: %w", shiftID, err)
	}
	return nil
}

func containsMember(members []int64, id int64) bool {
	for _, m := range members {
		if m == id {
			return true
		}
	}
	return false
}
