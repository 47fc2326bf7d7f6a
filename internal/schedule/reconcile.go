package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

// ApplyGeneration merges the solver's proposed assignments into persisted
// shift and assignment records. Codes with no matching shift type and entries
// with malformed or out-of-window dates are skipped as solver noise.
// Re-running the same output with preserve=true converges to no writes.
func ApplyGeneration(ctx context.Context, tx Tx, unit models.Unit, resp models.SolverResponse, win Window, preserve bool) error {
	cat, err := shiftTypeCatalog(ctx, tx, unit.OrgID)
	if err != nil {
		return err
	}

	for _, day := range resp.Assignments {
		if _, err := models.ParseDate(day.Date); err != nil {
			continue
		}
		if day.Date < win.Start || day.Date > win.ExtendedEnd {
			continue
		}
		if err := applyDay(ctx, tx, unit, cat, day, preserve); err != nil {
			return err
		}
	}
	return nil
}

func applyDay(ctx context.Context, tx Tx, unit models.Unit, cat catalog, day models.SolverDayAssignments, preserve bool) error {
	codes := make([]string, 0, len(day.Shifts))
	for code := range day.Shifts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, raw := range codes {
		code, ok := models.ParseShiftCode(raw)
		if !ok {
			continue
		}
		shiftType, ok := cat.byCode[code]
		if !ok {
			continue
		}
		assignees := day.Shifts[raw]
		memberIDs := resolveMemberIDs(assignees)
		if len(memberIDs) == 0 {
			continue
		}

		shift, err := upsertGeneratedShift(ctx, tx, unit, day.Date, shiftType, assignees, preserve)
		if err != nil {
			return err
		}
		written, err := upsertAssignments(ctx, tx, unit, shift, memberIDs, preserve)
		if err != nil {
			return err
		}
		if code == models.ShiftCodeNight {
			for _, memberID := range written {
				if err := EnsureNightFollowUps(ctx, tx, unit, memberID, shift, SourceOptimizer, preserve); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func resolveMemberIDs(assignees models.AssigneeList) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, a := range assignees {
		if a.UserID <= 0 || seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true
		ids = append(ids, a.UserID)
	}
	return ids
}

func upsertGeneratedShift(ctx context.Context, tx Tx, unit models.Unit, date string, shiftType models.ShiftType, assignees models.AssigneeList, preserve bool) (models.Shift, error) {
	shift, err := tx.ShiftByUnitDateType(ctx, unit.ID, date, shiftType.ID)
	switch {
	case err == nil:
		if !preserve {
			if err := tx.DeleteAssignmentsByShift(ctx, shift.ID); err != nil {
				return models.Shift{}, fmt.Errorf("failed to clear assignments for shift %d: %w", shift.ID, err)
			}
		}
		return shift, nil
	case errors.Is(err, ErrNotFound):
		startAt, endAt := shiftType.StartAt, shiftType.EndAt
		if len(assignees) > 0 {
			if assignees[0].StartAt != nil && *assignees[0].StartAt != "" {
				startAt = *assignees[0].StartAt
			}
			if assignees[0].EndAt != nil && *assignees[0].EndAt != "" {
				endAt = *assignees[0].EndAt
			}
		}
		created := models.Shift{
			UnitID:      unit.ID,
			WorkDate:    date,
			ShiftTypeID: &shiftType.ID,
			StartAt:     startAt,
			EndAt:       endAt,
			Status:      models.ShiftStatusDraft,
			Meta:        models.ShiftMeta{GeneratedVia: "optimizer"},
		}
		if err := tx.CreateShift(ctx, &created); err != nil {
			return models.Shift{}, fmt.Errorf("failed to create generated shift on %s: %w", date, err)
		}
		return created, nil
	default:
		return models.Shift{}, fmt.Errorf("failed to look up shift on %s: %w", date, err)
	}
}

// upsertAssignments writes one draft assignment per member and returns the
// member ids that ended up assigned to the shift. Preserving mode never steals
// a member from a shift they already hold that day.
func upsertAssignments(ctx context.Context, tx Tx, unit models.Unit, shift models.Shift, memberIDs []int64, preserve bool) ([]int64, error) {
	current, err := tx.AssignmentsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments for shift %d: %w", shift.ID, err)
	}
	assigned := make(map[int64]bool)
	for _, a := range current {
		if a.MemberID != nil {
			assigned[*a.MemberID] = true
		}
	}

	var written []int64
	for _, memberID := range memberIDs {
		if assigned[memberID] {
			written = append(written, memberID)
			continue
		}
		if preserve {
			_, other, err := tx.MemberAssignmentOn(ctx, unit.ID, memberID, shift.WorkDate)
			if err == nil && other.ID != shift.ID {
				// The member is already planned elsewhere that day; the
				// existing record wins under preserve_existing.
				continue
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		if err := attachAssignment(ctx, tx, shift.ID, memberID); err != nil {
			return nil, err
		}
		if err := cleanupDuplicateAssignments(ctx, tx, unit, memberID, shift.WorkDate, shift.ID); err != nil {
			return nil, err
		}
		written = append(written, memberID)
	}
	return written, nil
}
