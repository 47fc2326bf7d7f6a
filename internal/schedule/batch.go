package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

// ApplyBatch applies direct cell-level edits for one unit. Entries referencing
// a member outside the unit, or a missing shift type, abort the whole batch;
// the caller's transaction rolls everything back.
func ApplyBatch(ctx context.Context, tx Tx, unit models.Unit, entries []models.BatchShiftEntry) error {
	for _, entry := range entries {
		if err := applyBatchEntry(ctx, tx, unit, entry); err != nil {
			return err
		}
	}
	return nil
}

func applyBatchEntry(ctx context.Context, tx Tx, unit models.Unit, entry models.BatchShiftEntry) error {
	if _, err := models.ParseDate(entry.WorkDate); err != nil {
		return err
	}
	member, err := tx.MemberInUnit(ctx, unit.ID, entry.MemberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("member %d: %w", entry.MemberID, ErrMemberNotInUnit)
		}
		return err
	}

	shiftType, startAt, endAt, err := resolveBatchTarget(ctx, tx, unit, entry)
	if err != nil {
		return err
	}

	status := models.ShiftStatusDraft
	if entry.Status != nil && *entry.Status != "" {
		status = models.ShiftStatus(*entry.Status)
	}

	shift, err := writeBatchShift(ctx, tx, unit, member.ID, entry.WorkDate, shiftType, startAt, endAt, status)
	if err != nil {
		return err
	}
	if err := cleanupDuplicateAssignments(ctx, tx, unit, member.ID, entry.WorkDate, shift.ID); err != nil {
		return err
	}

	if shiftType != nil {
		if code, ok := models.ParseShiftCode(shiftType.Code); ok && code == models.ShiftCodeNight {
			// Manual edits never clobber other manual records, only previous
			// derivations.
			if err := EnsureNightFollowUps(ctx, tx, unit, member.ID, shift, SourceManual, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveBatchTarget resolves the entry to a shift type and times. No shift
// type and no custom times means OFF, auto-provisioning the type if absent.
func resolveBatchTarget(ctx context.Context, tx Tx, unit models.Unit, entry models.BatchShiftEntry) (*models.ShiftType, string, string, error) {
	if entry.ShiftTypeID != nil {
		st, err := tx.ShiftTypeByID(ctx, *entry.ShiftTypeID)
		if err != nil {
			return nil, "", "", fmt.Errorf("shift type %d: %w", *entry.ShiftTypeID, err)
		}
		startAt, endAt := st.StartAt, st.EndAt
		if entry.StartAt != nil && *entry.StartAt != "" {
			startAt = *entry.StartAt
		}
		if entry.EndAt != nil && *entry.EndAt != "" {
			endAt = *entry.EndAt
		}
		return &st, startAt, endAt, nil
	}

	hasCustom := entry.StartAt != nil && *entry.StartAt != "" && entry.EndAt != nil && *entry.EndAt != ""
	if hasCustom {
		return nil, *entry.StartAt, *entry.EndAt, nil
	}

	off, err := EnsureShiftType(ctx, tx, unit.OrgID, string(models.ShiftCodeOff))
	if err != nil {
		return nil, "", "", err
	}
	return &off, off.StartAt, off.EndAt, nil
}

// writeBatchShift updates the member's existing shift on the date in place,
// or creates a new shift plus assignment. A manual edit supersedes automation,
// so the derivation tags are stripped on update.
func writeBatchShift(ctx context.Context, tx Tx, unit models.Unit, memberID int64, date string, shiftType *models.ShiftType, startAt, endAt string, status models.ShiftStatus) (models.Shift, error) {
	_, shift, err := tx.MemberAssignmentOn(ctx, unit.ID, memberID, date)
	switch {
	case err == nil:
		if shiftType != nil {
			shift.ShiftTypeID = &shiftType.ID
		} else {
			shift.ShiftTypeID = nil
		}
		shift.StartAt = startAt
		shift.EndAt = endAt
		shift.Status = status
		shift.Meta.NightFollowUp = ""
		shift.Meta.OptimizerFollowUp = ""
		shift.Meta.SourceShiftID = nil
		if err := tx.UpdateShift(ctx, &shift); err != nil {
			return models.Shift{}, fmt.Errorf("failed to update shift %d: %w", shift.ID, err)
		}
		return shift, nil
	case errors.Is(err, ErrNotFound):
		created := models.Shift{
			UnitID:   unit.ID,
			WorkDate: date,
			StartAt:  startAt,
			EndAt:    endAt,
			Status:   status,
			Meta:     models.ShiftMeta{CreatedVia: "batch_edit"},
		}
		if shiftType != nil {
			created.ShiftTypeID = &shiftType.ID
		}
		if err := tx.CreateShift(ctx, &created); err != nil {
			return models.Shift{}, fmt.Errorf("failed to create shift on %s: %w", date, err)
		}
		if err := attachAssignment(ctx, tx, created.ID, memberID); err != nil {
			return models.Shift{}, err
		}
		return created, nil
	default:
		return models.Shift{}, fmt.Errorf("failed to look up assignment on %s: %w", date, err)
	}
}

// cleanupDuplicateAssignments enforces the one-assignment-per-member-per-date
// invariant after a write. Every other shift on the date holding the member's
// assignment loses it; a shift left with no assignments is deleted. Shifts
// still holding other members' assignments stay in place.
func cleanupDuplicateAssignments(ctx context.Context, tx Tx, unit models.Unit, memberID int64, date string, keepShiftID int64) error {
	shifts, err := tx.ShiftsForMemberOn(ctx, unit.ID, memberID, date)
	if err != nil {
		return fmt.Errorf("failed to load shifts for cleanup: %w", err)
	}
	for _, shift := range shifts {
		if shift.ID == keepShiftID {
			continue
		}
		assignments, err := tx.AssignmentsByShift(ctx, shift.ID)
		if err != nil {
			return fmt.Errorf("failed to load assignments for shift %d: %w", shift.ID, err)
		}
		remaining := 0
		for _, a := range assignments {
			if a.MemberID != nil && *a.MemberID == memberID {
				if err := tx.DeleteAssignment(ctx, a.ID); err != nil {
					return fmt.Errorf("failed to delete duplicate assignment %d: %w", a.ID, err)
				}
				continue
			}
			remaining++
		}
		if remaining == 0 {
			if err := tx.DeleteShift(ctx, shift.ID); err != nil {
				return fmt.Errorf("failed to delete orphaned shift %d: %w", shift.ID, err)
			}
		}
	}
	return nil
}
