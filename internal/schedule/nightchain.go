package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

// FollowUpSource distinguishes the manual edit path from the generation path
// so derived shifts carry the right provenance tag.
type FollowUpSource int

const (
	SourceManual FollowUpSource = iota
	SourceOptimizer
)

// followUpSlot describes one derived slot of the night chain.
type followUpSlot struct {
	offset       int
	code         models.ShiftCode
	manualTag    models.NightFollowUpTag
	optimizerTag models.OptimizerFollowUpTag
}

var followUpSlots = []followUpSlot{
	{offset: 1, code: models.ShiftCodeNightAfter, manualTag: models.NightFollowUpAfter, optimizerTag: models.OptimizerFollowUpNightAfter},
	{offset: 2, code: models.ShiftCodeOff, manualTag: models.NightFollowUpRest, optimizerTag: models.OptimizerFollowUpRest},
}

// EnsureNightFollowUps guarantees that a NIGHT assignment for a member on
// date D is followed by a NIGHT_AFTER assignment on D+1 and an OFF assignment
// on D+2. Slots that were manually set keep precedence when preserve is true;
// the maintainer always overwrites its own previous derivations.
func EnsureNightFollowUps(ctx context.Context, tx Tx, unit models.Unit, memberID int64, nightShift models.Shift, source FollowUpSource, preserve bool) error {
	for _, slot := range followUpSlots {
		if err := ensureFollowUpSlot(ctx, tx, unit, memberID, nightShift, slot, source, preserve); err != nil {
			return err
		}
	}
	return nil
}

func ensureFollowUpSlot(ctx context.Context, tx Tx, unit models.Unit, memberID int64, nightShift models.Shift, slot followUpSlot, source FollowUpSource, preserve bool) error {
	date, err := models.AddDays(nightShift.WorkDate, slot.offset)
	if err != nil {
		return err
	}
	targetType, err := EnsureShiftType(ctx, tx, unit.OrgID, string(slot.code))
	if err != nil {
		return err
	}

	assignment, shift, err := tx.MemberAssignmentOn(ctx, unit.ID, memberID, date)
	switch {
	case errors.Is(err, ErrNotFound):
		return createFollowUp(ctx, tx, unit, memberID, nightShift, date, targetType, slot, source, preserve)
	case err != nil:
		return fmt.Errorf("failed to look up %s slot on %s: %w", slot.code, date, err)
	}

	if shift.ShiftTypeID != nil && *shift.ShiftTypeID == targetType.ID {
		return refreshFollowUp(ctx, tx, shift, targetType, nightShift.ID, slot, source)
	}

	// Different shift type occupies the slot. A manually set slot wins when
	// preserving; previous auto-derivations are always re-stamped.
	if preserve && !shift.Meta.IsAutoDerived(slot.manualTag, slot.optimizerTag) {
		return nil
	}
	shift.ShiftTypeID = &targetType.ID
	shift.StartAt = targetType.StartAt
	shift.EndAt = targetType.EndAt
	shift.Status = models.ShiftStatusDraft
	stampProvenance(&shift.Meta, slot, source, nightShift.ID)
	if err := tx.UpdateShift(ctx, &shift); err != nil {
		return fmt.Errorf("failed to overwrite %s slot on %s: %w", slot.code, date, err)
	}
	if assignment.Status != models.AssignmentStatusDraft {
		assignment.Status = models.AssignmentStatusDraft
		if err := tx.UpdateAssignment(ctx, &assignment); err != nil {
			return fmt.Errorf("failed to update assignment %d: %w", assignment.ID, err)
		}
	}
	return nil
}

// createFollowUp fills an empty slot. When preserving, a shift of the exact
// target type already planned that day is presumed intentional coverage and
// the slot is left alone.
func createFollowUp(ctx context.Context, tx Tx, unit models.Unit, memberID int64, nightShift models.Shift, date string, targetType models.ShiftType, slot followUpSlot, source FollowUpSource, preserve bool) error {
	existing, err := tx.ShiftByUnitDateType(ctx, unit.ID, date, targetType.ID)
	switch {
	case err == nil:
		if preserve {
			return nil
		}
		stampProvenance(&existing.Meta, slot, source, nightShift.ID)
		existing.Status = models.ShiftStatusDraft
		existing.StartAt = targetType.StartAt
		existing.EndAt = targetType.EndAt
		if err := tx.UpdateShift(ctx, &existing); err != nil {
			return fmt.Errorf("failed to restamp %s shift on %s: %w", slot.code, date, err)
		}
		return attachAssignment(ctx, tx, existing.ID, memberID)
	case errors.Is(err, ErrNotFound):
		shift := models.Shift{
			UnitID:      unit.ID,
			WorkDate:    date,
			ShiftTypeID: &targetType.ID,
			StartAt:     targetType.StartAt,
			EndAt:       targetType.EndAt,
			Status:      models.ShiftStatusDraft,
		}
		stampProvenance(&shift.Meta, slot, source, nightShift.ID)
		if err := tx.CreateShift(ctx, &shift); err != nil {
			return fmt.Errorf("failed to create %s shift on %s: %w", slot.code, date, err)
		}
		return attachAssignment(ctx, tx, shift.ID, memberID)
	default:
		return fmt.Errorf("failed to look up %s shift on %s: %w", slot.code, date, err)
	}
}

// refreshFollowUp merges provenance into a slot that already matches the
// target type. It writes only when something actually changed, which keeps
// repeated maintenance idempotent.
func refreshFollowUp(ctx context.Context, tx Tx, shift models.Shift, targetType models.ShiftType, sourceShiftID int64, slot followUpSlot, source FollowUpSource) error {
	updated := shift
	updated.StartAt = targetType.StartAt
	updated.EndAt = targetType.EndAt
	updated.Status = models.ShiftStatusDraft
	mergeProvenance(&updated.Meta, slot, source, sourceShiftID)
	if shiftEqual(shift, updated) {
		return nil
	}
	if err := tx.UpdateShift(ctx, &updated); err != nil {
		return fmt.Errorf("failed to refresh %s shift on %s: %w", slot.code, shift.WorkDate, err)
	}
	return nil
}

func attachAssignment(ctx context.Context, tx Tx, shiftID, memberID int64) error {
	member := memberID
	a := models.Assignment{ShiftID: shiftID, MemberID: &member, Status: models.AssignmentStatusDraft}
	if err := tx.CreateAssignment(ctx, &a); err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// stampProvenance overwrites the slot's derivation tags for the given path.
func stampProvenance(meta *models.ShiftMeta, slot followUpSlot, source FollowUpSource, sourceShiftID int64) {
	id := sourceShiftID
	meta.SourceShiftID = &id
	if source == SourceManual {
		meta.GeneratedVia = "night_follow_up"
		meta.NightFollowUp = slot.manualTag
		meta.OptimizerFollowUp = ""
	} else {
		meta.GeneratedVia = "optimizer"
		meta.OptimizerFollowUp = slot.optimizerTag
		meta.NightFollowUp = ""
	}
}

// mergeProvenance adds the current path's tag without dropping the other
// path's history.
func mergeProvenance(meta *models.ShiftMeta, slot followUpSlot, source FollowUpSource, sourceShiftID int64) {
	id := sourceShiftID
	meta.SourceShiftID = &id
	if source == SourceManual {
		if meta.GeneratedVia == "" {
			meta.GeneratedVia = "night_follow_up"
		}
		meta.NightFollowUp = slot.manualTag
	} else {
		if meta.GeneratedVia == "" {
			meta.GeneratedVia = "optimizer"
		}
		meta.OptimizerFollowUp = slot.optimizerTag
	}
}

func shiftEqual(a, b models.Shift) bool {
	if a.UnitID != b.UnitID || a.WorkDate != b.WorkDate || a.StartAt != b.StartAt || a.EndAt != b.EndAt || a.Status != b.Status {
		return false
	}
	if (a.ShiftTypeID == nil) != (b.ShiftTypeID == nil) {
		return false
	}
	if a.ShiftTypeID != nil && *a.ShiftTypeID != *b.ShiftTypeID {
		return false
	}
	return metaEqual(a.Meta, b.Meta)
}

func metaEqual(a, b models.ShiftMeta) bool {
	if a.CreatedVia != b.CreatedVia || a.GeneratedVia != b.GeneratedVia ||
		a.NightFollowUp != b.NightFollowUp || a.OptimizerFollowUp != b.OptimizerFollowUp {
		return false
	}
	if (a.SourceShiftID == nil) != (b.SourceShiftID == nil) {
		return false
	}
	return a.SourceShiftID == nil || *a.SourceShiftID == *b.SourceShiftID
}
