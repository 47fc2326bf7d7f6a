package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

// System shift types auto-provisioned per organization. OFF and NIGHT_AFTER
// are never restricted per member and must always exist before the night
// follow-up chain or an OFF batch entry can be written.
var systemShiftTypes = []models.ShiftType{
	{Code: string(models.ShiftCodeOff), Name: "Off"},
	{Code: string(models.ShiftCodeNightAfter), Name: "Night After", StartAt: "00:00", EndAt: "10:00"},
}

// ProvisionSystemShiftTypes idempotently creates the OFF and NIGHT_AFTER shift
// types for an organization. Intended to run at organization bootstrap; the
// engines call EnsureShiftType for the same effect on older organizations.
func ProvisionSystemShiftTypes(ctx context.Context, tx Tx, orgID int64) error {
	for _, proto := range systemShiftTypes {
		if _, err := EnsureShiftType(ctx, tx, orgID, proto.Code); err != nil {
			return err
		}
	}
	return nil
}

// EnsureShiftType returns the organization's shift type for a system code,
// creating it from the system template when absent. Non-system codes are
// looked up only.
func EnsureShiftType(ctx context.Context, tx Tx, orgID int64, code string) (models.ShiftType, error) {
	st, err := tx.ShiftTypeByCode(ctx, orgID, code)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.ShiftType{}, fmt.Errorf("failed to look up shift type %s: %w", code, err)
	}
	for _, proto := range systemShiftTypes {
		if proto.Code != code {
			continue
		}
		created := proto
		created.OrgID = orgID
		if err := tx.CreateShiftType(ctx, &created); err != nil {
			return models.ShiftType{}, fmt.Errorf("failed to provision shift type %s: %w", code, err)
		}
		return created, nil
	}
	return models.ShiftType{}, fmt.Errorf("shift type %s: %w", code, ErrNotFound)
}

// IsSystemShiftType reports whether a code belongs to the protected
// system-managed set.
func IsSystemShiftType(code string) bool {
	for _, proto := range systemShiftTypes {
		if proto.Code == code {
			return true
		}
	}
	return false
}
