package models

import "strings"

// ShiftCode identifies the recognized shift categories. Shift types whose code
// does not parse to one of these are treated as fully custom shifts.
type ShiftCode string

const (
	ShiftCodeEarly      ShiftCode = "EARLY"
	ShiftCodeDay        ShiftCode = "DAY"
	ShiftCodeLate       ShiftCode = "LATE"
	ShiftCodeNight      ShiftCode = "NIGHT"
	ShiftCodeNightAfter ShiftCode = "NIGHT_AFTER"
	ShiftCodeOff        ShiftCode = "OFF"
	ShiftCodeCustom     ShiftCode = "CUSTOM"
)

// RecognizedShiftCodes lists the codes the solver understands, in wire order.
var RecognizedShiftCodes = []ShiftCode{
	ShiftCodeEarly,
	ShiftCodeDay,
	ShiftCodeLate,
	ShiftCodeNight,
	ShiftCodeNightAfter,
	ShiftCodeOff,
}

// ParseShiftCode normalizes a raw code to a recognized ShiftCode. Unknown or
// empty codes resolve to CUSTOM with ok=false.
func ParseShiftCode(raw string) (ShiftCode, bool) {
	code := ShiftCode(strings.ToUpper(strings.TrimSpace(raw)))
	if code.IsValid() {
		return code, true
	}
	return ShiftCodeCustom, false
}

// IsValid checks if the shift code is one of the recognized solver codes.
func (c ShiftCode) IsValid() bool {
	switch c {
	case ShiftCodeEarly, ShiftCodeDay, ShiftCodeLate, ShiftCodeNight, ShiftCodeNightAfter, ShiftCodeOff:
		return true
	default:
		return false
	}
}

// ShiftStatus represents the publication state of a shift
type ShiftStatus string

const (
	ShiftStatusDraft     ShiftStatus = "draft"
	ShiftStatusPublished ShiftStatus = "published"
)

// AssignmentStatus represents the confirmation state of an assignment
type AssignmentStatus string

const (
	AssignmentStatusDraft AssignmentStatus = "draft"
	AssignmentStatusFinal AssignmentStatus = "final"
)

// EmploymentType mirrors the member contract categories the optimizer knows
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time"
	EmploymentPartTime EmploymentType = "part_time"
	EmploymentContract EmploymentType = "contract"
)

// NightFollowUpTag marks shifts derived by the manual night-chain path
type NightFollowUpTag string

const (
	NightFollowUpAfter NightFollowUpTag = "after"
	NightFollowUpRest  NightFollowUpTag = "rest"
)

// OptimizerFollowUpTag marks shifts derived by the generation night-chain path
type OptimizerFollowUpTag string

const (
	OptimizerFollowUpNightAfter OptimizerFollowUpTag = "night_after"
	OptimizerFollowUpRest       OptimizerFollowUpTag = "rest"
)

// ShiftMeta records shift provenance. It replaces the free-form meta map of
// earlier iterations so the manual-vs-auto precedence rules are checkable.
type ShiftMeta struct {
	CreatedVia        string               `json:"created_via,omitempty"`
	GeneratedVia      string               `json:"generated_via,omitempty"`
	NightFollowUp     NightFollowUpTag     `json:"night_follow_up,omitempty"`
	OptimizerFollowUp OptimizerFollowUpTag `json:"optimizer_follow_up,omitempty"`
	SourceShiftID     *int64               `json:"source_shift_id,omitempty"`
}

// IsAutoDerived reports whether the shift was produced by either night-chain
// path for the given slot (D+1 vs D+2).
func (m ShiftMeta) IsAutoDerived(night NightFollowUpTag, optimizer OptimizerFollowUpTag) bool {
	return m.NightFollowUp == night || m.OptimizerFollowUp == optimizer
}

// ShiftType is an organization-scoped shift template.
// Backed by table `shift_types`.
type ShiftType struct {
	ID           int64  `json:"id" db:"id"`
	OrgID        int64  `json:"organization_id" db:"organization_id"`
	Code         string `json:"code" db:"code"`
	Name         string `json:"name" db:"name"`
	StartAt      string `json:"start_at" db:"start_at"`
	EndAt        string `json:"end_at" db:"end_at"`
	BreakMinutes int    `json:"break_minutes" db:"break_minutes"`
}

// Shift is a dated, timed work slot within a unit. ShiftTypeID is nil for
// fully custom shifts that only carry start/end times.
// Backed by table `shifts`.
type Shift struct {
	ID          int64        `json:"id" db:"id"`
	UnitID      int64        `json:"unit_id" db:"unit_id"`
	WorkDate    string       `json:"work_date" db:"work_date"`
	ShiftTypeID *int64       `json:"shift_type_id,omitempty" db:"shift_type_id"`
	StartAt     string       `json:"start_at" db:"start_at"`
	EndAt       string       `json:"end_at" db:"end_at"`
	Status      ShiftStatus  `json:"status" db:"status"`
	Meta        ShiftMeta    `json:"meta" db:"meta"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// Assignment is a member's claim on a shift. MemberID is nil for detached
// records. Unique per (shift, member).
// Backed by table `assignments`.
type Assignment struct {
	ID       int64            `json:"id" db:"id"`
	ShiftID  int64            `json:"shift_id" db:"shift_id"`
	MemberID *int64           `json:"member_id,omitempty" db:"member_id"`
	Status   AssignmentStatus `json:"status" db:"status"`
}

// SchedulePreferences captures a member's standing availability constraints.
// FixedDaysOff keys are weekday names (monday..sunday) plus "holiday".
type SchedulePreferences struct {
	FixedDaysOff   map[string]bool `json:"fixed_days_off,omitempty"`
	CustomDatesOff []string        `json:"custom_dates_off,omitempty"`
}

// Member belongs to a unit. AllowedShiftCodes lists the granted shift-type
// codes; nil means unrestricted.
// Backed by table `members`.
type Member struct {
	ID                int64                `json:"id" db:"id"`
	UnitID            int64                `json:"unit_id" db:"unit_id"`
	Name              string               `json:"name" db:"name"`
	EmploymentType    EmploymentType       `json:"employment_type" db:"employment_type"`
	CanNightShift     bool                 `json:"can_night_shift" db:"can_night_shift"`
	AllowedShiftCodes []string             `json:"allowed_shift_codes,omitempty" db:"allowed_shift_codes"`
	Preferences       *SchedulePreferences `json:"schedule_preferences,omitempty" db:"schedule_preferences"`
}

// CoverageRequirements holds the per-shift headcount targets of a unit.
type CoverageRequirements struct {
	Early int `json:"early"`
	Day   int `json:"day"`
	Late  int `json:"late"`
	Night int `json:"night"`
}

// Unit is a scheduling group with its own coverage targets.
// Backed by table `units`.
type Unit struct {
	ID       int64                `json:"id" db:"id"`
	OrgID    int64                `json:"organization_id" db:"organization_id"`
	Code     string               `json:"code" db:"code"`
	Name     string               `json:"name" db:"name"`
	Coverage CoverageRequirements `json:"coverage_requirements" db:"coverage_requirements"`
}
