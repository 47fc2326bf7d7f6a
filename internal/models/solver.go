package models

import (
	"encoding/json"
	"fmt"
)

// The types below mirror the optimizer's stdin/stdout JSON contract.

// SolverUnit identifies the unit in the solver request.
type SolverUnit struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// SolverMember is the per-member slice of the solver request.
type SolverMember struct {
	ID                  int64                `json:"id"`
	Name                string               `json:"name"`
	EmploymentType      EmploymentType       `json:"employment_type"`
	CanNightShift       bool                 `json:"can_night_shift"`
	AllowedShiftCodes   []string             `json:"allowed_shift_codes,omitempty"`
	SchedulePreferences *SchedulePreferences `json:"schedule_preferences,omitempty"`
}

// SolverConstraints carries the tunables the optimizer reads. Zero-valued
// booleans are meaningful, so the toggles are pointers and omitted defaults
// fall back inside the solver.
type SolverConstraints struct {
	TimeLimit              float64  `json:"time_limit"`
	MaxNightsPerMember     int      `json:"max_nights_per_member"`
	MaxConsecutiveWorkdays int      `json:"max_consecutive_workdays"`
	MinOffDaysFullTime     int      `json:"min_off_days_full_time"`
	MinOffDaysPartTime     int      `json:"min_off_days_part_time"`
	DesiredDayHeadcount    *int     `json:"desired_day_headcount,omitempty"`
	EnforceNightAfterRest  *bool    `json:"enforce_night_after_rest,omitempty"`
	ForbidLateToEarly      *bool    `json:"forbid_late_to_early,omitempty"`
	LimitFulltimeRepeat    *bool    `json:"limit_fulltime_repeat,omitempty"`
	BalanceWorkload        *bool    `json:"balance_workload,omitempty"`
	HolidayDates           []string `json:"holiday_dates,omitempty"`
	GenerationEndDate      string   `json:"generation_end_date,omitempty"`
}

// ExistingAssignment is a read-only hint telling the solver about a slot that
// is already planned and must be pinned.
type ExistingAssignment struct {
	UserID    int64  `json:"user_id"`
	Date      string `json:"date"`
	ShiftCode string `json:"shift_code"`
}

// SolverRequest is the full stdin document of the optimizer process.
type SolverRequest struct {
	Unit                 SolverUnit           `json:"unit"`
	Month                string               `json:"month"`
	Days                 []string             `json:"days"`
	Members              []SolverMember       `json:"members"`
	CoverageRequirements CoverageRequirements `json:"coverage_requirements"`
	Constraints          SolverConstraints    `json:"constraints"`
	ExistingAssignments  []ExistingAssignment `json:"existing_assignments,omitempty"`
}

// SolverAssignee is one proposed member placement for a shift code.
type SolverAssignee struct {
	UserID  int64   `json:"user_id"`
	StartAt *string `json:"start_at,omitempty"`
	EndAt   *string `json:"end_at,omitempty"`
}

// AssigneeList accepts either a single assignee object or a list of them,
// which is how the optimizer emits single- vs multi-member shifts.
type AssigneeList []SolverAssignee

// UnmarshalJSON implements the object-or-list decoding.
func (l *AssigneeList) UnmarshalJSON(data []byte) error {
	var many []SolverAssignee
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one SolverAssignee
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("invalid assignee entry: %w", err)
	}
	*l = AssigneeList{one}
	return nil
}

// SolverDayAssignments is one date entry of the optimizer output.
type SolverDayAssignments struct {
	Date   string                  `json:"date"`
	Shifts map[string]AssigneeList `json:"shifts"`
}

// SolverResponse is the full stdout document of the optimizer process.
// Summary passes through untouched so callers see shortages and conflicts
// exactly as the solver reported them.
type SolverResponse struct {
	Assignments []SolverDayAssignments `json:"assignments"`
	Summary     json.RawMessage        `json:"summary,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// DateWindow is a closed ISO date range.
type DateWindow struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// GenerateResult is the commit result surfaced to callers.
type GenerateResult struct {
	RunID          string                 `json:"run_id"`
	Assignments    []SolverDayAssignments `json:"assignments"`
	Committed      bool                   `json:"committed"`
	GeneratedRange DateWindow             `json:"generated_range"`
	Summary        json.RawMessage        `json:"summary,omitempty"`
}

// BatchShiftEntry is one cell-level edit of the batch upsert request.
// A nil shift type with no custom times means OFF.
type BatchShiftEntry struct {
	MemberID    int64   `json:"member_id"`
	WorkDate    string  `json:"work_date"`
	ShiftTypeID *int64  `json:"shift_type_id,omitempty"`
	StartAt     *string `json:"start_at,omitempty"`
	EndAt       *string `json:"end_at,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// RangeType selects how a bulk deletion range is resolved.
type RangeType string

const (
	RangeTypeDay   RangeType = "day"
	RangeTypeWeek  RangeType = "week"
	RangeTypeMonth RangeType = "month"
)

// DeleteRangeRequest selects the shifts to bulk-delete.
type DeleteRangeRequest struct {
	RangeType  RangeType `json:"range_type"`
	TargetDate string    `json:"target_date,omitempty"`
	Month      string    `json:"month,omitempty"`
}

// DeleteRangeResult reports a completed bulk deletion.
type DeleteRangeResult struct {
	Deleted int        `json:"deleted"`
	Range   DateWindow `json:"range"`
}
