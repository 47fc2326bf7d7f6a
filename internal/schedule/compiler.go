package schedule

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
)

// Default generation constraints, applied when the caller sends no override.
const (
	DefaultTimeLimitSeconds       = 20.0
	DefaultMaxNightsPerMember     = 7
	DefaultMaxConsecutiveWorkdays = 5
	DefaultMinOffDaysFullTime     = 8
	DefaultMinOffDaysPartTime     = 4
)

// followUpSpilloverDays extends the generation window so a night shift on the
// last day still gets its NIGHT_AFTER and rest slots considered.
const followUpSpilloverDays = 2

// ConstraintOverrides carries caller-supplied tunables. Nil fields keep the
// defaults.
type ConstraintOverrides struct {
	TimeLimit              *float64 `json:"time_limit,omitempty"`
	MaxNightsPerMember     *int     `json:"max_nights_per_member,omitempty"`
	MaxConsecutiveWorkdays *int     `json:"max_consecutive_workdays,omitempty"`
	MinOffDaysFullTime     *int     `json:"min_off_days_full_time,omitempty"`
	MinOffDaysPartTime     *int     `json:"min_off_days_part_time,omitempty"`
	DesiredDayHeadcount    *int     `json:"desired_day_headcount,omitempty"`
	EnforceNightAfterRest  *bool    `json:"enforce_night_after_rest,omitempty"`
	ForbidLateToEarly      *bool    `json:"forbid_late_to_early,omitempty"`
	LimitFulltimeRepeat    *bool    `json:"limit_fulltime_repeat,omitempty"`
	BalanceWorkload        *bool    `json:"balance_workload,omitempty"`
}

// GenerateOptions selects the window and policies of one generation run.
// Either Month or StartDate/EndDate must be set.
type GenerateOptions struct {
	Month            string               `json:"month,omitempty"`
	StartDate        string               `json:"start_date,omitempty"`
	EndDate          string               `json:"end_date,omitempty"`
	Constraints      *ConstraintOverrides `json:"constraints,omitempty"`
	PreserveExisting bool                 `json:"preserve_existing"`
	HolidayDates     []string             `json:"holiday_dates,omitempty"`
	Commit           bool                 `json:"commit"`
}

// Window is the resolved generation window. ExtendedEnd runs two days past
// End so night-shift spillover is part of the solver's horizon.
type Window struct {
	Start       string
	End         string
	ExtendedEnd string
}

// Compiler assembles solver requests from organizational state. It performs
// no writes.
type Compiler struct {
	Calendar HolidayCalendar
}

// Compile builds the solver request for a unit. It validates the window and
// roster before anything external is consulted.
func (c *Compiler) Compile(ctx context.Context, tx Tx, unit models.Unit, opts GenerateOptions) (models.SolverRequest, Window, error) {
	win, month, err := resolveWindow(opts)
	if err != nil {
		return models.SolverRequest{}, Window{}, err
	}

	members, err := tx.MembersByUnit(ctx, unit.ID)
	if err != nil {
		return models.SolverRequest{}, Window{}, fmt.Errorf("failed to load members: %w", err)
	}
	if len(members) == 0 {
		return models.SolverRequest{}, Window{}, ErrEmptyRoster
	}

	days, err := models.DateRange(win.Start, win.ExtendedEnd)
	if err != nil {
		return models.SolverRequest{}, Window{}, err
	}

	holidays := mergeHolidays(opts.HolidayDates, c.fetchHolidays(ctx, win))

	constraints := resolveConstraints(opts.Constraints)
	constraints.HolidayDates = holidays
	constraints.GenerationEndDate = win.End

	req := models.SolverRequest{
		Unit:                 models.SolverUnit{ID: unit.ID, Code: unit.Code},
		Month:                month,
		Days:                 days,
		CoverageRequirements: unit.Coverage,
		Constraints:          constraints,
	}

	for _, m := range members {
		req.Members = append(req.Members, models.SolverMember{
			ID:                  m.ID,
			Name:                m.Name,
			EmploymentType:      m.EmploymentType,
			CanNightShift:       m.CanNightShift,
			AllowedShiftCodes:   allowedCodes(m),
			SchedulePreferences: m.Preferences,
		})
	}

	if opts.PreserveExisting {
		hints, err := existingAssignmentHints(ctx, tx, unit, win)
		if err != nil {
			return models.SolverRequest{}, Window{}, err
		}
		req.ExistingAssignments = hints
	}

	return req, win, nil
}

func resolveWindow(opts GenerateOptions) (Window, string, error) {
	var start, end, month string
	switch {
	case opts.Month != "":
		var err error
		start, end, err = models.MonthBounds(opts.Month)
		if err != nil {
			return Window{}, "", fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		month = opts.Month
	case opts.StartDate != "" && opts.EndDate != "":
		if _, err := models.ParseDate(opts.StartDate); err != nil {
			return Window{}, "", fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		if _, err := models.ParseDate(opts.EndDate); err != nil {
			return Window{}, "", fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		// Compare the raw bounds before the spillover extension so a reversed
		// range cannot slip through as a near-empty window.
		if opts.EndDate < opts.StartDate {
			return Window{}, "", fmt.Errorf("%w: end_date %s is before start_date %s", ErrInvalidWindow, opts.EndDate, opts.StartDate)
		}
		start, end = opts.StartDate, opts.EndDate
		month = start[:len(models.MonthLayout)]
	default:
		return Window{}, "", fmt.Errorf("%w: either month or start_date/end_date is required", ErrInvalidWindow)
	}

	extended, err := models.AddDays(end, followUpSpilloverDays)
	if err != nil {
		return Window{}, "", err
	}
	return Window{Start: start, End: end, ExtendedEnd: extended}, month, nil
}

func resolveConstraints(o *ConstraintOverrides) models.SolverConstraints {
	c := models.SolverConstraints{
		TimeLimit:              DefaultTimeLimitSeconds,
		MaxNightsPerMember:     DefaultMaxNightsPerMember,
		MaxConsecutiveWorkdays: DefaultMaxConsecutiveWorkdays,
		MinOffDaysFullTime:     DefaultMinOffDaysFullTime,
		MinOffDaysPartTime:     DefaultMinOffDaysPartTime,
	}
	if o == nil {
		return c
	}
	if o.TimeLimit != nil && *o.TimeLimit > 0 {
		c.TimeLimit = *o.TimeLimit
	}
	if o.MaxNightsPerMember != nil {
		c.MaxNightsPerMember = *o.MaxNightsPerMember
	}
	if o.MaxConsecutiveWorkdays != nil {
		c.MaxConsecutiveWorkdays = *o.MaxConsecutiveWorkdays
	}
	if o.MinOffDaysFullTime != nil {
		c.MinOffDaysFullTime = *o.MinOffDaysFullTime
	}
	if o.MinOffDaysPartTime != nil {
		c.MinOffDaysPartTime = *o.MinOffDaysPartTime
	}
	c.DesiredDayHeadcount = o.DesiredDayHeadcount
	c.EnforceNightAfterRest = o.EnforceNightAfterRest
	c.ForbidLateToEarly = o.ForbidLateToEarly
	c.LimitFulltimeRepeat = o.LimitFulltimeRepeat
	c.BalanceWorkload = o.BalanceWorkload
	return c
}

// allowedCodes upper-cases the member's granted codes and always grants OFF
// and NIGHT_AFTER, which are never restricted. A member without grants stays
// unrestricted (nil).
func allowedCodes(m models.Member) []string {
	if len(m.AllowedShiftCodes) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var codes []string
	add := func(raw string) {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		codes = append(codes, code)
	}
	for _, raw := range m.AllowedShiftCodes {
		add(raw)
	}
	add(string(models.ShiftCodeOff))
	add(string(models.ShiftCodeNightAfter))
	return codes
}

func (c *Compiler) fetchHolidays(ctx context.Context, win Window) []string {
	if c.Calendar == nil {
		return nil
	}
	dates, err := c.Calendar.HolidayDates(ctx, win.Start, win.ExtendedEnd)
	if err != nil {
		// The feed is an availability hint, not a correctness input.
		log.Printf("[SCHEDULE] holiday feed unavailable, continuing without it: %v", err)
		return nil
	}
	return dates
}

func mergeHolidays(a, b []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, list := range [][]string{a, b} {
		for _, d := range list {
			d = strings.TrimSpace(d)
			if d == "" || seen[d] {
				continue
			}
			if _, err := models.ParseDate(d); err != nil {
				continue
			}
			seen[d] = true
			merged = append(merged, d)
		}
	}
	sort.Strings(merged)
	return merged
}

// existingAssignmentHints collects assignments in the extended window whose
// shift code is one of the recognized codes, as read-only pins for the solver.
func existingAssignmentHints(ctx context.Context, tx Tx, unit models.Unit, win Window) ([]models.ExistingAssignment, error) {
	catalog, err := shiftTypeCatalog(ctx, tx, unit.OrgID)
	if err != nil {
		return nil, err
	}
	shifts, err := tx.ShiftsInRange(ctx, unit.ID, win.Start, win.ExtendedEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing shifts: %w", err)
	}

	var hints []models.ExistingAssignment
	for _, shift := range shifts {
		if shift.ShiftTypeID == nil {
			continue
		}
		code, ok := catalog.codeByID[*shift.ShiftTypeID]
		if !ok {
			continue
		}
		assignments, err := tx.AssignmentsByShift(ctx, shift.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load assignments for shift %d: %w", shift.ID, err)
		}
		for _, a := range assignments {
			if a.MemberID == nil {
				continue
			}
			hints = append(hints, models.ExistingAssignment{
				UserID:    *a.MemberID,
				Date:      shift.WorkDate,
				ShiftCode: string(code),
			})
		}
	}
	return hints, nil
}

// shiftTypeCatalog resolves shift codes once at the catalog boundary.
type catalog struct {
	byCode   map[models.ShiftCode]models.ShiftType
	codeByID map[int64]models.ShiftCode
}

func shiftTypeCatalog(ctx context.Context, tx Tx, orgID int64) (catalog, error) {
	types, err := tx.ShiftTypes(ctx, orgID)
	if err != nil {
		return catalog{}, fmt.Errorf("failed to load shift types: %w", err)
	}
	c := catalog{
		byCode:   make(map[models.ShiftCode]models.ShiftType),
		codeByID: make(map[int64]models.ShiftCode),
	}
	for _, st := range types {
		code, ok := models.ParseShiftCode(st.Code)
		if !ok {
			continue
		}
		if _, dup := c.byCode[code]; !dup {
			c.byCode[code] = st
		}
		c.codeByID[st.ID] = code
	}
	return c, nil
}
