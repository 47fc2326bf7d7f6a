// Package memstore provides an in-memory implementation of the schedule
// store, used for tests and ephemeral environments. Transactions operate on a
// cloned snapshot that replaces the live state only when the callback
// succeeds, which gives the same all-or-nothing semantics as the Postgres
// store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
)

var _ schedule.Store = (*Store)(nil)

type state struct {
	seq         int64
	units       map[int64]models.Unit
	members     map[int64]models.Member
	shiftTypes  map[int64]models.ShiftType
	shifts      map[int64]models.Shift
	assignments map[int64]models.Assignment
}

func newState() *state {
	return &state{
		units:       map[int64]models.Unit{},
		members:     map[int64]models.Member{},
		shiftTypes:  map[int64]models.ShiftType{},
		shifts:      map[int64]models.Shift{},
		assignments: map[int64]models.Assignment{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:         s.seq,
		units:       make(map[int64]models.Unit, len(s.units)),
		members:     make(map[int64]models.Member, len(s.members)),
		shiftTypes:  make(map[int64]models.ShiftType, len(s.shiftTypes)),
		shifts:      make(map[int64]models.Shift, len(s.shifts)),
		assignments: make(map[int64]models.Assignment, len(s.assignments)),
	}
	for id, u := range s.units {
		c.units[id] = u
	}
	for id, m := range s.members {
		c.members[id] = cloneMember(m)
	}
	for id, st := range s.shiftTypes {
		c.shiftTypes[id] = st
	}
	for id, sh := range s.shifts {
		c.shifts[id] = cloneShift(sh)
	}
	for id, a := range s.assignments {
		c.assignments[id] = cloneAssignment(a)
	}
	return c
}

func cloneMember(m models.Member) models.Member {
	if m.AllowedShiftCodes != nil {
		m.AllowedShiftCodes = append([]string(nil), m.AllowedShiftCodes...)
	}
	if m.Preferences != nil {
		p := *m.Preferences
		if p.FixedDaysOff != nil {
			fixed := make(map[string]bool, len(p.FixedDaysOff))
			for k, v := range p.FixedDaysOff {
				fixed[k] = v
			}
			p.FixedDaysOff = fixed
		}
		if p.CustomDatesOff != nil {
			p.CustomDatesOff = append([]string(nil), p.CustomDatesOff...)
		}
		m.Preferences = &p
	}
	return m
}

func cloneShift(sh models.Shift) models.Shift {
	if sh.ShiftTypeID != nil {
		id := *sh.ShiftTypeID
		sh.ShiftTypeID = &id
	}
	if sh.Meta.SourceShiftID != nil {
		id := *sh.Meta.SourceShiftID
		sh.Meta.SourceShiftID = &id
	}
	sh.Assignments = nil
	return sh
}

func cloneAssignment(a models.Assignment) models.Assignment {
	if a.MemberID != nil {
		id := *a.MemberID
		a.MemberID = &id
	}
	return a
}

// Store is the in-memory schedule store.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New creates an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// WithTx runs fn against a snapshot of the state and commits the snapshot
// only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx schedule.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(&Tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// SeedUnit inserts a unit directly, assigning an id when absent.
func (s *Store) SeedUnit(u models.Unit) models.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.state.seq++
		u.ID = s.state.seq
	}
	s.state.units[u.ID] = u
	return u
}

// SeedMember inserts a member directly, assigning an id when absent.
func (s *Store) SeedMember(m models.Member) models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		s.state.seq++
		m.ID = s.state.seq
	}
	s.state.members[m.ID] = cloneMember(m)
	return m
}

// SeedShiftType inserts a shift type directly, assigning an id when absent.
func (s *Store) SeedShiftType(st models.ShiftType) models.ShiftType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		s.state.seq++
		st.ID = s.state.seq
	}
	s.state.shiftTypes[st.ID] = st
	return st
}

// Tx is a transactional view over a cloned state snapshot.
type Tx struct {
	st *state
}

var _ schedule.Tx = (*Tx)(nil)

func (t *Tx) nextID() int64 {
	t.st.seq++
	return t.st.seq
}

// Unit implements schedule.Tx.
func (t *Tx) Unit(ctx context.Context, id int64) (models.Unit, error) {
	u, ok := t.st.units[id]
	if !ok {
		return models.Unit{}, schedule.ErrNotFound
	}
	return u, nil
}

// MembersByUnit implements schedule.Tx.
func (t *Tx) MembersByUnit(ctx context.Context, unitID int64) ([]models.Member, error) {
	var members []models.Member
	for _, m := range t.st.members {
		if m.UnitID == unitID {
			members = append(members, cloneMember(m))
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

// MemberInUnit implements schedule.Tx.
func (t *Tx) MemberInUnit(ctx context.Context, unitID, memberID int64) (models.Member, error) {
	m, ok := t.st.members[memberID]
	if !ok || m.UnitID != unitID {
		return models.Member{}, schedule.ErrNotFound
	}
	return cloneMember(m), nil
}

// ShiftTypes implements schedule.Tx.
func (t *Tx) ShiftTypes(ctx context.Context, orgID int64) ([]models.ShiftType, error) {
	var types []models.ShiftType
	for _, st := range t.st.shiftTypes {
		if st.OrgID == orgID {
			types = append(types, st)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
	return types, nil
}

// ShiftTypeByID implements schedule.Tx.
func (t *Tx) ShiftTypeByID(ctx context.Context, id int64) (models.ShiftType, error) {
	st, ok := t.st.shiftTypes[id]
	if !ok {
		return models.ShiftType{}, schedule.ErrNotFound
	}
	return st, nil
}

// ShiftTypeByCode implements schedule.Tx.
func (t *Tx) ShiftTypeByCode(ctx context.Context, orgID int64, code string) (models.ShiftType, error) {
	var found *models.ShiftType
	for _, st := range t.st.shiftTypes {
		if st.OrgID == orgID && st.Code == code {
			st := st
			if found == nil || st.ID < found.ID {
				found = &st
			}
		}
	}
	if found == nil {
		return models.ShiftType{}, schedule.ErrNotFound
	}
	return *found, nil
}

// CreateShiftType implements schedule.Tx.
func (t *Tx) CreateShiftType(ctx context.Context, st *models.ShiftType) error {
	if st.ID == 0 {
		st.ID = t.nextID()
	}
	t.st.shiftTypes[st.ID] = *st
	return nil
}

// UpdateShiftType implements schedule.Tx.
func (t *Tx) UpdateShiftType(ctx context.Context, st *models.ShiftType) error {
	if _, ok := t.st.shiftTypes[st.ID]; !ok {
		return schedule.ErrNotFound
	}
	t.st.shiftTypes[st.ID] = *st
	return nil
}

// DeleteShiftType implements schedule.Tx.
func (t *Tx) DeleteShiftType(ctx context.Context, id int64) error {
	if _, ok := t.st.shiftTypes[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(t.st.shiftTypes, id)
	return nil
}

// ShiftsInRange implements schedule.Tx.
func (t *Tx) ShiftsInRange(ctx context.Context, unitID int64, from, to string) ([]models.Shift, error) {
	var shifts []models.Shift
	for _, sh := range t.st.shifts {
		if sh.UnitID == unitID && sh.WorkDate >= from && sh.WorkDate <= to {
			shifts = append(shifts, cloneShift(sh))
		}
	}
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].WorkDate != shifts[j].WorkDate {
			return shifts[i].WorkDate < shifts[j].WorkDate
		}
		return shifts[i].ID < shifts[j].ID
	})
	return shifts, nil
}

// ShiftByUnitDateType implements schedule.Tx.
func (t *Tx) ShiftByUnitDateType(ctx context.Context, unitID int64, date string, shiftTypeID int64) (models.Shift, error) {
	var found *models.Shift
	for _, sh := range t.st.shifts {
		if sh.UnitID == unitID && sh.WorkDate == date && sh.ShiftTypeID != nil && *sh.ShiftTypeID == shiftTypeID {
			sh := cloneShift(sh)
			if found == nil || sh.ID < found.ID {
				found = &sh
			}
		}
	}
	if found == nil {
		return models.Shift{}, schedule.ErrNotFound
	}
	return *found, nil
}

// CreateShift implements schedule.Tx.
func (t *Tx) CreateShift(ctx context.Context, s *models.Shift) error {
	if s.ID == 0 {
		s.ID = t.nextID()
	}
	t.st.shifts[s.ID] = cloneShift(*s)
	return nil
}

// UpdateShift implements schedule.Tx.
func (t *Tx) UpdateShift(ctx context.Context, s *models.Shift) error {
	if _, ok := t.st.shifts[s.ID]; !ok {
		return schedule.ErrNotFound
	}
	t.st.shifts[s.ID] = cloneShift(*s)
	return nil
}

// DeleteShift implements schedule.Tx.
func (t *Tx) DeleteShift(ctx context.Context, id int64) error {
	if _, ok := t.st.shifts[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(t.st.shifts, id)
	return nil
}

// AssignmentsByShift implements schedule.Tx.
func (t *Tx) AssignmentsByShift(ctx context.Context, shiftID int64) ([]models.Assignment, error) {
	var assignments []models.Assignment
	for _, a := range t.st.assignments {
		if a.ShiftID == shiftID {
			assignments = append(assignments, cloneAssignment(a))
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

// MemberAssignmentOn implements schedule.Tx.
func (t *Tx) MemberAssignmentOn(ctx context.Context, unitID, memberID int64, date string) (models.Assignment, models.Shift, error) {
	var bestA *models.Assignment
	var bestS *models.Shift
	for _, a := range t.st.assignments {
		if a.MemberID == nil || *a.MemberID != memberID {
			continue
		}
		sh, ok := t.st.shifts[a.ShiftID]
		if !ok || sh.UnitID != unitID || sh.WorkDate != date {
			continue
		}
		if bestS == nil || sh.ID < bestS.ID {
			a := cloneAssignment(a)
			sh := cloneShift(sh)
			bestA, bestS = &a, &sh
		}
	}
	if bestA == nil {
		return models.Assignment{}, models.Shift{}, schedule.ErrNotFound
	}
	return *bestA, *bestS, nil
}

// ShiftsForMemberOn implements schedule.Tx.
func (t *Tx) ShiftsForMemberOn(ctx context.Context, unitID, memberID int64, date string) ([]models.Shift, error) {
	seen := make(map[int64]bool)
	var shifts []models.Shift
	for _, a := range t.st.assignments {
		if a.MemberID == nil || *a.MemberID != memberID {
			continue
		}
		sh, ok := t.st.shifts[a.ShiftID]
		if !ok || sh.UnitID != unitID || sh.WorkDate != date || seen[sh.ID] {
			continue
		}
		seen[sh.ID] = true
		shifts = append(shifts, cloneShift(sh))
	}
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].ID < shifts[j].ID })
	return shifts, nil
}

// CreateAssignment implements schedule.Tx.
func (t *Tx) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if a.ID == 0 {
		a.ID = t.nextID()
	}
	t.st.assignments[a.ID] = cloneAssignment(*a)
	return nil
}

// UpdateAssignment implements schedule.Tx.
func (t *Tx) UpdateAssignment(ctx context.Context, a *models.Assignment) error {
	if _, ok := t.st.assignments[a.ID]; !ok {
		return schedule.ErrNotFound
	}
	t.st.assignments[a.ID] = cloneAssignment(*a)
	return nil
}

// DeleteAssignment implements schedule.Tx.
func (t *Tx) DeleteAssignment(ctx context.Context, id int64) error {
	if _, ok := t.st.assignments[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(t.st.assignments, id)
	return nil
}

// DeleteAssignmentsByShift implements schedule.Tx.
func (t *Tx) DeleteAssignmentsByShift(ctx context.Context, shiftID int64) error {
	for id, a := range t.st.assignments {
		if a.ShiftID == shiftID {
			delete(t.st.assignments, id)
		}
	}
	return nil
}
