// Package modelbuilder turns an eligibility matrix and solver settings
// into decision variables, hard-constraint structure and the soft-penalty
// weights the two Solver Driver backends share.
package modelbuilder

import (
	"sort"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/eligibility"
)

// Variable is a decision variable x[c,s]; it exists only for eligible
// pairs per §4.C, and only when H4's day-exclusivity rule leaves room for
// it (see BuildModel).
type Variable struct {
	Index       int
	ClinicianID string
	Slot        calendar.SlotInstance
}

// SlotGroup collects every free variable competing for one slot instance,
// plus the capacity it must respect (H1/H2).
type SlotGroup struct {
	Slot          calendar.SlotInstance
	VarIndices    []int
	PinnedCount   int // manual assignments already occupying this slot
	RequiredCount int // effective required head-count, net of pins
	MaxCapacity   int // hard cap on Σ chosen: RequiredCount when onlyFillRequired, else every free var
}

// DayGroup collects every free variable a single clinician could be
// assigned to on a single date, used by H3/H4/H5.
type DayGroup struct {
	ClinicianID string
	DateISO     string
	VarIndices  []int
	HasPin      bool // clinician already has >=1 manual assignment this date
}

// Model is the full decision-variable structure both Solver Driver
// backends consume.
type Model struct {
	Settings model.SolverSettings

	// OnlyFillRequired mirrors the solve request's only_fill_required flag
	// (H1/H2): when true, a SlotGroup's hard cap is its RequiredCount
	// instead of the distribute-all default of every eligible free
	// variable.
	OnlyFillRequired bool

	Variables []Variable

	SlotGroups []SlotGroup
	DayGroups  []DayGroup

	// OverlapPairs are (varIndex, varIndex) pairs that must not both be 1
	// (H3: two overlapping slot instances for the same clinician/day).
	OverlapPairs [][2]int

	// LocationPairs are (varIndex, varIndex) pairs that must not
	// both be 1 when H5 is enforced (different locations, same clinician
	// day). When H5 is disabled these pairs instead feed S3's penalty.
	LocationPairs [][2]int

	// ManualAssignments are carried through untouched (P4).
	ManualAssignments []model.Assignment

	// SlotIndex looks up a slot instance's own properties (location,
	// interval, hours, day type) independent of whether any free variable
	// still exists for it, keyed by "<rowID>__<dateISO>". Needed because a
	// slot fully covered by manual pins has no SlotGroup or Variable.
	SlotIndex map[string]calendar.SlotInstance

	// Diagnostics accumulated while building the model (e.g.
	// UnreachableCoverage for slots with zero eligible clinicians).
	Notes []string
}

// BuildModel constructs the Model from an eligibility matrix, the
// snapshot's manual assignments and its user-authored SolverRules. Hard
// constraints H1-H7 are represented as the
// SlotGroups/DayGroups/OverlapPairs/LocationPairs structure; H6
// (vacation/rest) and part of H7 are already enforced by the matrix's
// variable domain (the matrix never produced a variable for an ineligible
// pair). onlyFillRequired carries the solve request's H1/H2 mode through to
// SlotGroup.MaxCapacity so the Scorer can gate over-fill as a hard
// violation instead of leaving it to be arbitraged for coverage credit.
// Per §4.D.1, a `require` rule whose trigger is a manual pin is resolved
// here as an additional pin (if the target is eligible) or a
// `require_downgraded` note (otherwise); `forbid` and rules triggered by a
// decision variable stay in the Scorer's soft big-M path (scoreRestAndRules).
func BuildModel(settings model.SolverSettings, onlyFillRequired bool, matrix *eligibility.Matrix, manual []model.Assignment, rules []model.SolverRule) *Model {
	requirePins, requireNotes := resolveRequirePins(settings, rules, matrix, manual)
	manual = append(append([]model.Assignment{}, manual...), requirePins...)

	m := &Model{Settings: settings, OnlyFillRequired: onlyFillRequired, ManualAssignments: manual, SlotIndex: make(map[string]calendar.SlotInstance)}
	m.Notes = append(m.Notes, requireNotes...)

	for _, p := range matrix.Pairs() {
		m.SlotIndex[model.RuntimeKey(p.Slot.RowID, p.Slot.DateISO)] = p.Slot
	}

	pinnedByClinicianDate := make(map[string][]model.Assignment)
	pinnedBySlot := make(map[string]int)
	for _, a := range manual {
		if !a.Manual {
			continue
		}
		pinnedByClinicianDate[a.ClinicianID+"|"+a.DateISO] = append(pinnedByClinicianDate[a.ClinicianID+"|"+a.DateISO], a)
		pinnedBySlot[model.RuntimeKey(a.RowID, a.DateISO)]++
	}

	slotGroupIdx := make(map[string]int)
	dayGroupIdx := make(map[string]int)

	nextIndex := 0
	for _, p := range matrix.Pairs() {
		if !p.Eligible {
			continue
		}
		cdKey := p.ClinicianID + "|" + p.Slot.DateISO
		pins := pinnedByClinicianDate[cdKey]

		alreadyPinnedThisSlot := false
		for _, pin := range pins {
			if pin.RowID == p.Slot.RowID {
				alreadyPinnedThisSlot = true
				break
			}
		}
		if alreadyPinnedThisSlot {
			continue // fixed by the pin, not a free decision variable
		}
		if !settings.AllowMultipleShiftsPerDay && len(pins) > 0 {
			continue // H4: day already occupied by a manual pin
		}

		v := Variable{Index: nextIndex, ClinicianID: p.ClinicianID, Slot: p.Slot}
		m.Variables = append(m.Variables, v)

		slotKey := model.RuntimeKey(p.Slot.RowID, p.Slot.DateISO)
		sgIdx, ok := slotGroupIdx[slotKey]
		if !ok {
			sgIdx = len(m.SlotGroups)
			slotGroupIdx[slotKey] = sgIdx
			required := p.Slot.RequiredCount - pinnedBySlot[slotKey]
			if required < 0 {
				required = 0
			}
			m.SlotGroups = append(m.SlotGroups, SlotGroup{
				Slot:          p.Slot,
				PinnedCount:   pinnedBySlot[slotKey],
				RequiredCount: required,
			})
		}
		m.SlotGroups[sgIdx].VarIndices = append(m.SlotGroups[sgIdx].VarIndices, v.Index)

		dgIdx, ok := dayGroupIdx[cdKey]
		if !ok {
			dgIdx = len(m.DayGroups)
			dayGroupIdx[cdKey] = dgIdx
			m.DayGroups = append(m.DayGroups, DayGroup{
				ClinicianID: p.ClinicianID,
				DateISO:     p.Slot.DateISO,
				HasPin:      len(pins) > 0,
			})
		}
		m.DayGroups[dgIdx].VarIndices = append(m.DayGroups[dgIdx].VarIndices, v.Index)

		nextIndex++
	}

	for i := range m.SlotGroups {
		capacity := len(m.SlotGroups[i].VarIndices)
		if onlyFillRequired && m.SlotGroups[i].RequiredCount < capacity {
			capacity = m.SlotGroups[i].RequiredCount
		}
		m.SlotGroups[i].MaxCapacity = capacity
	}

	m.buildOverlapAndLocationPairs()
	m.flagUnreachableCoverage(matrix)

	return m
}

// resolveRequirePins implements §4.D.1's `require` clause: for each
// enabled rule whose trigger row is itself a manual pin, the target
// variable at trigger.DateISO+DayDelta is pinned if eligible and doesn't
// collide with an existing pin under H4; otherwise the rule is downgraded
// to a diagnostic note rather than forcing infeasibility.
func resolveRequirePins(settings model.SolverSettings, rules []model.SolverRule, matrix *eligibility.Matrix, manual []model.Assignment) ([]model.Assignment, []string) {
	byClinicianDate := make(map[string][]model.Assignment)
	for _, a := range manual {
		if a.Manual {
			byClinicianDate[a.ClinicianID+"|"+a.DateISO] = append(byClinicianDate[a.ClinicianID+"|"+a.DateISO], a)
		}
	}

	var pins []model.Assignment
	var notes []string
	for _, rule := range rules {
		if !rule.Enabled || rule.ThenType != model.ThenRequire {
			continue
		}
		for _, trigger := range manual {
			if !trigger.Manual || trigger.RowID != rule.IfShiftRowID {
				continue
			}
			targetDate := shiftDate(trigger.DateISO, rule.DayDelta)
			cdKey := trigger.ClinicianID + "|" + targetDate

			satisfied := false
			for _, existing := range byClinicianDate[cdKey] {
				if existing.RowID == rule.ThenShiftRowID {
					satisfied = true
					break
				}
			}
			if satisfied {
				continue
			}

			eligible := matrix.IsEligible(trigger.ClinicianID, rule.ThenShiftRowID, targetDate)
			dayOccupied := len(byClinicianDate[cdKey]) > 0
			if !eligible || (dayOccupied && !settings.AllowMultipleShiftsPerDay) {
				notes = append(notes, "require_downgraded:"+trigger.ClinicianID+"|"+rule.ThenShiftRowID+"|"+targetDate)
				continue
			}

			pin := model.Assignment{ClinicianID: trigger.ClinicianID, RowID: rule.ThenShiftRowID, DateISO: targetDate, Manual: true}
			pin = pin.WithCanonicalID()
			pins = append(pins, pin)
			byClinicianDate[cdKey] = append(byClinicianDate[cdKey], pin)
		}
	}
	return pins, notes
}

func (m *Model) buildOverlapAndLocationPairs() {
	for _, dg := range m.DayGroups {
		for i := 0; i < len(dg.VarIndices); i++ {
			for j := i + 1; j < len(dg.VarIndices); j++ {
				vi, vj := m.Variables[dg.VarIndices[i]], m.Variables[dg.VarIndices[j]]
				if vi.Slot.Interval.Overlaps(vj.Slot.Interval) {
					m.OverlapPairs = append(m.OverlapPairs, [2]int{vi.Index, vj.Index})
				}
				if vi.Slot.LocationID != vj.Slot.LocationID {
					m.LocationPairs = append(m.LocationPairs, [2]int{vi.Index, vj.Index})
				}
			}
		}
	}
}

func (m *Model) flagUnreachableCoverage(matrix *eligibility.Matrix) {
	seen := make(map[string]bool)
	for _, p := range matrix.Pairs() {
		key := model.RuntimeKey(p.Slot.RowID, p.Slot.DateISO)
		if seen[key] {
			continue
		}
		hasEligible := false
		for _, p2 := range matrix.Pairs() {
			if p2.Slot.RowID == p.Slot.RowID && p2.Slot.DateISO == p.Slot.DateISO && p2.Eligible {
				hasEligible = true
				break
			}
		}
		if !hasEligible && p.Slot.RequiredCount > 0 {
			m.Notes = append(m.Notes, "unreachable_coverage:"+key)
		}
		seen[key] = true
	}
	sort.Strings(m.Notes)
}

// VariableByKey returns the variable index for (clinicianID, rowID,
// dateISO), or -1 if no free variable exists for that pair.
func (m *Model) VariableByKey(clinicianID, rowID, dateISO string) int {
	for _, v := range m.Variables {
		if v.ClinicianID == clinicianID && v.Slot.RowID == rowID && v.Slot.DateISO == dateISO {
			return v.Index
		}
	}
	return -1
}
