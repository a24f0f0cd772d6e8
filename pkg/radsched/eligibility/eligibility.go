// Package eligibility computes the (clinician, slot-instance) feasibility
// matrix that bounds the Model Builder's decision-variable domain.
package eligibility

import (
	"sort"
	"time"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

// Reason explains why a (clinician, slot) pair is ineligible.
type Reason string

const (
	ReasonNotQualified  Reason = "not_qualified"
	ReasonOnVacation    Reason = "on_vacation"
	ReasonOnCallRest    Reason = "on_call_rest"
	ReasonManualOverlap Reason = "manual_overlap"
	ReasonOutsideWindow Reason = "outside_mandatory_window"
)

// Pair is one entry of the eligibility matrix.
type Pair struct {
	ClinicianID string
	Slot        calendar.SlotInstance
	Eligible    bool
	Reason      Reason // set only when !Eligible
}

// Resolver decides eligibility for a single (clinician, slot instance)
// pair against rules 1-5.
type Resolver struct {
	onCallRestEnabled bool
	onCallRestClassID string
	daysBefore        int
	daysAfter         int

	manualByClinician map[string][]model.Assignment
	// slotByRowDate looks up a slot instance's own interval for the
	// manual-pin overlap check (rule 4), keyed by "<rowID>__<dateISO>".
	slotByRowDate map[string]calendar.SlotInstance
}

// NewResolver builds a Resolver from solver settings, the snapshot's
// manual assignments and the already-projected slot instances (needed to
// recover a manual pin's own interval for the overlap check).
func NewResolver(settings model.SolverSettings, manual []model.Assignment, slots []calendar.SlotInstance) *Resolver {
	byClinician := make(map[string][]model.Assignment)
	for _, a := range manual {
		if a.Manual {
			byClinician[a.ClinicianID] = append(byClinician[a.ClinicianID], a)
		}
	}
	byRowDate := make(map[string]calendar.SlotInstance, len(slots))
	for _, s := range slots {
		byRowDate[model.RuntimeKey(s.RowID, s.DateISO)] = s
	}
	return &Resolver{
		onCallRestEnabled: settings.OnCallRestEnabled,
		onCallRestClassID: settings.OnCallRestClassID,
		daysBefore:        settings.OnCallRestDaysBefore,
		daysAfter:         settings.OnCallRestDaysAfter,
		manualByClinician: byClinician,
		slotByRowDate:     byRowDate,
	}
}

// Eligible decides a single (clinician, slot instance) pair.
func (r *Resolver) Eligible(c model.Clinician, s calendar.SlotInstance) (bool, Reason) {
	sectionID, _ := model.SplitRuntimeRowID(s.RowID)

	if !c.IsQualifiedFor(sectionID) {
		return false, ReasonNotQualified
	}

	if c.OnVacation(s.DateISO) {
		return false, ReasonOnVacation
	}

	if r.onCallRestEnabled && sectionID != r.onCallRestClassID && r.withinOnCallRestWindow(c.ID, s.DateISO) {
		return false, ReasonOnCallRest
	}

	for _, pin := range r.manualByClinician[c.ID] {
		if pin.DateISO != s.DateISO || pin.RowID == s.RowID {
			continue
		}
		pinSlot, ok := r.slotByRowDate[model.RuntimeKey(pin.RowID, pin.DateISO)]
		if ok && pinSlot.Interval.Overlaps(s.Interval) {
			return false, ReasonManualOverlap
		}
	}

	for _, w := range c.TimeWindows {
		if w.Kind != model.WindowMandatory || w.DayType != s.Slot.ColBand.DayType {
			continue
		}
		if !r.withinWindow(w, s) {
			return false, ReasonOutsideWindow
		}
	}

	return true, ""
}

func (r *Resolver) withinOnCallRestWindow(clinicianID, dateISO string) bool {
	date, err := time.Parse("2006-01-02", dateISO)
	if err != nil {
		return false
	}
	for _, pin := range r.manualByClinician[clinicianID] {
		pinSection, _ := model.SplitRuntimeRowID(pin.RowID)
		if pinSection != r.onCallRestClassID {
			continue
		}
		pinDate, err := time.Parse("2006-01-02", pin.DateISO)
		if err != nil {
			continue
		}
		lo := pinDate.AddDate(0, 0, -r.daysBefore)
		hi := pinDate.AddDate(0, 0, r.daysAfter)
		if !date.Before(lo) && !date.After(hi) {
			return true
		}
	}
	return false
}

func (r *Resolver) withinWindow(w model.TimeWindow, s calendar.SlotInstance) bool {
	wStart, err1 := timeengine.ParseHHMM(w.StartHHMM)
	wEnd, err2 := timeengine.ParseHHMM(w.EndHHMM)
	if err1 != nil || err2 != nil {
		return true // malformed window never blocks and is not reported
	}
	return s.Interval.Start >= wStart && s.Interval.End <= wEnd
}

// Matrix is the full eligibility result for a solve, indexed for O(1)
// lookup by (clinicianID, rowID, dateISO).
type Matrix struct {
	pairs []Pair
	index map[string]bool
}

func pairKey(clinicianID, rowID, dateISO string) string {
	return clinicianID + "|" + rowID + "|" + dateISO
}

// Build computes the eligibility matrix for every clinician against every
// slot instance.
func Build(r *Resolver, clinicians []model.Clinician, slots []calendar.SlotInstance) *Matrix {
	m := &Matrix{index: make(map[string]bool)}
	for _, c := range clinicians {
		for _, s := range slots {
			ok, reason := r.Eligible(c, s)
			m.pairs = append(m.pairs, Pair{ClinicianID: c.ID, Slot: s, Eligible: ok, Reason: reason})
			if ok {
				m.index[pairKey(c.ID, s.RowID, s.DateISO)] = true
			}
		}
	}
	sort.Slice(m.pairs, func(i, j int) bool {
		if m.pairs[i].Slot.DateISO != m.pairs[j].Slot.DateISO {
			return m.pairs[i].Slot.DateISO < m.pairs[j].Slot.DateISO
		}
		return m.pairs[i].ClinicianID < m.pairs[j].ClinicianID
	})
	return m
}

// IsEligible reports whether clinicianID may be assigned to (rowID, dateISO).
func (m *Matrix) IsEligible(clinicianID, rowID, dateISO string) bool {
	return m.index[pairKey(clinicianID, rowID, dateISO)]
}

// EligibleClinicians returns every clinician ID eligible for a slot
// instance, in a stable order.
func (m *Matrix) EligibleClinicians(s calendar.SlotInstance) []string {
	var ids []string
	for _, p := range m.pairs {
		if p.Slot.RowID == s.RowID && p.Slot.DateISO == s.DateISO && p.Eligible {
			ids = append(ids, p.ClinicianID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Pairs exposes the raw pair list, e.g. for UnreachableCoverage diagnostics.
func (m *Matrix) Pairs() []Pair {
	return m.pairs
}
