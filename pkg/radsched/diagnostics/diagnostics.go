// Package diagnostics assembles the structured debugInfo payload every
// solve response carries: solver status, uncovered slots and
// hours-tolerance violations, independent of whether the backend that
// produced the assignments reported them itself.
package diagnostics

import (
	"sort"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/solver"
)

// Build recomputes Uncovered and HoursViolation from the final assignment
// list against the projected slots and clinician targets, rather than
// trusting whatever the backend self-reported — a backend bug in penalty
// accounting should never silently hide a real coverage gap from the
// caller.
func Build(slots []calendar.SlotInstance, clinicians []model.Clinician, assignments []model.Assignment) solver.DebugInfo {
	info := solver.DebugInfo{}
	info.Uncovered = uncoveredSlots(slots, assignments)
	info.HoursViolation = hoursViolations(clinicians, slots, assignments)
	return info
}

func uncoveredSlots(slots []calendar.SlotInstance, assignments []model.Assignment) []solver.UncoveredSlot {
	filled := make(map[string]int)
	for _, a := range assignments {
		filled[model.RuntimeKey(a.RowID, a.DateISO)]++
	}
	var out []solver.UncoveredSlot
	seen := make(map[string]bool)
	for _, s := range slots {
		key := model.RuntimeKey(s.RowID, s.DateISO)
		if seen[key] {
			continue
		}
		seen[key] = true
		missing := s.RequiredCount - filled[key]
		if missing > 0 {
			out = append(out, solver.UncoveredSlot{DateISO: s.DateISO, RowID: s.RowID, Missing: missing})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DateISO != out[j].DateISO {
			return out[i].DateISO < out[j].DateISO
		}
		return out[i].RowID < out[j].RowID
	})
	return out
}

func hoursViolations(clinicians []model.Clinician, slots []calendar.SlotInstance, assignments []model.Assignment) []solver.HoursViolation {
	hoursByKey := make(map[string]float64, len(slots))
	for _, s := range slots {
		hoursByKey[model.RuntimeKey(s.RowID, s.DateISO)] = s.Hours
	}

	minutesByClinician := make(map[string]float64)
	for _, a := range assignments {
		minutesByClinician[a.ClinicianID] += hoursByKey[model.RuntimeKey(a.RowID, a.DateISO)] * 60
	}

	var out []solver.HoursViolation
	for _, c := range clinicians {
		if c.WorkingHoursPerWeek == nil {
			continue
		}
		target := *c.WorkingHoursPerWeek * 60
		tolerance := c.EffectiveTolerance() * 60
		assigned := minutesByClinician[c.ID]
		deviation := assigned - target
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > tolerance {
			out = append(out, solver.HoursViolation{
				ClinicianID:      c.ID,
				AssignedMinutes:  assigned,
				TargetMinutes:    target,
				DeviationMinutes: deviation,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClinicianID < out[j].ClinicianID })
	return out
}
