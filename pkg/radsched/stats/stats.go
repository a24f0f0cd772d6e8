// Package stats computes the Stats Evaluator's live coverage and quality
// metrics: a pure function of the current assignment set, the projected
// slots, and the clinicians, safe to call against a partial (in-flight)
// solution as well as a final one.
package stats

import (
	"sort"
	"time"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
)

// Metrics is the Stats Evaluator's output.
type Metrics struct {
	FilledSlots               int
	TotalRequiredSlots        int
	OpenSlots                 int
	NonConsecutiveShifts      int
	CliniciansWithinHours     int
	TotalCliniciansWithTarget int
}

// Evaluate computes Metrics for assignments against slots (already
// projected for the same range) and clinicians. Overfill on a slot never
// reduces OpenSlots below zero nor inflates FilledSlots past the slot's
// RequiredCount.
func Evaluate(assignments []model.Assignment, slots []calendar.SlotInstance, clinicians []model.Clinician, startISO, endISO string, workingDaysInRange int) Metrics {
	requiredByKey := make(map[string]int)
	hoursByKey := make(map[string]float64)
	dayTypeByKey := make(map[string]model.DayType)
	for _, s := range slots {
		key := model.RuntimeKey(s.RowID, s.DateISO)
		requiredByKey[key] = s.RequiredCount
		hoursByKey[key] = s.Hours
		dayTypeByKey[key] = s.Slot.ColBand.DayType
	}

	filledByKey := make(map[string]int)
	for _, a := range assignments {
		filledByKey[model.RuntimeKey(a.RowID, a.DateISO)]++
	}

	m := Metrics{}
	for key, required := range requiredByKey {
		m.TotalRequiredSlots += required
		filled := filledByKey[key]
		if filled > required {
			filled = required
		}
		m.FilledSlots += filled
	}
	m.OpenSlots = m.TotalRequiredSlots - m.FilledSlots
	if m.OpenSlots < 0 {
		m.OpenSlots = 0
	}

	m.NonConsecutiveShifts = countNonConsecutive(assignments, slots)

	scale := 1.0
	if workingDaysInRange > 0 {
		scale = float64(workingDaysInRange) / 5.0
	}
	m.CliniciansWithinHours, m.TotalCliniciansWithTarget = countWithinHours(assignments, clinicians, hoursByKey, scale)

	return m
}

func countNonConsecutive(assignments []model.Assignment, slots []calendar.SlotInstance) int {
	intervalByKey := make(map[string]calendar.SlotInstance)
	for _, s := range slots {
		intervalByKey[model.RuntimeKey(s.RowID, s.DateISO)] = s
	}

	byClinicianDate := make(map[string][]calendar.SlotInstance)
	for _, a := range assignments {
		s, ok := intervalByKey[model.RuntimeKey(a.RowID, a.DateISO)]
		if !ok {
			continue
		}
		key := a.ClinicianID + "|" + a.DateISO
		byClinicianDate[key] = append(byClinicianDate[key], s)
	}

	count := 0
	for _, group := range byClinicianDate {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Interval.Start < group[j].Interval.Start })
		for i := 1; i < len(group); i++ {
			if group[i].Interval.Start > group[i-1].Interval.End {
				count++
				break
			}
		}
	}
	return count
}

func countWithinHours(assignments []model.Assignment, clinicians []model.Clinician, hoursByKey map[string]float64, scale float64) (withinCount, totalWithTarget int) {
	minutesByClinician := make(map[string]float64)
	for _, a := range assignments {
		minutesByClinician[a.ClinicianID] += hoursByKey[model.RuntimeKey(a.RowID, a.DateISO)] * 60
	}

	for _, c := range clinicians {
		if c.WorkingHoursPerWeek == nil {
			continue
		}
		totalWithTarget++
		target := *c.WorkingHoursPerWeek * scale * 60
		tolerance := c.EffectiveTolerance() * scale * 60
		assigned := minutesByClinician[c.ID]
		deviation := assigned - target
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation <= tolerance {
			withinCount++
		}
	}
	return withinCount, totalWithTarget
}

// WorkingDaysInRange counts weekdays (Mon-Fri) in [startISO, endISO],
// matching S4's "scale = workingDaysInRange / 5" normalization.
func WorkingDaysInRange(startISO, endISO string) int {
	dates, err := calendar.DateRangeISO(startISO, endISO)
	if err != nil {
		return 0
	}
	count := 0
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		if t.Weekday() != time.Saturday && t.Weekday() != time.Sunday {
			count++
		}
	}
	return count
}
