package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/radsched/radsched/pkg/model"
)

// recurrenceWindowPadding widens the search window around the solved range
// so a recurrence anchored slightly before startISO or after endISO is
// still found to intersect it.
const recurrenceWindowPadding = 7 * 24 * time.Hour

// ExpandRecurringOverrides resolves each RecurringOverride against
// [startISO, endISO] and folds its occurrences into overridesByKey (slot
// kind, upward-only) or onto the matching clinician's vacation ranges
// (vacation kind). Malformed RRULE strings are returned as warnings and
// skipped rather than aborting the whole solve.
func ExpandRecurringOverrides(
	overrides []model.RecurringOverride,
	clinicians []model.Clinician,
	startISO, endISO string,
	overridesByKey map[string]int,
) ([]model.Clinician, []error) {
	start, err := time.Parse("2006-01-02", startISO)
	if err != nil {
		return clinicians, []error{err}
	}
	end, err := time.Parse("2006-01-02", endISO)
	if err != nil {
		return clinicians, []error{err}
	}
	searchStart := start.Add(-recurrenceWindowPadding)
	searchEnd := end.Add(recurrenceWindowPadding)

	byClinician := make(map[string]int, len(clinicians))
	for i, c := range clinicians {
		byClinician[c.ID] = i
	}

	var warnings []error

	for _, ov := range overrides {
		rule, err := rrule.StrToRRule(ov.RRule)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		rule.DTStart(searchStart)
		occurrences := rule.Between(searchStart, searchEnd, true)

		for _, occ := range occurrences {
			dateISO := occ.Format("2006-01-02")
			if dateISO < startISO || dateISO > endISO {
				continue
			}

			switch ov.Kind {
			case model.RecurringSlotOverride:
				key := model.RuntimeKey(ov.RowID, dateISO)
				current, exists := overridesByKey[key]
				if !exists || ov.DeltaCount > current {
					overridesByKey[key] = ov.DeltaCount
				}
			case model.RecurringVacation:
				idx, ok := byClinician[ov.ClinicianID]
				if !ok {
					continue
				}
				clinicians[idx].Vacations = append(clinicians[idx].Vacations, model.VacationRange{
					ID:       ov.ID + "-" + dateISO,
					StartISO: dateISO,
					EndISO:   dateISO,
				})
			}
		}
	}

	return clinicians, warnings
}
