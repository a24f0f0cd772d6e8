// Package normalize turns a state snapshot as received at the wire into
// the shape the rest of the core assumes, recovering from the handful of
// legacy encodings the external state-authoring surface still produces.
package normalize

import (
	"fmt"
	"strings"

	"github.com/radsched/radsched/pkg/model"
)

// deprecatedPools are dropped outright, along with any assignment that
// references them. pool-rest-day and pool-vacation are still meaningful
// rendering pools and are left alone.
var deprecatedPools = map[string]bool{
	model.PoolNotAllocated: true,
	model.PoolManual:       true,
}

// Normalize applies the state-snapshot normalization rules and returns the
// corrected state plus a warning for every recovered condition. It never
// fails: every rule it implements is a repair, not a validation, so a
// caller that wants strict rejection should validate the payload before
// calling Normalize.
func Normalize(state model.AppState) (model.AppState, []string) {
	var warnings []string

	state, warnings = ensureDefaultLocation(state, warnings)
	state, warnings = rewriteUnknownLocations(state, warnings)
	state, warnings = ensureSubShifts(state, warnings)
	state, warnings = dropDeprecatedPools(state, warnings)
	state, warnings = rewriteLegacyRowIDs(state, warnings)

	return state, warnings
}

func ensureDefaultLocation(state model.AppState, warnings []string) (model.AppState, []string) {
	for _, loc := range state.Locations {
		if loc.ID == model.DefaultLocationID {
			return state, warnings
		}
	}
	state.Locations = append(state.Locations, model.Location{ID: model.DefaultLocationID, Name: "Default"})
	warnings = append(warnings, "added missing loc-default")
	return state, warnings
}

func rewriteUnknownLocations(state model.AppState, warnings []string) (model.AppState, []string) {
	known := make(map[string]bool, len(state.Locations))
	for _, loc := range state.Locations {
		known[loc.ID] = true
	}

	for i, row := range state.Rows {
		if row.LocationID == "" || known[row.LocationID] {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("row %q referenced unknown location %q, reassigned to loc-default", row.ID, row.LocationID))
		state.Rows[i].LocationID = model.DefaultLocationID
	}
	return state, warnings
}

// ensureSubShifts guarantees every class row carries between 1 and 3
// subshifts, filling in the default single-subshift shape when a row was
// authored with none.
func ensureSubShifts(state model.AppState, warnings []string) (model.AppState, []string) {
	for i, row := range state.Rows {
		if row.Kind != model.RowKindClass {
			continue
		}
		if len(row.SubShifts) == 0 {
			state.Rows[i].SubShifts = []model.SubShift{{
				ID:      model.DefaultSubShiftID,
				Ordinal: 1,
				Name:    row.Name,
				Hours:   model.DefaultSubShiftHours,
			}}
			warnings = append(warnings, fmt.Sprintf("row %q had no subshifts, added default %q", row.ID, model.DefaultSubShiftID))
			continue
		}
		if len(row.SubShifts) > 3 {
			warnings = append(warnings, fmt.Sprintf("row %q had %d subshifts, truncated to 3", row.ID, len(row.SubShifts)))
			state.Rows[i].SubShifts = row.SubShifts[:3]
		}
		for j, ss := range state.Rows[i].SubShifts {
			if ss.Hours <= 0 {
				state.Rows[i].SubShifts[j].Hours = model.DefaultSubShiftHours
			}
		}
	}
	return state, warnings
}

func dropDeprecatedPools(state model.AppState, warnings []string) (model.AppState, []string) {
	dropped := make(map[string]bool)
	var kept []model.Section
	for _, row := range state.Rows {
		if row.Kind == model.RowKindPool && deprecatedPools[row.ID] {
			dropped[row.ID] = true
			warnings = append(warnings, fmt.Sprintf("dropped deprecated pool %q", row.ID))
			continue
		}
		kept = append(kept, row)
	}
	state.Rows = kept

	if len(dropped) == 0 {
		return state, warnings
	}

	var keptAssignments []model.Assignment
	for _, a := range state.Assignments {
		sectionID, _ := model.SplitRuntimeRowID(a.RowID)
		if dropped[sectionID] {
			continue
		}
		keptAssignments = append(keptAssignments, a)
	}
	state.Assignments = keptAssignments
	return state, warnings
}

// rewriteLegacyRowIDs rewrites the pre-subshift row-ID form (no "::"
// separator) into "<id>::s1" everywhere a row ID appears: assignments,
// minSlotsByRowId, and slotOverridesByKey.
func rewriteLegacyRowIDs(state model.AppState, warnings []string) (model.AppState, []string) {
	rewritten := 0

	for i, a := range state.Assignments {
		if !strings.Contains(a.RowID, "::") {
			state.Assignments[i].RowID = model.RuntimeRowID(a.RowID, model.DefaultSubShiftID)
			rewritten++
		}
	}

	if len(state.MinSlotsByRowID) > 0 {
		fixed := make(map[string]model.MinSlots, len(state.MinSlotsByRowID))
		for rowID, v := range state.MinSlotsByRowID {
			if !strings.Contains(rowID, "::") {
				rowID = model.RuntimeRowID(rowID, model.DefaultSubShiftID)
				rewritten++
			}
			fixed[rowID] = v
		}
		state.MinSlotsByRowID = fixed
	}

	if len(state.SlotOverridesByKey) > 0 {
		fixed := make(map[string]int, len(state.SlotOverridesByKey))
		for key, v := range state.SlotOverridesByKey {
			rowID, dateISO, ok := splitRuntimeKey(key)
			if ok && !strings.Contains(rowID, "::") {
				key = model.RuntimeKey(model.RuntimeRowID(rowID, model.DefaultSubShiftID), dateISO)
				rewritten++
			}
			fixed[key] = v
		}
		state.SlotOverridesByKey = fixed
	}

	if rewritten > 0 {
		warnings = append(warnings, fmt.Sprintf("rewrote %d legacy row ID(s) missing a subshift component", rewritten))
	}
	return state, warnings
}

// splitRuntimeKey reverses model.RuntimeKey's "<rowId>__<dateISO>" join.
func splitRuntimeKey(key string) (rowID, dateISO string, ok bool) {
	idx := strings.LastIndex(key, "__")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+2:], true
}
