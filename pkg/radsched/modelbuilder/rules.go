package modelbuilder

import "github.com/radsched/radsched/pkg/model"

// ResolvedRule is a SolverRule normalized for objective scoring. On-call
// rest is expressed internally as a built-in ResolvedRule with
// ThenType=forbid and DayDelta on both sides of the trigger day, so the
// objective only ever needs to walk one rule list.
type ResolvedRule struct {
	IfShiftRowID   string
	DayDelta       int
	ThenType       model.ThenType
	ThenShiftRowID string
}

// ResolveRules normalizes the snapshot's user-authored SolverRules and
// folds in the on-call-rest setting as an equivalent built-in rule pair
// (one entry per DaysBefore/DaysAfter day offset, per §3's SolverRule
// generalization).
func ResolveRules(m *Model, userRules []model.SolverRule) []ResolvedRule {
	var resolved []ResolvedRule

	for _, r := range userRules {
		if !r.Enabled {
			continue
		}
		resolved = append(resolved, ResolvedRule{
			IfShiftRowID:   r.IfShiftRowID,
			DayDelta:       r.DayDelta,
			ThenType:       r.ThenType,
			ThenShiftRowID: r.ThenShiftRowID,
		})
	}

	if m.Settings.OnCallRestEnabled && m.Settings.OnCallRestClassID != "" {
		onCallRows := rowsForSection(m, m.Settings.OnCallRestClassID)
		otherRows := rowsNotForSection(m, m.Settings.OnCallRestClassID)
		for _, onCallRow := range onCallRows {
			for delta := -m.Settings.OnCallRestDaysBefore; delta <= m.Settings.OnCallRestDaysAfter; delta++ {
				if delta == 0 {
					continue
				}
				for _, targetRow := range otherRows {
					resolved = append(resolved, ResolvedRule{
						IfShiftRowID:   onCallRow,
						DayDelta:       delta,
						ThenType:       model.ThenForbid,
						ThenShiftRowID: targetRow,
					})
				}
			}
		}
	}

	return resolved
}

func rowsForSection(m *Model, sectionID string) []string {
	seen := make(map[string]bool)
	var rows []string
	for key := range m.SlotIndex {
		s := m.SlotIndex[key]
		if s.Slot.BlockID == sectionID && !seen[s.RowID] {
			seen[s.RowID] = true
			rows = append(rows, s.RowID)
		}
	}
	return rows
}

func rowsNotForSection(m *Model, sectionID string) []string {
	seen := make(map[string]bool)
	var rows []string
	for key := range m.SlotIndex {
		s := m.SlotIndex[key]
		if s.Slot.BlockID != sectionID && !seen[s.RowID] {
			seen[s.RowID] = true
			rows = append(rows, s.RowID)
		}
	}
	return rows
}
