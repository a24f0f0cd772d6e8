package modelbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/eligibility"
)

func TestResolveRulesPassesThroughEnabledUserRules(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI"}}}
	slot := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)
	r := eligibility.NewResolver(model.SolverSettings{}, nil, nil)
	matrix := eligibility.Build(r, clinicians, []calendar.SlotInstance{slot})
	m := BuildModel(model.SolverSettings{}, false, matrix, nil, nil)

	userRules := []model.SolverRule{
		{ID: "r1", Enabled: true, IfShiftRowID: "MRI::s1", DayDelta: 1, ThenType: model.ThenForbid, ThenShiftRowID: "CT::s1"},
		{ID: "r2", Enabled: false, IfShiftRowID: "MRI::s1", DayDelta: 1, ThenType: model.ThenForbid, ThenShiftRowID: "CT::s1"},
	}

	resolved := ResolveRules(m, userRules)
	if assert.Len(t, resolved, 1, "disabled rule should be dropped") {
		assert.Equal(t, "MRI::s1", resolved[0].IfShiftRowID)
		assert.Equal(t, "CT::s1", resolved[0].ThenShiftRowID)
	}
}

func TestResolveRulesExpandsOnCallRestAcrossRowsAndDays(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"CALL", "CT"}}}
	onCall := mkSlotInstance(t, "CALL", "2026-01-05", "18:00", "22:00", "loc-a", 1)
	other := mkSlotInstance(t, "CT", "2026-01-06", "08:00", "16:00", "loc-a", 1)
	slots := []calendar.SlotInstance{onCall, other}

	settings := model.SolverSettings{
		OnCallRestEnabled:    true,
		OnCallRestClassID:    "CALL",
		OnCallRestDaysBefore: 1,
		OnCallRestDaysAfter:  1,
	}
	r := eligibility.NewResolver(settings, nil, nil)
	matrix := eligibility.Build(r, clinicians, slots)
	m := BuildModel(settings, false, matrix, nil, nil)

	resolved := ResolveRules(m, nil)
	if !assert.NotEmpty(t, resolved, "on-call rest should expand into forbid rules") {
		return
	}
	for _, rr := range resolved {
		assert.Equal(t, onCall.RowID, rr.IfShiftRowID)
		assert.Equal(t, model.ThenForbid, rr.ThenType)
		assert.NotEqual(t, onCall.RowID, rr.ThenShiftRowID, "on-call rest should never target its own row")
		assert.Contains(t, []int{-1, 1}, rr.DayDelta)
	}
}

func TestBuildModelPinsRequireRuleWhenTargetEligible(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI", "CT"}}}
	trigger := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)
	target := mkSlotInstance(t, "CT", "2026-01-06", "08:00", "16:00", "loc-a", 1)
	slots := []calendar.SlotInstance{trigger, target}

	manual := []model.Assignment{{ClinicianID: "c1", RowID: trigger.RowID, DateISO: trigger.DateISO, Manual: true}}
	r := eligibility.NewResolver(model.SolverSettings{}, manual, slots)
	matrix := eligibility.Build(r, clinicians, slots)

	rules := []model.SolverRule{
		{ID: "r1", Enabled: true, IfShiftRowID: trigger.RowID, DayDelta: 1, ThenType: model.ThenRequire, ThenShiftRowID: target.RowID},
	}
	m := BuildModel(model.SolverSettings{}, false, matrix, manual, rules)

	found := false
	for _, a := range m.ManualAssignments {
		if a.ClinicianID == "c1" && a.RowID == target.RowID && a.DateISO == target.DateISO {
			found = true
		}
	}
	assert.True(t, found, "require rule should pin the eligible target as a manual assignment")
	assert.Equal(t, -1, m.VariableByKey("c1", target.RowID, target.DateISO), "a pinned target has no free decision variable")
	assert.Empty(t, m.Notes)
}

func TestBuildModelDowngradesRequireRuleWhenTargetIneligible(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI"}}} // not qualified for CT
	trigger := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)
	target := mkSlotInstance(t, "CT", "2026-01-06", "08:00", "16:00", "loc-a", 1)
	slots := []calendar.SlotInstance{trigger, target}

	manual := []model.Assignment{{ClinicianID: "c1", RowID: trigger.RowID, DateISO: trigger.DateISO, Manual: true}}
	r := eligibility.NewResolver(model.SolverSettings{}, manual, slots)
	matrix := eligibility.Build(r, clinicians, slots)

	rules := []model.SolverRule{
		{ID: "r1", Enabled: true, IfShiftRowID: trigger.RowID, DayDelta: 1, ThenType: model.ThenRequire, ThenShiftRowID: target.RowID},
	}
	m := BuildModel(model.SolverSettings{}, false, matrix, manual, rules)

	for _, a := range m.ManualAssignments {
		assert.False(t, a.RowID == target.RowID && a.DateISO == target.DateISO, "an ineligible require target must never be pinned")
	}
	assert.Contains(t, m.Notes, "require_downgraded:c1|"+target.RowID+"|"+target.DateISO)
}

func TestResolveRulesOnCallRestDisabledProducesNothing(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"CALL"}}}
	onCall := mkSlotInstance(t, "CALL", "2026-01-05", "18:00", "22:00", "loc-a", 1)
	r := eligibility.NewResolver(model.SolverSettings{}, nil, nil)
	matrix := eligibility.Build(r, clinicians, []calendar.SlotInstance{onCall})
	m := BuildModel(model.SolverSettings{}, false, matrix, nil, nil)

	resolved := ResolveRules(m, nil)
	assert.Empty(t, resolved)
}
