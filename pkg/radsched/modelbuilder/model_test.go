package modelbuilder

import (
	"testing"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/eligibility"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

func mkSlotInstance(t *testing.T, sectionID, dateISO, startHHMM, endHHMM, locationID string, required int) calendar.SlotInstance {
	t.Helper()
	iv, err := timeengine.BuildInterval(startHHMM, endHHMM, 0)
	if err != nil {
		t.Fatalf("BuildInterval: %v", err)
	}
	return calendar.SlotInstance{
		RowID:         model.RuntimeRowID(sectionID, "s1"),
		DateISO:       dateISO,
		LocationID:    locationID,
		RequiredCount: required,
		Interval:      iv,
		Slot:          model.TemplateSlot{BlockID: sectionID, SubShiftID: "s1", LocationID: locationID},
	}
}

func TestBuildModelCreatesVariablesForEligiblePairs(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI"}}}
	slot := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)

	r := eligibility.NewResolver(model.SolverSettings{}, nil, nil)
	matrix := eligibility.Build(r, clinicians, []calendar.SlotInstance{slot})

	m := BuildModel(model.SolverSettings{}, false, matrix, nil, nil)

	if len(m.Variables) != 1 {
		t.Fatalf("got %d variables, want 1", len(m.Variables))
	}
	if idx := m.VariableByKey("c1", slot.RowID, slot.DateISO); idx != 0 {
		t.Errorf("VariableByKey = %d, want 0", idx)
	}
	if len(m.SlotGroups) != 1 || m.SlotGroups[0].RequiredCount != 1 || m.SlotGroups[0].MaxCapacity != 1 {
		t.Errorf("got %+v", m.SlotGroups)
	}
}

func TestBuildModelSkipsAlreadyPinnedPair(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI"}}}
	slot := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)
	manual := []model.Assignment{{ClinicianID: "c1", RowID: slot.RowID, DateISO: slot.DateISO, Manual: true}}

	r := eligibility.NewResolver(model.SolverSettings{}, manual, []calendar.SlotInstance{slot})
	matrix := eligibility.Build(r, clinicians, []calendar.SlotInstance{slot})

	m := BuildModel(model.SolverSettings{}, false, matrix, manual, nil)

	if len(m.Variables) != 0 {
		t.Errorf("got %d variables, want 0 (the pin already occupies the only eligible pair)", len(m.Variables))
	}
	if len(m.SlotGroups) != 0 {
		t.Errorf("got %d slot groups, want 0 (no free variable competes for the pinned slot)", len(m.SlotGroups))
	}
}

func TestBuildModelH4BlocksSecondShiftWithoutAllowMultiple(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI", "CT"}}}
	pinnedSlot := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)
	otherSlot := mkSlotInstance(t, "CT", "2026-01-05", "18:00", "22:00", "loc-a", 1)
	manual := []model.Assignment{{ClinicianID: "c1", RowID: pinnedSlot.RowID, DateISO: pinnedSlot.DateISO, Manual: true}}

	slots := []calendar.SlotInstance{pinnedSlot, otherSlot}
	r := eligibility.NewResolver(model.SolverSettings{}, manual, slots)
	matrix := eligibility.Build(r, clinicians, slots)

	m := BuildModel(model.SolverSettings{}, false, matrix, manual, nil)
	if len(m.Variables) != 0 {
		t.Errorf("got %d variables, want 0: H4 forbids a second shift once the day is pinned", len(m.Variables))
	}
}

func TestBuildModelAllowMultipleShiftsPerDayPermitsSecondShift(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI", "CT"}}}
	pinnedSlot := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)
	otherSlot := mkSlotInstance(t, "CT", "2026-01-05", "18:00", "22:00", "loc-a", 1)
	manual := []model.Assignment{{ClinicianID: "c1", RowID: pinnedSlot.RowID, DateISO: pinnedSlot.DateISO, Manual: true}}

	slots := []calendar.SlotInstance{pinnedSlot, otherSlot}
	settings := model.SolverSettings{AllowMultipleShiftsPerDay: true}
	r := eligibility.NewResolver(settings, manual, slots)
	matrix := eligibility.Build(r, clinicians, slots)

	m := BuildModel(settings, false, matrix, manual, nil)
	if len(m.Variables) != 1 {
		t.Fatalf("got %d variables, want 1 for the non-overlapping second shift", len(m.Variables))
	}
}

func TestBuildModelOverlapPairsBlockSameDayOverlap(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI", "CT"}}}
	a := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)
	b := mkSlotInstance(t, "CT", "2026-01-05", "12:00", "20:00", "loc-b", 1)

	slots := []calendar.SlotInstance{a, b}
	settings := model.SolverSettings{AllowMultipleShiftsPerDay: true}
	r := eligibility.NewResolver(settings, nil, nil)
	matrix := eligibility.Build(r, clinicians, slots)

	m := BuildModel(settings, false, matrix, nil, nil)
	if len(m.OverlapPairs) != 1 {
		t.Fatalf("got %d overlap pairs, want 1", len(m.OverlapPairs))
	}
	if len(m.LocationPairs) != 1 {
		t.Fatalf("got %d location pairs, want 1 (different locations same day)", len(m.LocationPairs))
	}
}

func TestBuildModelFlagsUnreachableCoverage(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"CT"}}} // not qualified for MRI
	slot := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "16:00", "loc-a", 1)

	r := eligibility.NewResolver(model.SolverSettings{}, nil, nil)
	matrix := eligibility.Build(r, clinicians, []calendar.SlotInstance{slot})

	m := BuildModel(model.SolverSettings{}, false, matrix, nil, nil)
	if len(m.Notes) != 1 {
		t.Fatalf("got %d notes, want 1 unreachable_coverage note", len(m.Notes))
	}
}
