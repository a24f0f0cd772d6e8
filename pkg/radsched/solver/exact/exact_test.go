package exact

import (
	"context"
	"testing"
	"time"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/eligibility"
	"github.com/radsched/radsched/pkg/radsched/modelbuilder"
	"github.com/radsched/radsched/pkg/radsched/solver"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

func TestBackendName(t *testing.T) {
	if New().Name() != "exact" {
		t.Errorf("Name() = %q, want %q", New().Name(), "exact")
	}
}

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

// TestExactBackendCapsOneShiftPerDay reproduces the day-cardinality
// scenario: one clinician, two non-overlapping required slots on the same
// date, allowMultipleShiftsPerDay left at its default false. Without a
// day-cardinality row the ILP fills both to erase two independent
// shortfall penalties; with it, at most one is chosen.
func TestExactBackendCapsOneShiftPerDay(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI", "CT"}}}
	first := mkSlotInstance(t, "MRI", "2026-01-05", "08:00", "12:00", "loc-a", 1)
	second := mkSlotInstance(t, "CT", "2026-01-05", "13:00", "17:00", "loc-a", 1)
	slots := []calendar.SlotInstance{first, second}

	settings := model.SolverSettings{} // AllowMultipleShiftsPerDay defaults false
	r := eligibility.NewResolver(settings, nil, nil)
	matrix := eligibility.Build(r, clinicians, slots)
	m := modelbuilder.BuildModel(settings, false, matrix, nil, nil)
	sc := modelbuilder.NewScorer(m, clinicians, nil, modelbuilder.DefaultWeights())

	backend := New()
	result, err := backend.Solve(context.Background(), m, sc, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != solver.StatusOptimal && result.Status != solver.StatusFeasible {
		t.Fatalf("status = %q, want OPTIMAL or FEASIBLE", result.Status)
	}
	if len(result.Assignments) > 1 {
		t.Fatalf("got %d assignments, want at most 1 (H4 caps one shift per day)", len(result.Assignments))
	}
}
