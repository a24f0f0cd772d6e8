package normalize

import (
	"testing"

	"github.com/radsched/radsched/pkg/model"
)

func TestNormalizeAddsMissingDefaultLocation(t *testing.T) {
	state := model.AppState{}
	out, warnings := Normalize(state)

	found := false
	for _, loc := range out.Locations {
		if loc.ID == model.DefaultLocationID {
			found = true
		}
	}
	if !found {
		t.Error("expected loc-default to be added")
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the added default location")
	}
}

func TestNormalizeIsIdempotentOnAlreadyClean(t *testing.T) {
	state := model.AppState{
		Locations: []model.Location{{ID: model.DefaultLocationID, Name: "Default"}},
		Rows: []model.Section{
			{ID: "MRI", Kind: model.RowKindClass, LocationID: model.DefaultLocationID, SubShifts: []model.SubShift{
				{ID: "s1", Ordinal: 1, Name: "MRI", Hours: 8},
			}},
		},
	}
	out, warnings := Normalize(state)
	if len(warnings) != 0 {
		t.Errorf("expected no warnings on an already-normalized state, got %v", warnings)
	}
	if len(out.Rows) != 1 || len(out.Rows[0].SubShifts) != 1 {
		t.Errorf("state should be unchanged: %+v", out.Rows)
	}
}

func TestNormalizeReassignsUnknownLocation(t *testing.T) {
	state := model.AppState{
		Rows: []model.Section{{ID: "MRI", LocationID: "loc-ghost"}},
	}
	out, _ := Normalize(state)
	if out.Rows[0].LocationID != model.DefaultLocationID {
		t.Errorf("LocationID = %q, want %q", out.Rows[0].LocationID, model.DefaultLocationID)
	}
}

func TestNormalizeFillsMissingSubShifts(t *testing.T) {
	state := model.AppState{
		Rows: []model.Section{{ID: "MRI", Kind: model.RowKindClass, Name: "MRI"}},
	}
	out, warnings := Normalize(state)
	if len(out.Rows[0].SubShifts) != 1 {
		t.Fatalf("got %d subshifts, want 1", len(out.Rows[0].SubShifts))
	}
	if out.Rows[0].SubShifts[0].ID != model.DefaultSubShiftID {
		t.Errorf("SubShift ID = %q, want %q", out.Rows[0].SubShifts[0].ID, model.DefaultSubShiftID)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the missing subshifts")
	}
}

func TestNormalizeTruncatesExcessSubShifts(t *testing.T) {
	state := model.AppState{
		Rows: []model.Section{{ID: "MRI", Kind: model.RowKindClass, SubShifts: []model.SubShift{
			{ID: "s1", Hours: 8}, {ID: "s2", Hours: 8}, {ID: "s3", Hours: 8}, {ID: "s4", Hours: 8},
		}}},
	}
	out, _ := Normalize(state)
	if len(out.Rows[0].SubShifts) != 3 {
		t.Errorf("got %d subshifts, want 3", len(out.Rows[0].SubShifts))
	}
}

func TestNormalizeDropsDeprecatedPoolsAndTheirAssignments(t *testing.T) {
	state := model.AppState{
		Rows: []model.Section{
			{ID: model.PoolNotAllocated, Kind: model.RowKindPool},
			{ID: model.PoolRestDay, Kind: model.RowKindPool},
			{ID: "MRI", Kind: model.RowKindClass, SubShifts: []model.SubShift{{ID: "s1", Hours: 8}}},
		},
		Assignments: []model.Assignment{
			{RowID: model.RuntimeRowID(model.PoolNotAllocated, "s1"), DateISO: "2026-01-05", ClinicianID: "c1"},
			{RowID: model.RuntimeRowID("MRI", "s1"), DateISO: "2026-01-05", ClinicianID: "c1"},
		},
	}
	out, warnings := Normalize(state)

	for _, row := range out.Rows {
		if row.ID == model.PoolNotAllocated {
			t.Error("expected pool-not-allocated to be dropped")
		}
	}
	foundRestDay := false
	for _, row := range out.Rows {
		if row.ID == model.PoolRestDay {
			foundRestDay = true
		}
	}
	if !foundRestDay {
		t.Error("pool-rest-day must be kept, it is not deprecated")
	}
	if len(out.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1 (the dropped pool's assignment removed)", len(out.Assignments))
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the dropped pool")
	}
}

func TestNormalizeRewritesLegacyRowIDs(t *testing.T) {
	state := model.AppState{
		Assignments: []model.Assignment{
			{RowID: "MRI", DateISO: "2026-01-05", ClinicianID: "c1"},
		},
		MinSlotsByRowID:    map[string]model.MinSlots{"MRI": {Weekday: 1}},
		SlotOverridesByKey: map[string]int{"MRI__2026-01-05": 2},
	}
	out, warnings := Normalize(state)

	want := model.RuntimeRowID("MRI", model.DefaultSubShiftID)
	if out.Assignments[0].RowID != want {
		t.Errorf("Assignment RowID = %q, want %q", out.Assignments[0].RowID, want)
	}
	if _, ok := out.MinSlotsByRowID[want]; !ok {
		t.Errorf("MinSlotsByRowID missing rewritten key %q: %v", want, out.MinSlotsByRowID)
	}
	wantKey := model.RuntimeKey(want, "2026-01-05")
	if _, ok := out.SlotOverridesByKey[wantKey]; !ok {
		t.Errorf("SlotOverridesByKey missing rewritten key %q: %v", wantKey, out.SlotOverridesByKey)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the rewritten legacy row IDs")
	}
}
