package extractor

import (
	"testing"

	"github.com/radsched/radsched/pkg/model"
)

func TestExtractDeduplicatesAndSorts(t *testing.T) {
	manual := []model.Assignment{
		{RowID: "MRI::s1", DateISO: "2026-01-06", ClinicianID: "c2", Manual: true},
	}
	solved := []model.Assignment{
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1"},
		{RowID: "CT::s1", DateISO: "2026-01-05", ClinicianID: "c2"},
	}

	out := Extract(manual, solved)
	if len(out) != 3 {
		t.Fatalf("got %d assignments, want 3", len(out))
	}

	// Sorted by date, then row, then clinician.
	if out[0].RowID != "CT::s1" || out[1].RowID != "MRI::s1" || out[2].DateISO != "2026-01-06" {
		t.Errorf("unexpected order: %+v", out)
	}
}

func TestExtractManualWinsOverSolvedCollision(t *testing.T) {
	manual := []model.Assignment{
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1", Manual: true},
	}
	solved := []model.Assignment{
		// Same key as the manual pin: the solver must never produce this,
		// but the union still needs a deterministic tie-break.
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1", Manual: false},
	}

	out := Extract(manual, solved)
	if len(out) != 1 {
		t.Fatalf("got %d assignments, want 1", len(out))
	}
	if !out[0].Manual {
		t.Error("expected the manual pin to win the collision")
	}
}

func TestExtractAssignsCanonicalIDs(t *testing.T) {
	solved := []model.Assignment{{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1", Seq: 2}}
	out := Extract(nil, solved)
	want := model.CanonicalID("MRI::s1", "2026-01-05", "c1", 2)
	if out[0].ID != want {
		t.Errorf("ID = %q, want %q", out[0].ID, want)
	}
}

func TestExtractDistinguishesBySeq(t *testing.T) {
	solved := []model.Assignment{
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1", Seq: 0},
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1", Seq: 1},
	}
	out := Extract(nil, solved)
	if len(out) != 2 {
		t.Fatalf("got %d assignments, want 2 (multi-head slot)", len(out))
	}
}
