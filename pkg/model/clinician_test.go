package model

import "testing"

func TestClinicianIsQualifiedFor(t *testing.T) {
	c := &Clinician{QualifiedClassIDs: []string{"MRI", "CT"}}
	if !c.IsQualifiedFor("MRI") {
		t.Error("expected qualified for MRI")
	}
	if c.IsQualifiedFor("XRAY") {
		t.Error("did not expect qualified for XRAY")
	}
}

func TestClinicianPreferenceRank(t *testing.T) {
	c := &Clinician{PreferredClassIDs: []string{"CT", "MRI"}}
	rank, ok := c.PreferenceRank("MRI")
	if !ok || rank != 1 {
		t.Errorf("expected rank 1, got %d (ok=%v)", rank, ok)
	}
	if _, ok := c.PreferenceRank("XRAY"); ok {
		t.Error("did not expect XRAY to be a preferred section")
	}
}

func TestClinicianOnVacation(t *testing.T) {
	c := &Clinician{Vacations: []VacationRange{{StartISO: "2026-01-05", EndISO: "2026-01-05"}}}
	if !c.OnVacation("2026-01-05") {
		t.Error("expected 2026-01-05 to be on vacation")
	}
	if c.OnVacation("2026-01-06") {
		t.Error("did not expect 2026-01-06 to be on vacation")
	}
}

func TestClinicianEffectiveTolerance(t *testing.T) {
	c := &Clinician{}
	if got := c.EffectiveTolerance(); got != DefaultToleranceHours {
		t.Errorf("expected default tolerance %v, got %v", DefaultToleranceHours, got)
	}
	custom := 2.5
	c.WorkingHoursToleranceHours = &custom
	if got := c.EffectiveTolerance(); got != 2.5 {
		t.Errorf("expected 2.5, got %v", got)
	}
}
