package calendar

import (
	"testing"

	"github.com/radsched/radsched/pkg/model"
)

func TestExpandRecurringOverridesSlotKind(t *testing.T) {
	overrides := []model.RecurringOverride{
		{ID: "ov1", RRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=10", Kind: model.RecurringSlotOverride, RowID: "MRI::s1", DeltaCount: 3},
	}
	byKey := map[string]int{}

	_, warnings := ExpandRecurringOverrides(overrides, nil, "2026-01-05", "2026-01-11", byKey)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	key := model.RuntimeKey("MRI::s1", "2026-01-05") // the Monday in range
	if got, ok := byKey[key]; !ok || got != 3 {
		t.Errorf("byKey[%q] = (%d, %v), want (3, true)", key, got, ok)
	}
}

func TestExpandRecurringOverridesUpwardOnly(t *testing.T) {
	overrides := []model.RecurringOverride{
		{ID: "ov1", RRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=10", Kind: model.RecurringSlotOverride, RowID: "MRI::s1", DeltaCount: 1},
	}
	key := model.RuntimeKey("MRI::s1", "2026-01-05")
	byKey := map[string]int{key: 5}

	ExpandRecurringOverrides(overrides, nil, "2026-01-05", "2026-01-11", byKey)
	if byKey[key] != 5 {
		t.Errorf("expected the higher existing override to survive, got %d", byKey[key])
	}
}

func TestExpandRecurringOverridesVacationKind(t *testing.T) {
	clinicians := []model.Clinician{{ID: "c1"}}
	overrides := []model.RecurringOverride{
		{ID: "ov1", RRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=10", Kind: model.RecurringVacation, ClinicianID: "c1"},
	}

	out, warnings := ExpandRecurringOverrides(overrides, clinicians, "2026-01-05", "2026-01-11", map[string]int{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(out[0].Vacations) != 1 {
		t.Fatalf("got %d vacation entries, want 1", len(out[0].Vacations))
	}
	if out[0].Vacations[0].StartISO != "2026-01-05" {
		t.Errorf("got %+v", out[0].Vacations[0])
	}
}

func TestExpandRecurringOverridesMalformedRRuleWarns(t *testing.T) {
	overrides := []model.RecurringOverride{
		{ID: "ov1", RRule: "not-a-valid-rrule", Kind: model.RecurringSlotOverride, RowID: "MRI::s1", DeltaCount: 1},
	}
	_, warnings := ExpandRecurringOverrides(overrides, nil, "2026-01-05", "2026-01-11", map[string]int{})
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1 for a malformed RRULE", len(warnings))
	}
}

func TestExpandRecurringOverridesUnknownClinicianSkipped(t *testing.T) {
	overrides := []model.RecurringOverride{
		{ID: "ov1", RRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=10", Kind: model.RecurringVacation, ClinicianID: "ghost"},
	}
	out, warnings := ExpandRecurringOverrides(overrides, []model.Clinician{{ID: "c1"}}, "2026-01-05", "2026-01-11", map[string]int{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(out[0].Vacations) != 0 {
		t.Errorf("expected no vacation added for an unknown clinician reference")
	}
}
