package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

func mkSlot(t *testing.T, rowID, dateISO string, required int, startHHMM, endHHMM string, hours float64) calendar.SlotInstance {
	t.Helper()
	iv, err := timeengine.BuildInterval(startHHMM, endHHMM, 0)
	require.NoError(t, err)
	return calendar.SlotInstance{RowID: rowID, DateISO: dateISO, RequiredCount: required, Interval: iv, Hours: hours}
}

func TestEvaluateFilledAndOpenSlots(t *testing.T) {
	slots := []calendar.SlotInstance{
		mkSlot(t, "MRI::s1", "2026-01-05", 2, "08:00", "16:00", 8),
	}
	assignments := []model.Assignment{
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1"},
	}

	m := Evaluate(assignments, slots, nil, "2026-01-05", "2026-01-05", 1)
	assert.Equal(t, 2, m.TotalRequiredSlots)
	assert.Equal(t, 1, m.FilledSlots)
	assert.Equal(t, 1, m.OpenSlots)
}

func TestEvaluateOverfillNeverExceedsRequired(t *testing.T) {
	slots := []calendar.SlotInstance{mkSlot(t, "MRI::s1", "2026-01-05", 1, "08:00", "16:00", 8)}
	assignments := []model.Assignment{
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1", Seq: 0},
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c2", Seq: 1},
	}

	m := Evaluate(assignments, slots, nil, "2026-01-05", "2026-01-05", 1)
	assert.Equal(t, 1, m.FilledSlots, "FilledSlots must be capped at RequiredCount")
	assert.Equal(t, 0, m.OpenSlots)
}

func TestEvaluateNonConsecutiveShifts(t *testing.T) {
	slots := []calendar.SlotInstance{
		mkSlot(t, "MRI::s1", "2026-01-05", 1, "08:00", "12:00", 4),
		mkSlot(t, "CT::s1", "2026-01-05", 1, "18:00", "22:00", 4),
	}
	assignments := []model.Assignment{
		{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1"},
		{RowID: "CT::s1", DateISO: "2026-01-05", ClinicianID: "c1"},
	}

	m := Evaluate(assignments, slots, nil, "2026-01-05", "2026-01-05", 1)
	assert.Equal(t, 1, m.NonConsecutiveShifts, "a gap between 12:00 and 18:00 should be counted")
}

func TestEvaluateWithinHours(t *testing.T) {
	target := 8.0
	clinicians := []model.Clinician{{ID: "c1", WorkingHoursPerWeek: &target}}
	slots := []calendar.SlotInstance{mkSlot(t, "MRI::s1", "2026-01-05", 1, "08:00", "16:00", 8)}
	assignments := []model.Assignment{{RowID: "MRI::s1", DateISO: "2026-01-05", ClinicianID: "c1"}}

	m := Evaluate(assignments, slots, clinicians, "2026-01-05", "2026-01-05", 5)
	assert.Equal(t, 1, m.TotalCliniciansWithTarget)
	assert.Equal(t, 1, m.CliniciansWithinHours)
}

func TestWorkingDaysInRangeExcludesWeekends(t *testing.T) {
	// 2026-01-05 (Mon) .. 2026-01-11 (Sun): 5 weekdays.
	assert.Equal(t, 5, WorkingDaysInRange("2026-01-05", "2026-01-11"))
}
