package model

// ThenType is the effect a SolverRule has on its target row when its
// trigger fires.
type ThenType string

const (
	ThenForbid  ThenType = "forbid"
	ThenRequire ThenType = "require"
)

// SolverRule is a user-authored if/then rule: when a clinician is assigned
// IfShiftRowID on a day, ThenType governs ThenShiftRowID on
// day+DayDelta. On-call rest is the built-in instance of this mechanism
// (ThenType=forbid, DayDelta=-1 and +1).
type SolverRule struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	IfShiftRowID   string   `json:"ifShiftRowId"`
	DayDelta       int      `json:"dayDelta"` // -1 or 1
	ThenType       ThenType `json:"thenType"`
	ThenShiftRowID string   `json:"thenShiftRowId"`
}

// RecurringOverrideKind distinguishes the two override shapes a recurrence
// rule can expand into.
type RecurringOverrideKind string

const (
	RecurringSlotOverride RecurringOverrideKind = "slot"
	RecurringVacation     RecurringOverrideKind = "vacation"
)

// RecurringOverride expands an RRULE against the solved range and folds
// its occurrences into slotOverridesByKey or a clinician's vacation ranges,
// before slot expansion begins.
type RecurringOverride struct {
	ID          string                `json:"id"`
	RRule       string                `json:"rrule"`
	Kind        RecurringOverrideKind `json:"kind"`
	RowID       string                `json:"rowId,omitempty"`       // slot kind
	DeltaCount  int                   `json:"deltaCount,omitempty"`  // slot kind
	ClinicianID string                `json:"clinicianId,omitempty"` // vacation kind
}
