package model

// VacationRange is an inclusive, closed date range a clinician is
// unavailable for. Ranges are kept ordered by Start within a Clinician.
type VacationRange struct {
	ID       string `json:"id"`
	StartISO string `json:"startISO"`
	EndISO   string `json:"endISO"`
}

// WindowKind determines whether a TimeWindow gates eligibility or only
// contributes to the objective.
type WindowKind string

const (
	WindowMandatory WindowKind = "mandatory"
	WindowPreferred WindowKind = "preferred"
)

// TimeWindow is a clinician's allowed or preferred time-of-day range for a
// given DayType, expressed in HH:MM wall-clock form (parsed by timeengine).
type TimeWindow struct {
	DayType   DayType    `json:"dayType"`
	StartHHMM string     `json:"startHHMM"`
	EndHHMM   string     `json:"endHHMM"`
	Kind      WindowKind `json:"kind"`
}

// Clinician is a schedulable person.
type Clinician struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// QualifiedClassIDs is the set of Section IDs this clinician may be
	// assigned to. Order carries no meaning.
	QualifiedClassIDs []string `json:"qualifiedClassIds"`

	// PreferredClassIDs ranks preferred Section IDs; index is rank (0 =
	// most preferred). Must be a subset of QualifiedClassIDs.
	PreferredClassIDs []string `json:"preferredClassIds,omitempty"`

	Vacations []VacationRange `json:"vacations,omitempty"`

	// WorkingHoursPerWeek is the target used by S4; nil means the
	// clinician has no target and is excluded from the hours-deviation
	// soft constraint and from stats.cliniciansWithinHours.
	WorkingHoursPerWeek *float64 `json:"workingHoursPerWeek,omitempty"`

	// WorkingHoursToleranceHours defaults to 5 when unset (see
	// EffectiveTolerance).
	WorkingHoursToleranceHours *float64 `json:"workingHoursToleranceHours,omitempty"`

	TimeWindows []TimeWindow `json:"timeWindows,omitempty"`
}

// DefaultToleranceHours is applied when a clinician has a target but no
// explicit tolerance.
const DefaultToleranceHours = 5.0

// EffectiveTolerance returns the clinician's hours tolerance, applying the
// default when unset.
func (c *Clinician) EffectiveTolerance() float64 {
	if c.WorkingHoursToleranceHours != nil {
		return *c.WorkingHoursToleranceHours
	}
	return DefaultToleranceHours
}

// IsQualifiedFor reports whether the clinician may be assigned to sectionID.
func (c *Clinician) IsQualifiedFor(sectionID string) bool {
	for _, id := range c.QualifiedClassIDs {
		if id == sectionID {
			return true
		}
	}
	return false
}

// PreferenceRank returns the index of sectionID in PreferredClassIDs and
// true, or (0, false) if it is not a preferred section.
func (c *Clinician) PreferenceRank(sectionID string) (int, bool) {
	for i, id := range c.PreferredClassIDs {
		if id == sectionID {
			return i, true
		}
	}
	return 0, false
}

// OnVacation reports whether dateISO falls within any vacation range.
func (c *Clinician) OnVacation(dateISO string) bool {
	for _, v := range c.Vacations {
		if dateISO >= v.StartISO && dateISO <= v.EndISO {
			return true
		}
	}
	return false
}
