package modelbuilder

import (
	"sort"
	"time"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

// Weights orders the soft constraints per §4.D: Wcov >> Wcont > Wloc ≈
// Whrs > Wpref > Wwin. Values are chosen to realize that ordering with a
// comfortable margin at the problem sizes this scheduler targets (a few
// hundred slot instances, a few dozen clinicians); S7's rest weight sits
// with S2 since both model a hard-adjacent exclusion downgraded to soft.
type Weights struct {
	HardViolation float64 // H1/H3/H4/H5, dominates Coverage so a hard fix is never traded for a shortfall credit
	Coverage      float64 // S1
	Continuity    float64 // S2
	Location      float64 // S3
	Hours         float64 // S4, per minute outside tolerance
	Preference    float64 // S5, per assignment
	Window        float64 // S6, per minute outside window
	Rest          float64 // S7 / SolverRule soft exclusion
}

// DefaultWeights satisfies Whard >> Wcov >> Wcont > Wloc ~ Whrs > Wpref > Wwin.
func DefaultWeights() Weights {
	return Weights{
		HardViolation: 10000000,
		Coverage:      10000,
		Continuity:    500,
		Location:      50,
		Hours:         50,
		Rest:          450,
		Preference:    20,
		Window:        1,
	}
}

// Scorer evaluates a candidate assignment set against the soft
// constraints S1-S7 and reports any hard-constraint violation it catches.
// The heuristic backend's neighbourhood moves are not filtered against the
// Model's hard structure, so this check is what keeps a hard-violating
// candidate from ever scoring well.
type Scorer struct {
	Model      *Model
	Clinicians map[string]model.Clinician
	Rules      []ResolvedRule
	Weights    Weights
}

// NewScorer builds a Scorer for m, indexing clinicians by ID and
// resolving SolverRules (including the built-in on-call-rest rule) against
// the model's variables.
func NewScorer(m *Model, clinicians []model.Clinician, rules []model.SolverRule, weights Weights) *Scorer {
	byID := make(map[string]model.Clinician, len(clinicians))
	for _, c := range clinicians {
		byID[c.ID] = c
	}
	return &Scorer{
		Model:      m,
		Clinicians: byID,
		Rules:      ResolveRules(m, rules),
		Weights:    weights,
	}
}

// Score combines every assignment (manual + chosen free variables) into a
// single objective value (lower is better) and a flat list of
// human-readable violation notes. hardOK is false when chosen actually
// violates H1/H3/H4/H5 against the Model's OverlapPairs/LocationPairs/
// DayGroups/SlotGroups structure, checked directly rather than assumed.
func (sc *Scorer) Score(chosen []model.Assignment) (penalty float64, notes []string, hardOK bool) {
	hardOK = true
	all := append(append([]model.Assignment{}, sc.Model.ManualAssignments...), chosen...)

	byClinicianDate := make(map[string][]model.Assignment)
	for _, a := range all {
		byClinicianDate[a.ClinicianID+"|"+a.DateISO] = append(byClinicianDate[a.ClinicianID+"|"+a.DateISO], a)
	}

	penalty += sc.scoreCoverage(chosen, &notes)
	penalty += sc.scoreHardConstraints(chosen, &notes, &hardOK)
	penalty += sc.scoreContinuity(byClinicianDate, &notes)
	if !sc.Model.Settings.EnforceSameLocationPerDay {
		penalty += sc.scoreLocationTransitions(byClinicianDate)
	}
	penalty += sc.scoreHoursDeviation(all)
	penalty += sc.scorePreference(chosen)
	penalty += sc.scoreWindowPreference(chosen)
	penalty += sc.scoreRestAndRules(byClinicianDate)

	return penalty, notes, hardOK
}

// scoreHardConstraints checks chosen against the Model's actual hard
// structure (H1/H3/H4/H5) and applies a dominating penalty per violation,
// so a backend that turns on an overlapping, over-capacity, multi-shift or
// cross-location variable to erase a coverage shortfall never nets a lower
// score for doing so. It is the only place either backend's candidate is
// checked against OverlapPairs/LocationPairs/DayGroups/SlotGroups.MaxCapacity.
func (sc *Scorer) scoreHardConstraints(chosen []model.Assignment, notes *[]string, hardOK *bool) float64 {
	var penalty float64
	on := make(map[int]bool, len(chosen))
	for _, a := range chosen {
		if idx := sc.Model.VariableByKey(a.ClinicianID, a.RowID, a.DateISO); idx >= 0 {
			on[idx] = true
		}
	}

	// H3: no time overlap per clinician per day.
	for _, pair := range sc.Model.OverlapPairs {
		if on[pair[0]] && on[pair[1]] {
			penalty += sc.Weights.HardViolation
			*notes = append(*notes, "overlap_violation")
			*hardOK = false
		}
	}

	// H5: same location per day, when enforced.
	if sc.Model.Settings.EnforceSameLocationPerDay {
		for _, pair := range sc.Model.LocationPairs {
			if on[pair[0]] && on[pair[1]] {
				penalty += sc.Weights.HardViolation
				*notes = append(*notes, "location_violation")
				*hardOK = false
			}
		}
	}

	// H4: at most one assignment per (clinician, day) unless multi-shift is allowed.
	if !sc.Model.Settings.AllowMultipleShiftsPerDay {
		for _, dg := range sc.Model.DayGroups {
			count := 0
			for _, idx := range dg.VarIndices {
				if on[idx] {
					count++
				}
			}
			if count > 1 {
				penalty += sc.Weights.HardViolation * float64(count-1)
				*notes = append(*notes, "day_cardinality_violation:"+dg.ClinicianID+"|"+dg.DateISO)
				*hardOK = false
			}
		}
	}

	// H1/H2: a slot's chosen count must never exceed its hard cap (its
	// RequiredCount when only_fill_required, otherwise every free var is
	// eligible so this can never trip by construction).
	for _, sg := range sc.Model.SlotGroups {
		count := 0
		for _, idx := range sg.VarIndices {
			if on[idx] {
				count++
			}
		}
		if count > sg.MaxCapacity {
			over := count - sg.MaxCapacity
			penalty += sc.Weights.HardViolation * float64(over)
			key := model.RuntimeKey(sg.Slot.RowID, sg.Slot.DateISO)
			*notes = append(*notes, "overfill_violation:"+key)
			*hardOK = false
		}
	}

	return penalty
}

// S1: coverage shortfall, only meaningful once H2 has degraded to <=.
func (sc *Scorer) scoreCoverage(chosen []model.Assignment, notes *[]string) float64 {
	filled := make(map[string]int)
	for _, a := range chosen {
		filled[model.RuntimeKey(a.RowID, a.DateISO)]++
	}
	var penalty float64
	for _, sg := range sc.Model.SlotGroups {
		key := model.RuntimeKey(sg.Slot.RowID, sg.Slot.DateISO)
		got := filled[key]
		shortfall := sg.RequiredCount - got
		if shortfall > 0 {
			penalty += sc.Weights.Coverage * float64(shortfall)
			*notes = append(*notes, "coverage_shortfall:"+key)
		}
	}
	return penalty
}

// S2: continuity. A clinician's chosen slots on (date, location) must form
// a single maximal contiguous run when ordered by start time. This is a
// soft constraint (S2, not H*): a non-contiguous run is penalized, never
// treated as a hard violation.
func (sc *Scorer) scoreContinuity(byClinicianDate map[string][]model.Assignment, notes *[]string) float64 {
	if !sc.Model.Settings.PreferContinuousShifts {
		return 0
	}
	var penalty float64
	for key, assignments := range byClinicianDate {
		if len(assignments) < 2 {
			continue
		}
		byLocation := make(map[string][]model.Assignment)
		for _, a := range assignments {
			loc := sc.slotLocation(a)
			byLocation[loc] = append(byLocation[loc], a)
		}
		for _, group := range byLocation {
			if len(group) < 2 {
				continue
			}
			sort.Slice(group, func(i, j int) bool {
				return sc.slotStart(group[i]) < sc.slotStart(group[j])
			})
			runs := 1
			for i := 1; i < len(group); i++ {
				if sc.slotStart(group[i]) > sc.slotEnd(group[i-1]) {
					runs++
				}
			}
			if runs > 1 {
				gaps := runs - 1
				penalty += sc.Weights.Continuity * float64(gaps)
				*notes = append(*notes, "non_contiguous:"+key)
			}
		}
	}
	return penalty
}

// S3: location transitions, only scored when H5 is not enforced.
func (sc *Scorer) scoreLocationTransitions(byClinicianDate map[string][]model.Assignment) float64 {
	var penalty float64
	for _, assignments := range byClinicianDate {
		locs := make(map[string]bool)
		for _, a := range assignments {
			locs[sc.slotLocation(a)] = true
		}
		if len(locs) > 1 {
			penalty += sc.Weights.Location * float64(len(locs)-1)
		}
	}
	return penalty
}

// S4: working-hours deviation from each clinician's weekly target. The
// target is the full WorkingHoursPerWeek figure whatever the length of the
// solved range; it is not scaled by the number of working days in it.
func (sc *Scorer) scoreHoursDeviation(all []model.Assignment) float64 {
	minutesByClinician := make(map[string]float64)
	for _, a := range all {
		minutesByClinician[a.ClinicianID] += sc.slotHours(a) * 60
	}
	var penalty float64
	for id, c := range sc.Clinicians {
		if c.WorkingHoursPerWeek == nil {
			continue
		}
		targetMinutes := *c.WorkingHoursPerWeek * 60
		toleranceMinutes := c.EffectiveTolerance() * 60
		assigned := minutesByClinician[id]
		deviation := assigned - targetMinutes
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > toleranceMinutes {
			penalty += sc.Weights.Hours * (deviation - toleranceMinutes)
		}
	}
	return penalty
}

// S5: preference match, rewarding higher-ranked preferred sections.
func (sc *Scorer) scorePreference(chosen []model.Assignment) float64 {
	var penalty float64
	for _, a := range chosen {
		c, ok := sc.Clinicians[a.ClinicianID]
		if !ok {
			continue
		}
		sectionID := a.SectionID()
		rank, preferred := c.PreferenceRank(sectionID)
		if !preferred {
			penalty += sc.Weights.Preference
			continue
		}
		reward := sc.Weights.Preference / float64(rank+1)
		penalty -= reward
	}
	return penalty
}

// S6: time-window preference, per minute outside a preferred window.
func (sc *Scorer) scoreWindowPreference(chosen []model.Assignment) float64 {
	var penalty float64
	for _, a := range chosen {
		c, ok := sc.Clinicians[a.ClinicianID]
		if !ok {
			continue
		}
		s, ok := sc.slotOf(a)
		if !ok {
			continue
		}
		for _, w := range c.TimeWindows {
			if w.Kind != model.WindowPreferred || w.DayType != s.Slot.ColBand.DayType {
				continue
			}
			outside := minutesOutsideWindow(s, w)
			if outside > 0 {
				penalty += sc.Weights.Window * float64(outside)
			}
		}
	}
	return penalty
}

// S7 and the general SolverRule mechanism: penalize soft (big-M style)
// exclusion violations.
func (sc *Scorer) scoreRestAndRules(byClinicianDate map[string][]model.Assignment) float64 {
	var penalty float64
	for _, rule := range sc.Rules {
		for key, assignments := range byClinicianDate {
			triggered := false
			for _, a := range assignments {
				if a.RowID == rule.IfShiftRowID {
					triggered = true
					break
				}
			}
			if !triggered {
				continue
			}
			if rule.ThenType != model.ThenForbid {
				continue
			}
			targetDate := shiftDate(assignments[0].DateISO, rule.DayDelta)
			targetAssignments := byClinicianDate[clinicianOf(key)+"|"+targetDate]
			for _, a := range targetAssignments {
				if a.RowID == rule.ThenShiftRowID {
					penalty += sc.Weights.Rest
				}
			}
		}
	}
	return penalty
}

func clinicianOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i]
		}
	}
	return key
}

func shiftDate(dateISO string, delta int) string {
	d, err := dateFromISO(dateISO)
	if err != nil {
		return dateISO
	}
	return d.AddDate(0, 0, delta).Format("2006-01-02")
}

func (sc *Scorer) slotOf(a model.Assignment) (calendar.SlotInstance, bool) {
	s, ok := sc.Model.SlotIndex[model.RuntimeKey(a.RowID, a.DateISO)]
	return s, ok
}

func (sc *Scorer) slotLocation(a model.Assignment) string {
	if s, ok := sc.slotOf(a); ok {
		return s.LocationID
	}
	return ""
}

func (sc *Scorer) slotStart(a model.Assignment) int {
	if s, ok := sc.slotOf(a); ok {
		return s.Interval.Start
	}
	return 0
}

func (sc *Scorer) slotEnd(a model.Assignment) int {
	if s, ok := sc.slotOf(a); ok {
		return s.Interval.End
	}
	return 0
}

func (sc *Scorer) slotHours(a model.Assignment) float64 {
	if s, ok := sc.slotOf(a); ok {
		return s.Hours
	}
	return 0
}

func minutesOutsideWindow(s calendar.SlotInstance, w model.TimeWindow) int {
	wStart, err1 := timeengine.ParseHHMM(w.StartHHMM)
	wEnd, err2 := timeengine.ParseHHMM(w.EndHHMM)
	if err1 != nil || err2 != nil {
		return 0
	}
	outside := 0
	if s.Interval.Start < wStart {
		outside += wStart - s.Interval.Start
	}
	if s.Interval.End > wEnd {
		outside += s.Interval.End - wEnd
	}
	return outside
}

func dateFromISO(dateISO string) (time.Time, error) {
	return time.Parse("2006-01-02", dateISO)
}
