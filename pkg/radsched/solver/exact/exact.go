// Package exact implements the GLPK-backed 0/1 ILP Solver Driver backend.
// It encodes H1-H7 directly as LP rows and a reduced objective covering
// S1 (coverage), S4 (hours deviation) S5 (preference) and S6 (window
// preference). S2/S3/S7 are not linearized here: continuity and
// location-transition runs need per-pair auxiliary variables whose count
// grows quadratically with a clinician's daily slot count, and S7's
// general SolverRule form needs a big-M row per (trigger, target) pair.
// Both are cheap for the heuristic backend's direct assignment-set scan
// but expensive to keep linear at this backend's problem sizes, so this
// backend optimizes the reduced objective and leaves those three to the
// heuristic backend (the default).
package exact

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lukpank/go-glpk/glpk"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/modelbuilder"
	"github.com/radsched/radsched/pkg/radsched/solver"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

// Backend is the exact solver.Backend implementation.
type Backend struct{}

// New builds the exact backend.
func New() *Backend { return &Backend{} }

// Name identifies the backend for diagnostics and config selection.
func (b *Backend) Name() string { return "exact" }

// Solve builds and solves the ILP in a goroutine, since this GLPK binding
// exposes no wall-clock cutoff of its own (lukpank/go-glpk's Iocp has no
// TmLim field). budget is enforced from the caller's side: if Simplex+
// Intopt haven't returned by budget, Solve returns UNKNOWN immediately and
// the goroutine is abandoned to finish or be reclaimed at process exit.
// Because GLPK surfaces only its final incumbent, observer fires at most
// once, with SolutionNum left for the Driver to assign.
func (b *Backend) Solve(ctx context.Context, m *modelbuilder.Model, scorer *modelbuilder.Scorer, budget time.Duration, observer solver.Observer) (solver.ShardResult, error) {
	enc, err := encode(m, scorer)
	if err != nil {
		return solver.ShardResult{}, err
	}
	if enc == nil {
		return solver.ShardResult{Status: solver.StatusOptimal}, nil
	}

	type outcome struct {
		result solver.ShardResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer enc.lp.Delete()

		param := glpk.NewSmcp()
		param.SetMsgLev(glpk.MsgLev(glpk.MSG_ERR))
		if err := enc.lp.Simplex(param); err != nil {
			done <- outcome{err: fmt.Errorf("simplex: %w", err)}
			return
		}

		iocp := glpk.NewIocp()
		iocp.SetPresolve(true)
		iocp.SetMsgLev(glpk.MsgLev(glpk.MSG_ERR))
		if err := enc.lp.Intopt(iocp); err != nil {
			done <- outcome{err: fmt.Errorf("intopt: %w", err)}
			return
		}

		status := enc.lp.MipStatus()
		if status != glpk.OPT && status != glpk.FEAS {
			done <- outcome{result: solver.ShardResult{Status: solver.StatusInfeasible}}
			return
		}

		result := enc.extract(m, status == glpk.OPT)
		done <- outcome{result: result}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return solver.ShardResult{}, o.err
		}
		if observer != nil && len(o.result.Assignments) > 0 {
			observer(solver.Incumbent{Objective: o.result.Objective, Assignments: o.result.Assignments})
		}
		return o.result, nil
	case <-time.After(budget):
		return solver.ShardResult{Status: solver.StatusUnknown, Notes: []string{"exact_backend_timeout"}}, nil
	case <-ctx.Done():
		return solver.ShardResult{Status: solver.StatusAborted}, nil
	}
}

type hoursSlack struct {
	withinPos, overPos int
	withinNeg, overNeg int
}

type encoded struct {
	lp          *glpk.LP
	varCol      []int // varCol[variableIndex] = glpk column
	slotSlack   map[string]int
	hoursByClin map[string]hoursSlack
}

func encode(m *modelbuilder.Model, scorer *modelbuilder.Scorer) (*encoded, error) {
	if len(m.Variables) == 0 {
		return nil, nil
	}

	lp := glpk.New()
	lp.SetProbName("radsched")
	lp.SetObjDir(glpk.ObjDir(glpk.MIN))

	enc := &encoded{lp: lp, varCol: make([]int, len(m.Variables)), slotSlack: make(map[string]int), hoursByClin: make(map[string]hoursSlack)}

	numCols := 0
	addBinary := func(name string) int {
		numCols++
		lp.AddCols(1)
		lp.SetColName(numCols, name)
		lp.SetColKind(numCols, glpk.VarType(glpk.BV))
		return numCols
	}
	addContinuous := func(name string, lo, hi float64) int {
		numCols++
		lp.AddCols(1)
		lp.SetColName(numCols, name)
		lp.SetColKind(numCols, glpk.VarType(glpk.CV))
		if hi > lo {
			lp.SetColBnds(numCols, glpk.BndsType(glpk.DB), lo, hi)
		} else {
			lp.SetColBnds(numCols, glpk.BndsType(glpk.LO), lo, 0)
		}
		return numCols
	}

	for i, v := range m.Variables {
		col := addBinary(fmt.Sprintf("x_%d_%s", i, v.ClinicianID))
		enc.varCol[i] = col
		lp.SetObjCoef(col, preferenceAndWindowCoef(scorer, v))
	}

	for _, sg := range m.SlotGroups {
		key := model.RuntimeKey(sg.Slot.RowID, sg.Slot.DateISO)
		slack := addContinuous("short_"+key, 0, float64(sg.RequiredCount))
		enc.slotSlack[key] = slack
		lp.SetObjCoef(slack, scorer.Weights.Coverage)
	}

	for id, c := range scorer.Clinicians {
		if c.WorkingHoursPerWeek == nil {
			continue
		}
		tol := c.EffectiveTolerance() * 60
		hs := hoursSlack{
			withinPos: addContinuous("hwp_"+id, 0, tol),
			overPos:   addContinuous("hop_"+id, 0, 1e9),
			withinNeg: addContinuous("hwn_"+id, 0, tol),
			overNeg:   addContinuous("hon_"+id, 0, 1e9),
		}
		lp.SetObjCoef(hs.overPos, scorer.Weights.Hours)
		lp.SetObjCoef(hs.overNeg, scorer.Weights.Hours)
		enc.hoursByClin[id] = hs
	}

	numRows := 0
	addRow := func(name string, boundsType glpk.BndsType, lo, hi float64, indices []int32, coeffs []float64) {
		numRows++
		lp.AddRows(1)
		lp.SetRowName(numRows, name)
		lp.SetRowBnds(numRows, boundsType, lo, hi)
		lp.SetMatRow(numRows, indices, coeffs)
	}

	// H1/H2: sum(x in group) + shortfall == RequiredCount when
	// only_fill_required, matching that mode's hard cap at RequiredCount;
	// otherwise distribute-all allows over-fill up to MaxCapacity (every
	// eligible free var), so the row only needs to bound shortfall from
	// below the sum, not pin it to RequiredCount exactly.
	for _, sg := range m.SlotGroups {
		key := model.RuntimeKey(sg.Slot.RowID, sg.Slot.DateISO)
		indices := make([]int32, 0, len(sg.VarIndices)+1)
		coeffs := make([]float64, 0, len(sg.VarIndices)+1)
		for _, idx := range sg.VarIndices {
			indices = append(indices, int32(enc.varCol[idx]))
			coeffs = append(coeffs, 1.0)
		}
		indices = append(indices, int32(enc.slotSlack[key]))
		coeffs = append(coeffs, 1.0)
		if m.OnlyFillRequired {
			addRow("cover_"+key, glpk.BndsType(glpk.FX), float64(sg.RequiredCount), float64(sg.RequiredCount), indices, coeffs)
		} else {
			addRow("cover_"+key, glpk.BndsType(glpk.LO), float64(sg.RequiredCount), 0, indices, coeffs)
		}
	}

	// H3: overlapping slots for the same clinician/day are mutually exclusive.
	for _, pair := range m.OverlapPairs {
		name := fmt.Sprintf("overlap_%d_%d", pair[0], pair[1])
		addRow(name, glpk.BndsType(glpk.UP), 0, 1.0,
			[]int32{int32(enc.varCol[pair[0]]), int32(enc.varCol[pair[1]])}, []float64{1.0, 1.0})
	}

	// H5: same-location-per-day, when enforced.
	if m.Settings.EnforceSameLocationPerDay {
		for _, pair := range m.LocationPairs {
			name := fmt.Sprintf("locex_%d_%d", pair[0], pair[1])
			addRow(name, glpk.BndsType(glpk.UP), 0, 1.0,
				[]int32{int32(enc.varCol[pair[0]]), int32(enc.varCol[pair[1]])}, []float64{1.0, 1.0})
		}
	}

	// H4: at most one shift per clinician/day unless multi-shift is allowed.
	if !m.Settings.AllowMultipleShiftsPerDay {
		for _, dg := range m.DayGroups {
			if len(dg.VarIndices) < 2 {
				continue
			}
			indices := make([]int32, 0, len(dg.VarIndices))
			coeffs := make([]float64, 0, len(dg.VarIndices))
			for _, idx := range dg.VarIndices {
				indices = append(indices, int32(enc.varCol[idx]))
				coeffs = append(coeffs, 1.0)
			}
			name := fmt.Sprintf("daycard_%s_%s", dg.ClinicianID, dg.DateISO)
			addRow(name, glpk.BndsType(glpk.UP), 0, 1.0, indices, coeffs)
		}
	}

	// S4: hours balance per clinician with a target.
	for id, hs := range enc.hoursByClin {
		indices := []int32{}
		coeffs := []float64{}
		for i, v := range m.Variables {
			if v.ClinicianID != id {
				continue
			}
			indices = append(indices, int32(enc.varCol[i]))
			coeffs = append(coeffs, v.Slot.Hours*60)
		}
		indices = append(indices, int32(hs.withinPos), int32(hs.overPos), int32(hs.withinNeg), int32(hs.overNeg))
		coeffs = append(coeffs, -1.0, -1.0, 1.0, 1.0)
		target := *scorer.Clinicians[id].WorkingHoursPerWeek * 60
		addRow("hours_"+id, glpk.BndsType(glpk.FX), target, target, indices, coeffs)
	}

	return enc, nil
}

// preferenceAndWindowCoef realizes S5/S6 as a direct per-variable
// objective coefficient: both are properties of the (clinician, slot)
// pair alone, so unlike S1/S4 they need no auxiliary row.
func preferenceAndWindowCoef(scorer *modelbuilder.Scorer, v modelbuilder.Variable) float64 {
	var coef float64
	c, ok := scorer.Clinicians[v.ClinicianID]
	if !ok {
		return 0
	}
	sectionID := v.Slot.Slot.BlockID
	if rank, preferred := c.PreferenceRank(sectionID); preferred {
		coef -= scorer.Weights.Preference / float64(rank+1)
	} else {
		coef += scorer.Weights.Preference
	}
	for _, w := range c.TimeWindows {
		if w.Kind != model.WindowPreferred || w.DayType != v.Slot.Slot.ColBand.DayType {
			continue
		}
		wStart, err1 := timeengine.ParseHHMM(w.StartHHMM)
		wEnd, err2 := timeengine.ParseHHMM(w.EndHHMM)
		if err1 != nil || err2 != nil {
			continue
		}
		outside := 0
		if v.Slot.Interval.Start < wStart {
			outside += wStart - v.Slot.Interval.Start
		}
		if v.Slot.Interval.End > wEnd {
			outside += v.Slot.Interval.End - wEnd
		}
		coef += scorer.Weights.Window * float64(outside)
	}
	return coef
}

func (enc *encoded) extract(m *modelbuilder.Model, optimal bool) solver.ShardResult {
	var assignments []model.Assignment
	seq := make(map[string]int)
	for i, v := range m.Variables {
		if enc.lp.MipColVal(enc.varCol[i]) > 0.5 {
			key := v.Slot.RowID + "|" + v.Slot.DateISO
			n := seq[key]
			seq[key] = n + 1
			a := model.Assignment{RowID: v.Slot.RowID, DateISO: v.Slot.DateISO, ClinicianID: v.ClinicianID, Seq: n}
			assignments = append(assignments, a.WithCanonicalID())
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].DateISO != assignments[j].DateISO {
			return assignments[i].DateISO < assignments[j].DateISO
		}
		if assignments[i].RowID != assignments[j].RowID {
			return assignments[i].RowID < assignments[j].RowID
		}
		return assignments[i].ClinicianID < assignments[j].ClinicianID
	})

	resultStatus := solver.StatusFeasible
	if optimal {
		resultStatus = solver.StatusOptimal
	}

	return solver.ShardResult{
		Status:         resultStatus,
		Assignments:    assignments,
		Objective:      enc.lp.MipObjVal(),
		IncumbentCount: 1,
	}
}
