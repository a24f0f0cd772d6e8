// Package heuristic implements the default Solver Driver backend: a
// simulated-annealing/tabu local search over the Model's boolean decision
// variables, genuinely streaming every improving incumbent it finds.
package heuristic

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/modelbuilder"
	"github.com/radsched/radsched/pkg/radsched/solver"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

// Config tunes the local search. Field names and defaults mirror the
// simulated-annealing/tabu optimizer this backend is adapted from.
type Config struct {
	MaxIterations    int
	InitialTemp      float64
	CoolingRate      float64
	TabuSize         int
	NeighborhoodSize int
	StopOnPlateau    bool
	PlateauThreshold int
}

// DefaultConfig returns the tuning used when the caller does not override it.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    2000,
		InitialTemp:      100.0,
		CoolingRate:      0.99,
		TabuSize:         100,
		NeighborhoodSize: 24,
		StopOnPlateau:    true,
		PlateauThreshold: 300,
	}
}

// Backend is the heuristic solver.Backend implementation.
type Backend struct {
	Config Config
	rng    *rand.Rand
}

// New builds a heuristic Backend with cfg, or DefaultConfig if cfg is nil.
func New(cfg *Config) *Backend {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	return &Backend{Config: c, rng: rand.New(rand.NewSource(1))}
}

// Name identifies the backend for diagnostics and config selection.
func (b *Backend) Name() string { return "heuristic" }

// solution is a candidate assignment set: chosen[i] is true when
// Model.Variables[i] is selected.
type solution struct {
	chosen []bool
	score  float64
	notes  []string
	hardOK bool
}

func (s *solution) clone() *solution {
	c := &solution{chosen: append([]bool{}, s.chosen...), score: s.score, hardOK: s.hardOK}
	c.notes = append([]string{}, s.notes...)
	return c
}

// Solve runs simulated annealing with tabu-list move rejection over
// budget, streaming every improving incumbent to observer. When observer
// requests a stop or ctx is cancelled, it returns the best solution found
// so far with status ABORTED.
func (b *Backend) Solve(ctx context.Context, m *modelbuilder.Model, scorer *modelbuilder.Scorer, budget time.Duration, observer solver.Observer) (solver.ShardResult, error) {
	start := time.Now()
	deadline := start.Add(budget)

	current := b.greedyInitial(m, scorer)
	best := current.clone()

	tabu := newTabuList(b.Config.TabuSize)
	temperature := b.Config.InitialTemp
	noImprovement := 0
	incumbents := 0

	if observer != nil {
		observer(toIncumbent(m, best, time.Since(start)))
		incumbents++
	}

	for i := 0; i < b.Config.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return finish(m, best, incumbents, solver.StatusAborted), nil
		default:
		}
		if time.Now().After(deadline) {
			break
		}

		neighbor, moveKey := b.bestNeighbor(m, scorer, current, b.Config.NeighborhoodSize)
		if neighbor == nil {
			continue
		}

		accept := false
		if neighbor.score < current.score {
			accept = true
		} else if !tabu.contains(moveKey) {
			delta := neighbor.score - current.score
			if b.rng.Float64() < boltzmannProbability(delta, temperature) {
				accept = true
			}
		}

		if accept {
			current = neighbor
			tabu.add(moveKey)
			if current.score < best.score {
				best = current.clone()
				noImprovement = 0
				if observer != nil {
					stop := observer(toIncumbent(m, best, time.Since(start)))
					incumbents++
					if stop {
						return finish(m, best, incumbents, solver.StatusAborted), nil
					}
				}
			} else {
				noImprovement++
			}
		} else {
			noImprovement++
		}

		if b.Config.StopOnPlateau && noImprovement >= b.Config.PlateauThreshold {
			break
		}
		temperature *= b.Config.CoolingRate
	}

	status := solver.StatusFeasible
	if best.hardOK && isFullyCovered(m, best) {
		status = solver.StatusOptimal
	}
	return finish(m, best, incumbents, status), nil
}

func finish(m *modelbuilder.Model, best *solution, incumbents int, status solver.Status) solver.ShardResult {
	return solver.ShardResult{
		Status:         status,
		Assignments:    toAssignments(m, best),
		Objective:      best.score,
		IncumbentCount: incumbents,
		Notes:          best.notes,
	}
}

func isFullyCovered(m *modelbuilder.Model, s *solution) bool {
	filled := make(map[string]int)
	for i, on := range s.chosen {
		if !on {
			continue
		}
		v := m.Variables[i]
		filled[model.RuntimeKey(v.Slot.RowID, v.Slot.DateISO)]++
	}
	for _, sg := range m.SlotGroups {
		key := model.RuntimeKey(sg.Slot.RowID, sg.Slot.DateISO)
		if filled[key] < sg.RequiredCount {
			return false
		}
	}
	return true
}

func toIncumbent(m *modelbuilder.Model, s *solution, elapsed time.Duration) solver.Incumbent {
	return solver.Incumbent{
		TimeMs:      elapsed.Milliseconds(),
		Objective:   s.score,
		Assignments: toAssignments(m, s),
	}
}

func toAssignments(m *modelbuilder.Model, s *solution) []model.Assignment {
	var out []model.Assignment
	seq := make(map[string]int)
	for i, on := range s.chosen {
		if !on {
			continue
		}
		v := m.Variables[i]
		n := seq[v.Slot.RowID+"|"+v.Slot.DateISO]
		seq[v.Slot.RowID+"|"+v.Slot.DateISO] = n + 1
		a := model.Assignment{RowID: v.Slot.RowID, DateISO: v.Slot.DateISO, ClinicianID: v.ClinicianID, Seq: n}
		out = append(out, a.WithCanonicalID())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DateISO != out[j].DateISO {
			return out[i].DateISO < out[j].DateISO
		}
		if out[i].RowID != out[j].RowID {
			return out[i].RowID < out[j].RowID
		}
		return out[i].ClinicianID < out[j].ClinicianID
	})
	return out
}

// greedyInitial seeds the search by filling each SlotGroup up to its
// effective cap (RequiredCount, or lower if MaxCapacity binds under
// only_fill_required) with the first eligible candidate that doesn't
// already conflict with what that clinician holds that day, then scores
// the result.
func (b *Backend) greedyInitial(m *modelbuilder.Model, scorer *modelbuilder.Scorer) *solution {
	chosen := make([]bool, len(m.Variables))
	busyDay := make(map[string]bool)
	busyIntervals := make(map[string][]timeengine.Interval)
	dayLocation := make(map[string]string)

	for _, sg := range m.SlotGroups {
		need := sg.RequiredCount
		if sg.MaxCapacity < need {
			need = sg.MaxCapacity
		}
		for _, idx := range sg.VarIndices {
			if need <= 0 {
				break
			}
			v := m.Variables[idx]
			dayKey := v.ClinicianID + "|" + v.Slot.DateISO
			if !m.Settings.AllowMultipleShiftsPerDay && busyDay[dayKey] {
				continue
			}
			if overlapsAny(busyIntervals[dayKey], v.Slot.Interval) {
				continue
			}
			if m.Settings.EnforceSameLocationPerDay {
				if loc, ok := dayLocation[dayKey]; ok && loc != v.Slot.LocationID {
					continue
				}
			}
			chosen[idx] = true
			busyDay[dayKey] = true
			busyIntervals[dayKey] = append(busyIntervals[dayKey], v.Slot.Interval)
			dayLocation[dayKey] = v.Slot.LocationID
			need--
		}
	}

	penalty, notes, hardOK := scorer.Score(toAssignments(m, &solution{chosen: chosen}))
	return &solution{chosen: chosen, score: penalty, notes: notes, hardOK: hardOK}
}

func overlapsAny(existing []timeengine.Interval, iv timeengine.Interval) bool {
	for _, e := range existing {
		if e.Overlaps(iv) {
			return true
		}
	}
	return false
}

// bestNeighbor generates `count` candidate moves and returns the one with
// the lowest score, along with a key identifying the move for the tabu
// list.
func (b *Backend) bestNeighbor(m *modelbuilder.Model, scorer *modelbuilder.Scorer, current *solution, count int) (*solution, uint64) {
	if len(m.Variables) == 0 {
		return nil, 0
	}
	var best *solution
	var bestKey uint64
	bestScore := math.Inf(1)

	for i := 0; i < count; i++ {
		neighbor, key := b.moveOnce(m, current)
		if neighbor == nil {
			continue
		}
		penalty, notes, hardOK := scorer.Score(toAssignments(m, neighbor))
		neighbor.score = penalty
		neighbor.notes = notes
		neighbor.hardOK = hardOK
		if penalty < bestScore {
			best = neighbor
			bestScore = penalty
			bestKey = key
		}
	}
	return best, bestKey
}

// moveOnce applies one randomly chosen move: toggle a variable on/off,
// swap two clinicians' assignments for the same slot group, or relocate a
// clinician from one slot group to an alternative eligible slot group on
// the same day.
func (b *Backend) moveOnce(m *modelbuilder.Model, current *solution) (*solution, uint64) {
	r := b.rng.Float64()
	switch {
	case r < 0.4:
		return b.toggleMove(m, current)
	case r < 0.75:
		return b.swapMove(m, current)
	default:
		return b.relocateMove(m, current)
	}
}

func (b *Backend) toggleMove(m *modelbuilder.Model, current *solution) (*solution, uint64) {
	idx := b.rng.Intn(len(m.Variables))
	next := current.clone()
	next.chosen[idx] = !next.chosen[idx]
	return next, moveHash(idx, -1)
}

func (b *Backend) swapMove(m *modelbuilder.Model, current *solution) (*solution, uint64) {
	on := onIndices(current.chosen)
	if len(on) < 2 {
		return b.toggleMove(m, current)
	}
	i := on[b.rng.Intn(len(on))]
	j := on[b.rng.Intn(len(on))]
	if i == j {
		return b.toggleMove(m, current)
	}
	vi, vj := m.Variables[i], m.Variables[j]
	if vi.Slot.RowID == vj.Slot.RowID && vi.Slot.DateISO == vj.Slot.DateISO {
		return b.toggleMove(m, current)
	}
	next := current.clone()
	next.chosen[i], next.chosen[j] = next.chosen[j], next.chosen[i]
	return next, moveHash(i, j)
}

func (b *Backend) relocateMove(m *modelbuilder.Model, current *solution) (*solution, uint64) {
	on := onIndices(current.chosen)
	if len(on) == 0 {
		return b.toggleMove(m, current)
	}
	from := on[b.rng.Intn(len(on))]
	v := m.Variables[from]

	var candidates []int
	for i, other := range m.Variables {
		if other.ClinicianID == v.ClinicianID && !current.chosen[i] && i != from {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return b.toggleMove(m, current)
	}
	to := candidates[b.rng.Intn(len(candidates))]

	next := current.clone()
	next.chosen[from] = false
	next.chosen[to] = true
	return next, moveHash(from, to)
}

func onIndices(chosen []bool) []int {
	var out []int
	for i, on := range chosen {
		if on {
			out = append(out, i)
		}
	}
	return out
}

func moveHash(a, b int) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(uint32(b))
}

func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	return math.Exp(-delta / temperature)
}

type tabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
}

func newTabuList(size int) *tabuList {
	return &tabuList{items: make(map[uint64]struct{}), maxSize: size}
}

func (t *tabuList) add(key uint64) {
	if _, ok := t.items[key]; ok {
		return
	}
	if len(t.order) >= t.maxSize && t.maxSize > 0 {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}
	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

func (t *tabuList) contains(key uint64) bool {
	_, ok := t.items[key]
	return ok
}
