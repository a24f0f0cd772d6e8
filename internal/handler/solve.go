package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/radsched/radsched/internal/metrics"
	"github.com/radsched/radsched/pkg/errors"
	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/calendar"
	"github.com/radsched/radsched/pkg/radsched/diagnostics"
	"github.com/radsched/radsched/pkg/radsched/extractor"
	"github.com/radsched/radsched/pkg/radsched/solver"
	"github.com/radsched/radsched/pkg/radsched/solver/exact"
	"github.com/radsched/radsched/pkg/radsched/solver/heuristic"
)

// SolveRequest is the boundary-level solve request (spec §6).
type SolveRequest struct {
	StartISO         string `json:"startISO" validate:"required,datetime=2006-01-02"`
	EndISO           string `json:"endISO" validate:"required,datetime=2006-01-02"`
	OnlyFillRequired bool   `json:"only_fill_required"`
	AbortToken       string `json:"abort_token,omitempty"`
}

// SolveResponse is the boundary-level solve response (spec §6).
type SolveResponse struct {
	Assignments []model.Assignment `json:"assignments"`
	Notes       []string           `json:"notes"`
	DebugInfo   DebugInfoDTO       `json:"debugInfo"`
}

// DebugInfoDTO renders solver.DebugInfo in the wire's snake_case shape.
type DebugInfoDTO struct {
	SolverStatus    string              `json:"solver_status"`
	TimeMs          int64               `json:"time_ms"`
	SolutionCount   int                 `json:"solution_count"`
	Uncovered       []UncoveredSlotDTO  `json:"uncovered"`
	HoursViolations []HoursViolationDTO `json:"hours_violations"`
}

// UncoveredSlotDTO is the wire shape of solver.UncoveredSlot.
type UncoveredSlotDTO struct {
	DateISO string `json:"dateISO"`
	RowID   string `json:"rowId"`
	Missing int    `json:"missing"`
}

// HoursViolationDTO is the wire shape of solver.HoursViolation.
type HoursViolationDTO struct {
	ClinicianID      string  `json:"clinicianId"`
	AssignedMinutes  float64 `json:"assignedMinutes"`
	TargetMinutes    float64 `json:"targetMinutes"`
	DeviationMinutes float64 `json:"deviationMinutes"`
}

// IncumbentEvent is one live-solution callback event (spec §6).
type IncumbentEvent struct {
	SolutionNum int                 `json:"solution_num"`
	TimeMs      int64               `json:"time_ms"`
	Objective   int                 `json:"objective"`
	Assignments []model.Assignment `json:"assignments"`
}

func toDebugInfoDTO(info solver.DebugInfo) DebugInfoDTO {
	dto := DebugInfoDTO{
		SolverStatus:  string(info.SolverStatus),
		TimeMs:        info.TimeMs,
		SolutionCount: info.SolutionCount,
	}
	for _, u := range info.Uncovered {
		dto.Uncovered = append(dto.Uncovered, UncoveredSlotDTO{DateISO: u.DateISO, RowID: u.RowID, Missing: u.Missing})
	}
	for _, hv := range info.HoursViolation {
		dto.HoursViolations = append(dto.HoursViolations, HoursViolationDTO{
			ClinicianID:      hv.ClinicianID,
			AssignedMinutes:  hv.AssignedMinutes,
			TargetMinutes:    hv.TargetMinutes,
			DeviationMinutes: hv.DeviationMinutes,
		})
	}
	return dto
}

func backendFor(state model.AppState, defaultBackend model.SolverBackend) solver.Backend {
	name := state.SolverSettings.Backend
	if name == "" {
		name = defaultBackend
	}
	if name == model.BackendExact {
		return exact.New()
	}
	return heuristic.New(nil)
}

// abortRegistry maps (user, abortToken) to the cancel func of the solve
// that registered it; registering a key that is already held cancels the
// earlier holder. A user's second request is rejected by tryAcquireSolve
// while that user's first solve is still running, before its token is
// registered, so a repeated request does not cancel a running solve: a
// running solve is cancelled only when its own request context ends.
// There is no separate /abort endpoint.
var (
	abortMu       sync.Mutex
	abortCancelBy = make(map[string]context.CancelFunc)
)

func registerAbortToken(uid, token string, cancel context.CancelFunc) (release func()) {
	if token == "" {
		return func() {}
	}
	key := uid + "|" + token
	abortMu.Lock()
	if prior, ok := abortCancelBy[key]; ok {
		prior()
	}
	abortCancelBy[key] = cancel
	abortMu.Unlock()
	return func() {
		abortMu.Lock()
		delete(abortCancelBy, key)
		abortMu.Unlock()
	}
}

func (h *Handler) loadState(r *http.Request, uid string) (model.AppState, *errors.AppError) {
	rec, err := h.Snapshots.Get(r.Context(), uid)
	if err != nil {
		return model.AppState{}, errors.Wrap(err, errors.CodeDatabaseError, "failed to load state")
	}
	if rec == nil {
		return model.AppState{}, errors.New(errors.CodeInvalidInput, "no state configured; POST /state first")
	}
	return rec.State, nil
}

func (h *Handler) runSolve(ctx context.Context, state model.AppState, req SolveRequest, observer solver.Observer) (solver.Result, error) {
	backend := backendFor(state, h.Scheduler.DefaultBackend)
	driver := solver.NewDriver(backend, h.Scheduler.ShardBudget, h.Scheduler.GlobalBudget)

	driverReq := solver.Request{
		StartISO:         req.StartISO,
		EndISO:           req.EndISO,
		OnlyFillRequired: req.OnlyFillRequired,
		AbortToken:       req.AbortToken,
	}

	result, err := driver.Solve(ctx, state, driverReq, observer)
	if err != nil {
		return result, err
	}

	manual := manualInRange(state.Assignments, req.StartISO, req.EndISO)
	result.Assignments = extractor.Extract(manual, result.Assignments)

	slots, clinicians := h.recomputeSlotsAndClinicians(state, req.StartISO, req.EndISO)
	debug := diagnostics.Build(slots, clinicians, result.Assignments)
	debug.SolverStatus = result.DebugInfo.SolverStatus
	debug.TimeMs = result.DebugInfo.TimeMs
	debug.SolutionCount = result.DebugInfo.SolutionCount
	result.DebugInfo = debug

	return result, nil
}

func (h *Handler) recomputeSlotsAndClinicians(state model.AppState, startISO, endISO string) ([]calendar.SlotInstance, []model.Clinician) {
	overrides := make(map[string]int, len(state.SlotOverridesByKey))
	for k, v := range state.SlotOverridesByKey {
		overrides[k] = v
	}
	clinicians := append([]model.Clinician{}, state.Clinicians...)
	clinicians, _ = calendar.ExpandRecurringOverrides(state.RecurringOverrides, clinicians, startISO, endISO, overrides)

	projector := calendar.NewProjector(state.WeeklyTemplate, state.Holidays, overrides)
	slots, _ := projector.Project(startISO, endISO)
	return slots, clinicians
}

func manualInRange(assignments []model.Assignment, startISO, endISO string) []model.Assignment {
	var out []model.Assignment
	for _, a := range assignments {
		if a.Manual && a.DateISO >= startISO && a.DateISO <= endISO {
			out = append(out, a)
		}
	}
	return out
}

// Solve handles POST /solve: blocks until the solve reaches a terminal
// status and returns the final response.
func (h *Handler) Solve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "method not allowed"))
		return
	}

	var req SolveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		respondError(w, err)
		return
	}

	uid := userID(r)
	if !h.tryAcquireSolve(uid) {
		respondError(w, errors.ConflictingSolve(uid))
		return
	}
	defer h.releaseSolve(uid)

	state, appErr := h.loadState(r, uid)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	release := registerAbortToken(uid, req.AbortToken, cancel)
	defer release()

	start := time.Now()
	stopSolve := metrics.SolveStarted()
	defer stopSolve()

	result, err := h.runSolve(ctx, state, req, nil)
	duration := time.Since(start)
	metrics.RecordSolve(string(backendNameOf(state, h.Scheduler.DefaultBackend)), string(result.DebugInfo.SolverStatus), duration)

	if err != nil {
		h.SolveLog.SolveComplete(uid, "ERROR", duration, 0, 0)
		respondError(w, errors.Wrap(err, errors.CodeBackendError, "solve failed"))
		return
	}

	h.SolveLog.SolveComplete(uid, string(result.DebugInfo.SolverStatus), duration, 0, len(result.Assignments))

	respondJSON(w, http.StatusOK, SolveResponse{
		Assignments: result.Assignments,
		Notes:       result.Notes,
		DebugInfo:   toDebugInfoDTO(result.DebugInfo),
	})
}

// SolveWeek handles POST /solve/week. When the client sends
// `Accept: text/event-stream`, incumbents stream as SSE frames as they
// arrive; otherwise it behaves exactly like Solve.
func (h *Handler) SolveWeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "method not allowed"))
		return
	}

	var req SolveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		respondError(w, err)
		return
	}

	uid := userID(r)
	if !h.tryAcquireSolve(uid) {
		respondError(w, errors.ConflictingSolve(uid))
		return
	}
	defer h.releaseSolve(uid)

	state, appErr := h.loadState(r, uid)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	release := registerAbortToken(uid, req.AbortToken, cancel)
	defer release()

	if r.Header.Get("Accept") == "text/event-stream" {
		h.solveWeekSSE(w, r, ctx, uid, state, req)
		return
	}

	start := time.Now()
	stopSolve := metrics.SolveStarted()
	defer stopSolve()

	result, err := h.runSolve(ctx, state, req, nil)
	duration := time.Since(start)
	metrics.RecordSolve(string(backendNameOf(state, h.Scheduler.DefaultBackend)), string(result.DebugInfo.SolverStatus), duration)

	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeBackendError, "solve failed"))
		return
	}

	respondJSON(w, http.StatusOK, SolveResponse{
		Assignments: result.Assignments,
		Notes:       result.Notes,
		DebugInfo:   toDebugInfoDTO(result.DebugInfo),
	})
}

func (h *Handler) solveWeekSSE(w http.ResponseWriter, r *http.Request, ctx context.Context, uid string, state model.AppState, req SolveRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, errors.New(errors.CodeInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	writeEvent := func(inc solver.Incumbent) bool {
		metrics.RecordIncumbent(string(backendNameOf(state, h.Scheduler.DefaultBackend)))
		fmt.Fprint(w, "data: ")
		enc.Encode(IncumbentEvent{
			SolutionNum: inc.SolutionNum,
			TimeMs:      inc.TimeMs,
			Objective:   int(inc.Objective),
			Assignments: inc.Assignments,
		})
		fmt.Fprint(w, "\n")
		flusher.Flush()
		select {
		case <-r.Context().Done():
			return true
		default:
			return false
		}
	}

	start := time.Now()
	stopSolve := metrics.SolveStarted()
	defer stopSolve()

	result, err := h.runSolve(ctx, state, req, writeEvent)
	duration := time.Since(start)
	metrics.RecordSolve(string(backendNameOf(state, h.Scheduler.DefaultBackend)), string(result.DebugInfo.SolverStatus), duration)

	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "event: complete\ndata: ")
	enc.Encode(SolveResponse{
		Assignments: result.Assignments,
		Notes:       result.Notes,
		DebugInfo:   toDebugInfoDTO(result.DebugInfo),
	})
	fmt.Fprint(w, "\n\n")
	flusher.Flush()
}

func backendNameOf(state model.AppState, defaultBackend model.SolverBackend) model.SolverBackend {
	if state.SolverSettings.Backend != "" {
		return state.SolverSettings.Backend
	}
	return defaultBackend
}
