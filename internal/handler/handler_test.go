package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radsched/radsched/internal/config"
	"github.com/radsched/radsched/internal/repository"
	"github.com/radsched/radsched/pkg/model"
)

func testHandler() *Handler {
	return New(repository.NewInMemorySnapshotRepository(), config.SchedulerConfig{
		DefaultBackend: model.BackendHeuristic,
		ShardBudget:    time.Second,
		GlobalBudget:   5 * time.Second,
	})
}

func testState() model.AppState {
	return model.AppState{
		Clinicians: []model.Clinician{{ID: "c1", QualifiedClassIDs: []string{"MRI"}}},
		WeeklyTemplate: model.WeeklyTemplate{
			Version: 4,
			Blocks: []model.Section{
				{ID: "MRI", Kind: model.RowKindClass, LocationID: "loc-a", SubShifts: []model.SubShift{{ID: "s1", Ordinal: 1, Hours: 8}}},
			},
			Locations: []model.LocationTemplate{
				{
					LocationID: "loc-a",
					RowBands:   []model.RowBand{{ID: "r1"}},
					ColBands:   []model.ColBand{{ID: "mon", DayType: model.DayMon}},
					Slots: []model.TemplateSlot{
						{ID: "slot-mon", LocationID: "loc-a", RowBand: model.RowBand{ID: "r1"}, ColBand: model.ColBand{ID: "mon", DayType: model.DayMon}, BlockID: "MRI", SubShiftID: "s1", RequiredCount: 1, StartHHMM: "08:00", EndHHMM: "16:00"},
					},
				},
			},
		},
		SolverSettings: model.DefaultSolverSettings(),
	}
}

func TestHealthReturnsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	Health(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestVersionReturnsBuildInfo(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()
	Version(BuildInfo{Version: "1.2.3", GitCommit: "abc123"})(w, req)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "abc123", body["git_commit"])
}

func TestStatePostThenGetRoundTrips(t *testing.T) {
	h := testHandler()
	state := testState()
	body, _ := json.Marshal(state)

	postReq := httptest.NewRequest(http.MethodPost, "/state", bytes.NewReader(body))
	postReq.Header.Set("X-User-ID", "alice")
	postW := httptest.NewRecorder()
	h.State(postW, postReq)
	require.Equal(t, http.StatusOK, postW.Code, postW.Body.String())

	getReq := httptest.NewRequest(http.MethodGet, "/state", nil)
	getReq.Header.Set("X-User-ID", "alice")
	getW := httptest.NewRecorder()
	h.State(getW, getReq)
	require.Equal(t, http.StatusOK, getW.Code, getW.Body.String())

	var resp StateResponse
	require.NoError(t, json.NewDecoder(getW.Body).Decode(&resp))
	assert.Len(t, resp.State.Clinicians, 1)
}

func TestStateGetWithNoPriorPostReturnsNotFound(t *testing.T) {
	h := testHandler()
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("X-User-ID", "nobody")
	w := httptest.NewRecorder()
	h.State(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSolveWithoutPriorStateReturnsError(t *testing.T) {
	h := testHandler()
	body, _ := json.Marshal(SolveRequest{StartISO: "2026-01-05", EndISO: "2026-01-05"})
	req := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "bob")
	w := httptest.NewRecorder()
	h.Solve(w, req)

	assert.GreaterOrEqual(t, w.Code, 400)
}

func TestSolveFillsRequiredCoverage(t *testing.T) {
	h := testHandler()
	state := testState()
	stateBody, _ := json.Marshal(state)

	postReq := httptest.NewRequest(http.MethodPost, "/state", bytes.NewReader(stateBody))
	postReq.Header.Set("X-User-ID", "carol")
	h.State(httptest.NewRecorder(), postReq)

	solveBody, _ := json.Marshal(SolveRequest{StartISO: "2026-01-05", EndISO: "2026-01-05"})
	solveReq := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewReader(solveBody))
	solveReq.Header.Set("X-User-ID", "carol")
	w := httptest.NewRecorder()
	h.Solve(w, solveReq)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SolveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Assignments, 1)
	assert.NotEmpty(t, resp.DebugInfo.SolverStatus)
}

func TestSolveRejectsConcurrentRequestsForSameUser(t *testing.T) {
	h := testHandler()
	uid := "dave"
	require.True(t, h.tryAcquireSolve(uid))
	defer h.releaseSolve(uid)

	body, _ := json.Marshal(SolveRequest{StartISO: "2026-01-05", EndISO: "2026-01-05"})
	req := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewReader(body))
	req.Header.Set("X-User-ID", uid)
	w := httptest.NewRecorder()
	h.Solve(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSolveRejectsMalformedDates(t *testing.T) {
	h := testHandler()
	body := []byte(`{"startISO":"not-a-date","endISO":"2026-01-05"}`)
	req := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "erin")
	w := httptest.NewRecorder()
	h.Solve(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
