// Package handler implements the Transport/HTTP component: /solve,
// /solve/week, /state and the health/version endpoints.
package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/radsched/radsched/internal/config"
	"github.com/radsched/radsched/internal/repository"
	"github.com/radsched/radsched/pkg/errors"
	"github.com/radsched/radsched/pkg/logger"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Handler wires the HTTP surface to a snapshot store and the scheduler's
// default budgets, and enforces the per-user in-flight-solve cap.
type Handler struct {
	Snapshots repository.SnapshotRepositoryInterface
	Scheduler config.SchedulerConfig
	SolveLog  *logger.SolveLogger

	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

// New builds a Handler.
func New(snapshots repository.SnapshotRepositoryInterface, scheduler config.SchedulerConfig) *Handler {
	return &Handler{
		Snapshots: snapshots,
		Scheduler: scheduler,
		SolveLog:  logger.NewSolveLogger(),
		inFlight:  make(map[string]bool),
	}
}

// userID resolves the caller identity the per-user solve cap and snapshot
// store are keyed on. There is no auth layer in scope, so the header is
// trusted as-is; a deployment that needs real authentication terminates it
// upstream of this process.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

// tryAcquireSolve reports whether uid has no solve in flight and, if so,
// marks one as started. The caller must call releaseSolve when done.
func (h *Handler) tryAcquireSolve(uid string) bool {
	h.inFlightMu.Lock()
	defer h.inFlightMu.Unlock()
	if h.inFlight[uid] {
		return false
	}
	h.inFlight[uid] = true
	return true
}

func (h *Handler) releaseSolve(uid string) {
	h.inFlightMu.Lock()
	defer h.inFlightMu.Unlock()
	delete(h.inFlight, uid)
}

func decodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "malformed request body")
	}
	return nil
}

func validateStruct(v interface{}) *errors.AppError {
	if err := validate.Struct(v); err != nil {
		ve := &errors.ValidationErrors{}
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				ve.Add(fe.Field(), fe.Tag())
			}
		} else {
			ve.Add("_", err.Error())
		}
		return ve.ToAppError()
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}
