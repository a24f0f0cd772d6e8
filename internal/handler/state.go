package handler

import (
	"net/http"

	"github.com/radsched/radsched/pkg/errors"
	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/normalize"
)

// StateResponse wraps the current snapshot plus its last normalization
// warnings, mirroring what a POST just applied.
type StateResponse struct {
	State    model.AppState `json:"state"`
	Warnings []string       `json:"warnings,omitempty"`
}

// State handles GET (read the current snapshot) and POST (normalize and
// persist a new one) for one user's state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getState(w, r)
	case http.MethodPost:
		h.postState(w, r)
	default:
		respondError(w, errors.New(errors.CodeInvalidInput, "method not allowed"))
	}
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	rec, err := h.Snapshots.Get(r.Context(), uid)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "failed to load state"))
		return
	}
	if rec == nil {
		respondError(w, errors.NotFound("state", uid))
		return
	}
	respondJSON(w, http.StatusOK, StateResponse{State: rec.State})
}

func (h *Handler) postState(w http.ResponseWriter, r *http.Request) {
	var state model.AppState
	if err := decodeJSON(r, &state); err != nil {
		respondError(w, err)
		return
	}

	normalized, warnings := normalize.Normalize(state)

	uid := userID(r)
	if err := h.Snapshots.Put(r.Context(), uid, normalized); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "failed to persist state"))
		return
	}

	respondJSON(w, http.StatusOK, StateResponse{State: normalized, Warnings: warnings})
}
