package httptransport

import (
	"net/http"

	unit "lifeline/internal/ledger/models"
	id "lifeline/pkg/domain"
)

type testResultsRequest struct {
	UnitID  string                `json:"unit_id"`
	Results unit.ScreeningResults `json:"results"`
}

type separateRequest struct {
	UnitID     string           `json:"unit_id"`
	Components []unit.Component `json:"components"`
}

func (h *Handler) handleUntested(w http.ResponseWriter, r *http.Request) {
	units, err := h.lab.PendingScreening(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list untested units", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": nonNil(units)})
}

func (h *Handler) handleSeparable(w http.ResponseWriter, r *http.Request) {
	units, err := h.lab.Separable(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list separable units", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": nonNil(units)})
}

func (h *Handler) handleTestResults(w http.ResponseWriter, r *http.Request) {
	var body testResultsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid test results request", err)
		return
	}
	unitID, err := id.ParseUnitID(body.UnitID)
	if err != nil {
		h.fail(w, r, "invalid unit id", err)
		return
	}
	u, err := h.lab.RecordTestResults(r.Context(), unitID, body.Results)
	if err != nil {
		h.fail(w, r, "failed to record test results", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleSeparate(w http.ResponseWriter, r *http.Request) {
	var body separateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid separation request", err)
		return
	}
	parentID, err := id.ParseUnitID(body.UnitID)
	if err != nil {
		h.fail(w, r, "invalid unit id", err)
		return
	}
	children, err := h.separation.Separate(r.Context(), parentID, body.Components)
	if err != nil {
		h.fail(w, r, "failed to separate unit", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"parent_id":  parentID,
		"components": children,
	})
}
