package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	unit "lifeline/internal/ledger/models"
	ledger "lifeline/internal/ledger/service"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
)

// Handler is the thin HTTP layer. It decodes input, calls one service
// operation and encodes the result.
type Handler struct {
	inventory  InventoryService
	lab        LabService
	separation SeparationService
	requests   RequestService
	logger     *slog.Logger
}

func NewHandler(
	inventory InventoryService,
	lab LabService,
	separation SeparationService,
	requests RequestService,
	logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		inventory:  inventory,
		lab:        lab,
		separation: separation,
		requests:   requests,
		logger:     logger,
	}
}

type createUnitRequest struct {
	ID          string          `json:"id"`
	BloodGroup  unit.BloodGroup `json:"blood_group"`
	Component   unit.Component  `json:"component"`
	Quantity    int             `json:"quantity"`
	VolumeML    int             `json:"volume_ml"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Location    string          `json:"location"`
	DonorID     string          `json:"donor_id"`
	Prescreened bool            `json:"prescreened"`
}

func (h *Handler) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	var body createUnitRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid intake request", err)
		return
	}
	u, err := h.inventory.Create(r.Context(), ledger.CreateUnitRequest{
		ID:          body.ID,
		BloodGroup:  body.BloodGroup,
		Component:   body.Component,
		Quantity:    body.Quantity,
		VolumeML:    body.VolumeML,
		ExpiresAt:   body.ExpiresAt,
		Location:    body.Location,
		DonorID:     body.DonorID,
		Prescreened: body.Prescreened,
	})
	if err != nil {
		h.fail(w, r, "failed to register unit", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleListUnits(w http.ResponseWriter, r *http.Request) {
	filter, err := unitFilterFromQuery(r)
	if err != nil {
		h.fail(w, r, "invalid inventory filter", err)
		return
	}
	units, err := h.inventory.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "failed to list units", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": nonNil(units)})
}

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid unit id", err)
		return
	}
	lineage, err := h.inventory.Lineage(r.Context(), unitID)
	if err != nil {
		h.fail(w, r, "failed to load unit", err)
		return
	}
	writeJSON(w, http.StatusOK, lineage)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	levels, err := h.inventory.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "failed to aggregate stock", err)
		return
	}
	byGroup := make(map[unit.BloodGroup]int)
	for _, l := range levels {
		byGroup[l.BloodGroup] += l.Quantity
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"levels":   nonNil(levels),
		"by_group": byGroup,
	})
}

func unitFilterFromQuery(r *http.Request) (unit.UnitFilter, error) {
	q := r.URL.Query()
	filter := unit.UnitFilter{
		BloodGroup: unit.BloodGroup(strings.TrimSpace(q.Get("blood_group"))),
		Component:  unit.Component(strings.TrimSpace(q.Get("component"))),
		Status:     unit.Status(strings.TrimSpace(q.Get("status"))),
		DonorID:    strings.TrimSpace(q.Get("donor_id")),
	}
	if raw := strings.TrimSpace(q.Get("tested")); raw != "" {
		tested, err := strconv.ParseBool(raw)
		if err != nil {
			return unit.UnitFilter{}, dErrors.New(dErrors.CodeBadRequest, "tested must be true or false")
		}
		filter.Tested = &tested
	}
	limit, err := limitFromQuery(r)
	if err != nil {
		return unit.UnitFilter{}, err
	}
	filter.Limit = limit
	return filter, nil
}

func limitFromQuery(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer")
	}
	return limit, nil
}

// nonNil keeps empty collections encoding as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
