package httptransport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	jwttoken "lifeline/internal/jwt_token"
	unit "lifeline/internal/ledger/models"
	"lifeline/internal/request/models"
	request "lifeline/internal/request/service"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/requestcontext"
)

type paymentRequest struct {
	Amount        decimal.Decimal      `json:"amount"`
	Method        models.PaymentMethod `json:"method"`
	Status        models.PaymentStatus `json:"status"`
	UPIID         string               `json:"upi_id"`
	TransactionID string               `json:"transaction_id"`
	Note          string               `json:"note"`
}

func (p paymentRequest) input() request.PaymentInput {
	return request.PaymentInput{
		Amount:        p.Amount,
		Method:        p.Method,
		UPIID:         p.UPIID,
		TransactionID: p.TransactionID,
		Note:          p.Note,
	}
}

type createBloodRequest struct {
	RequesterName  string               `json:"requester_name"`
	RequesterType  models.RequesterType `json:"requester_type"`
	OrganizationID string               `json:"organization_id"`
	PatientName    string               `json:"patient_name"`
	BloodGroup     unit.BloodGroup      `json:"blood_group"`
	Component      unit.Component       `json:"component"`
	Quantity       int                  `json:"quantity"`
	Priority       models.Priority      `json:"priority"`
	Payment        *paymentRequest      `json:"payment"`
}

type statusRequest struct {
	Status           models.Status `json:"status"`
	Reason           string        `json:"reason"`
	DriverName       string        `json:"driver_name"`
	ContactNumber    string        `json:"contact_number"`
	VehicleNumber    string        `json:"vehicle_number"`
	EstimatedArrival string        `json:"estimated_arrival"`
	Notes            string        `json:"notes"`
}

type approvalResponse struct {
	Request      *models.Request `json:"request"`
	DeliveryCode string          `json:"delivery_code"`
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createBloodRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid blood request", err)
		return
	}
	in := request.CreateRequest{
		RequesterID:    requestcontext.ActorID(r.Context()),
		RequesterName:  body.RequesterName,
		RequesterType:  body.RequesterType,
		OrganizationID: body.OrganizationID,
		PatientName:    body.PatientName,
		BloodGroup:     body.BloodGroup,
		Component:      body.Component,
		Quantity:       body.Quantity,
		Priority:       body.Priority,
	}
	if body.Payment != nil {
		p := body.Payment.input()
		in.Payment = &p
	}
	created, err := h.requests.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "failed to create blood request", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListRequests lists requests. Requesters only ever see their own.
func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := limitFromQuery(r)
	if err != nil {
		h.fail(w, r, "invalid request filter", err)
		return
	}
	filter := models.Filter{
		Status:         models.Status(strings.TrimSpace(q.Get("status"))),
		OrganizationID: strings.TrimSpace(q.Get("organization_id")),
		BloodGroup:     unit.BloodGroup(strings.TrimSpace(q.Get("blood_group"))),
		Limit:          limit,
	}
	if actor := requestcontext.Actor(r.Context()); actor.Role == jwttoken.RoleRequester {
		filter.RequesterID = actor.ID
	}
	list, err := h.requests.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "failed to list blood requests", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": nonNil(list)})
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}
	found, err := h.requests.Get(r.Context(), requestID)
	if err != nil {
		h.fail(w, r, "failed to load blood request", err)
		return
	}
	if actor := requestcontext.Actor(r.Context()); actor.Role == jwttoken.RoleRequester && found.RequesterID != actor.ID {
		h.fail(w, r, "requester read another request", dErrors.New(dErrors.CodeNotFound, "request not found"))
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleUpdateStatus drives the request state machine. Completion is reached
// only through delivery code verification.
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body statusRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid status update", err)
		return
	}

	ctx := r.Context()
	switch body.Status {
	case models.StatusApproved:
		approval, err := h.requests.Approve(ctx, requestID, request.DeliveryInput{
			DriverName:       body.DriverName,
			ContactNumber:    body.ContactNumber,
			VehicleNumber:    body.VehicleNumber,
			EstimatedArrival: body.EstimatedArrival,
			Notes:            body.Notes,
		})
		if err != nil {
			h.fail(w, r, "failed to approve blood request", err)
			return
		}
		writeJSON(w, http.StatusOK, approvalResponse{Request: approval.Request, DeliveryCode: approval.Code})
	case models.StatusRejected:
		updated, err := h.requests.Reject(ctx, requestID, body.Reason)
		if err != nil {
			h.fail(w, r, "failed to reject blood request", err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case models.StatusPending:
		updated, err := h.requests.Reopen(ctx, requestID)
		if err != nil {
			h.fail(w, r, "failed to reopen blood request", err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case models.StatusCompleted:
		h.fail(w, r, "completion requested through status update",
			dErrors.New(dErrors.CodeInvalidTransition, "requests complete only by delivery code verification"))
	default:
		h.fail(w, r, "unknown target status",
			dErrors.New(dErrors.CodeValidation, "status must be approved, rejected or pending"))
	}
}

// handleUpdatePayment submits payment details. A body with status Verified is
// the blood bank confirming receipt.
func (h *Handler) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body paymentRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid payment update", err)
		return
	}

	ctx := r.Context()
	if body.Status == models.PaymentStatusVerified {
		if role := requestcontext.Actor(ctx).Role; role != jwttoken.RoleBloodBank && role != jwttoken.RoleAdmin {
			h.fail(w, r, "payment verification by non-bank actor",
				dErrors.New(dErrors.CodeForbidden, "only the blood bank verifies payments"))
			return
		}
		updated, err := h.requests.VerifyPayment(ctx, requestID)
		if err != nil {
			h.fail(w, r, "failed to verify payment", err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return
	}

	updated, err := h.requests.SubmitPayment(ctx, requestID, body.input())
	if err != nil {
		h.fail(w, r, "failed to submit payment", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body verifyCodeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid verification request", err)
		return
	}
	completed, err := h.requests.VerifyDelivery(r.Context(), requestID, body.Code)
	if err != nil {
		h.fail(w, r, "delivery verification failed", err)
		return
	}
	writeJSON(w, http.StatusOK, completed.Public())
}

func (h *Handler) handlePublicDetails(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}
	view, err := h.requests.PublicDetails(r.Context(), requestID)
	if err != nil {
		h.fail(w, r, "failed to load public request details", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body locationRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "invalid location update", err)
		return
	}
	if body.Lat == nil || body.Lng == nil {
		h.fail(w, r, "invalid location update", dErrors.New(dErrors.CodeValidation, "lat and lng are required"))
		return
	}
	started, err := h.requests.RecordLocation(r.Context(), requestID, *body.Lat, *body.Lng)
	if err != nil {
		h.fail(w, r, "failed to record location", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"tracking_started": started})
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (id.RequestID, bool) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid request id", err)
		return id.RequestID{}, false
	}
	return requestID, true
}
