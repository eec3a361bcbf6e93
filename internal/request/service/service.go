// Package service runs the blood request workflow: creation, approval against
// reserved stock, rejection and reopening, delivery confirmation by one-time
// code, live-tracking start, and payment bookkeeping.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	unit "lifeline/internal/ledger/models"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/request/models"
	"lifeline/internal/request/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/events"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
	"lifeline/pkg/secrets"
)

// RejectReasonTimeout marks requests rejected by ExpireStaleReservations.
const RejectReasonTimeout = "reservation_timeout"

type Service struct {
	store    store.Transactional
	reserver Reserver
	latch    TrackingLatch
	sink     events.Sink
	hasher   *secrets.Hasher
	generate func() (string, error)
	holdTTL  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventSink(sink events.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithTrackingLatch short-circuits repeat location pings before they reach the store.
func WithTrackingLatch(l TrackingLatch) Option {
	return func(s *Service) {
		s.latch = l
	}
}

func WithHasher(h *secrets.Hasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

// WithCodeGenerator replaces the random delivery code source.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		s.generate = fn
	}
}

// WithReservationHoldTTL enables ExpireStaleReservations. Zero disables it.
func WithReservationHoldTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.holdTTL = ttl
	}
}

func New(st store.Transactional, reserver Reserver, opts ...Option) *Service {
	s := &Service{
		store:    st,
		reserver: reserver,
		sink:     events.Discard{},
		hasher:   secrets.NewHasher(0),
		generate: secrets.GenerateCode,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PaymentInput is the payment sub-record submitted with or after a request.
type PaymentInput struct {
	Amount        decimal.Decimal
	Method        models.PaymentMethod
	UPIID         string
	TransactionID string
	Note          string
}

type CreateRequest struct {
	RequesterID    string
	RequesterName  string
	RequesterType  models.RequesterType
	OrganizationID string
	PatientName    string
	BloodGroup     unit.BloodGroup
	Component      unit.Component
	Quantity       int
	Priority       models.Priority
	Payment        *PaymentInput
}

// Create registers a pending request.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Request, error) {
	r, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	err = s.store.RunInTx(ctx, func(txCtx context.Context, st store.Store) error {
		if err := st.Create(txCtx, r); err != nil {
			return err
		}
		return s.emit(txCtx, events.KindRequestCreated, r, "", string(r.Status), map[string]string{
			"blood_group": string(r.BloodGroup),
			"component":   string(r.Component),
			"priority":    string(r.Priority),
		})
	})
	if err != nil {
		return nil, translate(err, "failed to create request")
	}
	s.logger.InfoContext(ctx, "blood request created",
		"blood_request_id", r.ID.String(),
		"blood_group", string(r.BloodGroup),
		"component", string(r.Component),
		"quantity", r.Quantity,
		"priority", string(r.Priority),
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

func (s *Service) build(ctx context.Context, req CreateRequest) (*models.Request, error) {
	if !req.BloodGroup.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "blood group is missing or invalid")
	}
	if !req.Component.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "component is missing or invalid")
	}
	if req.Quantity < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	patient := strings.TrimSpace(req.PatientName)
	if patient == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "patient name is required")
	}
	requester := strings.TrimSpace(req.RequesterName)
	if requester == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requester name is required")
	}
	requesterType := req.RequesterType
	if requesterType == "" {
		requesterType = models.RequesterHospital
	}
	if !requesterType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "requester type must be Hospital, Clinic or Individual")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "priority must be Urgent or Normal")
	}
	payment := models.Payment{Method: models.PaymentPending, Status: models.PaymentStatusPending}
	if req.Payment != nil {
		p, err := applyPayment(payment, *req.Payment)
		if err != nil {
			return nil, err
		}
		payment = p
	}

	requesterID := strings.TrimSpace(req.RequesterID)
	if requesterID == "" {
		requesterID = requestcontext.ActorID(ctx)
	}
	now := requestcontext.Now(ctx)
	return &models.Request{
		ID:             id.NewRequestID(),
		RequesterID:    requesterID,
		RequesterName:  requester,
		RequesterType:  requesterType,
		OrganizationID: strings.TrimSpace(req.OrganizationID),
		PatientName:    patient,
		BloodGroup:     req.BloodGroup,
		Component:      req.Component,
		Quantity:       req.Quantity,
		Priority:       priority,
		Status:         models.StatusPending,
		Payment:        payment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, "request "+requestID.String())
	}
	return r, nil
}

// PublicDetails is the driver-facing view of a request.
func (s *Service) PublicDetails(ctx context.Context, requestID id.RequestID) (models.PublicView, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return models.PublicView{}, err
	}
	return r.Public(), nil
}

func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "failed to list requests")
	}
	return out, nil
}

// save writes r if it is unchanged since it was read and its status is still
// expected, and emits the events in the same transaction.
func (s *Service) save(ctx context.Context, r *models.Request, expected models.Status, emit ...func(ctx context.Context) error) error {
	version := r.Version
	err := s.store.RunInTx(ctx, func(txCtx context.Context, st store.Store) error {
		if err := st.Update(txCtx, r, expected); err != nil {
			return err
		}
		for _, fn := range emit {
			if err := fn(txCtx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.Version = version
	}
	return err
}

func (s *Service) transitionEvent(r *models.Request, from models.Status, attrs map[string]string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.emit(ctx, events.KindRequestTransition, r, string(from), string(r.Status), attrs)
	}
}

func (s *Service) emit(ctx context.Context, kind events.Kind, r *models.Request, from, to string, attrs map[string]string) error {
	err := s.sink.Emit(ctx, events.Event{
		Kind:       kind,
		EntityID:   r.ID.String(),
		From:       from,
		To:         to,
		Timestamp:  requestcontext.Now(ctx),
		Attributes: attrs,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record request event")
	}
	return nil
}

func (s *Service) recordTransition(from, to models.Status) {
	if s.metrics != nil {
		s.metrics.RecordRequestTransition(string(from), string(to))
	}
}

// load fetches a request and checks that it may move to next.
func (s *Service) load(ctx context.Context, requestID id.RequestID, next models.Status) (*models.Request, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(next) {
		return nil, invalidTransition(r.Status, next)
	}
	return r, nil
}

func invalidTransition(from, to models.Status) error {
	return dErrors.New(dErrors.CodeInvalidTransition,
		"request cannot move from "+string(from)+" to "+string(to))
}

// translate maps store sentinels onto domain codes. Domain errors pass through.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg+": not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg+": already exists")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, msg+": status changed concurrently")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "request store unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
