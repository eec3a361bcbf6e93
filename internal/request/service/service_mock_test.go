package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	unit "lifeline/internal/ledger/models"
	"lifeline/internal/request/models"
	"lifeline/internal/request/service/mocks"
	"lifeline/internal/request/store/memory"
	"lifeline/internal/reservation"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/requestcontext"
	"lifeline/pkg/secrets"
)

func newMockedService(t *testing.T, opts ...Option) (*Service, *memory.InMemoryStore, *mocks.MockReserver) {
	t.Helper()
	ctrl := gomock.NewController(t)
	reserver := mocks.NewMockReserver(ctrl)
	st := memory.New()
	opts = append([]Option{
		WithHasher(secrets.NewHasher(bcrypt.MinCost)),
		WithCodeGenerator(func() (string, error) { return "0007", nil }),
	}, opts...)
	return New(st, reserver, opts...), st, reserver
}

func seedPending(t *testing.T, svc *Service, ctx context.Context) *models.Request {
	t.Helper()
	r, err := svc.Create(ctx, CreateRequest{
		RequesterName: "Clinic 9",
		RequesterType: models.RequesterClinic,
		PatientName:   "S. Rao",
		BloodGroup:    unit.GroupONeg,
		Component:     unit.ComponentPlatelets,
		Quantity:      1,
		Priority:      models.PriorityUrgent,
	})
	require.NoError(t, err)
	return r
}

func TestApprove_LostRaceReleasesReservation(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	svc, st, reserver := newMockedService(t)
	r := seedPending(t, svc, ctx)
	claimed := []id.UnitID{"BU-77"}

	reserver.EXPECT().
		Reserve(gomock.Any(), reservation.Request{
			BloodGroup: unit.GroupONeg, Component: unit.ComponentPlatelets, Quantity: 1, RequestID: r.ID.String(),
		}).
		DoAndReturn(func(ctx context.Context, _ reservation.Request) ([]id.UnitID, error) {
			// Another operator rejects the request while stock is being claimed.
			rejected := r.Clone()
			rejected.Status = models.StatusRejected
			require.NoError(t, st.Update(ctx, rejected, models.StatusPending))
			return claimed, nil
		})
	reserver.EXPECT().Release(gomock.Any(), claimed).Return(nil)

	_, err := svc.Approve(ctx, r.ID, DeliveryInput{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Empty(t, got.ReservedUnitIDs)
}

func TestApprove_CodeFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	svc, _, reserver := newMockedService(t, WithCodeGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))
	r := seedPending(t, svc, ctx)

	reserver.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return([]id.UnitID{"BU-1"}, nil)
	reserver.EXPECT().Release(gomock.Any(), []id.UnitID{"BU-1"}).Return(nil)

	_, err := svc.Approve(ctx, r.ID, DeliveryInput{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestVerifyDelivery_FulfilFailureKeepsApproved(t *testing.T) {
	ctx := context.Background()
	svc, _, reserver := newMockedService(t)
	r := seedPending(t, svc, ctx)

	reserver.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return([]id.UnitID{"BU-5"}, nil)
	_, err := svc.Approve(ctx, r.ID, DeliveryInput{})
	require.NoError(t, err)

	reserver.EXPECT().Fulfill(gomock.Any(), []id.UnitID{"BU-5"}).
		Return(dErrors.New(dErrors.CodeInvalidTransition, "unit BU-5 cannot move from expired to out"))

	_, err = svc.VerifyDelivery(ctx, r.ID, "0007")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Nil(t, got.Delivery.CompletedAt)

	// The code is restored, so the handover can be retried.
	reserver.EXPECT().Fulfill(gomock.Any(), []id.UnitID{"BU-5"}).Return(nil)
	done, err := svc.VerifyDelivery(ctx, r.ID, "0007")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestVerifyDelivery_MissingHashIsIntegrityError(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newMockedService(t)
	r := seedPending(t, svc, ctx)

	approved := r.Clone()
	approved.Status = models.StatusApproved
	approved.ReservedUnitIDs = []id.UnitID{"BU-9"}
	require.NoError(t, st.Update(ctx, approved, models.StatusPending))

	_, err := svc.VerifyDelivery(ctx, r.ID, "0007")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestRecordLocation_LatchErrorFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	l := mocks.NewMockTrackingLatch(ctrl)
	svc, _, reserver := newMockedService(t, WithTrackingLatch(l))
	r := seedPending(t, svc, ctx)

	reserver.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return([]id.UnitID{"BU-3"}, nil)
	_, err := svc.Approve(ctx, r.ID, DeliveryInput{})
	require.NoError(t, err)

	l.EXPECT().Acquire(gomock.Any(), r.ID).Return(false, errors.New("redis: connection refused"))
	started, err := svc.RecordLocation(ctx, r.ID, 1.5, 2.5)
	require.NoError(t, err)
	assert.True(t, started)

	l.EXPECT().Acquire(gomock.Any(), r.ID).Return(false, nil)
	started, err = svc.RecordLocation(ctx, r.ID, 1.5, 2.5)
	require.NoError(t, err)
	assert.False(t, started)
}

func TestRecordLocation_ClearsLatchWhenNotStarted(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	l := mocks.NewMockTrackingLatch(ctrl)
	svc, _, _ := newMockedService(t, WithTrackingLatch(l))
	missing := id.NewRequestID()

	l.EXPECT().Acquire(gomock.Any(), missing).Return(true, nil)
	l.EXPECT().Clear(gomock.Any(), missing).Return(nil)

	_, err := svc.RecordLocation(ctx, missing, 0, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestReject_ReleaseFailureIsReported(t *testing.T) {
	ctx := context.Background()
	svc, _, reserver := newMockedService(t)
	r := seedPending(t, svc, ctx)

	reserver.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return([]id.UnitID{"BU-8"}, nil)
	_, err := svc.Approve(ctx, r.ID, DeliveryInput{})
	require.NoError(t, err)

	reserver.EXPECT().Release(gomock.Any(), []id.UnitID{"BU-8"}).
		Return(dErrors.New(dErrors.CodeUnavailable, "unit store unavailable"))

	_, err = svc.Reject(ctx, r.ID, "duplicate")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
