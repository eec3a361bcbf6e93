package httptransport

import (
	"context"

	unit "lifeline/internal/ledger/models"
	ledger "lifeline/internal/ledger/service"
	"lifeline/internal/request/models"
	request "lifeline/internal/request/service"
	id "lifeline/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks InventoryService,LabService,SeparationService,RequestService

// InventoryService is the unit ledger surface used by inventory routes.
type InventoryService interface {
	Create(ctx context.Context, req ledger.CreateUnitRequest) (*unit.Unit, error)
	List(ctx context.Context, filter unit.UnitFilter) ([]*unit.Unit, error)
	Lineage(ctx context.Context, unitID id.UnitID) (*unit.Lineage, error)
	Stats(ctx context.Context) ([]unit.StockLevel, error)
}

// LabService is the screening gate.
type LabService interface {
	RecordTestResults(ctx context.Context, unitID id.UnitID, results unit.ScreeningResults) (*unit.Unit, error)
	PendingScreening(ctx context.Context) ([]*unit.Unit, error)
	Separable(ctx context.Context) ([]*unit.Unit, error)
}

type SeparationService interface {
	Separate(ctx context.Context, parentID id.UnitID, components []unit.Component) ([]*unit.Unit, error)
}

// RequestService is the blood request workflow.
type RequestService interface {
	Create(ctx context.Context, req request.CreateRequest) (*models.Request, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Request, error)
	Approve(ctx context.Context, requestID id.RequestID, delivery request.DeliveryInput) (*request.Approval, error)
	Reject(ctx context.Context, requestID id.RequestID, reason string) (*models.Request, error)
	Reopen(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	SubmitPayment(ctx context.Context, requestID id.RequestID, in request.PaymentInput) (*models.Request, error)
	VerifyPayment(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	VerifyDelivery(ctx context.Context, requestID id.RequestID, code string) (*models.Request, error)
	PublicDetails(ctx context.Context, requestID id.RequestID) (models.PublicView, error)
	RecordLocation(ctx context.Context, requestID id.RequestID, lat, lng float64) (bool, error)
}
