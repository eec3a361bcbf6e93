package httptransport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	jwttoken "lifeline/internal/jwt_token"
	unit "lifeline/internal/ledger/models"
	ledger "lifeline/internal/ledger/service"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/request/models"
	request "lifeline/internal/request/service"
	"lifeline/internal/reservation"
	"lifeline/internal/transport/http/mocks"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	inventory  *mocks.MockInventoryService
	lab        *mocks.MockLabService
	separation *mocks.MockSeparationService
	requests   *mocks.MockRequestService
	tokens     *jwttoken.JWTService
	readyErr   error
	router     http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.inventory = mocks.NewMockInventoryService(s.ctrl)
	s.lab = mocks.NewMockLabService(s.ctrl)
	s.separation = mocks.NewMockSeparationService(s.ctrl)
	s.requests = mocks.NewMockRequestService(s.ctrl)
	s.tokens = jwttoken.NewJWTService("router-test-key", "lifeline-test")
	s.readyErr = nil

	reg := prometheus.NewRegistry()
	h := NewHandler(s.inventory, s.lab, s.separation, s.requests, nil)
	s.router = NewRouter(h, RouterConfig{
		Validator:      s.tokens,
		Metrics:        metrics.NewWithRegisterer(reg),
		Gatherer:       reg,
		RequestTimeout: time.Second,
		Readiness: []ReadinessCheck{{
			Name:  "database",
			Check: func(context.Context) error { return s.readyErr },
		}},
	})
}

func (s *RouterSuite) as(req *http.Request, actorID, role string) *http.Request {
	token, err := s.tokens.GenerateToken(actorID, role, time.Hour)
	s.Require().NoError(err)
	return testutil.WithBearer(req, token)
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) TestHealthAndReadiness() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/readyz"))
	testutil.AssertStatusOK(s.T(), rr)

	s.readyErr = errors.New("connection refused")
	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/readyz"))
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	body := testutil.DecodeJSON(s.T(), rr)
	s.Equal("not_ready", body["status"])
	s.Equal(map[string]any{"database": "unavailable"}, body["checks"])
}

func (s *RouterSuite) TestMetricsEndpoint() {
	s.do(testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(s.T(), rr)
	s.Contains(rr.Body.String(), "lifeline_http_request_duration_seconds")
}

func (s *RouterSuite) TestInventoryRequiresStaffRole() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/inventory"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	req := s.as(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/inventory"), "hospital-1", jwttoken.RoleRequester)
	rr = s.do(req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *RouterSuite) TestCreateUnit() {
	expires := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	s.inventory.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ledger.CreateUnitRequest) (*unit.Unit, error) {
			s.Equal("#10001", req.ID)
			s.Equal(unit.GroupOPos, req.BloodGroup)
			s.True(req.ExpiresAt.Equal(expires))
			return &unit.Unit{ID: "#10001", BloodGroup: req.BloodGroup, Status: unit.StatusAvailable}, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/inventory", map[string]any{
		"id":          "#10001",
		"blood_group": "O+",
		"component":   "Whole Blood",
		"expires_at":  expires,
	})
	rr := s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "status", "available")
}

func (s *RouterSuite) TestCreateUnit_UnknownFieldIsBadRequest() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/v1/inventory", `{"blood_type":"O+"}`)
	rr := s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *RouterSuite) TestListUnits_ParsesFilter() {
	s.inventory.EXPECT().List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f unit.UnitFilter) ([]*unit.Unit, error) {
			s.Equal(unit.GroupANeg, f.BloodGroup)
			s.Require().NotNil(f.Tested)
			s.False(*f.Tested)
			s.Equal(5, f.Limit)
			return nil, nil
		})
	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/inventory?blood_group=A-&tested=false&limit=5")
	rr := s.do(s.as(req, "lab-1", jwttoken.RoleLab))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"units":[]}`, rr.Body.String())

	req = testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/inventory?tested=maybe")
	rr = s.do(s.as(req, "lab-1", jwttoken.RoleLab))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *RouterSuite) TestStatsGroupsByBloodGroup() {
	s.inventory.EXPECT().Stats(gomock.Any()).Return([]unit.StockLevel{
		{BloodGroup: unit.GroupOPos, Component: unit.ComponentWholeBlood, Units: 2, Quantity: 2},
		{BloodGroup: unit.GroupOPos, Component: unit.ComponentPlasma, Units: 3, Quantity: 3},
	}, nil)
	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/inventory/stats")
	rr := s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusOK(s.T(), rr)
	s.Equal(map[string]any{"O+": float64(5)}, testutil.DecodeJSON(s.T(), rr)["by_group"])
}

func (s *RouterSuite) TestGetUnitNormalizesID() {
	s.inventory.EXPECT().Lineage(gomock.Any(), id.UnitID("BU-7")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "unit BU-7: not found"))
	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/inventory/bu-7")
	rr := s.do(s.as(req, "lab-1", jwttoken.RoleLab))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RouterSuite) TestLabResultsAndSeparation() {
	s.lab.EXPECT().RecordTestResults(gomock.Any(), id.UnitID("#10001"), unit.ScreeningResults{Malaria: true}).
		Return(&unit.Unit{ID: "#10001", Status: unit.StatusQuarantined}, nil)
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/lab/results", map[string]any{
		"unit_id": "#10001",
		"results": map[string]bool{"malaria": true},
	})
	rr := s.do(s.as(req, "lab-1", jwttoken.RoleLab))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "quarantined")

	s.separation.EXPECT().Separate(gomock.Any(), id.UnitID("#10002"), []unit.Component{unit.ComponentPlasma}).
		Return(nil, dErrors.New(dErrors.CodeConflict, "unit #10002 is not tested safe"))
	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/lab/separate", map[string]any{
		"unit_id":    "#10002",
		"components": []string{"Plasma"},
	})
	rr = s.do(s.as(req, "lab-1", jwttoken.RoleLab))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *RouterSuite) TestLabListings() {
	s.lab.EXPECT().PendingScreening(gomock.Any()).Return([]*unit.Unit{{ID: "#1"}}, nil)
	s.lab.EXPECT().Separable(gomock.Any()).Return(nil, nil)

	rr := s.do(s.as(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/lab/untested"), "lab-1", jwttoken.RoleLab))
	testutil.AssertStatusOK(s.T(), rr)
	s.Len(testutil.DecodeJSON(s.T(), rr)["units"], 1)

	rr = s.do(s.as(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/lab/safe"), "lab-1", jwttoken.RoleLab))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"units":[]}`, rr.Body.String())
}

func (s *RouterSuite) TestCreateRequestUsesActor() {
	s.requests.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in request.CreateRequest) (*models.Request, error) {
			s.Equal("hospital-1", in.RequesterID)
			s.Equal(3, in.Quantity)
			s.Require().NotNil(in.Payment)
			s.Equal("1500", in.Payment.Amount.String())
			return &models.Request{ID: id.NewRequestID(), Status: models.StatusPending}, nil
		})
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/requests", map[string]any{
		"requester_name": "City Hospital",
		"patient_name":   "R. Rao",
		"blood_group":    "O+",
		"component":      "Whole Blood",
		"quantity":       3,
		"payment":        map[string]any{"amount": "1500", "method": "Online"},
	})
	rr := s.do(s.as(req, "hospital-1", jwttoken.RoleRequester))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}

func (s *RouterSuite) TestListRequestsScopesRequesters() {
	s.requests.EXPECT().List(gomock.Any(), models.Filter{Status: models.StatusPending, RequesterID: "hospital-1"}).Return(nil, nil)
	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/requests?status=pending")
	rr := s.do(s.as(req, "hospital-1", jwttoken.RoleRequester))
	testutil.AssertStatusOK(s.T(), rr)

	s.requests.EXPECT().List(gomock.Any(), models.Filter{OrganizationID: "bank-9"}).Return(nil, nil)
	req = testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/requests?organization_id=bank-9")
	rr = s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *RouterSuite) TestGetRequestHidesOtherRequesters() {
	requestID := id.NewRequestID()
	s.requests.EXPECT().Get(gomock.Any(), requestID).
		Return(&models.Request{ID: requestID, RequesterID: "hospital-2"}, nil)
	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/requests/"+requestID.String())
	rr := s.do(s.as(req, "hospital-1", jwttoken.RoleRequester))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RouterSuite) TestApproveReturnsDeliveryCode() {
	requestID := id.NewRequestID()
	s.requests.EXPECT().Approve(gomock.Any(), requestID, request.DeliveryInput{DriverName: "Anil", VehicleNumber: "KA-01"}).
		Return(&request.Approval{Request: &models.Request{ID: requestID, Status: models.StatusApproved}, Code: "0427"}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/api/v1/requests/"+requestID.String()+"/status", map[string]any{
		"status":         "approved",
		"driver_name":    "Anil",
		"vehicle_number": "KA-01",
	})
	rr := s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "delivery_code", "0427")
}

func (s *RouterSuite) TestApproveShortfallReportsAvailable() {
	requestID := id.NewRequestID()
	s.requests.EXPECT().Approve(gomock.Any(), requestID, gomock.Any()).
		Return(nil, &reservation.InsufficientStockError{Requested: 4, Available: 1})

	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/api/v1/requests/"+requestID.String()+"/status", map[string]any{"status": "approved"})
	rr := s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	body := testutil.DecodeJSON(s.T(), rr)
	s.Equal("insufficient_stock", body["error"])
	s.Equal(float64(1), body["available"])
}

func (s *RouterSuite) TestStatusUpdateEdges() {
	requestID := id.NewRequestID()
	path := "/api/v1/requests/" + requestID.String() + "/status"

	req := testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"status": "approved"})
	rr := s.do(s.as(req, "hospital-1", jwttoken.RoleRequester))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)

	req = testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"status": "completed"})
	rr = s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "invalid_transition")

	req = testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"status": "shipped"})
	rr = s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")

	s.requests.EXPECT().Reject(gomock.Any(), requestID, "no donor match").
		Return(&models.Request{ID: requestID, Status: models.StatusRejected}, nil)
	req = testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"status": "rejected", "reason": "no donor match"})
	rr = s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusOK(s.T(), rr)

	s.requests.EXPECT().Reopen(gomock.Any(), requestID).
		Return(&models.Request{ID: requestID, Status: models.StatusPending}, nil)
	req = testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"status": "pending"})
	rr = s.do(s.as(req, "admin-1", jwttoken.RoleAdmin))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "pending")
}

func (s *RouterSuite) TestPayment() {
	requestID := id.NewRequestID()
	path := "/api/v1/requests/" + requestID.String() + "/payment"

	req := testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"status": "Verified"})
	rr := s.do(s.as(req, "hospital-1", jwttoken.RoleRequester))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

	s.requests.EXPECT().VerifyPayment(gomock.Any(), requestID).
		Return(&models.Request{ID: requestID}, nil)
	req = testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"status": "Verified"})
	rr = s.do(s.as(req, "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatusOK(s.T(), rr)

	s.requests.EXPECT().SubmitPayment(gomock.Any(), requestID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.RequestID, in request.PaymentInput) (*models.Request, error) {
			s.Equal(models.PaymentCOD, in.Method)
			return &models.Request{ID: requestID}, nil
		})
	req = testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{"amount": 900, "method": "COD"})
	rr = s.do(s.as(req, "hospital-1", jwttoken.RoleRequester))
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *RouterSuite) TestDriverRoutesArePublic() {
	requestID := id.NewRequestID()
	base := "/api/v1/requests/" + requestID.String()

	s.requests.EXPECT().PublicDetails(gomock.Any(), requestID).
		Return(models.PublicView{ID: requestID, Status: models.StatusApproved, DriverName: "Anil"}, nil)
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/public"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "driver_name", "Anil")

	s.requests.EXPECT().VerifyDelivery(gomock.Any(), requestID, "1234").
		Return(nil, dErrors.New(dErrors.CodeInvalidCredential, "delivery code does not match"))
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/verify-code", map[string]string{"code": "1234"}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "invalid_credential")

	s.requests.EXPECT().VerifyDelivery(gomock.Any(), requestID, "4821").
		Return(&models.Request{ID: requestID, Status: models.StatusCompleted}, nil)
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/verify-code", map[string]string{"code": "4821"}))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "completed")

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/location", map[string]float64{"lat": 12.9}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")

	s.requests.EXPECT().RecordLocation(gomock.Any(), requestID, 12.9, 77.6).Return(true, nil)
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/location", map[string]float64{"lat": 12.9, "lng": 77.6}))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"tracking_started":true}`, rr.Body.String())
}

func (s *RouterSuite) TestMalformedRequestID() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/requests/not-a-uuid/public"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/requests/"+uuid.Nil.String()+"/public"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *RouterSuite) TestInternalErrorsHideDetail() {
	s.inventory.EXPECT().Stats(gomock.Any()).
		Return(nil, dErrors.Wrap(errors.New("pq: relation does not exist"), dErrors.CodeInternal, "failed to aggregate stock"))
	rr := s.do(s.as(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/inventory/stats"), "bank-1", jwttoken.RoleBloodBank))
	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	s.JSONEq(`{"error":"internal_error"}`, rr.Body.String())
}

func (s *RouterSuite) TestUnavailableStoreIs503() {
	s.requests.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "request store unavailable"))
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/requests", map[string]any{"quantity": 1})
	rr := s.do(s.as(req, "hospital-1", jwttoken.RoleRequester))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
}
