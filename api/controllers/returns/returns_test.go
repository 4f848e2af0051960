package returns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shopsphere/returns-backend/api/middleware"
	internalreturns "github.com/shopsphere/returns-backend/internal/returns"
	"github.com/shopsphere/returns-backend/pkg/enums"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
	"github.com/shopsphere/returns-backend/pkg/pagination"
)

type stubService struct {
	createFn  func(ctx context.Context, input internalreturns.CreateReturnInput) (*internalreturns.ReturnDetail, error)
	approveFn func(ctx context.Context, input internalreturns.DecisionInput) error
	rejectFn  func(ctx context.Context, input internalreturns.RejectInput) error
	assignFn  func(ctx context.Context, input internalreturns.AssignInput) error
	receiveFn func(ctx context.Context, input internalreturns.InspectionInput) error
	detailFn  func(ctx context.Context, returnID uuid.UUID, actor internalreturns.Actor) (*internalreturns.ReturnDetail, error)
	listFn    func(ctx context.Context, params pagination.Params, filters internalreturns.ReturnFilters) (*internalreturns.ReturnList, error)
}

func (s *stubService) CreateReturn(ctx context.Context, input internalreturns.CreateReturnInput) (*internalreturns.ReturnDetail, error) {
	if s.createFn == nil {
		panic("unexpected CreateReturn call")
	}
	return s.createFn(ctx, input)
}

func (s *stubService) Approve(ctx context.Context, input internalreturns.DecisionInput) error {
	if s.approveFn == nil {
		panic("unexpected Approve call")
	}
	return s.approveFn(ctx, input)
}

func (s *stubService) Reject(ctx context.Context, input internalreturns.RejectInput) error {
	if s.rejectFn == nil {
		panic("unexpected Reject call")
	}
	return s.rejectFn(ctx, input)
}

func (s *stubService) AssignAgent(ctx context.Context, input internalreturns.AssignInput) error {
	if s.assignFn == nil {
		panic("unexpected AssignAgent call")
	}
	return s.assignFn(ctx, input)
}

func (s *stubService) ConfirmPickup(ctx context.Context, input internalreturns.ConfirmPickupInput) error {
	panic("unexpected ConfirmPickup call")
}

func (s *stubService) RecordInspection(ctx context.Context, input internalreturns.InspectionInput) error {
	if s.receiveFn == nil {
		panic("unexpected RecordInspection call")
	}
	return s.receiveFn(ctx, input)
}

func (s *stubService) ProcessRefund(ctx context.Context, input internalreturns.RefundInput) error {
	panic("unexpected ProcessRefund call")
}

func (s *stubService) GetReturn(ctx context.Context, returnID uuid.UUID, actor internalreturns.Actor) (*internalreturns.ReturnDetail, error) {
	if s.detailFn == nil {
		panic("unexpected GetReturn call")
	}
	return s.detailFn(ctx, returnID, actor)
}

func (s *stubService) ListReturns(ctx context.Context, params pagination.Params, filters internalreturns.ReturnFilters) (*internalreturns.ReturnList, error) {
	if s.listFn == nil {
		panic("unexpected ListReturns call")
	}
	return s.listFn(ctx, params, filters)
}

func authedRequest(method, target string, body string, role enums.MemberRole) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func withReturnID(req *http.Request, id uuid.UUID) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("returnId", id.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestCreateReturnsCreated(t *testing.T) {
	itemID := uuid.New()
	var got internalreturns.CreateReturnInput
	svc := &stubService{
		createFn: func(_ context.Context, input internalreturns.CreateReturnInput) (*internalreturns.ReturnDetail, error) {
			got = input
			return &internalreturns.ReturnDetail{ID: uuid.New()}, nil
		},
	}

	body := `{"order_item_id":"` + itemID.String() + `","reason":"damaged","description":"screen cracked on arrival"}`
	req := authedRequest(http.MethodPost, "/api/v1/returns", body, enums.MemberRoleCustomer)
	rec := httptest.NewRecorder()
	Create(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.OrderItemID != itemID {
		t.Fatalf("order item id not forwarded")
	}
	if got.Reason != enums.ReturnReasonDamaged {
		t.Fatalf("unexpected reason %s", got.Reason)
	}
}

func TestCreateRejectsUnknownReason(t *testing.T) {
	svc := &stubService{}
	body := `{"order_item_id":"` + uuid.NewString() + `","reason":"changed_my_mind","description":"does not matter"}`
	req := authedRequest(http.MethodPost, "/api/v1/returns", body, enums.MemberRoleCustomer)
	rec := httptest.NewRecorder()
	Create(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error code %s", code)
	}
}

func TestCreateRejectsUnknownFields(t *testing.T) {
	svc := &stubService{}
	body := `{"order_item_id":"` + uuid.NewString() + `","reason":"damaged","description":"broken","status":"completed"}`
	req := authedRequest(http.MethodPost, "/api/v1/returns", body, enums.MemberRoleCustomer)
	rec := httptest.NewRecorder()
	Create(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("client-supplied status must be rejected, got %d", rec.Code)
	}
}

func TestCreateRejectsVerificationImageRef(t *testing.T) {
	// The image reference belongs to the inspection step, not the request.
	svc := &stubService{}
	body := `{"order_item_id":"` + uuid.NewString() + `","reason":"damaged","description":"broken","verification_image_ref":"img-1"}`
	req := authedRequest(http.MethodPost, "/api/v1/returns", body, enums.MemberRoleCustomer)
	rec := httptest.NewRecorder()
	Create(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error code %s", code)
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	Create(svc, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestApproveMapsStateConflict(t *testing.T) {
	svc := &stubService{
		approveFn: func(context.Context, internalreturns.DecisionInput) error {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return cannot be approved in current state")
		},
	}
	req := withReturnID(authedRequest(http.MethodPost, "/approve", "", enums.MemberRoleOperator), uuid.New())
	rec := httptest.NewRecorder()
	Approve(svc, nil)(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error code %s", code)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc := &stubService{}
	req := withReturnID(authedRequest(http.MethodPost, "/reject", `{"reason":""}`, enums.MemberRoleOperator), uuid.New())
	rec := httptest.NewRecorder()
	Reject(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestReceiveParsesOutcome(t *testing.T) {
	var got internalreturns.InspectionInput
	svc := &stubService{
		receiveFn: func(_ context.Context, input internalreturns.InspectionInput) error {
			got = input
			return nil
		},
	}
	body := `{"outcome":"accept","condition_notes":"box intact","verification_image_ref":"warehouse/img-7"}`
	req := withReturnID(authedRequest(http.MethodPost, "/receive", body, enums.MemberRoleOperator), uuid.New())
	rec := httptest.NewRecorder()
	Receive(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Outcome != enums.InspectionOutcomeAccept {
		t.Fatalf("unexpected outcome %s", got.Outcome)
	}
	if got.ConditionNotes == nil || *got.ConditionNotes != "box intact" {
		t.Fatalf("condition notes not forwarded")
	}
	if got.VerificationImageRef == nil || *got.VerificationImageRef != "warehouse/img-7" {
		t.Fatalf("verification image ref not forwarded")
	}
}

func TestReceiveRejectForwardsReason(t *testing.T) {
	var got internalreturns.InspectionInput
	svc := &stubService{
		receiveFn: func(_ context.Context, input internalreturns.InspectionInput) error {
			got = input
			return nil
		},
	}
	body := `{"outcome":"reject","reason":"item shows heavy use"}`
	req := withReturnID(authedRequest(http.MethodPost, "/receive", body, enums.MemberRoleOperator), uuid.New())
	rec := httptest.NewRecorder()
	Receive(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Outcome != enums.InspectionOutcomeReject {
		t.Fatalf("unexpected outcome %s", got.Outcome)
	}
	if got.Reason != "item shows heavy use" {
		t.Fatalf("reason not forwarded, got %q", got.Reason)
	}
}

func TestAssignAgentRespondsOK(t *testing.T) {
	svc := &stubService{
		assignFn: func(context.Context, internalreturns.AssignInput) error {
			return nil
		},
	}
	req := withReturnID(authedRequest(http.MethodPost, "/assign-agent", "", enums.MemberRoleOperator), uuid.New())
	rec := httptest.NewRecorder()
	AssignAgent(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestDetailMapsNotFound(t *testing.T) {
	svc := &stubService{
		detailFn: func(context.Context, uuid.UUID, internalreturns.Actor) (*internalreturns.ReturnDetail, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
		},
	}
	req := withReturnID(authedRequest(http.MethodGet, "/", "", enums.MemberRoleCustomer), uuid.New())
	rec := httptest.NewRecorder()
	Detail(svc, nil)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestListMineForcesCallerScope(t *testing.T) {
	otherCustomer := uuid.New()
	var got internalreturns.ReturnFilters
	svc := &stubService{
		listFn: func(_ context.Context, _ pagination.Params, filters internalreturns.ReturnFilters) (*internalreturns.ReturnList, error) {
			got = filters
			return &internalreturns.ReturnList{}, nil
		},
	}
	req := authedRequest(http.MethodGet, "/mine?customer_id="+otherCustomer.String(), "", enums.MemberRoleCustomer)
	rec := httptest.NewRecorder()
	ListMine(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got.CustomerID == nil {
		t.Fatal("expected caller scope applied")
	}
	if *got.CustomerID == otherCustomer {
		t.Fatal("query customer_id must not override the caller scope")
	}
}
