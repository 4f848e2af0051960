package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/shopsphere/returns-backend/pkg/config"
	"github.com/shopsphere/returns-backend/pkg/db/models"
	"github.com/shopsphere/returns-backend/pkg/enums"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
	"github.com/shopsphere/returns-backend/pkg/outbox"
	"github.com/shopsphere/returns-backend/pkg/pagination"
	"github.com/shopsphere/returns-backend/pkg/square"
)

type stubReturnsRepo struct {
	request   *models.ReturnRequest
	item      *models.OrderItem
	active    bool
	attempts  []models.SettlementAttempt
	createErr error
}

func (s *stubReturnsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubReturnsRepo) CreateReturnRequest(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	s.request = request
	return request, nil
}

func (s *stubReturnsRepo) FindReturnRequest(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	if s.request == nil || s.request.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.request, nil
}

func (s *stubReturnsRepo) FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	if s.item == nil || s.item.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.item, nil
}

func (s *stubReturnsRepo) HasActiveReturn(ctx context.Context, orderItemID uuid.UUID) (bool, error) {
	return s.active, nil
}

func (s *stubReturnsRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, updates map[string]any) (bool, error) {
	if s.request == nil || s.request.ID != id || s.request.Status != from {
		return false, nil
	}
	s.request.Status = to
	for key, value := range updates {
		switch key {
		case "rejection_reason":
			if v, ok := value.(string); ok {
				s.request.RejectionReason = &v
			}
		case "condition_notes":
			if v, ok := value.(*string); ok {
				s.request.ConditionNotes = v
			}
		case "verification_image_ref":
			if v, ok := value.(*string); ok {
				s.request.VerificationImageRef = v
			}
		case "pickup_agent_ref":
			if v, ok := value.(string); ok {
				s.request.PickupAgentRef = &v
			}
		case "refund_status":
			if v, ok := value.(enums.RefundStatus); ok {
				s.request.RefundStatus = v
			}
		}
	}
	return true, nil
}

func (s *stubReturnsRepo) CompleteSettlement(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	if s.request == nil || s.request.ID != id {
		return false, nil
	}
	if s.request.Status != enums.ReturnStatusReceived || s.request.RefundStatus == enums.RefundStatusProcessed {
		return false, nil
	}
	s.request.Status = enums.ReturnStatusCompleted
	s.request.RefundStatus = enums.RefundStatusProcessed
	now := time.Now()
	s.request.SettledAt = &now
	return true, nil
}

func (s *stubReturnsRepo) MarkRefundFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.request == nil || s.request.ID != id {
		return false, nil
	}
	if s.request.Status != enums.ReturnStatusReceived || s.request.RefundStatus == enums.RefundStatusProcessed {
		return false, nil
	}
	s.request.RefundStatus = enums.RefundStatusFailed
	return true, nil
}

func (s *stubReturnsRepo) AddRefundedCents(ctx context.Context, orderItemID uuid.UUID, deltaCents int) error {
	if s.item == nil || s.item.ID != orderItemID {
		return gorm.ErrRecordNotFound
	}
	s.item.RefundedCents += deltaCents
	return nil
}

func (s *stubReturnsRepo) CreateSettlementAttempt(ctx context.Context, attempt *models.SettlementAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *stubReturnsRepo) ListSettlementAttempts(ctx context.Context, returnID uuid.UUID) ([]models.SettlementAttempt, error) {
	matched := []models.SettlementAttempt{}
	for _, attempt := range s.attempts {
		if attempt.ReturnID == returnID {
			matched = append(matched, attempt)
		}
	}
	return matched, nil
}

func (s *stubReturnsRepo) ListReturns(ctx context.Context, params pagination.Params, filters ReturnFilters) (*ReturnList, error) {
	panic("not implemented")
}

func (s *stubReturnsRepo) FindReturnDetail(ctx context.Context, id uuid.UUID) (*ReturnDetail, error) {
	if s.request == nil || s.request.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return &ReturnDetail{
		ID:           s.request.ID,
		OrderID:      s.request.OrderID,
		OrderItemID:  s.request.OrderItemID,
		CustomerID:   s.request.CustomerID,
		Status:       s.request.Status,
		RefundStatus: s.request.RefundStatus,
		AmountCents:  s.request.ReturnAmountCents,
	}, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutboxPublisher) lastEventType() enums.OutboxEventType {
	if len(s.events) == 0 {
		return ""
	}
	return s.events[len(s.events)-1].EventType
}

type stubPaymentGateway struct {
	err    error
	calls  int
	params square.RefundParams
	onCall func()
}

func (s *stubPaymentGateway) RefundPayment(ctx context.Context, params square.RefundParams) (*sq.PaymentRefund, error) {
	s.calls++
	s.params = params
	if s.onCall != nil {
		s.onCall()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &sq.PaymentRefund{}, nil
}

type stubPickupScheduler struct {
	agentRef string
	err      error
	calls    int
}

func (s *stubPickupScheduler) RequestPickup(ctx context.Context, returnID uuid.UUID) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.agentRef, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, outboxPub outboxPublisher, payments PaymentGateway, pickup PickupScheduler) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, outboxPub, payments, pickup, nil, config.ReturnsConfig{WindowDays: 30, Currency: "USD"})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func deliveredItem(customerID uuid.UUID, daysAgo int) *models.OrderItem {
	delivered := time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour)
	return &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		CustomerID:     customerID,
		OrderNumber:    "SS-1042",
		ProductName:    "Ceramic Mug",
		PaymentRef:     "pay_123",
		PaidPriceCents: 2599,
		Currency:       "USD",
		DeliveredAt:    &delivered,
	}
}

func TestCreateReturn(t *testing.T) {
	customerID := uuid.New()
	repo := &stubReturnsRepo{item: deliveredItem(customerID, 5)}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	detail, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		OrderItemID: repo.item.ID,
		Reason:      enums.ReturnReasonDamaged,
		Description: "arrived cracked",
		Actor:       Actor{UserID: customerID, Role: enums.MemberRoleCustomer},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if detail.Status != enums.ReturnStatusRequested {
		t.Fatalf("expected requested got %s", detail.Status)
	}
	if detail.AmountCents != 2599 {
		t.Fatalf("expected amount 2599 got %d", detail.AmountCents)
	}
	if outboxPub.lastEventType() != enums.EventReturnRequested {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestCreateReturnCapsAmountAtRemaining(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	item.RefundedCents = 1000
	repo := &stubReturnsRepo{item: item}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	detail, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		OrderItemID: item.ID,
		Reason:      enums.ReturnReasonDefective,
		Description: "stopped working",
		Actor:       Actor{UserID: customerID, Role: enums.MemberRoleCustomer},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if detail.AmountCents != 1599 {
		t.Fatalf("expected remaining 1599 got %d", detail.AmountCents)
	}
}

func TestCreateReturnWindowClosed(t *testing.T) {
	customerID := uuid.New()
	repo := &stubReturnsRepo{item: deliveredItem(customerID, 45)}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		OrderItemID: repo.item.ID,
		Reason:      enums.ReturnReasonOther,
		Description: "changed my mind",
		Actor:       Actor{UserID: customerID, Role: enums.MemberRoleCustomer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCreateReturnNotDelivered(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	item.DeliveredAt = nil
	repo := &stubReturnsRepo{item: item}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		OrderItemID: item.ID,
		Reason:      enums.ReturnReasonWrongItem,
		Description: "got the wrong color",
		Actor:       Actor{UserID: customerID, Role: enums.MemberRoleCustomer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCreateReturnActiveConflict(t *testing.T) {
	customerID := uuid.New()
	repo := &stubReturnsRepo{item: deliveredItem(customerID, 5), active: true}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		OrderItemID: repo.item.ID,
		Reason:      enums.ReturnReasonDamaged,
		Description: "box crushed",
		Actor:       Actor{UserID: customerID, Role: enums.MemberRoleCustomer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error got %v", err)
	}
}

func TestCreateReturnOtherCustomersItem(t *testing.T) {
	repo := &stubReturnsRepo{item: deliveredItem(uuid.New(), 5)}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		OrderItemID: repo.item.ID,
		Reason:      enums.ReturnReasonDamaged,
		Description: "not mine",
		Actor:       Actor{UserID: uuid.New(), Role: enums.MemberRoleCustomer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
}

func requestedReturn(customerID uuid.UUID, item *models.OrderItem) *models.ReturnRequest {
	return &models.ReturnRequest{
		ID:                uuid.New(),
		OrderID:           item.OrderID,
		OrderItemID:       item.ID,
		CustomerID:        customerID,
		OrderNumber:       item.OrderNumber,
		Reason:            enums.ReturnReasonDamaged,
		Description:       "arrived cracked",
		ReturnAmountCents: 2599,
		Currency:          "USD",
		Status:            enums.ReturnStatusRequested,
		RefundStatus:      enums.RefundStatusNone,
		RequestedAt:       time.Now(),
	}
}

func TestApprove(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	repo := &stubReturnsRepo{item: item, request: requestedReturn(customerID, item)}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.Approve(context.Background(), DecisionInput{
		ReturnID: repo.request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.request.Status != enums.ReturnStatusApproved {
		t.Fatalf("expected approved got %s", repo.request.Status)
	}
	if outboxPub.lastEventType() != enums.EventReturnApproved {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestApproveInvalidState(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusReceived
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.Approve(context.Background(), DecisionInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if len(outboxPub.events) != 0 {
		t.Fatal("unexpected outbox call")
	}
}

func TestRejectFromPickedUp(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusPickedUp
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.Reject(context.Background(), RejectInput{
		ReturnID: request.ID,
		Reason:   "wear and tear not covered",
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if request.Status != enums.ReturnStatusRejected {
		t.Fatalf("expected rejected got %s", request.Status)
	}
	if request.RejectionReason == nil || *request.RejectionReason != "wear and tear not covered" {
		t.Fatal("rejection reason not recorded")
	}
	if outboxPub.lastEventType() != enums.EventReturnRejected {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestRejectFromReceivedFails(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusReceived
	repo := &stubReturnsRepo{item: item, request: request}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.Reject(context.Background(), RejectInput{
		ReturnID: request.ID,
		Reason:   "too late",
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestAssignAgent(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusApproved
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	pickup := &stubPickupScheduler{agentRef: "AGENT-7"}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, pickup)

	err := svc.AssignAgent(context.Background(), AssignInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if pickup.calls != 1 {
		t.Fatalf("expected pickup scheduled once got %d", pickup.calls)
	}
	if request.Status != enums.ReturnStatusPickupAssigned {
		t.Fatalf("expected pickup_assigned got %s", request.Status)
	}
	if request.PickupAgentRef == nil || *request.PickupAgentRef != "AGENT-7" {
		t.Fatal("agent ref not recorded")
	}
	if outboxPub.lastEventType() != enums.EventReturnPickupAssigned {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestAssignAgentSchedulerFailure(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusApproved
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	pickup := &stubPickupScheduler{err: pkgerrors.New(pkgerrors.CodeDependency, "logistics pickup request failed")}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, pickup)

	err := svc.AssignAgent(context.Background(), AssignInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error got %v", err)
	}
	if request.Status != enums.ReturnStatusApproved {
		t.Fatalf("status should be unchanged got %s", request.Status)
	}
	if len(outboxPub.events) != 0 {
		t.Fatal("unexpected outbox call")
	}
}

func TestConfirmPickup(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusPickupAssigned
	agentRef := "AGENT-7"
	request.PickupAgentRef = &agentRef
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.ConfirmPickup(context.Background(), ConfirmPickupInput{
		ReturnID: request.ID,
		AgentRef: "AGENT-7",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if request.Status != enums.ReturnStatusPickedUp {
		t.Fatalf("expected picked_up got %s", request.Status)
	}
	if outboxPub.lastEventType() != enums.EventReturnPickedUp {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestConfirmPickupAgentMismatch(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusPickupAssigned
	agentRef := "AGENT-7"
	request.PickupAgentRef = &agentRef
	repo := &stubReturnsRepo{item: item, request: request}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.ConfirmPickup(context.Background(), ConfirmPickupInput{
		ReturnID: request.ID,
		AgentRef: "AGENT-9",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict got %v", err)
	}
}

func TestRecordInspectionAccept(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusPickedUp
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	notes := "seal intact, minor scuffs"
	imageRef := "warehouse/img-2041"
	err := svc.RecordInspection(context.Background(), InspectionInput{
		ReturnID:             request.ID,
		Outcome:              enums.InspectionOutcomeAccept,
		ConditionNotes:       &notes,
		VerificationImageRef: &imageRef,
		Actor:                Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if request.Status != enums.ReturnStatusReceived {
		t.Fatalf("expected received got %s", request.Status)
	}
	if request.RefundStatus != enums.RefundStatusPending {
		t.Fatalf("expected refund pending got %s", request.RefundStatus)
	}
	if request.VerificationImageRef == nil || *request.VerificationImageRef != imageRef {
		t.Fatal("verification image ref not recorded")
	}
	if outboxPub.lastEventType() != enums.EventReturnReceived {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestRecordInspectionReject(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusPickedUp
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.RecordInspection(context.Background(), InspectionInput{
		ReturnID: request.ID,
		Outcome:  enums.InspectionOutcomeReject,
		Reason:   "item returned in unsellable condition",
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if request.Status != enums.ReturnStatusRejected {
		t.Fatalf("expected rejected got %s", request.Status)
	}
	if request.RejectionReason == nil || *request.RejectionReason != "item returned in unsellable condition" {
		t.Fatal("rejection reason not recorded")
	}
	if outboxPub.lastEventType() != enums.EventReturnRejected {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestRecordInspectionRejectRequiresReason(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusPickedUp
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, outboxPub, &stubPaymentGateway{}, &stubPickupScheduler{})

	err := svc.RecordInspection(context.Background(), InspectionInput{
		ReturnID: request.ID,
		Outcome:  enums.InspectionOutcomeReject,
		Reason:   "  ",
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	if request.Status != enums.ReturnStatusPickedUp {
		t.Fatalf("status should be unchanged got %s", request.Status)
	}
	if len(outboxPub.events) != 0 {
		t.Fatal("unexpected outbox call")
	}
}

func receivedReturn(customerID uuid.UUID, item *models.OrderItem) *models.ReturnRequest {
	request := requestedReturn(customerID, item)
	request.Status = enums.ReturnStatusReceived
	request.RefundStatus = enums.RefundStatusPending
	return request
}

func TestProcessRefund(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := receivedReturn(customerID, item)
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	gateway := &stubPaymentGateway{}
	svc := newTestService(t, repo, outboxPub, gateway, &stubPickupScheduler{})

	err := svc.ProcessRefund(context.Background(), RefundInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if gateway.calls != 1 {
		t.Fatalf("expected one gateway call got %d", gateway.calls)
	}
	if gateway.params.IdempotencyKey != settlementToken(request.ID).String() {
		t.Fatalf("unexpected idempotency key %s", gateway.params.IdempotencyKey)
	}
	if gateway.params.PaymentRef != "pay_123" {
		t.Fatalf("unexpected payment ref %s", gateway.params.PaymentRef)
	}
	if request.Status != enums.ReturnStatusCompleted {
		t.Fatalf("expected completed got %s", request.Status)
	}
	if request.RefundStatus != enums.RefundStatusProcessed {
		t.Fatalf("expected processed got %s", request.RefundStatus)
	}
	if item.RefundedCents != 2599 {
		t.Fatalf("expected refunded 2599 got %d", item.RefundedCents)
	}
	if len(repo.attempts) != 1 || repo.attempts[0].Outcome != enums.SettlementOutcomeSucceeded {
		t.Fatalf("unexpected attempts %+v", repo.attempts)
	}
	if outboxPub.lastEventType() != enums.EventReturnCompleted {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestProcessRefundAlreadyProcessed(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := receivedReturn(customerID, item)
	request.Status = enums.ReturnStatusCompleted
	request.RefundStatus = enums.RefundStatusProcessed
	repo := &stubReturnsRepo{item: item, request: request}
	gateway := &stubPaymentGateway{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, gateway, &stubPickupScheduler{})

	err := svc.ProcessRefund(context.Background(), RefundInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called after a processed refund, got %d calls", gateway.calls)
	}
}

func TestProcessRefundNotReceived(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	repo := &stubReturnsRepo{item: item, request: request}
	gateway := &stubPaymentGateway{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, gateway, &stubPickupScheduler{})

	err := svc.ProcessRefund(context.Background(), RefundInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatal("gateway must not be called before the item is received")
	}
}

func TestProcessRefundGatewayUnreachable(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := receivedReturn(customerID, item)
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	gateway := &stubPaymentGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "square refund payment failed")}
	svc := newTestService(t, repo, outboxPub, gateway, &stubPickupScheduler{})

	err := svc.ProcessRefund(context.Background(), RefundInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if !pkgerrors.Retryable(err) {
		t.Fatalf("expected retryable error got %v", err)
	}
	if request.Status != enums.ReturnStatusReceived {
		t.Fatalf("status should stay received got %s", request.Status)
	}
	if request.RefundStatus != enums.RefundStatusFailed {
		t.Fatalf("expected refund failed got %s", request.RefundStatus)
	}
	if len(repo.attempts) != 1 || repo.attempts[0].Outcome != enums.SettlementOutcomeUnreachable {
		t.Fatalf("unexpected attempts %+v", repo.attempts)
	}
	if outboxPub.lastEventType() != enums.EventReturnRefundFailed {
		t.Fatalf("unexpected event type %s", outboxPub.lastEventType())
	}
}

func TestProcessRefundDeclined(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := receivedReturn(customerID, item)
	repo := &stubReturnsRepo{item: item, request: request}
	gateway := &stubPaymentGateway{err: pkgerrors.New(pkgerrors.CodeValidation, "square refund payment failed")}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, gateway, &stubPickupScheduler{})

	err := svc.ProcessRefund(context.Background(), RefundInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	// A decline leaves the return received, so the operator retries once
	// the payment issue is sorted out.
	if !pkgerrors.Retryable(err) {
		t.Fatalf("expected retryable error got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error got %v", err)
	}
	if request.RefundStatus != enums.RefundStatusFailed {
		t.Fatalf("expected refund failed got %s", request.RefundStatus)
	}
	if len(repo.attempts) != 1 || repo.attempts[0].Outcome != enums.SettlementOutcomeDeclined {
		t.Fatalf("unexpected attempts %+v", repo.attempts)
	}
}

func TestProcessRefundFailureKeepsCompletedSettlement(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := receivedReturn(customerID, item)
	repo := &stubReturnsRepo{item: item, request: request}
	outboxPub := &stubOutboxPublisher{}
	// The refund lands at the gateway but the response times out, while a
	// concurrent attempt with the same token already completed the
	// settlement.
	gateway := &stubPaymentGateway{
		err: pkgerrors.New(pkgerrors.CodeDependency, "square refund payment failed"),
		onCall: func() {
			request.Status = enums.ReturnStatusCompleted
			request.RefundStatus = enums.RefundStatusProcessed
		},
	}
	svc := newTestService(t, repo, outboxPub, gateway, &stubPickupScheduler{})

	err := svc.ProcessRefund(context.Background(), RefundInput{
		ReturnID: request.ID,
		Actor:    Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if request.Status != enums.ReturnStatusCompleted {
		t.Fatalf("expected completed got %s", request.Status)
	}
	if request.RefundStatus != enums.RefundStatusProcessed {
		t.Fatalf("completed settlement must not be overwritten, got %s", request.RefundStatus)
	}
	if outboxPub.lastEventType() == enums.EventReturnRefundFailed {
		t.Fatal("refund failed event must not follow a completed settlement")
	}
	if len(repo.attempts) != 1 {
		t.Fatalf("expected the attempt recorded, got %d", len(repo.attempts))
	}
}

func TestProcessRefundRetryReusesToken(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := receivedReturn(customerID, item)
	repo := &stubReturnsRepo{item: item, request: request}
	gateway := &stubPaymentGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "square refund payment failed")}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, gateway, &stubPickupScheduler{})

	actor := Actor{UserID: uuid.New(), Role: enums.MemberRoleOperator}
	_ = svc.ProcessRefund(context.Background(), RefundInput{ReturnID: request.ID, Actor: actor})
	firstKey := gateway.params.IdempotencyKey

	// Retry after the outage clears. The gateway must see the same key.
	gateway.err = nil
	err := svc.ProcessRefund(context.Background(), RefundInput{ReturnID: request.ID, Actor: actor})
	if err != nil {
		t.Fatalf("expected retry success got %v", err)
	}
	if gateway.params.IdempotencyKey != firstKey {
		t.Fatalf("expected stable idempotency key, got %s then %s", firstKey, gateway.params.IdempotencyKey)
	}
}

func TestGetReturnCustomerScope(t *testing.T) {
	customerID := uuid.New()
	item := deliveredItem(customerID, 5)
	request := requestedReturn(customerID, item)
	repo := &stubReturnsRepo{item: item, request: request}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubPaymentGateway{}, &stubPickupScheduler{})

	if _, err := svc.GetReturn(context.Background(), request.ID, Actor{UserID: customerID, Role: enums.MemberRoleCustomer}); err != nil {
		t.Fatalf("owner should see their return: %v", err)
	}

	_, err := svc.GetReturn(context.Background(), request.ID, Actor{UserID: uuid.New(), Role: enums.MemberRoleCustomer})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for other customers got %v", err)
	}
}
