package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/shopsphere/returns-backend/pkg/config"
	"github.com/shopsphere/returns-backend/pkg/db/models"
	"github.com/shopsphere/returns-backend/pkg/enums"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
	"github.com/shopsphere/returns-backend/pkg/metrics"
	"github.com/shopsphere/returns-backend/pkg/outbox"
	"github.com/shopsphere/returns-backend/pkg/pagination"
	"github.com/shopsphere/returns-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PaymentGateway issues refunds against the payment collaborator.
type PaymentGateway interface {
	RefundPayment(ctx context.Context, params square.RefundParams) (*sq.PaymentRefund, error)
}

// PickupScheduler books a pickup agent with the logistics collaborator.
type PickupScheduler interface {
	RequestPickup(ctx context.Context, returnID uuid.UUID) (string, error)
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// CreateReturnInput captures a customer's return request.
type CreateReturnInput struct {
	OrderItemID uuid.UUID
	Reason      enums.ReturnReason
	Description string
	Actor       Actor
}

// DecisionInput identifies the return an operator is deciding on.
type DecisionInput struct {
	ReturnID uuid.UUID
	Actor    Actor
}

// RejectInput carries the operator's rejection and its reason.
type RejectInput struct {
	ReturnID uuid.UUID
	Reason   string
	Actor    Actor
}

// InspectionInput records the warehouse decision when the item arrives.
// Reason is required when the outcome is reject.
type InspectionInput struct {
	ReturnID             uuid.UUID
	Outcome              enums.InspectionOutcome
	ConditionNotes       *string
	VerificationImageRef *string
	Reason               string
	Actor                Actor
}

// RefundInput identifies the return to settle.
type RefundInput struct {
	ReturnID uuid.UUID
	Actor    Actor
}

// AssignInput identifies the return needing a pickup agent.
type AssignInput struct {
	ReturnID uuid.UUID
	Actor    Actor
}

// ConfirmPickupInput marks an assigned return as collected.
type ConfirmPickupInput struct {
	ReturnID uuid.UUID
	AgentRef string
}

// Service defines the return lifecycle operations.
type Service interface {
	CreateReturn(ctx context.Context, input CreateReturnInput) (*ReturnDetail, error)
	Approve(ctx context.Context, input DecisionInput) error
	Reject(ctx context.Context, input RejectInput) error
	AssignAgent(ctx context.Context, input AssignInput) error
	ConfirmPickup(ctx context.Context, input ConfirmPickupInput) error
	RecordInspection(ctx context.Context, input InspectionInput) error
	ProcessRefund(ctx context.Context, input RefundInput) error
	GetReturn(ctx context.Context, returnID uuid.UUID, actor Actor) (*ReturnDetail, error)
	ListReturns(ctx context.Context, params pagination.Params, filters ReturnFilters) (*ReturnList, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	payments PaymentGateway
	pickup   PickupScheduler
	metrics  *metrics.SettlementMetrics
	cfg      config.ReturnsConfig
	now      func() time.Time
}

// NewService builds a returns service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	payments PaymentGateway,
	pickup PickupScheduler,
	settlementMetrics *metrics.SettlementMetrics,
	cfg config.ReturnsConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if pickup == nil {
		return nil, fmt.Errorf("pickup scheduler required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		payments: payments,
		pickup:   pickup,
		metrics:  settlementMetrics,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (s *service) Approve(ctx context.Context, input DecisionInput) error {
	if input.ReturnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := loadReturn(ctx, repo, input.ReturnID)
		if err != nil {
			return err
		}

		moved, err := repo.TransitionStatus(ctx, request.ID,
			enums.ReturnStatusRequested, enums.ReturnStatusApproved,
			map[string]any{"approved_at": s.now()})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return cannot be approved in current state")
		}

		request.Status = enums.ReturnStatusApproved
		return s.emitLifecycle(ctx, tx, enums.EventReturnApproved, request, input.Actor)
	})
}

func (s *service) Reject(ctx context.Context, input RejectInput) error {
	if input.ReturnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := loadReturn(ctx, repo, input.ReturnID)
		if err != nil {
			return err
		}

		if !canReject(request.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return cannot be rejected in current state")
		}

		moved, err := repo.TransitionStatus(ctx, request.ID,
			request.Status, enums.ReturnStatusRejected,
			map[string]any{
				"rejected_at":      s.now(),
				"rejection_reason": input.Reason,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return cannot be rejected in current state")
		}

		request.Status = enums.ReturnStatusRejected
		return s.emitLifecycle(ctx, tx, enums.EventReturnRejected, request, input.Actor)
	})
}

func (s *service) RecordInspection(ctx context.Context, input InspectionInput) error {
	if input.ReturnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	if !input.Outcome.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "inspection outcome must be accept or reject")
	}
	rejectionReason := strings.TrimSpace(input.Reason)
	if input.Outcome == enums.InspectionOutcomeReject && rejectionReason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := loadReturn(ctx, repo, input.ReturnID)
		if err != nil {
			return err
		}

		if input.Outcome == enums.InspectionOutcomeReject {
			moved, err := repo.TransitionStatus(ctx, request.ID,
				enums.ReturnStatusPickedUp, enums.ReturnStatusRejected,
				map[string]any{
					"rejected_at":            s.now(),
					"rejection_reason":       rejectionReason,
					"condition_notes":        input.ConditionNotes,
					"verification_image_ref": input.VerificationImageRef,
				})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return status")
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "return cannot be inspected in current state")
			}
			request.Status = enums.ReturnStatusRejected
			return s.emitLifecycle(ctx, tx, enums.EventReturnRejected, request, input.Actor)
		}

		moved, err := repo.TransitionStatus(ctx, request.ID,
			enums.ReturnStatusPickedUp, enums.ReturnStatusReceived,
			map[string]any{
				"received_at":            s.now(),
				"condition_notes":        input.ConditionNotes,
				"verification_image_ref": input.VerificationImageRef,
				"refund_status":          enums.RefundStatusPending,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return cannot be inspected in current state")
		}

		request.Status = enums.ReturnStatusReceived
		request.RefundStatus = enums.RefundStatusPending
		return s.emitLifecycle(ctx, tx, enums.EventReturnReceived, request, input.Actor)
	})
}

func (s *service) GetReturn(ctx context.Context, returnID uuid.UUID, actor Actor) (*ReturnDetail, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}

	detail, err := s.repo.FindReturnDetail(ctx, returnID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return detail")
	}

	if actor.Role == enums.MemberRoleCustomer && detail.CustomerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
	}

	return detail, nil
}

func (s *service) ListReturns(ctx context.Context, params pagination.Params, filters ReturnFilters) (*ReturnList, error) {
	list, err := s.repo.ListReturns(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	return list, nil
}

func loadReturn(ctx context.Context, repo Repository, id uuid.UUID) (*models.ReturnRequest, error) {
	request, err := repo.FindReturnRequest(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
	}
	return request, nil
}

func (s *service) emitLifecycle(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, request *models.ReturnRequest, actor Actor) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   request.ID,
		Version:       1,
		Actor:         buildActor(actor),
		Data: ReturnLifecycleEvent{
			ReturnID:     request.ID,
			OrderID:      request.OrderID,
			OrderItemID:  request.OrderItemID,
			CustomerID:   request.CustomerID,
			Status:       request.Status,
			RefundStatus: request.RefundStatus,
			AmountCents:  request.ReturnAmountCents,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func canReject(current enums.ReturnStatus) bool {
	switch current {
	case enums.ReturnStatusRequested, enums.ReturnStatusApproved, enums.ReturnStatusPickedUp:
		return true
	default:
		return false
	}
}

func buildActor(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		UserID: actor.UserID,
		Role:   actor.Role.String(),
	}
}
