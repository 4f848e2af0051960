package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsphere/returns-backend/pkg/db/models"
	"github.com/shopsphere/returns-backend/pkg/enums"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
	"github.com/shopsphere/returns-backend/pkg/outbox"
	"github.com/shopsphere/returns-backend/pkg/square"
)

// settlementNamespace seeds the deterministic refund token so retries of the
// same return always present the same idempotency key to the gateway.
var settlementNamespace = uuid.MustParse("7e0aa6f2-3c45-4a6e-9a71-4f9d1d2b8c15")

func settlementToken(returnID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(settlementNamespace, returnID[:])
}

func (s *service) ProcessRefund(ctx context.Context, input RefundInput) error {
	if input.ReturnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	request, err := loadReturn(ctx, s.repo, input.ReturnID)
	if err != nil {
		return err
	}
	if request.RefundStatus == enums.RefundStatusProcessed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already processed")
	}
	if request.Status != enums.ReturnStatusReceived {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund requires a received return")
	}

	item, err := s.repo.FindOrderItem(ctx, request.OrderItemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}

	token := settlementToken(request.ID)
	start := s.now()
	_, gatewayErr := s.payments.RefundPayment(ctx, square.RefundParams{
		PaymentRef:     item.PaymentRef,
		AmountCents:    int64(request.ReturnAmountCents),
		Currency:       request.Currency,
		IdempotencyKey: token.String(),
		Reason:         string(request.Reason),
	})
	elapsed := s.now().Sub(start)

	outcome := enums.SettlementOutcomeSucceeded
	var detail *string
	if gatewayErr != nil {
		outcome = enums.SettlementOutcomeDeclined
		if pkgerrors.Retryable(gatewayErr) {
			outcome = enums.SettlementOutcomeUnreachable
		}
		msg := gatewayErr.Error()
		detail = &msg
	}
	s.metrics.ObserveAttempt(outcome.String(), elapsed)

	attempt := &models.SettlementAttempt{
		ReturnID:         request.ID,
		ActorUserID:      input.Actor.UserID,
		IdempotencyToken: token,
		AmountCents:      request.ReturnAmountCents,
		Currency:         request.Currency,
		Outcome:          outcome,
		Detail:           detail,
	}

	if gatewayErr != nil {
		if err := s.recordFailedSettlement(ctx, request, attempt, outcome, input.Actor); err != nil {
			return err
		}
		if pkgerrors.Retryable(gatewayErr) {
			return gatewayErr
		}
		// Declines surface as retryable so the operator can settle again
		// once the payment issue is resolved. The decline detail stays on
		// the settlement attempt.
		return pkgerrors.Wrap(pkgerrors.CodeDependency, gatewayErr, "refund declined by payment gateway")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.CreateSettlementAttempt(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record settlement attempt")
		}

		completed, err := repo.CompleteSettlement(ctx, request.ID, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete settlement")
		}
		if !completed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return moved while settling refund")
		}

		if err := repo.AddRefundedCents(ctx, request.OrderItemID, request.ReturnAmountCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refunded amount")
		}

		request.Status = enums.ReturnStatusCompleted
		request.RefundStatus = enums.RefundStatusProcessed
		return s.emitLifecycle(ctx, tx, enums.EventReturnCompleted, request, input.Actor)
	})
}

func (s *service) recordFailedSettlement(ctx context.Context, request *models.ReturnRequest, attempt *models.SettlementAttempt, outcome enums.SettlementOutcome, actor Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.CreateSettlementAttempt(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record settlement attempt")
		}
		marked, err := repo.MarkRefundFailed(ctx, request.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark refund failed")
		}
		if !marked {
			// A concurrent attempt with the same token already completed
			// the settlement. Keep the attempt record, skip the failure
			// event.
			return nil
		}

		detail := ""
		if attempt.Detail != nil {
			detail = *attempt.Detail
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReturnRefundFailed,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: RefundFailedEvent{
				ReturnID:    request.ID,
				OrderID:     request.OrderID,
				CustomerID:  request.CustomerID,
				AmountCents: request.ReturnAmountCents,
				Outcome:     outcome,
				Detail:      detail,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}
