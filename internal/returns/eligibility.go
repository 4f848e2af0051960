package returns

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/shopsphere/returns-backend/pkg/db"
	"github.com/shopsphere/returns-backend/pkg/db/models"
	"github.com/shopsphere/returns-backend/pkg/enums"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
)

const activeReturnConstraint = "uniq_active_return_per_item"

func (s *service) CreateReturn(ctx context.Context, input CreateReturnInput) (*ReturnDetail, error) {
	if input.OrderItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid return reason")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var created *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.FindOrderItem(ctx, input.OrderItemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if item.CustomerID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		if item.DeliveredAt == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item has not been delivered")
		}

		now := s.now()
		if now.After(item.DeliveredAt.Add(s.cfg.Window())) {
			return pkgerrors.New(pkgerrors.CodeValidation, "return window has closed")
		}

		remaining := decimal.NewFromInt(int64(item.PaidPriceCents)).
			Sub(decimal.NewFromInt(int64(item.RefundedCents)))
		if !remaining.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "item has no refundable amount left")
		}

		active, err := repo.HasActiveReturn(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active returns")
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeConflict, "a return is already open for this item")
		}

		request := &models.ReturnRequest{
			OrderID:           item.OrderID,
			OrderItemID:       item.ID,
			CustomerID:        item.CustomerID,
			OrderNumber:       item.OrderNumber,
			Reason:            input.Reason,
			Description:       strings.TrimSpace(input.Description),
			ReturnAmountCents: int(remaining.IntPart()),
			Currency:          item.Currency,
			Status:            enums.ReturnStatusRequested,
			RefundStatus:      enums.RefundStatusNone,
			RequestedAt:       now,
		}

		created, err = repo.CreateReturnRequest(ctx, request)
		if err != nil {
			// The partial unique index closes the race between the pre-check
			// and insert when two requests arrive for the same item.
			if dbpkg.IsUniqueViolation(err, activeReturnConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "a return is already open for this item")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
		}

		return s.emitLifecycle(ctx, tx, enums.EventReturnRequested, created, input.Actor)
	})
	if err != nil {
		return nil, err
	}

	detail, err := s.repo.FindReturnDetail(ctx, created.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load created return")
	}
	return detail, nil
}
