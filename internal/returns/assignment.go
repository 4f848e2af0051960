package returns

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsphere/returns-backend/pkg/enums"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
)

func (s *service) AssignAgent(ctx context.Context, input AssignInput) error {
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
	if request.Status != enums.ReturnStatusApproved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup can only be scheduled for approved returns")
	}

	// The collaborator call happens outside the transaction so a slow or
	// failing booking never holds row locks.
	agentRef, err := s.pickup.RequestPickup(ctx, request.ID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionStatus(ctx, request.ID,
			enums.ReturnStatusApproved, enums.ReturnStatusPickupAssigned,
			map[string]any{"pickup_agent_ref": agentRef})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return moved while scheduling pickup")
		}

		request.Status = enums.ReturnStatusPickupAssigned
		request.PickupAgentRef = &agentRef
		return s.emitLifecycle(ctx, tx, enums.EventReturnPickupAssigned, request, input.Actor)
	})
}

func (s *service) ConfirmPickup(ctx context.Context, input ConfirmPickupInput) error {
	if input.ReturnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := loadReturn(ctx, repo, input.ReturnID)
		if err != nil {
			return err
		}

		if ref := strings.TrimSpace(input.AgentRef); ref != "" {
			if request.PickupAgentRef == nil || *request.PickupAgentRef != ref {
				return pkgerrors.New(pkgerrors.CodeConflict, "agent reference does not match assignment")
			}
		}

		moved, err := repo.TransitionStatus(ctx, request.ID,
			enums.ReturnStatusPickupAssigned, enums.ReturnStatusPickedUp,
			map[string]any{"picked_up_at": s.now()})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup cannot be confirmed in current state")
		}

		request.Status = enums.ReturnStatusPickedUp
		return s.emitLifecycle(ctx, tx, enums.EventReturnPickedUp, request, Actor{})
	})
}
