package webhooks

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shopsphere/returns-backend/api/responses"
	"github.com/shopsphere/returns-backend/api/validators"
	internalreturns "github.com/shopsphere/returns-backend/internal/returns"
	"github.com/shopsphere/returns-backend/pkg/config"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
	"github.com/shopsphere/returns-backend/pkg/logger"
)

const webhookTokenHeader = "X-Webhook-Token"

type PickupService interface {
	ConfirmPickup(ctx context.Context, input internalreturns.ConfirmPickupInput) error
}

type pickupConfirmedPayload struct {
	ReturnID string `json:"return_id" validate:"required,uuid4"`
	AgentRef string `json:"agent_ref,omitempty"`
}

// LogisticsPickupConfirmed handles the courier callback marking an assigned
// return as collected.
func LogisticsPickupConfirmed(svc PickupService, cfg config.LogisticsConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		token := strings.TrimSpace(r.Header.Get(webhookTokenHeader))
		if token == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook token missing"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.WebhookToken)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook token invalid"))
			return
		}

		var payload pickupConfirmedPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		returnID, err := uuid.Parse(strings.TrimSpace(payload.ReturnID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return id"))
			return
		}

		input := internalreturns.ConfirmPickupInput{
			ReturnID: returnID,
			AgentRef: strings.TrimSpace(payload.AgentRef),
		}
		if err := svc.ConfirmPickup(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("pickup confirmed for return %s", returnID))
		}
		responses.WriteSuccess(w, nil)
	}
}
