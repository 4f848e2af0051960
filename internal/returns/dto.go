package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsphere/returns-backend/pkg/enums"
)

// ReturnFilters describe the inputs supported by the returns list.
type ReturnFilters struct {
	Status     *enums.ReturnStatus
	CustomerID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
}

// ReturnSummary exposes the aggregated fields returned in list responses.
type ReturnSummary struct {
	ID           uuid.UUID          `json:"id"`
	OrderNumber  string             `json:"order_number"`
	ProductName  string             `json:"product_name"`
	Reason       enums.ReturnReason `json:"reason"`
	Status       enums.ReturnStatus `json:"status"`
	RefundStatus enums.RefundStatus `json:"refund_status"`
	AmountCents  int                `json:"amount_cents"`
	Amount       string             `json:"amount"`
	Currency     string             `json:"currency"`
	RequestedAt  time.Time          `json:"requested_at"`
	CreatedAt    time.Time          `json:"created_at"`
}

// ReturnList wraps the paginated returns plus the next page cursor.
type ReturnList struct {
	Returns    []ReturnSummary `json:"returns"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// SettlementAttemptView exposes one refund attempt in the return detail.
type SettlementAttemptView struct {
	ID          uuid.UUID               `json:"id"`
	AmountCents int                     `json:"amount_cents"`
	Outcome     enums.SettlementOutcome `json:"outcome"`
	Detail      *string                 `json:"detail,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// ReturnDetail is the full projection of one return with its settlement history.
type ReturnDetail struct {
	ID                   uuid.UUID               `json:"id"`
	OrderID              uuid.UUID               `json:"order_id"`
	OrderItemID          uuid.UUID               `json:"order_item_id"`
	CustomerID           uuid.UUID               `json:"customer_id"`
	OrderNumber          string                  `json:"order_number"`
	ProductName          string                  `json:"product_name"`
	Reason               enums.ReturnReason      `json:"reason"`
	Description          string                  `json:"description"`
	RejectionReason      *string                 `json:"rejection_reason,omitempty"`
	ConditionNotes       *string                 `json:"condition_notes,omitempty"`
	VerificationImageRef *string                 `json:"verification_image_ref,omitempty"`
	AmountCents          int                     `json:"amount_cents"`
	Amount               string                  `json:"amount"`
	Currency             string                  `json:"currency"`
	Status               enums.ReturnStatus      `json:"status"`
	RefundStatus         enums.RefundStatus      `json:"refund_status"`
	PickupAgentRef       *string                 `json:"pickup_agent_ref,omitempty"`
	RequestedAt          time.Time               `json:"requested_at"`
	ApprovedAt           *time.Time              `json:"approved_at,omitempty"`
	PickedUpAt           *time.Time              `json:"picked_up_at,omitempty"`
	ReceivedAt           *time.Time              `json:"received_at,omitempty"`
	SettledAt            *time.Time              `json:"settled_at,omitempty"`
	RejectedAt           *time.Time              `json:"rejected_at,omitempty"`
	SettlementAttempts   []SettlementAttemptView `json:"settlement_attempts,omitempty"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// ReturnLifecycleEvent is the payload emitted on every status change.
type ReturnLifecycleEvent struct {
	ReturnID     uuid.UUID          `json:"return_id"`
	OrderID      uuid.UUID          `json:"order_id"`
	OrderItemID  uuid.UUID          `json:"order_item_id"`
	CustomerID   uuid.UUID          `json:"customer_id"`
	Status       enums.ReturnStatus `json:"status"`
	RefundStatus enums.RefundStatus `json:"refund_status"`
	AmountCents  int                `json:"amount_cents"`
}

// RefundFailedEvent carries the failure context when settlement does not complete.
type RefundFailedEvent struct {
	ReturnID    uuid.UUID               `json:"return_id"`
	OrderID     uuid.UUID               `json:"order_id"`
	CustomerID  uuid.UUID               `json:"customer_id"`
	AmountCents int                     `json:"amount_cents"`
	Outcome     enums.SettlementOutcome `json:"outcome"`
	Detail      string                  `json:"detail,omitempty"`
}

// amountDollars renders a cent amount as a decimal dollar string for responses.
func amountDollars(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
