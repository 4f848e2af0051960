package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopsphere/returns-backend/pkg/enums"
)

// ReturnRequest tracks a single return through its lifecycle, from the
// customer's request to settlement or rejection.
type ReturnRequest struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	OrderItemID          uuid.UUID          `gorm:"column:order_item_id;type:uuid;not null"`
	CustomerID           uuid.UUID          `gorm:"column:customer_id;type:uuid;not null"`
	OrderNumber          string             `gorm:"column:order_number;not null"`
	Reason               enums.ReturnReason `gorm:"column:reason;type:return_reason;not null"`
	Description          string             `gorm:"column:description;not null"`
	RejectionReason      *string            `gorm:"column:rejection_reason"`
	ConditionNotes       *string            `gorm:"column:condition_notes"`
	VerificationImageRef *string            `gorm:"column:verification_image_ref"`
	ReturnAmountCents    int                `gorm:"column:return_amount_cents;not null"`
	Currency             string             `gorm:"column:currency;not null;default:'USD'"`
	Status               enums.ReturnStatus `gorm:"column:status;type:return_status;not null;default:'requested'"`
	RefundStatus         enums.RefundStatus `gorm:"column:refund_status;type:refund_status;not null;default:'none'"`
	PickupAgentRef       *string            `gorm:"column:pickup_agent_ref"`
	RequestedAt          time.Time          `gorm:"column:requested_at;not null"`
	ApprovedAt           *time.Time         `gorm:"column:approved_at"`
	PickedUpAt           *time.Time         `gorm:"column:picked_up_at"`
	ReceivedAt           *time.Time         `gorm:"column:received_at"`
	SettledAt            *time.Time         `gorm:"column:settled_at"`
	RejectedAt           *time.Time         `gorm:"column:rejected_at"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
