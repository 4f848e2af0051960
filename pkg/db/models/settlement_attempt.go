package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopsphere/returns-backend/pkg/enums"
)

// SettlementAttempt records an immutable refund attempt against the payment
// collaborator for a return.
type SettlementAttempt struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReturnID         uuid.UUID               `gorm:"column:return_id;type:uuid;not null"`
	ActorUserID      uuid.UUID               `gorm:"column:actor_user_id;type:uuid;not null"`
	IdempotencyToken uuid.UUID               `gorm:"column:idempotency_token;type:uuid;not null"`
	AmountCents      int                     `gorm:"column:amount_cents;not null"`
	Currency         string                  `gorm:"column:currency;not null;default:'USD'"`
	Outcome          enums.SettlementOutcome `gorm:"column:outcome;type:settlement_outcome;not null"`
	Detail           *string                 `gorm:"column:detail"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
}
