package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is the purchased line a return is raised against. The platform
// order service owns the full record; this table carries the slice needed to
// judge eligibility and cap refunds.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	CustomerID     uuid.UUID  `gorm:"column:customer_id;type:uuid;not null"`
	OrderNumber    string     `gorm:"column:order_number;not null"`
	ProductName    string     `gorm:"column:product_name;not null"`
	PaymentRef     string     `gorm:"column:payment_ref;not null"`
	PaidPriceCents int        `gorm:"column:paid_price_cents;not null"`
	RefundedCents  int        `gorm:"column:refunded_cents;not null;default:0"`
	Currency       string     `gorm:"column:currency;not null;default:'USD'"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
