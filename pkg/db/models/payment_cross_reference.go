package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// PaymentCrossReference pairs the buyer-to-app payment for an order with the
// eventual app-to-seller payout. One row exists per order.
type PaymentCrossReference struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID              `gorm:"column:order_id;type:uuid;uniqueIndex;not null"`
	U2APaymentID   uuid.UUID              `gorm:"column:u2a_payment_id;type:uuid;not null"`
	A2UPaymentID   *uuid.UUID             `gorm:"column:a2u_payment_id;type:uuid"`
	Status         enums.SettlementStatus `gorm:"column:status;type:settlement_status;not null;default:'pending'"`
	U2ACompletedAt *time.Time             `gorm:"column:u2a_completed_at"`
	A2UCompletedAt *time.Time             `gorm:"column:a2u_completed_at"`
	LastError      *string                `gorm:"column:last_error"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
