package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// Order is a buyer's purchase from a single seller. PaymentID links the order
// to the buyer-to-app payment once the platform approves it.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID           uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID          uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	PaymentID         *uuid.UUID        `gorm:"column:payment_id;type:uuid;index"`
	TotalAmount       decimal.Decimal   `gorm:"column:total_amount;type:decimal(20,8);not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'initialized'"`
	IsPaid            bool              `gorm:"column:is_paid;not null;default:false"`
	IsFulfilled       bool              `gorm:"column:is_fulfilled;not null;default:false"`
	FulfillmentMethod string            `gorm:"column:fulfillment_method;not null;default:'delivery'"`
	BuyerNote         *string           `gorm:"column:buyer_note"`
	SellerNote        *string           `gorm:"column:seller_note"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
