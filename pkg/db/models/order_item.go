package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// OrderItem is a single line of an order.
type OrderItem struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	SellerItemID uuid.UUID             `gorm:"column:seller_item_id;type:uuid;not null"`
	Quantity     int                   `gorm:"column:quantity;not null"`
	Subtotal     decimal.Decimal       `gorm:"column:subtotal;type:decimal(20,8);not null"`
	Status       enums.OrderItemStatus `gorm:"column:status;type:order_item_status;not null;default:'pending'"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
