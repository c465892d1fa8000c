package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// SellerItem is a sellable listing with a coarse-grained availability level
// instead of an exact unit count.
type SellerItem struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID        `gorm:"column:seller_id;type:uuid;not null;index"`
	Name        string           `gorm:"column:name;not null"`
	Description *string          `gorm:"column:description"`
	Price       decimal.Decimal  `gorm:"column:price;type:decimal(20,8);not null"`
	StockLevel  enums.StockLevel `gorm:"column:stock_level;type:stock_level;not null;default:'many_available'"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
