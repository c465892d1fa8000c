package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// PayoutQueueEntry is one pending app-to-seller payout. Amount is net of the
// per-transaction gas fee. CrossReferenceIDs lists every settlement the entry
// covers; batched entries cover several.
type PayoutQueueEntry struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayeeID           uuid.UUID          `gorm:"column:payee_id;type:uuid;not null;index"`
	Amount            decimal.Decimal    `gorm:"column:amount;type:decimal(20,8);not null"`
	CrossReferenceIDs []uuid.UUID        `gorm:"column:cross_reference_ids;type:jsonb;serializer:json;not null"`
	Status            enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	AttemptCount      int                `gorm:"column:attempt_count;not null;default:0"`
	LastError         *string            `gorm:"column:last_error"`
	LastA2UDate       *time.Time         `gorm:"column:last_a2u_date"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
