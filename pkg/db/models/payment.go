package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// Payment mirrors one platform payment, either buyer-to-app or app-to-user.
// PlatformPaymentID is the platform's identifier and is the dedupe key for
// webhook replays.
type Payment struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PlatformPaymentID string            `gorm:"column:platform_payment_id;uniqueIndex;not null"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Amount            decimal.Decimal   `gorm:"column:amount;type:decimal(20,8);not null"`
	Memo              string            `gorm:"column:memo;not null"`
	Type              enums.PaymentType `gorm:"column:type;type:payment_type;not null"`
	PayoutEntryID     *uuid.UUID        `gorm:"column:payout_entry_id;type:uuid;index"`
	Paid              bool              `gorm:"column:paid;not null;default:false"`
	Cancelled         bool              `gorm:"column:cancelled;not null;default:false"`
	TxID              *string           `gorm:"column:tx_id"`
	TxLink            *string           `gorm:"column:tx_link"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
