package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform account mirrored into the local store. ExternalID is the
// immutable identifier assigned by the payment platform.
type User struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalID      string    `gorm:"column:external_id;uniqueIndex;not null"`
	Username        string    `gorm:"column:username;not null"`
	WalletAddress   *string   `gorm:"column:wallet_address"`
	MembershipClass string    `gorm:"column:membership_class;not null;default:'basic'"`
	GasSaver        bool      `gorm:"column:gas_saver;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
