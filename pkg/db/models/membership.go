package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership records a paid membership class for a user.
type Membership struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	Class       string     `gorm:"column:class;not null"`
	PaymentID   *uuid.UUID `gorm:"column:payment_id;type:uuid"`
	ActiveUntil *time.Time `gorm:"column:active_until"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
