package memberships

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
)

// Repository defines persistence operations for memberships. User class
// updates live here so membership writes stay in one transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, membership *models.Membership) (*models.Membership, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Membership, error)
	UpdateUserClass(ctx context.Context, userID uuid.UUID, class string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a memberships repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, membership *models.Membership) (*models.Membership, error) {
	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *repository) UpdateUserClass(ctx context.Context, userID uuid.UUID, class string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("membership_class", class).Error
}
