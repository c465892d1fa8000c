package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// Repository defines persistence operations for seller items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.SellerItem, error)
	Create(ctx context.Context, item *models.SellerItem) (*models.SellerItem, error)
	UpdateLevelIfUnchanged(ctx context.Context, id uuid.UUID, from, to enums.StockLevel) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a seller item repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SellerItem, error) {
	var item models.SellerItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Create(ctx context.Context, item *models.SellerItem) (*models.SellerItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateLevelIfUnchanged performs a compare-and-set on the stock level so
// concurrent orders cannot both consume the same units.
func (r *repository) UpdateLevelIfUnchanged(ctx context.Context, id uuid.UUID, from, to enums.StockLevel) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SellerItem{}).
		Where("id = ? AND stock_level = ?", id, from).
		Update("stock_level", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
