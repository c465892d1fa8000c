package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	apperrors "github.com/pimartlabs/pimart-backend/pkg/errors"
)

// Adjuster mutates seller item availability inside a caller's transaction.
// Both methods return the item with its post-adjustment level.
type Adjuster interface {
	Consume(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (*models.SellerItem, error)
	Restore(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (*models.SellerItem, error)
}

type adjuster struct {
	repo Repository
}

// NewAdjuster builds the default stock adjuster.
func NewAdjuster(repo Repository) (Adjuster, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &adjuster{repo: repo}, nil
}

// Consume applies a sale of qty units to the item's level.
func (a *adjuster) Consume(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (*models.SellerItem, error) {
	return a.adjust(ctx, tx, itemID, qty, ApplyOrder)
}

// Restore returns qty units to the item's level, undoing a prior sale.
func (a *adjuster) Restore(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (*models.SellerItem, error) {
	return a.adjust(ctx, tx, itemID, qty, ApplyRollback)
}

func (a *adjuster) adjust(
	ctx context.Context,
	tx *gorm.DB,
	itemID uuid.UUID,
	qty int,
	apply func(enums.StockLevel, int) (enums.StockLevel, error),
) (*models.SellerItem, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeDependency, "transaction required for stock adjustment")
	}

	repo := a.repo.WithTx(tx)
	item, err := repo.FindByID(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "seller item not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load seller item")
	}

	next, err := apply(item.StockLevel, qty)
	if err != nil {
		if typed := apperrors.As(err); typed != nil && typed.Code() == apperrors.CodeOutOfStock {
			details, _ := typed.Details().(map[string]any)
			if details == nil {
				details = map[string]any{}
			}
			details["seller_item_id"] = itemID.String()
			return nil, typed.WithDetails(details)
		}
		return nil, err
	}
	if next == item.StockLevel {
		return item, nil
	}

	updated, err := repo.UpdateLevelIfUnchanged(ctx, itemID, item.StockLevel, next)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "update stock level")
	}
	if !updated {
		return nil, apperrors.New(apperrors.CodeConflict, "stock level changed concurrently")
	}
	item.StockLevel = next
	return item, nil
}
