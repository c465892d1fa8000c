package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Order, error)
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.OrderItemStatus) error
}
