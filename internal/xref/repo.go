package xref

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cross reference repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ref *models.PaymentCrossReference) (*models.PaymentCrossReference, error) {
	if err := r.db.WithContext(ctx).Create(ref).Error; err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentCrossReference, error) {
	var ref models.PaymentCrossReference
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&ref).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PaymentCrossReference, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var refs []models.PaymentCrossReference
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// UpdateWhereNotTerminal applies updates to the given rows, skipping any that
// already reached the completed status.
func (r *repository) UpdateWhereNotTerminal(ctx context.Context, ids []uuid.UUID, updates map[string]any) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.PaymentCrossReference{}).
		Where("id IN ?", ids).
		Where("status <> ?", enums.SettlementStatusCompleted).
		Updates(updates).Error
}

// ListPayoutPending joins orders to recover the seller and gross amount for
// every settlement whose buyer payment completed but whose payout payment has
// not been linked yet. Failed payouts without a linked payment re-enter the
// candidate set.
func (r *repository) ListPayoutPending(ctx context.Context) ([]PayoutCandidate, error) {
	var rows []struct {
		models.PaymentCrossReference
		SellerID    uuid.UUID
		TotalAmount string
	}
	err := r.db.WithContext(ctx).
		Model(&models.PaymentCrossReference{}).
		Select("payment_cross_references.*, orders.seller_id AS seller_id, orders.total_amount AS total_amount").
		Joins("JOIN orders ON orders.id = payment_cross_references.order_id").
		Where("payment_cross_references.status IN ?", []enums.SettlementStatus{
			enums.SettlementStatusU2ACompleted,
			enums.SettlementStatusA2UFailed,
		}).
		Where("payment_cross_references.a2u_payment_id IS NULL").
		Order("payment_cross_references.u2a_completed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]PayoutCandidate, 0, len(rows))
	for _, row := range rows {
		amount, err := parseAmount(row.TotalAmount)
		if err != nil {
			return nil, err
		}
		candidate := PayoutCandidate{
			CrossReferenceID: row.ID,
			OrderID:          row.OrderID,
			SellerID:         row.SellerID,
			Amount:           amount,
		}
		if row.U2ACompletedAt != nil {
			candidate.U2ACompletedAt = *row.U2ACompletedAt
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}
