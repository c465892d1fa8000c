package xref

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// PayoutCandidate is a settled buyer payment awaiting its seller payout.
type PayoutCandidate struct {
	CrossReferenceID uuid.UUID
	OrderID          uuid.UUID
	SellerID         uuid.UUID
	Amount           decimal.Decimal
	U2ACompletedAt   time.Time
}

// Repository defines persistence operations for payment cross references.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ref *models.PaymentCrossReference) (*models.PaymentCrossReference, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentCrossReference, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PaymentCrossReference, error)
	UpdateWhereNotTerminal(ctx context.Context, ids []uuid.UUID, updates map[string]any) error
	ListPayoutPending(ctx context.Context) ([]PayoutCandidate, error)
}

// Service exposes cross reference lifecycle transitions.
type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID, u2aPaymentID uuid.UUID) (*models.PaymentCrossReference, error)
	MarkU2ACompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, completedAt time.Time) error
	MarkU2AFailed(ctx context.Context, orderID uuid.UUID, reason string) error
	ListPayoutPending(ctx context.Context) ([]PayoutCandidate, error)
	ConfirmPayout(ctx context.Context, ids []uuid.UUID, a2uPaymentID uuid.UUID, completedAt time.Time) error
	FinalizePayout(ctx context.Context, ids []uuid.UUID) error
	MarkPayoutFailed(ctx context.Context, ids []uuid.UUID, reason string) error
	StatusOf(ctx context.Context, orderID uuid.UUID) (enums.SettlementStatus, error)
}
