package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	"github.com/pimartlabs/pimart-backend/pkg/pinetwork"
)

// Repository defines persistence operations for mirrored platform payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByPlatformID(ctx context.Context, platformID string) (*models.Payment, error)
	FindByPayoutEntryID(ctx context.Context, entryID uuid.UUID) (*models.Payment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// PlatformClient is the slice of the payment platform API the service needs.
type PlatformClient interface {
	CreatePayment(ctx context.Context, input pinetwork.CreatePaymentInput) (*pinetwork.PaymentDTO, error)
	SubmitPayment(ctx context.Context, paymentID string) (string, error)
	CompletePayment(ctx context.Context, paymentID, txID string) (*pinetwork.PaymentDTO, error)
}

// CrossRefUpdater advances settlement records as a payout progresses.
type CrossRefUpdater interface {
	ConfirmPayout(ctx context.Context, ids []uuid.UUID, a2uPaymentID uuid.UUID, completedAt time.Time) error
	FinalizePayout(ctx context.Context, ids []uuid.UUID) error
}

// Service exposes payment persistence and the seller payout pipeline.
type Service interface {
	EnsurePayment(ctx context.Context, tx *gorm.DB, input EnsurePaymentInput) (*models.Payment, bool, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, platformID, txID, txLink string) (*models.Payment, error)
	MarkCancelled(ctx context.Context, tx *gorm.DB, platformID string) (*models.Payment, error)
	FindByPlatformID(ctx context.Context, platformID string) (*models.Payment, error)
	CreatePayout(ctx context.Context, input CreatePayoutInput) (*models.Payment, error)
}

// EnsurePaymentInput mirrors one platform payment into the local store.
type EnsurePaymentInput struct {
	PlatformPaymentID string
	UserID            uuid.UUID
	Amount            decimal.Decimal
	Memo              string
	Type              enums.PaymentType
}

// CreatePayoutInput describes one app-to-seller payout to execute. EntryID is
// the queue entry driving the payout; retries for the same entry resume the
// payment persisted by an earlier attempt instead of opening a new one.
type CreatePayoutInput struct {
	EntryID           uuid.UUID
	PayeeID           uuid.UUID
	PayeeExternalID   string
	Amount            decimal.Decimal
	Memo              string
	CrossReferenceIDs []uuid.UUID
}
