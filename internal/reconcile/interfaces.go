package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/pinetwork"

	"github.com/pimartlabs/pimart-backend/internal/memberships"
	"github.com/pimartlabs/pimart-backend/internal/orders"
	"github.com/pimartlabs/pimart-backend/internal/payments"
)

// Outcome is the structured result handed back to the webhook layer. OK
// failures carry a message fit for logging and for the platform's own retry
// alerting.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Orchestrator reconciles platform webhook deliveries with local state. Every
// method is safe to call repeatedly with identical arguments.
type Orchestrator interface {
	OnApproval(ctx context.Context, platformPaymentID string) (Outcome, error)
	OnCompletion(ctx context.Context, platformPaymentID, txID string) (Outcome, error)
	OnCancellation(ctx context.Context, platformPaymentID string) (Outcome, error)
	OnIncompleteFound(ctx context.Context, platformPaymentID, txID, txLink string) (Outcome, error)
}

type platformClient interface {
	GetPayment(ctx context.Context, paymentID string) (*pinetwork.PaymentDTO, error)
	ApprovePayment(ctx context.Context, paymentID string) (*pinetwork.PaymentDTO, error)
	CompletePayment(ctx context.Context, paymentID, txID string) (*pinetwork.PaymentDTO, error)
	CancelPayment(ctx context.Context, paymentID string) (*pinetwork.PaymentDTO, error)
	GetTransactionMemo(ctx context.Context, txLink string) (string, error)
}

type paymentStore interface {
	EnsurePayment(ctx context.Context, tx *gorm.DB, input payments.EnsurePaymentInput) (*models.Payment, bool, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, platformID, txID, txLink string) (*models.Payment, error)
	MarkCancelled(ctx context.Context, tx *gorm.DB, platformID string) (*models.Payment, error)
	FindByPlatformID(ctx context.Context, platformID string) (*models.Payment, error)
}

type orderStore interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) error
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
}

type orderReader interface {
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Order, error)
}

type crossRefLedger interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID, u2aPaymentID uuid.UUID) (*models.PaymentCrossReference, error)
	MarkU2ACompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, completedAt time.Time) error
	MarkU2AFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}

type membershipApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, input memberships.ApplyInput) error
}

type userDirectory interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

type payoutCollector interface {
	Collect(ctx context.Context) (int, error)
}
