package xref

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/pimartlabs/pimart-backend/pkg/db"
	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	pkgerrors "github.com/pimartlabs/pimart-backend/pkg/errors"
)

type service struct {
	repo Repository
}

// NewService builds the default cross reference service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cross reference repository required")
	}
	return &service{repo: repo}, nil
}

// CreateForOrder opens the settlement record pairing an order with its buyer
// payment. Each order gets exactly one; replays return the existing row.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, orderID, u2aPaymentID uuid.UUID) (*models.PaymentCrossReference, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if u2aPaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer payment id required")
	}

	repo := s.repo.WithTx(tx)
	ref := &models.PaymentCrossReference{
		ID:           uuid.New(),
		OrderID:      orderID,
		U2APaymentID: u2aPaymentID,
		Status:       enums.SettlementStatusPending,
	}
	created, err := repo.Create(ctx, ref)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			existing, findErr := repo.FindByOrderID(ctx, orderID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing cross reference")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cross reference")
	}
	return created, nil
}

// MarkU2ACompleted records that the buyer's payment settled on chain.
func (s *service) MarkU2ACompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, completedAt time.Time) error {
	repo := s.repo.WithTx(tx)
	ref, err := s.load(ctx, repo, orderID)
	if err != nil {
		return err
	}
	if ref.Status != enums.SettlementStatusPending && ref.Status != enums.SettlementStatusU2AFailed {
		return nil
	}
	return s.update(ctx, repo, []uuid.UUID{ref.ID}, map[string]any{
		"status":           enums.SettlementStatusU2ACompleted,
		"u2a_completed_at": completedAt,
		"last_error":       nil,
	})
}

// MarkU2AFailed records a failed or cancelled buyer payment.
func (s *service) MarkU2AFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	ref, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return err
	}
	if ref.Status != enums.SettlementStatusPending {
		return nil
	}
	return s.update(ctx, s.repo, []uuid.UUID{ref.ID}, map[string]any{
		"status":     enums.SettlementStatusU2AFailed,
		"last_error": reason,
	})
}

func (s *service) ListPayoutPending(ctx context.Context) ([]PayoutCandidate, error) {
	candidates, err := s.repo.ListPayoutPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout pending settlements")
	}
	return candidates, nil
}

// ConfirmPayout links the seller payout payment to the settlements once the
// platform accepted the submitted transaction.
func (s *service) ConfirmPayout(ctx context.Context, ids []uuid.UUID, a2uPaymentID uuid.UUID, completedAt time.Time) error {
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cross reference ids required")
	}
	if a2uPaymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout payment id required")
	}
	return s.update(ctx, s.repo, ids, map[string]any{
		"status":           enums.SettlementStatusA2UCompleted,
		"a2u_payment_id":   a2uPaymentID,
		"a2u_completed_at": completedAt,
		"last_error":       nil,
	})
}

// FinalizePayout moves the settlements to their terminal status after the
// platform acknowledged completion.
func (s *service) FinalizePayout(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cross reference ids required")
	}
	return s.update(ctx, s.repo, ids, map[string]any{
		"status": enums.SettlementStatusCompleted,
	})
}

// MarkPayoutFailed records a payout failure. Completed settlements are never
// regressed. The payout payment link is cleared on the rest; a failed
// settlement carries no a2u payment until a later payout confirms one.
func (s *service) MarkPayoutFailed(ctx context.Context, ids []uuid.UUID, reason string) error {
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cross reference ids required")
	}
	return s.update(ctx, s.repo, ids, map[string]any{
		"status":           enums.SettlementStatusA2UFailed,
		"a2u_payment_id":   nil,
		"a2u_completed_at": nil,
		"last_error":       reason,
	})
}

func (s *service) StatusOf(ctx context.Context, orderID uuid.UUID) (enums.SettlementStatus, error) {
	ref, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return "", err
	}
	return ref.Status, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.PaymentCrossReference, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ref, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cross reference not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cross reference")
	}
	return ref, nil
}

func (s *service) update(ctx context.Context, repo Repository, ids []uuid.UUID, updates map[string]any) error {
	if err := repo.UpdateWhereNotTerminal(ctx, ids, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cross references")
	}
	return nil
}
