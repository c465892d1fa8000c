package payments

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
	"github.com/pimartlabs/pimart-backend/pkg/logger"
	"github.com/pimartlabs/pimart-backend/pkg/outbox"
	"github.com/pimartlabs/pimart-backend/pkg/pinetwork"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	platform PlatformClient
	xrefs    CrossRefUpdater
	logg     *logger.Logger
}

// PaymentCompletedEvent is emitted when a buyer payment settles.
type PaymentCompletedEvent struct {
	PaymentID         uuid.UUID         `json:"payment_id"`
	PlatformPaymentID string            `json:"platform_payment_id"`
	UserID            uuid.UUID         `json:"user_id"`
	Type              enums.PaymentType `json:"type"`
	TxID              string            `json:"tx_id"`
}

// PaymentCancelledEvent is emitted when a payment is voided.
type PaymentCancelledEvent struct {
	PaymentID         uuid.UUID         `json:"payment_id"`
	PlatformPaymentID string            `json:"platform_payment_id"`
	UserID            uuid.UUID         `json:"user_id"`
	Type              enums.PaymentType `json:"type"`
}

// NewService builds a payments service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	platform PlatformClient,
	xrefs CrossRefUpdater,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if platform == nil {
		return nil, fmt.Errorf("platform client required")
	}
	if xrefs == nil {
		return nil, fmt.Errorf("cross reference updater required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		platform: platform,
		xrefs:    xrefs,
		logg:     logg,
	}, nil
}

// EnsurePayment mirrors a platform payment locally, deduplicating on the
// platform identifier. The bool reports whether a new row was created.
func (s *service) EnsurePayment(ctx context.Context, tx *gorm.DB, input EnsurePaymentInput) (*models.Payment, bool, error) {
	if input.PlatformPaymentID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "platform payment id required")
	}
	if input.UserID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment type %q", input.Type))
	}

	repo := s.repo.WithTx(tx)
	payment := &models.Payment{
		ID:                uuid.New(),
		PlatformPaymentID: input.PlatformPaymentID,
		UserID:            input.UserID,
		Amount:            input.Amount,
		Memo:              input.Memo,
		Type:              input.Type,
	}
	created, err := repo.Create(ctx, payment)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			existing, findErr := repo.FindByPlatformID(ctx, input.PlatformPaymentID)
			if findErr != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing payment")
			}
			return existing, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return created, true, nil
}

// MarkCompleted flags the payment as settled and emits the completion event
// in the same transaction as the update. Replays return the payment unchanged.
func (s *service) MarkCompleted(ctx context.Context, tx *gorm.DB, platformID, txID, txLink string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.runInTx(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadByPlatformID(ctx, repo, platformID)
		if err != nil {
			return err
		}
		if loaded.Paid {
			payment = loaded
			return nil
		}
		if loaded.Cancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled payment cannot complete")
		}

		updates := map[string]any{"paid": true}
		if txID != "" {
			updates["tx_id"] = txID
		}
		if txLink != "" {
			updates["tx_link"] = txLink
		}
		if err := repo.Update(ctx, loaded.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		loaded.Paid = true
		if txID != "" {
			loaded.TxID = &txID
		}
		payment = loaded

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   loaded.ID,
			Version:       1,
			Data: PaymentCompletedEvent{
				PaymentID:         loaded.ID,
				PlatformPaymentID: loaded.PlatformPaymentID,
				UserID:            loaded.UserID,
				Type:              loaded.Type,
				TxID:              txID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkCancelled flags the payment as void and emits the cancellation event in
// the same transaction as the update.
func (s *service) MarkCancelled(ctx context.Context, tx *gorm.DB, platformID string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.runInTx(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadByPlatformID(ctx, repo, platformID)
		if err != nil {
			return err
		}
		if loaded.Cancelled {
			payment = loaded
			return nil
		}
		if loaded.Paid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "settled payment cannot be cancelled")
		}

		if err := repo.Update(ctx, loaded.ID, map[string]any{"cancelled": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		loaded.Cancelled = true
		payment = loaded

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCancelled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   loaded.ID,
			Version:       1,
			Data: PaymentCancelledEvent{
				PaymentID:         loaded.ID,
				PlatformPaymentID: loaded.PlatformPaymentID,
				UserID:            loaded.UserID,
				Type:              loaded.Type,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// runInTx executes fn inside the caller's transaction when one is supplied,
// otherwise opens its own so the row update and outbox insert commit together.
func (s *service) runInTx(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.tx.WithTx(ctx, fn)
}

func (s *service) FindByPlatformID(ctx context.Context, platformID string) (*models.Payment, error) {
	return s.loadByPlatformID(ctx, s.repo, platformID)
}

// CreatePayout runs the app-to-seller payout pipeline against the platform,
// persisting progress after every remote step. A retry for the same queue
// entry picks up the payment persisted by an earlier attempt and continues
// from its stage, so one entry never opens a second platform payment.
func (s *service) CreatePayout(ctx context.Context, input CreatePayoutInput) (*models.Payment, error) {
	if input.EntryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout entry id required")
	}
	if input.PayeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payee id required")
	}
	if input.PayeeExternalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payee external id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	if len(input.CrossReferenceIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cross reference ids required")
	}

	ctx = s.logg.WithSellerID(ctx, input.PayeeID.String())

	payment, err := s.findResumablePayout(ctx, input.EntryID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		if payment, err = s.openPayout(ctx, input); err != nil {
			return nil, err
		}
	}
	ctx = s.logg.WithPaymentID(ctx, payment.PlatformPaymentID)

	if payment.TxID == nil {
		txID, err := s.platform.SubmitPayment(ctx, payment.PlatformPaymentID)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Update(ctx, payment.ID, map[string]any{"tx_id": txID}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout txid")
		}
		payment.TxID = &txID
		s.logg.Info(ctx, "payout transaction submitted")
	}

	if !payment.Paid {
		// The settlements are confirmed before the platform acknowledges
		// completion; the txid already exists on chain at this point.
		if err := s.xrefs.ConfirmPayout(ctx, input.CrossReferenceIDs, payment.ID, time.Now().UTC()); err != nil {
			return nil, err
		}

		if _, err := s.platform.CompletePayment(ctx, payment.PlatformPaymentID, *payment.TxID); err != nil {
			return nil, err
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Update(ctx, payment.ID, map[string]any{"paid": true}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize payout payment")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutCompleted,
				AggregateType: enums.AggregatePayout,
				AggregateID:   payment.ID,
				Version:       1,
				Data: PaymentCompletedEvent{
					PaymentID:         payment.ID,
					PlatformPaymentID: payment.PlatformPaymentID,
					UserID:            payment.UserID,
					Type:              payment.Type,
					TxID:              *payment.TxID,
				},
			})
		})
		if err != nil {
			return nil, err
		}
		payment.Paid = true
	}

	if err := s.xrefs.FinalizePayout(ctx, input.CrossReferenceIDs); err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "payout completed")
	return payment, nil
}

// findResumablePayout looks for a payment a previous attempt at the same queue
// entry left behind. A nil result with no error means no attempt got far
// enough to persist one.
func (s *service) findResumablePayout(ctx context.Context, entryID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByPayoutEntryID(ctx, entryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payout payment")
	}
	s.logg.Info(s.logg.WithPaymentID(ctx, payment.PlatformPaymentID), "resuming persisted payout")
	return payment, nil
}

// openPayout creates the platform payment and mirrors it locally, linked to
// the queue entry so retries can find it.
func (s *service) openPayout(ctx context.Context, input CreatePayoutInput) (*models.Payment, error) {
	dto, err := s.platform.CreatePayment(ctx, pinetwork.CreatePaymentInput{
		Amount: input.Amount,
		Memo:   input.Memo,
		UID:    input.PayeeExternalID,
		Metadata: pinetwork.Metadata{
			PaymentType:      string(enums.PaymentTypeSellerPayout),
			SellerExternalID: input.PayeeExternalID,
		},
	})
	if err != nil {
		return nil, err
	}

	entryID := input.EntryID
	payment := &models.Payment{
		ID:                uuid.New(),
		PlatformPaymentID: dto.Identifier,
		UserID:            input.PayeeID,
		Amount:            input.Amount,
		Memo:              input.Memo,
		Type:              enums.PaymentTypeSellerPayout,
		PayoutEntryID:     &entryID,
	}
	if _, err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payout payment")
	}
	s.logg.Info(s.logg.WithPaymentID(ctx, dto.Identifier), "payout payment created")
	return payment, nil
}

func (s *service) loadByPlatformID(ctx context.Context, repo Repository, platformID string) (*models.Payment, error) {
	if platformID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform payment id required")
	}
	payment, err := repo.FindByPlatformID(ctx, platformID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}
