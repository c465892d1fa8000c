package memberships

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	pkgerrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/logger"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service applies paid membership upgrades to users.
type Service interface {
	Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) error
}

// ApplyInput carries a settled membership payment.
type ApplyInput struct {
	UserID    uuid.UUID
	Class     string
	PaymentID uuid.UUID
}

type service struct {
	repo  Repository
	users userReader
	logg  *logger.Logger
}

// NewService builds a memberships service.
func NewService(repo Repository, users userReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("memberships repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, users: users, logg: logg}, nil
}

// Apply records the membership and moves the user to the paid class. Replays
// for the same payment are no-ops.
func (s *service) Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Class == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "membership class required")
	}
	if input.PaymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByPaymentID(ctx, input.PaymentID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if existing != nil {
		return nil
	}

	if _, err := s.users.FindByID(ctx, input.UserID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	paymentID := input.PaymentID
	membership := &models.Membership{
		ID:        uuid.New(),
		UserID:    input.UserID,
		Class:     input.Class,
		PaymentID: &paymentID,
	}
	if _, err := repo.Create(ctx, membership); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record membership")
	}

	if err := repo.UpdateUserClass(ctx, input.UserID, input.Class); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user class")
	}
	s.logg.Info(s.logg.WithField(ctx, "membership_class", input.Class), "membership applied")
	return nil
}
