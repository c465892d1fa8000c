package memberships

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	apperrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/logger"

	"github.com/pimartlabs/pimart-backend/internal/users"
)

func setupMembershipTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  external_id TEXT NOT NULL UNIQUE,
  username TEXT NOT NULL,
  wallet_address TEXT,
  membership_class TEXT NOT NULL DEFAULT 'basic',
  gas_saver INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS memberships (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  class TEXT NOT NULL,
  payment_id TEXT,
  active_until DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

func newMembershipService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		users.NewRepository(db),
		logger.New(logger.Options{ServiceName: "memberships-test"}),
	)
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:              uuid.New(),
		ExternalID:      "ext-" + uuid.NewString()[:8],
		Username:        "buyer",
		MembershipClass: "basic",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestApplyUpgradesUserClass(t *testing.T) {
	db := setupMembershipTestDB(t)
	svc := newMembershipService(t, db)
	user := seedUser(t, db)

	err := svc.Apply(context.Background(), db, ApplyInput{
		UserID:    user.ID,
		Class:     "gold",
		PaymentID: uuid.New(),
	})
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&stored).Error)
	assert.Equal(t, "gold", stored.MembershipClass)

	var count int64
	require.NoError(t, db.Model(&models.Membership{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestApplyIsIdempotentPerPayment(t *testing.T) {
	db := setupMembershipTestDB(t)
	svc := newMembershipService(t, db)
	user := seedUser(t, db)
	paymentID := uuid.New()

	input := ApplyInput{UserID: user.ID, Class: "gold", PaymentID: paymentID}
	require.NoError(t, svc.Apply(context.Background(), db, input))
	require.NoError(t, svc.Apply(context.Background(), db, input))

	var count int64
	require.NoError(t, db.Model(&models.Membership{}).
		Where("payment_id = ?", paymentID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestApplyUnknownUser(t *testing.T) {
	db := setupMembershipTestDB(t)
	svc := newMembershipService(t, db)

	err := svc.Apply(context.Background(), db, ApplyInput{
		UserID:    uuid.New(),
		Class:     "gold",
		PaymentID: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
