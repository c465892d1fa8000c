package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	"github.com/pimartlabs/pimart-backend/pkg/logger"

	"github.com/pimartlabs/pimart-backend/internal/users"
	"github.com/pimartlabs/pimart-backend/internal/xref"
)

func newCollector(t *testing.T, db *gorm.DB) *Collector {
	t.Helper()

	xrefSvc, err := xref.NewService(xref.NewRepository(db))
	require.NoError(t, err)

	collector, err := NewCollector(
		xrefSvc,
		users.NewRepository(db),
		NewRepository(db),
		decimal.RequireFromString("0.01"),
		72*time.Hour,
		logger.New(logger.Options{ServiceName: "payouts-test"}),
	)
	require.NoError(t, err)
	return collector
}

func seedSeller(t *testing.T, db *gorm.DB, gasSaver bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:         uuid.New(),
		ExternalID: "ext-" + uuid.NewString()[:8],
		Username:   "seller",
		GasSaver:   gasSaver,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSettlement(t *testing.T, db *gorm.DB, sellerID uuid.UUID, amount string) *models.PaymentCrossReference {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    sellerID,
		TotalAmount: decimal.RequireFromString(amount),
		Status:      enums.OrderStatusCompleted,
		IsPaid:      true,
	}
	require.NoError(t, db.Create(order).Error)

	now := time.Now().UTC()
	ref := &models.PaymentCrossReference{
		ID:             uuid.New(),
		OrderID:        order.ID,
		U2APaymentID:   uuid.New(),
		Status:         enums.SettlementStatusU2ACompleted,
		U2ACompletedAt: &now,
	}
	require.NoError(t, db.Create(ref).Error)
	return ref
}

func listEntries(t *testing.T, db *gorm.DB, payeeID uuid.UUID) []models.PayoutQueueEntry {
	t.Helper()
	var entries []models.PayoutQueueEntry
	require.NoError(t, db.Where("payee_id = ?", payeeID).Order("created_at ASC").Find(&entries).Error)
	return entries
}

func TestCollectCreatesPendingEntriesNetOfGasFee(t *testing.T) {
	db := setupPayoutTestDB(t)
	collector := newCollector(t, db)
	seller := seedSeller(t, db, false)

	seedSettlement(t, db, seller.ID, "5")
	seedSettlement(t, db, seller.ID, "3")

	touched, err := collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, touched)

	entries := listEntries(t, db, seller.ID)
	require.Len(t, entries, 2)
	amounts := []string{entries[0].Amount.String(), entries[1].Amount.String()}
	assert.ElementsMatch(t, []string{"4.99", "2.99"}, amounts)
	for _, entry := range entries {
		assert.Equal(t, enums.PayoutStatusPending, entry.Status)
		assert.Len(t, entry.CrossReferenceIDs, 1)
	}
}

func TestCollectDoesNotRequeueCoveredSettlements(t *testing.T) {
	db := setupPayoutTestDB(t)
	collector := newCollector(t, db)
	seller := seedSeller(t, db, false)
	seedSettlement(t, db, seller.ID, "5")

	touched, err := collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	touched, err = collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, touched)

	assert.Len(t, listEntries(t, db, seller.ID), 1)
}

func TestCollectBatchesForGasSaverSellers(t *testing.T) {
	db := setupPayoutTestDB(t)
	collector := newCollector(t, db)
	seller := seedSeller(t, db, true)

	// a payout completed moments ago keeps the seller inside the recency window
	seedEntry(t, db, &models.PayoutQueueEntry{
		PayeeID: seller.ID,
		Amount:  decimal.RequireFromString("1"),
		Status:  enums.PayoutStatusCompleted,
	})

	first := seedSettlement(t, db, seller.ID, "5")
	second := seedSettlement(t, db, seller.ID, "3")

	touched, err := collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, touched)

	var batching []models.PayoutQueueEntry
	require.NoError(t, db.
		Where("payee_id = ? AND status = ?", seller.ID, enums.PayoutStatusBatching).
		Find(&batching).Error)
	require.Len(t, batching, 1)

	entry := batching[0]
	// each settlement contributes its net: (5 - 0.01) + (3 - 0.01)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("7.98")), "got %s", entry.Amount)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, entry.CrossReferenceIDs)
	require.NotNil(t, entry.LastA2UDate)
}

func TestCollectEmitsSingleJobForGasSaverOutsideWindow(t *testing.T) {
	db := setupPayoutTestDB(t)
	collector := newCollector(t, db)
	seller := seedSeller(t, db, true)
	first := seedSettlement(t, db, seller.ID, "5")
	second := seedSettlement(t, db, seller.ID, "3")

	touched, err := collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, touched)

	// no recent payout, so the accumulated batch ships immediately as one job
	entries := listEntries(t, db, seller.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.PayoutStatusPending, entries[0].Status)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("7.98")), "got %s", entries[0].Amount)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, entries[0].CrossReferenceIDs)
}

func TestCollectSkipsSettlementsBelowGasFee(t *testing.T) {
	db := setupPayoutTestDB(t)
	collector := newCollector(t, db)
	seller := seedSeller(t, db, false)
	seedSettlement(t, db, seller.ID, "0.005")

	touched, err := collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, touched)
	assert.Empty(t, listEntries(t, db, seller.ID))
}
