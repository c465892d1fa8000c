package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/internal/stock"
	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	apperrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{`
CREATE TABLE IF NOT EXISTS seller_items (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  stock_level TEXT NOT NULL DEFAULT 'many_available',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  payment_id TEXT,
  total_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'initialized',
  is_paid INTEGER NOT NULL DEFAULT 0,
  is_fulfilled INTEGER NOT NULL DEFAULT 0,
  fulfillment_method TEXT NOT NULL DEFAULT 'delivery',
  buyer_note TEXT,
  seller_note TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  seller_item_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  subtotal NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

func newOrdersService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	adjuster, err := stock.NewAdjuster(stock.NewRepository(db))
	require.NoError(t, err)

	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)

	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, outboxSvc, adjuster)
	require.NoError(t, err)
	return svc
}

func seedItem(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price string, level enums.StockLevel) *models.SellerItem {
	t.Helper()

	item := &models.SellerItem{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Name:       "ceramic bowl",
		Price:      decimal.RequireFromString(price),
		StockLevel: level,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func TestCreateOrderComputesTotalAndConsumesStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	itemA := seedItem(t, db, sellerID, "1.5", enums.StockLevelAvailable3)
	itemB := seedItem(t, db, sellerID, "2", enums.StockLevelManyAvailable)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items: []OrderItemInput{
			{SellerItemID: itemA.ID, Quantity: 2},
			{SellerItemID: itemB.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("9")), "got %s", order.TotalAmount)
	assert.Equal(t, enums.OrderStatusInitialized, order.Status)

	var storedA models.SellerItem
	require.NoError(t, db.Where("id = ?", itemA.ID).First(&storedA).Error)
	assert.Equal(t, enums.StockLevelAvailable1, storedA.StockLevel)

	var storedB models.SellerItem
	require.NoError(t, db.Where("id = ?", itemB.ID).First(&storedB).Error)
	assert.Equal(t, enums.StockLevelManyAvailable, storedB.StockLevel)
}

func TestCreateOrderRollsBackEverythingOnOversell(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	itemA := seedItem(t, db, sellerID, "1", enums.StockLevelAvailable3)
	itemB := seedItem(t, db, sellerID, "1", enums.StockLevelAvailable1)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items: []OrderItemInput{
			{SellerItemID: itemA.ID, Quantity: 1},
			{SellerItemID: itemB.ID, Quantity: 2},
		},
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOutOfStock))

	var storedA models.SellerItem
	require.NoError(t, db.Where("id = ?", itemA.ID).First(&storedA).Error)
	assert.Equal(t, enums.StockLevelAvailable3, storedA.StockLevel, "first line's stock must be restored by rollback")

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Where("seller_id = ?", sellerID).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
}

func TestCreateOrderRejectsForeignItem(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	item := seedItem(t, db, uuid.New(), "1", enums.StockLevelAvailable3)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
		Items:    []OrderItemInput{{SellerItemID: item.ID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	item := seedItem(t, db, sellerID, "1", enums.StockLevelManyAvailable)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items:    []OrderItemInput{{SellerItemID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	paymentID := uuid.New()
	require.NoError(t, svc.MarkPaid(context.Background(), order.ID, paymentID))
	require.NoError(t, svc.MarkPaid(context.Background(), order.ID, uuid.New()))

	var stored models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&stored).Error)
	assert.True(t, stored.IsPaid)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, paymentID, *stored.PaymentID, "replay must not overwrite the payment link")
}

func TestCompleteOrderRequiresPayment(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	item := seedItem(t, db, sellerID, "1", enums.StockLevelManyAvailable)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items:    []OrderItemInput{{SellerItemID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	err = svc.CompleteOrder(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))

	require.NoError(t, svc.MarkPaid(context.Background(), order.ID, uuid.New()))
	require.NoError(t, svc.CompleteOrder(context.Background(), order.ID))
	require.NoError(t, svc.CompleteOrder(context.Background(), order.ID), "completion replay is a no-op")
}

func TestCancelOrderRestoresStockAndEmitsEvent(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	item := seedItem(t, db, sellerID, "1", enums.StockLevelAvailable3)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items:    []OrderItemInput{{SellerItemID: item.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.CancelOrder(context.Background(), order.ID))
	require.NoError(t, svc.CancelOrder(context.Background(), order.ID), "cancel replay is a no-op")

	var stored models.SellerItem
	require.NoError(t, db.Where("id = ?", item.ID).First(&stored).Error)
	assert.Equal(t, enums.StockLevelAvailable3, stored.StockLevel)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderCancelled, order.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCancelOrderKeepsFulfilledLineStockConsumed(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	fulfilled := seedItem(t, db, sellerID, "1", enums.StockLevelAvailable1)
	pending := seedItem(t, db, sellerID, "1", enums.StockLevelAvailable2)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items: []OrderItemInput{
			{SellerItemID: fulfilled.ID, Quantity: 1},
			{SellerItemID: pending.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	var fulfilledLine *models.OrderItem
	for i := range order.Items {
		if order.Items[i].SellerItemID == fulfilled.ID {
			fulfilledLine = &order.Items[i]
		}
	}
	require.NotNil(t, fulfilledLine)
	require.NoError(t, svc.FulfillItem(context.Background(), order.ID, fulfilledLine.ID))

	require.NoError(t, svc.CancelOrder(context.Background(), order.ID))

	// the fulfilled line already left the seller's hands; only the pending
	// line's stock comes back
	var storedFulfilled models.SellerItem
	require.NoError(t, db.Where("id = ?", fulfilled.ID).First(&storedFulfilled).Error)
	assert.Equal(t, enums.StockLevelSold, storedFulfilled.StockLevel)

	var storedPending models.SellerItem
	require.NoError(t, db.Where("id = ?", pending.ID).First(&storedPending).Error)
	assert.Equal(t, enums.StockLevelAvailable2, storedPending.StockLevel)
}

func TestCancelOrderClearsPaidFlag(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	item := seedItem(t, db, sellerID, "1", enums.StockLevelManyAvailable)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items:    []OrderItemInput{{SellerItemID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.MarkPaid(context.Background(), order.ID, uuid.New()))

	require.NoError(t, svc.CancelOrder(context.Background(), order.ID))

	var stored models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&stored).Error)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.False(t, stored.IsPaid)
}

func TestCancelCompletedOrderRejected(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	item := seedItem(t, db, sellerID, "1", enums.StockLevelManyAvailable)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items:    []OrderItemInput{{SellerItemID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.MarkPaid(context.Background(), order.ID, uuid.New()))
	require.NoError(t, svc.CompleteOrder(context.Background(), order.ID))

	err = svc.CancelOrder(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestFulfillItemFlipsOrderFlagWhenAllDone(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)
	sellerID := uuid.New()
	itemA := seedItem(t, db, sellerID, "1", enums.StockLevelManyAvailable)
	itemB := seedItem(t, db, sellerID, "1", enums.StockLevelManyAvailable)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Items: []OrderItemInput{
			{SellerItemID: itemA.ID, Quantity: 1},
			{SellerItemID: itemB.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.FulfillItem(context.Background(), order.ID, order.Items[0].ID))

	var stored models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&stored).Error)
	assert.False(t, stored.IsFulfilled)

	require.NoError(t, svc.FulfillItem(context.Background(), order.ID, order.Items[1].ID))
	require.NoError(t, db.Where("id = ?", order.ID).First(&stored).Error)
	assert.True(t, stored.IsFulfilled)
}
