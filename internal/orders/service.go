package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/internal/stock"
	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	pkgerrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) error
	CompleteOrder(ctx context.Context, orderID uuid.UUID) error
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
	FulfillItem(ctx context.Context, orderID, itemID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stock  stock.Adjuster
}

// CreateOrderInput captures everything needed to open an order.
type CreateOrderInput struct {
	BuyerID           uuid.UUID
	SellerID          uuid.UUID
	PaymentID         *uuid.UUID
	FulfillmentMethod string
	BuyerNote         *string
	Items             []OrderItemInput
}

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	SellerItemID uuid.UUID
	Quantity     int
}

// OrderCancelledEvent is emitted when an order is cancelled and its stock
// has been returned.
type OrderCancelledEvent struct {
	OrderID   uuid.UUID  `json:"order_id"`
	BuyerID   uuid.UUID  `json:"buyer_id"`
	SellerID  uuid.UUID  `json:"seller_id"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, adjuster stock.Adjuster) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if adjuster == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		stock:  adjuster,
	}, nil
}

// CreateOrder opens an order and consumes stock for every line in a single
// transaction. Any line that oversells rolls the whole order back.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.SellerItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller item id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	fulfillment := input.FulfillmentMethod
	if fulfillment == "" {
		fulfillment = "delivery"
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(input.Items))
		for _, line := range input.Items {
			sellerItem, err := s.stock.Consume(ctx, tx, line.SellerItemID, line.Quantity)
			if err != nil {
				return err
			}
			if sellerItem.SellerID != input.SellerID {
				return pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to seller")
			}
			subtotal := sellerItem.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(subtotal)
			items = append(items, models.OrderItem{
				ID:           uuid.New(),
				SellerItemID: line.SellerItemID,
				Quantity:     line.Quantity,
				Subtotal:     subtotal,
				Status:       enums.OrderItemStatusPending,
			})
		}

		order := &models.Order{
			ID:                uuid.New(),
			BuyerID:           input.BuyerID,
			SellerID:          input.SellerID,
			PaymentID:         input.PaymentID,
			TotalAmount:       total,
			Status:            enums.OrderStatusInitialized,
			FulfillmentMethod: fulfillment,
			BuyerNote:         input.BuyerNote,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MarkPaid links the order to its completed buyer payment. Replays are no-ops.
func (s *service) MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if paymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.IsPaid {
			return nil
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled order cannot be paid")
		}
		return wrapUpdate(repo.Update(ctx, order.ID, map[string]any{
			"is_paid":    true,
			"payment_id": paymentID,
			"status":     enums.OrderStatusPending,
		}))
	})
}

// CompleteOrder closes out a paid order.
func (s *service) CompleteOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCompleted {
			return nil
		}
		if !order.IsPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order must be paid before completion")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled order cannot be completed")
		}
		return wrapUpdate(repo.Update(ctx, order.ID, map[string]any{
			"status": enums.OrderStatusCompleted,
		}))
	})
}

// CancelOrder voids the order and returns stock for its pending lines.
// Fulfilled lines already left the seller's hands and keep their stock
// consumed. Completed orders stay closed.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if order.Status == enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed order cannot be cancelled")
		}

		for _, item := range order.Items {
			if item.Status != enums.OrderItemStatusPending {
				continue
			}
			if _, err := s.stock.Restore(ctx, tx, item.SellerItemID, item.Quantity); err != nil {
				return err
			}
		}

		if err := wrapUpdate(repo.Update(ctx, order.ID, map[string]any{
			"status":  enums.OrderStatusCancelled,
			"is_paid": false,
		})); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: OrderCancelledEvent{
				OrderID:   order.ID,
				BuyerID:   order.BuyerID,
				SellerID:  order.SellerID,
				PaymentID: order.PaymentID,
			},
		})
	})
}

// FulfillItem marks one line fulfilled and flips the order's fulfilled flag
// once no pending lines remain.
func (s *service) FulfillItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled order cannot be fulfilled")
		}

		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if item.OrderID != order.ID {
			return pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to order")
		}
		if item.Status == enums.OrderItemStatusFulfilled {
			return nil
		}

		if err := repo.UpdateItemStatus(ctx, item.ID, enums.OrderItemStatusFulfilled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
		}

		items, err := repo.FindItemsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order items")
		}
		pending := 0
		for _, line := range items {
			if line.ID == item.ID {
				continue
			}
			if line.Status == enums.OrderItemStatusPending {
				pending++
			}
		}
		if pending == 0 {
			return wrapUpdate(repo.Update(ctx, order.ID, map[string]any{
				"is_fulfilled": true,
			}))
		}
		return nil
	})
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func wrapUpdate(err error) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return nil
}
