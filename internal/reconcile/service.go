package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	pkgerrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/logger"
	"github.com/pimartlabs/pimart-backend/pkg/pinetwork"

	"github.com/pimartlabs/pimart-backend/internal/memberships"
	"github.com/pimartlabs/pimart-backend/internal/orders"
	"github.com/pimartlabs/pimart-backend/internal/payments"
)

type orchestrator struct {
	platform    platformClient
	payments    paymentStore
	orders      orderStore
	orderReader orderReader
	xrefs       crossRefLedger
	members     membershipApplier
	users       userDirectory
	collector   payoutCollector
	logg        *logger.Logger
}

// Options carries the orchestrator's collaborators.
type Options struct {
	Platform    platformClient
	Payments    paymentStore
	Orders      orderStore
	OrderReader orderReader
	Xrefs       crossRefLedger
	Memberships membershipApplier
	Users       userDirectory
	Collector   payoutCollector
	Logger      *logger.Logger
}

// New builds the reconciliation orchestrator.
func New(opts Options) (Orchestrator, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("platform client required")
	}
	if opts.Payments == nil {
		return nil, fmt.Errorf("payment store required")
	}
	if opts.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if opts.OrderReader == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if opts.Xrefs == nil {
		return nil, fmt.Errorf("cross reference ledger required")
	}
	if opts.Memberships == nil {
		return nil, fmt.Errorf("membership applier required")
	}
	if opts.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if opts.Collector == nil {
		return nil, fmt.Errorf("payout collector required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &orchestrator{
		platform:    opts.Platform,
		payments:    opts.Payments,
		orders:      opts.Orders,
		orderReader: opts.OrderReader,
		xrefs:       opts.Xrefs,
		members:     opts.Memberships,
		users:       opts.Users,
		collector:   opts.Collector,
		logg:        opts.Logger,
	}, nil
}

// OnApproval mirrors an approved platform payment locally, opens the order for
// buyer checkouts, and acknowledges the approval back to the platform.
// Duplicate deliveries report "already exists" and re-acknowledge so a crash
// between the local commit and the approve call stays recoverable.
func (o *orchestrator) OnApproval(ctx context.Context, platformPaymentID string) (Outcome, error) {
	ctx = o.logg.WithPaymentID(ctx, platformPaymentID)

	dto, err := o.platform.GetPayment(ctx, platformPaymentID)
	if err != nil {
		return failure(err), err
	}

	existing, err := o.payments.FindByPlatformID(ctx, platformPaymentID)
	if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return failure(err), err
	}
	if existing != nil {
		if _, err := o.platform.ApprovePayment(ctx, platformPaymentID); err != nil {
			return failure(err), err
		}
		o.logg.Info(ctx, "duplicate approval delivery")
		return Outcome{OK: true, Message: "payment already exists"}, nil
	}

	paymentType, err := enums.ParsePaymentType(dto.Metadata.PaymentType)
	if err != nil {
		verr := pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		return failure(verr), verr
	}

	buyer, err := o.users.FindByExternalID(ctx, dto.UserUID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			nf := pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
			return failure(nf), nf
		}
		derr := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		return failure(derr), derr
	}

	payment, _, err := o.payments.EnsurePayment(ctx, nil, payments.EnsurePaymentInput{
		PlatformPaymentID: platformPaymentID,
		UserID:            buyer.ID,
		Amount:            dto.Amount,
		Memo:              dto.Memo,
		Type:              paymentType,
	})
	if err != nil {
		return failure(err), err
	}

	if paymentType == enums.PaymentTypeBuyerCheckout {
		order, err := o.createOrderFromMetadata(ctx, buyer.ID, payment, dto)
		if err != nil {
			return failure(err), err
		}
		if _, err := o.xrefs.CreateForOrder(ctx, nil, order.ID, payment.ID); err != nil {
			return failure(err), err
		}
	}

	if _, err := o.platform.ApprovePayment(ctx, platformPaymentID); err != nil {
		return failure(err), err
	}
	o.logg.Info(ctx, "payment approved")
	return Outcome{OK: true, Message: "payment approved"}, nil
}

// OnCompletion settles the buyer payment: local completion first, then order
// and cross reference updates, then the platform acknowledgement. Buyer
// completion immediately hands the settlement to the payout batching policy.
func (o *orchestrator) OnCompletion(ctx context.Context, platformPaymentID, txID string) (Outcome, error) {
	ctx = o.logg.WithPaymentID(ctx, platformPaymentID)

	dto, err := o.platform.GetPayment(ctx, platformPaymentID)
	if err != nil {
		return failure(err), err
	}
	return o.settle(ctx, dto, platformPaymentID, txID, txLinkOf(dto))
}

// OnCancellation voids the payment, releases the order's stock, and
// acknowledges the cancellation to the platform.
func (o *orchestrator) OnCancellation(ctx context.Context, platformPaymentID string) (Outcome, error) {
	ctx = o.logg.WithPaymentID(ctx, platformPaymentID)

	payment, err := o.payments.MarkCancelled(ctx, nil, platformPaymentID)
	if err != nil {
		return failure(err), err
	}

	if payment.Type == enums.PaymentTypeBuyerCheckout {
		order, err := o.orderReader.FindByPaymentID(ctx, payment.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			derr := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			return failure(derr), derr
		}
		if order != nil {
			if err := o.orders.CancelOrder(ctx, order.ID); err != nil {
				return failure(err), err
			}
			if err := o.xrefs.MarkU2AFailed(ctx, order.ID, "payment cancelled"); err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return failure(err), err
			}
		}
	}

	if _, err := o.platform.CancelPayment(ctx, platformPaymentID); err != nil {
		return failure(err), err
	}
	o.logg.Info(ctx, "payment cancelled")
	return Outcome{OK: true, Message: "payment cancelled"}, nil
}

// OnIncompleteFound recovers a payment the platform reports as stuck. The
// on-chain memo must exactly equal the local payment's platform identifier;
// without that proof the transaction cannot be trusted to belong to this
// payment and completion never proceeds.
func (o *orchestrator) OnIncompleteFound(ctx context.Context, platformPaymentID, txID, txLink string) (Outcome, error) {
	ctx = o.logg.WithPaymentID(ctx, platformPaymentID)

	if _, err := o.payments.FindByPlatformID(ctx, platformPaymentID); err != nil {
		return failure(err), err
	}

	memo, err := o.platform.GetTransactionMemo(ctx, txLink)
	if err != nil {
		return failure(err), err
	}
	if memo != platformPaymentID {
		mismatch := pkgerrors.New(pkgerrors.CodeMemoMismatch, "on-chain memo does not match payment")
		o.logg.Error(ctx, "incomplete payment memo mismatch", mismatch)
		return failure(mismatch), mismatch
	}

	dto, err := o.platform.GetPayment(ctx, platformPaymentID)
	if err != nil {
		return failure(err), err
	}
	return o.settle(ctx, dto, platformPaymentID, txID, txLink)
}

// settle is the shared completion path for OnCompletion and incomplete
// recovery. Each step is idempotent; replays fall through without effect.
func (o *orchestrator) settle(ctx context.Context, dto *pinetwork.PaymentDTO, platformPaymentID, txID, txLink string) (Outcome, error) {
	payment, err := o.payments.MarkCompleted(ctx, nil, platformPaymentID, txID, txLink)
	if err != nil {
		return failure(err), err
	}

	switch payment.Type {
	case enums.PaymentTypeBuyerCheckout:
		if err := o.settleOrder(ctx, payment); err != nil {
			return failure(err), err
		}
	case enums.PaymentTypeMembership:
		err := o.members.Apply(ctx, nil, memberships.ApplyInput{
			UserID:    payment.UserID,
			Class:     dto.Metadata.MembershipClass,
			PaymentID: payment.ID,
		})
		if err != nil {
			return failure(err), err
		}
	}

	if _, err := o.platform.CompletePayment(ctx, platformPaymentID, txID); err != nil {
		return failure(err), err
	}

	// buyer completion is the trigger for payout eligibility; collect now
	// instead of waiting for the periodic worker pass
	if payment.Type == enums.PaymentTypeBuyerCheckout {
		if _, err := o.collector.Collect(ctx); err != nil {
			o.logg.Error(ctx, "immediate payout collection failed", err)
		}
	}

	o.logg.Info(ctx, "payment completed")
	return Outcome{OK: true, Message: "payment completed"}, nil
}

func (o *orchestrator) settleOrder(ctx context.Context, payment *models.Payment) error {
	order, err := o.orderReader.FindByPaymentID(ctx, payment.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := o.orders.MarkPaid(ctx, order.ID, payment.ID); err != nil {
		return err
	}
	if _, err := o.xrefs.CreateForOrder(ctx, nil, order.ID, payment.ID); err != nil {
		return err
	}
	return o.xrefs.MarkU2ACompleted(ctx, nil, order.ID, time.Now().UTC())
}

func (o *orchestrator) createOrderFromMetadata(ctx context.Context, buyerID uuid.UUID, payment *models.Payment, dto *pinetwork.PaymentDTO) (*models.Order, error) {
	seller, err := o.users.FindByExternalID(ctx, dto.Metadata.SellerExternalID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}

	items := make([]orders.OrderItemInput, 0, len(dto.Metadata.OrderItems))
	for _, meta := range dto.Metadata.OrderItems {
		itemID, err := uuid.Parse(meta.ItemID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid item id %q", meta.ItemID))
		}
		items = append(items, orders.OrderItemInput{
			SellerItemID: itemID,
			Quantity:     meta.Quantity,
		})
	}

	var note *string
	if dto.Metadata.BuyerNote != "" {
		note = &dto.Metadata.BuyerNote
	}
	paymentID := payment.ID
	return o.orders.CreateOrder(ctx, orders.CreateOrderInput{
		BuyerID:           buyerID,
		SellerID:          seller.ID,
		PaymentID:         &paymentID,
		FulfillmentMethod: dto.Metadata.FulfillmentMethod,
		BuyerNote:         note,
		Items:             items,
	})
}

func txLinkOf(dto *pinetwork.PaymentDTO) string {
	if dto.Transaction == nil {
		return ""
	}
	return dto.Transaction.Link
}

func failure(err error) Outcome {
	return Outcome{OK: false, Message: err.Error()}
}
