package payouts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	pkgerrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/logger"

	"github.com/pimartlabs/pimart-backend/internal/xref"
)

type candidateLister interface {
	ListPayoutPending(ctx context.Context) ([]xref.PayoutCandidate, error)
}

type userLister interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Collector turns settled buyer payments into payout queue entries, applying
// the gas-saver batching policy per seller. The platform fee is deducted from
// every settlement individually.
type Collector struct {
	xrefs  candidateLister
	users  userLister
	queue  Repository
	gasFee decimal.Decimal
	window time.Duration
	logg   *logger.Logger
}

// NewCollector builds a payout collector.
func NewCollector(
	xrefs candidateLister,
	users userLister,
	queue Repository,
	gasFee decimal.Decimal,
	window time.Duration,
	logg *logger.Logger,
) (*Collector, error) {
	if xrefs == nil {
		return nil, fmt.Errorf("cross reference lister required")
	}
	if users == nil {
		return nil, fmt.Errorf("users lister required")
	}
	if queue == nil {
		return nil, fmt.Errorf("payout queue repository required")
	}
	if gasFee.IsNegative() {
		return nil, fmt.Errorf("gas fee must not be negative")
	}
	if window <= 0 {
		return nil, fmt.Errorf("recency window must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Collector{
		xrefs:  xrefs,
		users:  users,
		queue:  queue,
		gasFee: gasFee,
		window: window,
		logg:   logg,
	}, nil
}

// Collect enqueues payouts for every settlement not yet covered by an open
// queue entry. Returns the number of settlements queued. One failing seller
// does not block the rest; their errors come back aggregated.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	candidates, err := c.xrefs.ListPayoutPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	open, err := c.queue.ListOpen(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open payout entries")
	}
	queued := make(map[uuid.UUID]struct{})
	for _, entry := range open {
		for _, id := range entry.CrossReferenceIDs {
			queued[id] = struct{}{}
		}
	}

	bySeller := make(map[uuid.UUID][]xref.PayoutCandidate)
	sellerIDs := make([]uuid.UUID, 0, len(bySeller))
	for _, candidate := range candidates {
		if _, ok := queued[candidate.CrossReferenceID]; ok {
			continue
		}
		if _, ok := bySeller[candidate.SellerID]; !ok {
			sellerIDs = append(sellerIDs, candidate.SellerID)
		}
		bySeller[candidate.SellerID] = append(bySeller[candidate.SellerID], candidate)
	}
	if len(sellerIDs) == 0 {
		return 0, nil
	}

	sellers, err := c.users.FindByIDs(ctx, sellerIDs)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sellers")
	}
	sellerByID := make(map[uuid.UUID]models.User, len(sellers))
	for _, seller := range sellers {
		sellerByID[seller.ID] = seller
	}

	lastPayouts, err := c.queue.LastCompletedByPayees(ctx, sellerIDs)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last payout dates")
	}

	touched := 0
	var errs error
	for sellerID, sellerCandidates := range bySeller {
		sctx := c.logg.WithSellerID(ctx, sellerID.String())
		seller, ok := sellerByID[sellerID]
		if !ok {
			c.logg.Warn(sctx, "seller missing for settled order, skipping payout")
			continue
		}
		var lastPayout *time.Time
		if at, ok := lastPayouts[sellerID]; ok {
			lastPayout = &at
		}
		n, err := c.collectForSeller(sctx, seller, sellerCandidates, lastPayout)
		if err != nil {
			c.logg.Error(sctx, "payout collection failed for seller", err)
			errs = multierr.Append(errs, fmt.Errorf("seller %s: %w", sellerID, err))
			continue
		}
		touched += n
	}
	return touched, errs
}

func (c *Collector) collectForSeller(ctx context.Context, seller models.User, candidates []xref.PayoutCandidate, lastPayout *time.Time) (int, error) {
	type netted struct {
		id  uuid.UUID
		net decimal.Decimal
	}
	nets := make([]netted, 0, len(candidates))
	for _, candidate := range candidates {
		net := candidate.Amount.Sub(c.gasFee)
		if !net.IsPositive() {
			c.logg.Warn(
				c.logg.WithOrderID(ctx, candidate.OrderID.String()),
				"settlement does not cover the gas fee, skipping payout",
			)
			continue
		}
		nets = append(nets, netted{id: candidate.CrossReferenceID, net: net})
	}
	if len(nets) == 0 {
		return 0, nil
	}

	// Gas-saver sellers with a recent payout accumulate instead of paying the
	// transaction overhead again right away.
	if seller.GasSaver && lastPayout != nil && time.Since(*lastPayout) < c.window {
		for _, item := range nets {
			if err := c.mergeIntoBatch(ctx, seller.ID, item.id, item.net, *lastPayout); err != nil {
				return 0, err
			}
		}
		return len(nets), nil
	}

	if !seller.GasSaver {
		for _, item := range nets {
			entry := &models.PayoutQueueEntry{
				ID:                uuid.New(),
				PayeeID:           seller.ID,
				Amount:            item.net,
				CrossReferenceIDs: []uuid.UUID{item.id},
				Status:            enums.PayoutStatusPending,
			}
			if _, err := c.queue.Create(ctx, entry); err != nil {
				return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue payout")
			}
		}
		return len(nets), nil
	}

	// Gas-saver seller outside the window: everything accumulated so far goes
	// out as a single job.
	total := decimal.Zero
	ids := make([]uuid.UUID, 0, len(nets))
	for _, item := range nets {
		total = total.Add(item.net)
		ids = append(ids, item.id)
	}
	entry := &models.PayoutQueueEntry{
		ID:                uuid.New(),
		PayeeID:           seller.ID,
		Amount:            total,
		CrossReferenceIDs: ids,
		Status:            enums.PayoutStatusPending,
	}
	if _, err := c.queue.Create(ctx, entry); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue batched payout")
	}
	return len(nets), nil
}

// mergeIntoBatch folds one settlement's net amount into the seller's open
// batching entry, creating the entry when none exists.
func (c *Collector) mergeIntoBatch(ctx context.Context, sellerID, crossRefID uuid.UUID, net decimal.Decimal, lastPayout time.Time) error {
	entry, err := c.queue.FindOpenBatchingByPayee(ctx, sellerID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batching entry")
		}
		entry = &models.PayoutQueueEntry{
			ID:                uuid.New(),
			PayeeID:           sellerID,
			Amount:            net,
			CrossReferenceIDs: []uuid.UUID{crossRefID},
			Status:            enums.PayoutStatusBatching,
			LastA2UDate:       &lastPayout,
		}
		if _, err := c.queue.Create(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open batching entry")
		}
		return nil
	}

	ids, err := json.Marshal(append(entry.CrossReferenceIDs, crossRefID))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cross reference ids")
	}
	updates := map[string]any{
		"amount":              entry.Amount.Add(net),
		"cross_reference_ids": string(ids),
	}
	if err := c.queue.Update(ctx, entry.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grow batching entry")
	}
	return nil
}
