package payouts

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
	"github.com/pimartlabs/pimart-backend/pkg/metrics"
	"github.com/pimartlabs/pimart-backend/pkg/outbox"

	"github.com/pimartlabs/pimart-backend/internal/payments"
)

const workerJobName = "payout_worker"

type payoutCreator interface {
	CreatePayout(ctx context.Context, input payments.CreatePayoutInput) (*models.Payment, error)
}

type failureMarker interface {
	MarkPayoutFailed(ctx context.Context, ids []uuid.UUID, reason string) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PayoutFailedEvent is emitted once a queue entry exhausts its attempts.
type PayoutFailedEvent struct {
	EntryID           uuid.UUID   `json:"entry_id"`
	PayeeID           uuid.UUID   `json:"payee_id"`
	CrossReferenceIDs []uuid.UUID `json:"cross_reference_ids"`
	Reason            string      `json:"reason"`
}

// Worker drains the payout queue. Each tick claims one due entry, runs the
// payout pipeline against the platform, and records the outcome on the entry.
type Worker struct {
	queue       Repository
	payments    payoutCreator
	users       userReader
	xrefs       failureMarker
	collector   *Collector
	lock        Lock
	tx          txRunner
	outbox      outboxPublisher
	logg        *logger.Logger
	metrics     *metrics.WorkerMetrics
	maxAttempts int
	window      time.Duration
	tick        time.Duration
}

// WorkerOptions carries the dependencies and tuning for a payout worker.
type WorkerOptions struct {
	Queue       Repository
	Payments    payoutCreator
	Users       userReader
	Xrefs       failureMarker
	Collector   *Collector
	Lock        Lock
	TxRunner    txRunner
	Outbox      outboxPublisher
	Logger      *logger.Logger
	Metrics     *metrics.WorkerMetrics
	MaxAttempts int
	Window      time.Duration
	Tick        time.Duration
}

// NewWorker builds a payout worker.
func NewWorker(opts WorkerOptions) (*Worker, error) {
	if opts.Queue == nil {
		return nil, fmt.Errorf("payout queue repository required")
	}
	if opts.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if opts.Users == nil {
		return nil, fmt.Errorf("users reader required")
	}
	if opts.Xrefs == nil {
		return nil, fmt.Errorf("cross reference marker required")
	}
	if opts.Collector == nil {
		return nil, fmt.Errorf("collector required")
	}
	if opts.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	if opts.Window <= 0 {
		return nil, fmt.Errorf("recency window must be positive")
	}
	if opts.Tick <= 0 {
		return nil, fmt.Errorf("tick interval must be positive")
	}
	return &Worker{
		queue:       opts.Queue,
		payments:    opts.Payments,
		users:       opts.Users,
		xrefs:       opts.Xrefs,
		collector:   opts.Collector,
		lock:        opts.Lock,
		tx:          opts.TxRunner,
		outbox:      opts.Outbox,
		logg:        opts.Logger,
		metrics:     opts.Metrics,
		maxAttempts: opts.MaxAttempts,
		window:      opts.Window,
		tick:        opts.Tick,
	}, nil
}

// Run loops until the context is cancelled. Every interval it collects fresh
// settlements into the queue, then drains every entry that is currently due.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	started := time.Now()
	w.collect(ctx)
	for {
		processed, err := w.RunTick(ctx)
		if err != nil {
			w.logg.Error(ctx, "payout tick failed", err)
		}
		if !processed {
			break
		}
	}
	w.metrics.ObserveTick(workerJobName, time.Since(started))
}

// collect runs the batching policy under the run lock so concurrent worker
// replicas do not enqueue the same settlement twice.
func (w *Worker) collect(ctx context.Context) {
	if w.lock != nil {
		ok, err := w.lock.Acquire(ctx)
		if err != nil {
			w.logg.Error(ctx, "acquire payout collect lock", err)
			return
		}
		if !ok {
			return
		}
		defer func() {
			if err := w.lock.Release(ctx); err != nil {
				w.logg.Error(ctx, "release payout collect lock", err)
			}
		}()
	}

	touched, err := w.collector.Collect(ctx)
	if err != nil {
		w.logg.Error(ctx, "payout collection failed", err)
	}
	if touched > 0 {
		w.logg.Info(w.logg.WithField(ctx, "entries", touched), "payout entries collected")
	}
}

// RunTick claims and processes at most one queue entry. The bool reports
// whether an entry was claimed.
func (w *Worker) RunTick(ctx context.Context) (bool, error) {
	staleBefore := time.Now().UTC().Add(-w.window)
	entry, err := w.queue.Claim(ctx, w.maxAttempts, staleBefore)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payout entry")
	}
	if entry == nil {
		return false, nil
	}
	w.metrics.IncClaim(workerJobName)

	ctx = w.logg.WithFields(ctx, map[string]any{
		"payout_entry_id": entry.ID.String(),
		"attempt":         entry.AttemptCount,
	})
	ctx = w.logg.WithSellerID(ctx, entry.PayeeID.String())

	if err := w.process(ctx, entry); err != nil {
		w.fail(ctx, entry, err)
		return true, err
	}

	if err := w.queue.Update(ctx, entry.ID, map[string]any{
		"status":        enums.PayoutStatusCompleted,
		"last_error":    nil,
		"last_a2u_date": time.Now().UTC(),
	}); err != nil {
		return true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payout entry")
	}
	w.metrics.IncSuccess(workerJobName)
	w.logg.Info(ctx, "payout entry completed")
	return true, nil
}

func (w *Worker) process(ctx context.Context, entry *models.PayoutQueueEntry) error {
	payee, err := w.users.FindByID(ctx, entry.PayeeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payee")
	}

	memo := fmt.Sprintf("Payout for %d order(s)", len(entry.CrossReferenceIDs))
	_, err = w.payments.CreatePayout(ctx, payments.CreatePayoutInput{
		EntryID:           entry.ID,
		PayeeID:           entry.PayeeID,
		PayeeExternalID:   payee.ExternalID,
		Amount:            entry.Amount,
		Memo:              memo,
		CrossReferenceIDs: entry.CrossReferenceIDs,
	})
	return err
}

// fail records the error on the entry. Entries with attempts left go back to
// pending for a future tick; exhausted entries park as failed and the covered
// settlements are marked so they surface for review instead of being retried
// forever.
func (w *Worker) fail(ctx context.Context, entry *models.PayoutQueueEntry, cause error) {
	w.metrics.IncFailure(workerJobName)
	reason := cause.Error()

	status := enums.PayoutStatusPending
	if entry.AttemptCount >= w.maxAttempts {
		status = enums.PayoutStatusFailed
	}
	if err := w.queue.Update(ctx, entry.ID, map[string]any{
		"status":     status,
		"last_error": reason,
	}); err != nil {
		w.logg.Error(ctx, "record payout failure", err)
	}

	if entry.AttemptCount >= w.maxAttempts {
		w.logg.Warn(ctx, "payout attempts exhausted")
		if err := w.xrefs.MarkPayoutFailed(ctx, entry.CrossReferenceIDs, reason); err != nil {
			w.logg.Error(ctx, "mark settlements failed", err)
		}
		err := w.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return w.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutFailed,
				AggregateType: enums.AggregatePayout,
				AggregateID:   entry.ID,
				Version:       1,
				Data: PayoutFailedEvent{
					EntryID:           entry.ID,
					PayeeID:           entry.PayeeID,
					CrossReferenceIDs: entry.CrossReferenceIDs,
					Reason:            reason,
				},
			})
		})
		if err != nil {
			w.logg.Error(ctx, "emit payout failed event", err)
		}
	}
}
