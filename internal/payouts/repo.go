package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
)

// Repository defines persistence operations for the payout queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.PayoutQueueEntry) (*models.PayoutQueueEntry, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutQueueEntry, error)
	ListOpen(ctx context.Context) ([]models.PayoutQueueEntry, error)
	FindOpenBatchingByPayee(ctx context.Context, payeeID uuid.UUID) (*models.PayoutQueueEntry, error)
	LastCompletedByPayees(ctx context.Context, payeeIDs []uuid.UUID) (map[uuid.UUID]time.Time, error)
	Claim(ctx context.Context, maxAttempts int, staleBefore time.Time) (*models.PayoutQueueEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout queue repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.PayoutQueueEntry) (*models.PayoutQueueEntry, error) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutQueueEntry{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutQueueEntry, error) {
	var entry models.PayoutQueueEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListOpen(ctx context.Context) ([]models.PayoutQueueEntry, error) {
	var entries []models.PayoutQueueEntry
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.PayoutStatus{
			enums.PayoutStatusPending,
			enums.PayoutStatusBatching,
			enums.PayoutStatusProcessing,
			enums.PayoutStatusFailed,
		}).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindOpenBatchingByPayee(ctx context.Context, payeeID uuid.UUID) (*models.PayoutQueueEntry, error) {
	var entry models.PayoutQueueEntry
	err := r.db.WithContext(ctx).
		Where("payee_id = ? AND status = ?", payeeID, enums.PayoutStatusBatching).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LastCompletedByPayees resolves each seller's most recent successful payout
// in one query.
func (r *repository) LastCompletedByPayees(ctx context.Context, payeeIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	latest := make(map[uuid.UUID]time.Time, len(payeeIDs))
	if len(payeeIDs) == 0 {
		return latest, nil
	}
	var entries []models.PayoutQueueEntry
	err := r.db.WithContext(ctx).
		Where("payee_id IN ? AND status = ?", payeeIDs, enums.PayoutStatusCompleted).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if at, ok := latest[entry.PayeeID]; !ok || entry.UpdatedAt.After(at) {
			latest[entry.PayeeID] = entry.UpdatedAt
		}
	}
	return latest, nil
}

// Claim atomically hands exactly one due entry to the calling worker. The
// nested select keeps the update race-free across concurrent workers; batching
// entries only become due once their newest settlement has gone stale.
func (r *repository) Claim(ctx context.Context, maxAttempts int, staleBefore time.Time) (*models.PayoutQueueEntry, error) {
	var claimed []models.PayoutQueueEntry
	res := r.db.WithContext(ctx).Raw(`
		UPDATE payout_queue_entries
		SET status = ?,
			attempt_count = attempt_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM payout_queue_entries
			WHERE attempt_count < ?
			  AND (
				status IN (?, ?)
				OR (status = ? AND last_a2u_date < ?)
			  )
			ORDER BY updated_at ASC
			LIMIT 1
		)
		RETURNING *
	`,
		enums.PayoutStatusProcessing,
		maxAttempts,
		enums.PayoutStatusPending,
		enums.PayoutStatusFailed,
		enums.PayoutStatusBatching,
		staleBefore,
	).Scan(&claimed)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(claimed) == 0 {
		return nil, nil
	}
	return &claimed[0], nil
}
