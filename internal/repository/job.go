package repository

import (
	"context"
	"strings"

	"chainhire/internal/cache"
	"chainhire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobFilter narrows the active job listing.
type JobFilter struct {
	Query   string
	Tag     string
	JobType string
	Limit   int
	Offset  int
}

func (f JobFilter) unfiltered() bool {
	return f.Query == "" && f.Tag == "" && f.JobType == ""
}

// JobRepository defines the interface for job listing data operations.
type JobRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Job, error)
	ListActive(ctx context.Context, f JobFilter) ([]*models.Job, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Job, error)
	UpdateStatus(ctx context.Context, id uint, status string) error

	// Publish inserts job together with its optional payment and announcement post.
	Publish(ctx context.Context, job *models.Job, payment *models.Payment, post *models.Post) error
	// ConfirmPayment marks a pending payment confirmed, activates its job and inserts post.
	// It returns the activated job, or nil when the payment was no longer pending or
	// the job is no longer awaiting payment.
	ConfirmPayment(ctx context.Context, paymentID uint, blockNumber *uint64, post *models.Post) (*models.Job, error)
	// FailPayment marks a pending payment failed and closes its job.
	FailPayment(ctx context.Context, paymentID uint, reason string, blockNumber *uint64) error
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) GetByID(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := cache.Aside(ctx, "job", cache.JobKey(id), &job, cache.JobTTL, func() error {
		return r.db.WithContext(ctx).Preload("Poster").First(&job, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) ListActive(ctx context.Context, f JobFilter) ([]*models.Job, error) {
	var jobs []*models.Job
	fetch := func() error {
		q := readDB(r.db).WithContext(ctx).
			Preload("Poster").
			Where("status = ?", models.JobStatusActive)
		if f.Query != "" {
			pattern := likeFold(f.Query)
			q = q.Where("(lower(title) LIKE ? ESCAPE '\\' OR lower(description) LIKE ? ESCAPE '\\')", pattern, pattern)
		}
		if f.Tag != "" {
			q = containsFold(q, "tags", strings.TrimSpace(f.Tag))
		}
		if f.JobType != "" {
			q = q.Where("job_type = ?", f.JobType)
		}
		return q.Order("created_at DESC").Order("id DESC").Limit(f.Limit).Offset(f.Offset).Find(&jobs).Error
	}

	if !f.unfiltered() {
		if err := fetch(); err != nil {
			return nil, err
		}
		return jobs, nil
	}
	if err := cache.Aside(ctx, "jobs", cache.JobListKey(f.Limit, f.Offset), &jobs, cache.JobsTTL, fetch); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Job, error) {
	var jobs []*models.Job
	err := readDB(r.db).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *jobRepository) Publish(ctx context.Context, job *models.Job, payment *models.Payment, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(job).Error; err != nil {
			return err
		}
		if payment != nil {
			payment.JobID = &job.ID
			if err := tx.Create(payment).Error; err != nil {
				return err
			}
		}
		if post != nil {
			post.JobID = &job.ID
			if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}
	cache.InvalidatePattern(ctx, cache.JobListPattern)
	if post != nil {
		cache.InvalidatePattern(ctx, cache.FeedPattern)
	}
	return nil
}

func (r *jobRepository) ConfirmPayment(ctx context.Context, paymentID uint, blockNumber *uint64, post *models.Post) (*models.Job, error) {
	var activated *models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentStatusPending).
			Updates(map[string]any{
				"status":         models.PaymentStatusConfirmed,
				"block_number":   blockNumber,
				"failure_reason": "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var payment models.Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			return err
		}
		if payment.JobID == nil {
			return nil
		}

		res = tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", *payment.JobID, models.JobStatusPendingPayment).
			Updates(map[string]any{
				"status":            models.JobStatusActive,
				"payment_confirmed": true,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// The poster closed the job while its payment was pending.
			return tx.Model(&models.Job{}).Where("id = ?", *payment.JobID).
				Update("payment_confirmed", true).Error
		}

		var job models.Job
		if err := tx.First(&job, *payment.JobID).Error; err != nil {
			return err
		}
		if post != nil {
			post.JobID = &job.ID
			if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
				return err
			}
		}
		activated = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	if activated != nil {
		r.invalidate(ctx, activated.ID)
		cache.InvalidatePattern(ctx, cache.FeedPattern)
	}
	return activated, nil
}

func (r *jobRepository) FailPayment(ctx context.Context, paymentID uint, reason string, blockNumber *uint64) error {
	var jobID *uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentStatusPending).
			Updates(map[string]any{
				"status":         models.PaymentStatusFailed,
				"failure_reason": reason,
				"block_number":   blockNumber,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}

		var payment models.Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			return err
		}
		if payment.JobID == nil {
			return nil
		}
		jobID = payment.JobID
		return tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", *payment.JobID, models.JobStatusPendingPayment).
			Update("status", models.JobStatusClosed).Error
	})
	if err != nil {
		return err
	}
	if jobID != nil {
		r.invalidate(ctx, *jobID)
	}
	return nil
}

func (r *jobRepository) invalidate(ctx context.Context, id uint) {
	cache.Invalidate(ctx, cache.JobKey(id))
	cache.InvalidatePattern(ctx, cache.JobListPattern)
}
