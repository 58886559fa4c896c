package repository

import (
	"context"

	"chainhire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavedJobRepository defines the interface for job bookmarks.
type SavedJobRepository interface {
	// Save is idempotent.
	Save(ctx context.Context, userID, jobID uint) error
	Remove(ctx context.Context, userID, jobID uint) error
	List(ctx context.Context, userID uint) ([]*models.SavedJob, error)
}

type savedJobRepository struct {
	db *gorm.DB
}

// NewSavedJobRepository creates a new saved job repository.
func NewSavedJobRepository(db *gorm.DB) SavedJobRepository {
	return &savedJobRepository{db: db}
}

func (r *savedJobRepository) Save(ctx context.Context, userID, jobID uint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SavedJob{UserID: userID, JobID: jobID}).Error
}

func (r *savedJobRepository) Remove(ctx context.Context, userID, jobID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		Delete(&models.SavedJob{}).Error
}

func (r *savedJobRepository) List(ctx context.Context, userID uint) ([]*models.SavedJob, error) {
	var saved []*models.SavedJob
	err := readDB(r.db).WithContext(ctx).
		Preload("Job").
		Preload("Job.Poster").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&saved).Error
	return saved, err
}
