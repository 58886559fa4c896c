package repository

import (
	"context"

	"chainhire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplicationRepository defines the interface for job application data operations.
type ApplicationRepository interface {
	// Create returns ErrDuplicate when the user already applied to the job.
	Create(ctx context.Context, app *models.JobApplication) error
	ListByJob(ctx context.Context, jobID uint) ([]*models.JobApplication, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.JobApplication, error)
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new job application repository.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *models.JobApplication) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(app).Error)
}

func (r *applicationRepository) ListByJob(ctx context.Context, jobID uint) ([]*models.JobApplication, error) {
	var apps []*models.JobApplication
	err := readDB(r.db).WithContext(ctx).
		Preload("Applicant").
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) ListByUser(ctx context.Context, userID uint) ([]*models.JobApplication, error) {
	var apps []*models.JobApplication
	err := readDB(r.db).WithContext(ctx).
		Preload("Job").
		Preload("Job.Poster").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}
