package repository

import (
	"context"
	"time"

	"chainhire/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository defines the interface for job posting payment records.
type PaymentRepository interface {
	// Create returns ErrDuplicate when the transaction hash was already submitted.
	Create(ctx context.Context, payment *models.Payment) error
	GetByHash(ctx context.Context, hash string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Payment, error)
	// ListPending returns pending payments, least recently checked first.
	ListPending(ctx context.Context, limit int) ([]*models.Payment, error)
	MarkChecked(ctx context.Context, id uint, at time.Time) error
	List(ctx context.Context, status string, limit, offset int) ([]*models.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *paymentRepository) GetByHash(ctx context.Context, hash string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("transaction_hash = ?", hash).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := readDB(r.db).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) ListPending(ctx context.Context, limit int) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PaymentStatusPending).
		Order("COALESCE(last_checked_at, created_at) ASC").
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) MarkChecked(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		UpdateColumn("last_checked_at", at).Error
}

func (r *paymentRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Payment, error) {
	var payments []*models.Payment
	q := readDB(r.db).WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&payments).Error
	return payments, err
}
