package repository

import (
	"context"

	"chainhire/internal/cache"
	"chainhire/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile data operations.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	// Update writes the editable fields: name, bio, linkedin_url and skills.
	Update(ctx context.Context, profile *models.Profile) error
	// SetWallet links (address != nil) or unlinks the wallet of userID.
	SetWallet(ctx context.Context, userID uint, address *string, walletType string) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, "profile", cache.ProfileKey(userID), &profile, cache.ProfileTTL, func() error {
		return readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", profile.UserID).
		Updates(map[string]any{
			"name":         profile.Name,
			"bio":          profile.Bio,
			"linkedin_url": profile.LinkedInURL,
			"skills":       profile.Skills,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.Invalidate(ctx, cache.ProfileKey(profile.UserID))
	return nil
}

func (r *profileRepository) SetWallet(ctx context.Context, userID uint, address *string, walletType string) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"wallet_address": address, "wallet_type": walletType})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.Invalidate(ctx, cache.ProfileKey(userID))
	return nil
}
