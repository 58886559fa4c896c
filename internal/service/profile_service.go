package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"chainhire/internal/models"
	"chainhire/internal/repository"
	"chainhire/internal/validation"
	"chainhire/internal/wallet"

	"gorm.io/gorm"
)

const (
	maxNameLen  = 120
	maxBioLen   = 1000
	maxSkills   = 50
	maxSkillLen = 50
	maxLinkedIn = 255
)

type ProfileService struct {
	profiles repository.ProfileRepository
	users    repository.UserRepository
	nonces   wallet.NonceStore
}

// UpdateProfileInput carries the editable profile fields. Nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID      uint
	Name        *string
	Bio         *string
	LinkedInURL *string
	Skills      []string
}

func NewProfileService(
	profiles repository.ProfileRepository,
	users repository.UserRepository,
	nonces wallet.NonceStore,
) *ProfileService {
	return &ProfileService{profiles: profiles, users: users, nonces: nonces}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Profile", userID)
	}
	return profile, err
}

// UpdateProfile backs both the profile step of registration and later edits.
func (s *ProfileService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	profile, err := s.GetProfile(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if utf8.RuneCountInString(name) > maxNameLen {
			return nil, models.NewValidationError("Name too long (max 120 characters)")
		}
		profile.Name = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 1000 characters)")
		}
		profile.Bio = bio
	}
	if in.LinkedInURL != nil {
		link := strings.TrimSpace(*in.LinkedInURL)
		if link != "" && (len(link) > maxLinkedIn || !validation.IsHTTPURL(link)) {
			return nil, models.NewValidationError("linkedin_url must be an http(s) URL")
		}
		profile.LinkedInURL = link
	}
	if in.Skills != nil {
		skills, err := checkSkills(validation.NormalizeList(in.Skills))
		if err != nil {
			return nil, err
		}
		profile.SetSkills(skills)
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// AddSkill appends skill unless the profile already lists it.
func (s *ProfileService) AddSkill(ctx context.Context, userID uint, skill string) (*models.Profile, error) {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return nil, models.NewValidationError("Skill is required")
	}
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	skills, err := checkSkills(validation.NormalizeList(append(profile.SkillList(), skill)))
	if err != nil {
		return nil, err
	}
	profile.SetSkills(skills)
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// RemoveSkill drops skill, ignoring case. Removing an absent skill is not an error.
func (s *ProfileService) RemoveSkill(ctx context.Context, userID uint, skill string) (*models.Profile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	current := profile.SkillList()
	kept := make([]string, 0, len(current))
	for _, sk := range current {
		if !strings.EqualFold(sk, strings.TrimSpace(skill)) {
			kept = append(kept, sk)
		}
	}
	if len(kept) == len(current) {
		return profile, nil
	}
	profile.SetSkills(kept)
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// LinkWallet attaches a wallet proven by a signed challenge to the user's profile.
func (s *ProfileService) LinkWallet(ctx context.Context, userID uint, in WalletVerifyInput) (*models.Profile, error) {
	address, err := redeemChallenge(ctx, s.nonces, in)
	if err != nil {
		return nil, err
	}

	if err := s.profiles.SetWallet(ctx, userID, &address, in.WalletType); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, models.NewConflictError("This wallet is already linked to another account")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, models.NewNotFoundError("Profile", userID)
		}
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// UnlinkWallet disconnects the wallet. Wallet-only accounts keep theirs, since it is
// their only way to sign in.
func (s *ProfileService) UnlinkWallet(ctx context.Context, userID uint) (*models.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("User", userID)
	}
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, models.NewConflictError("Wallet-only accounts cannot disconnect their sign-in wallet")
	}

	if err := s.profiles.SetWallet(ctx, userID, nil, ""); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func checkSkills(skills []string) ([]string, error) {
	if len(skills) > maxSkills {
		return nil, models.NewValidationError("Too many skills (max 50)")
	}
	for _, sk := range skills {
		if utf8.RuneCountInString(sk) > maxSkillLen || strings.Contains(sk, ",") {
			return nil, models.NewValidationError("Each skill must be at most 50 characters and contain no commas")
		}
	}
	return skills, nil
}
