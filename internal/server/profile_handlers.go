package server

import (
	"net/url"

	"chainhire/internal/models"
	"chainhire/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/me, returning the account with its profile.
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetMyProfile handles GET /api/me/profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// GetProfile handles GET /api/profiles/:id where :id is the user ID.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/me/profile. It serves both the profile step of
// registration and later edits; omitted fields are left unchanged.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Name        *string  `json:"name"`
		Bio         *string  `json:"bio"`
		LinkedInURL *string  `json:"linkedin_url"`
		Skills      []string `json:"skills"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      currentUserID(c),
		Name:        req.Name,
		Bio:         req.Bio,
		LinkedInURL: req.LinkedInURL,
		Skills:      req.Skills,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// AddSkill handles POST /api/me/profile/skills
func (s *Server) AddSkill(c *fiber.Ctx) error {
	var req struct {
		Skill string `json:"skill"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.AddSkill(c.UserContext(), currentUserID(c), req.Skill)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// RemoveSkill handles DELETE /api/me/profile/skills/:skill
func (s *Server) RemoveSkill(c *fiber.Ctx) error {
	skill, err := url.PathUnescape(c.Params("skill"))
	if err != nil || skill == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid skill"))
	}

	profile, err := s.profileService.RemoveSkill(c.UserContext(), currentUserID(c), skill)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// LinkWallet handles POST /api/me/wallet. The body carries a signature over the
// challenge from POST /api/me/wallet/nonce.
func (s *Server) LinkWallet(c *fiber.Ctx) error {
	var req service.WalletVerifyInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.LinkWallet(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// UnlinkWallet handles DELETE /api/me/wallet
func (s *Server) UnlinkWallet(c *fiber.Ctx) error {
	profile, err := s.profileService.UnlinkWallet(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}
