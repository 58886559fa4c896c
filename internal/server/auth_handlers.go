package server

import (
	"strconv"
	"time"

	"chainhire/internal/models"
	"chainhire/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const wsTicketTTL = 60 * time.Second

// Signup handles POST /api/auth/signup, the account step of the registration wizard.
// @Summary User signup
// @Description Create an email/password account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.Signup(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Sign in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login request"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}

// WalletNonce handles POST /api/auth/wallet/nonce and POST /api/me/wallet/nonce.
// The returned message is what the wallet must sign.
// @Summary Wallet sign-in challenge
// @Description Return the pending challenge for a wallet, creating one when none is pending
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{address=string,wallet_type=string} true "Wallet to challenge"
// @Success 200 {object} wallet.Challenge
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/wallet/nonce [post]
func (s *Server) WalletNonce(c *fiber.Ctx) error {
	var req struct {
		Address    string `json:"address"`
		WalletType string `json:"wallet_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	challenge, err := s.authService.WalletNonce(c.UserContext(), req.WalletType, req.Address)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(challenge)
}

// WalletVerify handles POST /api/auth/wallet/verify. Unknown wallets are registered
// and answered with 201.
// @Summary Wallet sign-in
// @Description Verify the signed challenge
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.WalletVerifyInput true "Signed challenge"
// @Success 200 {object} service.AuthResult
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/wallet/verify [post]
func (s *Server) WalletVerify(c *fiber.Ctx) error {
	var req service.WalletVerifyInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.WalletVerify(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	status := fiber.StatusOK
	if !res.Registered {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(res)
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh token
// @Tags auth
// @Produce json
// @Success 200 {object} object{token=string}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	tokenString := bearerToken(c)
	if tokenString == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	token, err := s.authService.Refresh(c.UserContext(), tokenString)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"token": token})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	tokenString := bearerToken(c)
	if tokenString == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	if err := s.authService.Logout(c.UserContext(), tokenString); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on a
// websocket handshake, so they trade their token for a single-use ticket.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			&models.AppError{Code: models.CodeUpstream, Message: "Realtime tickets are unavailable"})
	}

	userID := currentUserID(c)
	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketPrefix+ticket,
		strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}
