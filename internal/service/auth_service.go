package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chainhire/internal/chain"
	"chainhire/internal/middleware"
	"chainhire/internal/models"
	"chainhire/internal/repository"
	"chainhire/internal/validation"
	"chainhire/internal/wallet"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	TokenIssuer   = "chainhire-api"
	TokenAudience = "chainhire-client"

	defaultTokenTTL = 7 * 24 * time.Hour

	// NextStepProfile tells the client to continue the registration wizard.
	NextStepProfile = "profile"
)

// ErrTokenRevoked is returned for tokens that were logged out or refreshed.
var ErrTokenRevoked = errors.New("token has been revoked")

// RevocationKey is the Redis key marking a token ID as revoked.
func RevocationKey(jti string) string {
	return "blacklist:" + jti
}

type AuthService struct {
	users    repository.UserRepository
	nonces   wallet.NonceStore
	rdb      *redis.Client
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// SignupInput is the account step of the registration wizard.
type SignupInput struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	FullName        string `json:"full_name" validate:"required,max=120"`
}

// WalletVerifyInput carries the signed sign-in challenge.
type WalletVerifyInput struct {
	Address    string `json:"address" validate:"required"`
	WalletType string `json:"wallet_type" validate:"required,oneof=metamask phantom"`
	Signature  string `json:"signature" validate:"required"`
}

// AuthResult is returned by every successful sign-in.
type AuthResult struct {
	Token   string          `json:"token"`
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
	// Registered is false when the call created the account.
	Registered bool   `json:"registered"`
	NextStep   string `json:"next_step,omitempty"`
}

func NewAuthService(
	users repository.UserRepository,
	nonces wallet.NonceStore,
	rdb *redis.Client,
	jwtSecret string,
) *AuthService {
	return &AuthService{
		users:    users,
		nonces:   nonces,
		rdb:      rdb,
		secret:   []byte(jwtSecret),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePasswordConfirmation(in.Password, in.ConfirmPassword); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	email := in.Email
	user := &models.User{
		Email:    &email,
		Password: string(hashed),
		Profile:  &models.Profile{Name: in.FullName},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewConflictError("An account with this email already exists")
		}
		return nil, err
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	middleware.Logger.InfoContext(ctx, "account created", "user_id", user.ID, "method", "email")
	return &AuthResult{Token: token, User: user, Profile: user.Profile, NextStep: NextStepProfile}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user, Profile: user.Profile, Registered: true}, nil
}

// WalletNonce issues the challenge a wallet must sign to sign in or link.
func (s *AuthService) WalletNonce(ctx context.Context, walletType, address string) (*wallet.Challenge, error) {
	return issueChallenge(ctx, s.nonces, walletType, address)
}

// WalletVerify redeems a signed challenge. Known wallets sign in; unknown wallets
// get a new wallet-only account.
func (s *AuthService) WalletVerify(ctx context.Context, in WalletVerifyInput) (*AuthResult, error) {
	address, err := redeemChallenge(ctx, s.nonces, in)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByWallet(ctx, address)
	registered := true
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		registered = false
		user, err = s.createWalletUser(ctx, address, in.WalletType)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	res := &AuthResult{Token: token, User: user, Profile: user.Profile, Registered: registered}
	if !registered {
		res.NextStep = NextStepProfile
	}
	return res, nil
}

func (s *AuthService) createWalletUser(ctx context.Context, address, walletType string) (*models.User, error) {
	addr := address
	user := &models.User{
		Profile: &models.Profile{WalletAddress: &addr, WalletType: walletType},
	}
	err := s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent verify for the same wallet.
		return s.users.GetByWallet(ctx, address)
	}
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "account created", "user_id", user.ID, "method", walletType)
	return user, nil
}

// IssueToken signs an access token for userID.
func (s *AuthService) IssueToken(userID uint) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates signature, issuer, audience and lifetime and returns the claims.
// It does not consult the revocation list; see Authenticate.
func (s *AuthService) ParseToken(tokenString string) (*jwt.RegisteredClaims, uint, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, 0, err
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return nil, 0, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return claims, uint(userID), nil
}

// Authenticate parses tokenString and rejects revoked tokens.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (uint, error) {
	claims, userID, err := s.ParseToken(tokenString)
	if err != nil {
		return 0, err
	}
	if s.isRevoked(ctx, claims.ID) {
		return 0, ErrTokenRevoked
	}
	return userID, nil
}

// Refresh swaps a valid token for a new one and revokes the old one.
func (s *AuthService) Refresh(ctx context.Context, tokenString string) (string, error) {
	claims, userID, err := s.ParseToken(tokenString)
	if err != nil {
		return "", models.NewUnauthorizedError("Invalid or expired token")
	}
	if s.isRevoked(ctx, claims.ID) {
		return "", models.NewUnauthorizedError("Token has been revoked")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", models.NewUnauthorizedError("Account no longer exists")
		}
		return "", err
	}

	token, err := s.IssueToken(userID)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	s.revoke(ctx, claims)
	return token, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, _, err := s.ParseToken(tokenString)
	if err != nil {
		return models.NewUnauthorizedError("Invalid or expired token")
	}
	s.revoke(ctx, claims)
	return nil
}

func (s *AuthService) revoke(ctx context.Context, claims *jwt.RegisteredClaims) {
	if s.rdb == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.rdb.Set(ctx, RevocationKey(claims.ID), "1", ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to revoke token", "error", err)
	}
}

func (s *AuthService) isRevoked(ctx context.Context, jti string) bool {
	if s.rdb == nil || jti == "" {
		return false
	}
	n, err := s.rdb.Exists(ctx, RevocationKey(jti)).Result()
	return err == nil && n > 0
}

func issueChallenge(ctx context.Context, nonces wallet.NonceStore, walletType, address string) (*wallet.Challenge, error) {
	addr, err := chain.NormalizeAddress(walletType, address)
	if err != nil {
		return nil, walletInputError(err)
	}
	return nonces.Issue(ctx, walletType, addr)
}

// redeemChallenge checks the signature over the pending challenge and then redeems
// it. A bad signature leaves the challenge pending. It returns the normalized address.
func redeemChallenge(ctx context.Context, nonces wallet.NonceStore, in WalletVerifyInput) (string, error) {
	if err := validation.Struct(in); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	addr, err := chain.NormalizeAddress(in.WalletType, in.Address)
	if err != nil {
		return "", walletInputError(err)
	}

	challenge, err := nonces.Pending(ctx, in.WalletType, addr)
	if errors.Is(err, wallet.ErrNoChallenge) {
		return "", models.NewUnauthorizedError("No pending sign-in challenge; request a new nonce")
	}
	if err != nil {
		return "", err
	}

	if err := chain.VerifySignature(in.WalletType, in.Address, challenge.Message, in.Signature); err != nil {
		return "", models.NewUnauthorizedError("Signature does not match wallet")
	}

	err = nonces.Redeem(ctx, in.WalletType, addr, challenge.Nonce)
	if errors.Is(err, wallet.ErrNoChallenge) {
		return "", models.NewUnauthorizedError("Sign-in challenge was already used; request a new nonce")
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}

func walletInputError(err error) error {
	if errors.Is(err, chain.ErrUnsupportedWallet) {
		return models.NewValidationError("wallet_type must be one of: metamask, phantom")
	}
	return models.NewValidationError("address is not a valid wallet address for this wallet type")
}
