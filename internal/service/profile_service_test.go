package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"chainhire/internal/models"
	"chainhire/internal/repository"
	"chainhire/internal/wallet"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type profileFixture struct {
	db     *gorm.DB
	svc    *ProfileService
	auth   *AuthService
	nonces wallet.NonceStore
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	nonces := wallet.NewNonceStore(nil, time.Minute)
	return &profileFixture{
		db:     db,
		svc:    NewProfileService(repository.NewProfileRepository(db), users, nonces),
		auth:   NewAuthService(users, nonces, nil, "test-secret"),
		nonces: nonces,
	}
}

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	res, err := f.auth.Signup(ctx, signupInput("ada@example.com"))
	require.NoError(t, err)
	userID := res.User.ID

	profile, err := f.svc.UpdateProfile(ctx, UpdateProfileInput{
		UserID:      userID,
		Bio:         strPtr("  Smart contract auditor  "),
		LinkedInURL: strPtr("https://www.linkedin.com/in/ada"),
		Skills:      []string{"Solidity", " solidity", "Rust"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", profile.Name, "nil fields are untouched")
	assert.Equal(t, "Smart contract auditor", profile.Bio)
	assert.Equal(t, "Solidity, Rust", profile.Skills)

	stored, err := f.svc.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Solidity", "Rust"}, stored.SkillList())

	_, err = f.svc.UpdateProfile(ctx, UpdateProfileInput{UserID: userID, LinkedInURL: strPtr("linkedin.com/in/ada")})
	assertValidationError(t, err, "linkedin_url")

	_, err = f.svc.UpdateProfile(ctx, UpdateProfileInput{UserID: userID, Bio: strPtr(strings.Repeat("b", maxBioLen+1))})
	assertValidationError(t, err, "Bio too long")

	_, err = f.svc.UpdateProfile(ctx, UpdateProfileInput{UserID: userID, Skills: []string{"a,b"}})
	assertValidationError(t, err, "no commas")

	_, err = f.svc.UpdateProfile(ctx, UpdateProfileInput{UserID: 777, Name: strPtr("ghost")})
	assertAppError(t, err, models.CodeNotFound)
}

func TestAddAndRemoveSkill(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	res, err := f.auth.Signup(ctx, signupInput("ada@example.com"))
	require.NoError(t, err)
	userID := res.User.ID

	_, err = f.svc.AddSkill(ctx, userID, "  ")
	assertValidationError(t, err, "Skill is required")

	_, err = f.svc.AddSkill(ctx, userID, "Go")
	require.NoError(t, err)
	_, err = f.svc.AddSkill(ctx, userID, "Solidity")
	require.NoError(t, err)
	profile, err := f.svc.AddSkill(ctx, userID, "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Solidity"}, profile.SkillList())

	profile, err = f.svc.RemoveSkill(ctx, userID, "GO")
	require.NoError(t, err)
	assert.Equal(t, []string{"Solidity"}, profile.SkillList())

	profile, err = f.svc.RemoveSkill(ctx, userID, "Haskell")
	require.NoError(t, err)
	assert.Equal(t, []string{"Solidity"}, profile.SkillList())
}

func TestLinkAndUnlinkWallet(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()

	ada, err := f.auth.Signup(ctx, signupInput("ada@example.com"))
	require.NoError(t, err)
	grace, err := f.auth.Signup(ctx, signupInput("grace@example.com"))
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	signedInput := func() WalletVerifyInput {
		challenge, err := f.auth.WalletNonce(ctx, models.WalletTypeMetaMask, address)
		require.NoError(t, err)
		sig, err := crypto.Sign(accounts.TextHash([]byte(challenge.Message)), key)
		require.NoError(t, err)
		return WalletVerifyInput{Address: address, WalletType: models.WalletTypeMetaMask, Signature: hexutil.Encode(sig)}
	}

	profile, err := f.svc.LinkWallet(ctx, ada.User.ID, signedInput())
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(address), profile.Wallet())
	assert.Equal(t, models.WalletTypeMetaMask, profile.WalletType)

	_, err = f.svc.LinkWallet(ctx, grace.User.ID, signedInput())
	assertAppError(t, err, models.CodeConflict)

	profile, err = f.svc.UnlinkWallet(ctx, ada.User.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.Wallet())

	// Once free, the wallet can be linked elsewhere.
	profile, err = f.svc.LinkWallet(ctx, grace.User.ID, signedInput())
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(address), profile.Wallet())
}

func TestUnlinkWallet_WalletOnlyAccount(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	challenge, err := f.auth.WalletNonce(ctx, models.WalletTypeMetaMask, address)
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(challenge.Message)), key)
	require.NoError(t, err)

	res, err := f.auth.WalletVerify(ctx, WalletVerifyInput{
		Address:    address,
		WalletType: models.WalletTypeMetaMask,
		Signature:  hexutil.Encode(sig),
	})
	require.NoError(t, err)

	_, err = f.svc.UnlinkWallet(ctx, res.User.ID)
	assertAppError(t, err, models.CodeConflict)
}
