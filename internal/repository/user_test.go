package repository

import (
	"context"
	"testing"

	"chainhire/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_CreateWithProfile(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := createUser(t, db, "ada")
	require.NotZero(t, u.ID)
	require.NotNil(t, u.Profile)
	assert.Equal(t, u.ID, u.Profile.UserID)

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "ada", got.Profile.Name)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	createUser(t, db, "ada")

	email := "ada@example.com"
	err := NewUserRepository(db).Create(context.Background(), &models.User{Email: &email, Profile: &models.Profile{}})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_WalletOnlyUsers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	for _, addr := range []string{"0xaaa", "0xbbb"} {
		a := addr
		u := &models.User{Profile: &models.Profile{WalletAddress: &a, WalletType: models.WalletTypeMetaMask}}
		require.NoError(t, repo.Create(ctx, u), "users without email must not collide")
	}

	got, err := repo.GetByWallet(ctx, "0xbbb")
	require.NoError(t, err)
	assert.Nil(t, got.Email)
	assert.Equal(t, "0xbbb", got.Profile.Wallet())

	_, err = repo.GetByWallet(ctx, "0xccc")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_Admins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	a := createUser(t, db, "ada")
	createUser(t, db, "bob")

	require.NoError(t, repo.SetAdmin(ctx, a.ID, true))
	admins, err := repo.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, a.ID, admins[0].ID)

	assert.ErrorIs(t, repo.SetAdmin(ctx, 999, true), gorm.ErrRecordNotFound)
}

func TestProfileRepository_UpdateAndWallet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	a := createUser(t, db, "ada")
	b := createUser(t, db, "bob")

	p, err := repo.GetByUserID(ctx, a.ID)
	require.NoError(t, err)
	p.Name = "Ada L."
	p.Bio = "Smart contract auditor"
	p.LinkedInURL = "https://linkedin.com/in/ada"
	p.SetSkills([]string{"Solidity", "Go"})
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByUserID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Equal(t, []string{"Solidity", "Go"}, got.SkillList())

	addr := "0x52908400098527886e0f7030069857d2e4169ee7"
	require.NoError(t, repo.SetWallet(ctx, a.ID, &addr, models.WalletTypeMetaMask))
	assert.ErrorIs(t, repo.SetWallet(ctx, b.ID, &addr, models.WalletTypeMetaMask), ErrDuplicate)

	require.NoError(t, repo.SetWallet(ctx, a.ID, nil, ""))
	got, err = repo.GetByUserID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Wallet())

	assert.ErrorIs(t, repo.Update(ctx, &models.Profile{UserID: 999}), gorm.ErrRecordNotFound)
}
