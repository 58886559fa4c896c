package service

import (
	"context"
	"testing"

	"chainhire/internal/models"
	"chainhire/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAdminAndIsAdmin(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewUserRepository(db)
	svc := NewUserService(repo)
	ctx := context.Background()

	email := "ops@example.com"
	u := &models.User{Email: &email, Password: "hash", Profile: &models.Profile{Name: "Ops"}}
	require.NoError(t, repo.Create(ctx, u))

	admin, err := svc.IsAdmin(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, admin)

	updated, err := svc.SetAdmin(ctx, u.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)

	admin, err = svc.IsAdmin(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, admin)

	admins, err := svc.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, u.ID, admins[0].ID)

	_, err = svc.SetAdmin(ctx, 999, true)
	assertAppError(t, err, models.CodeNotFound)

	admin, err = svc.IsAdmin(ctx, 999)
	require.NoError(t, err)
	assert.False(t, admin)
}
