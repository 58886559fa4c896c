package server

import (
	"fmt"
	"net/http"
	"testing"

	"chainhire/internal/models"
	"chainhire/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createPost(t *testing.T, token, content string) *models.Post {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/posts", token, map[string]any{
		"content": content,
		"tags":    []string{"Go", "go", "web3"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decode[models.Post](t, resp)
	return &post
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	token, userID := env.signup(t, "author@example.com")

	post := env.createPost(t, token, "  Shipped the indexer today  ")
	assert.Equal(t, userID, post.UserID)
	assert.Equal(t, "Shipped the indexer today", post.Content)
	assert.Equal(t, models.PostTypeUpdate, post.Type)
	assert.Len(t, post.Tags, 2, "tags are deduplicated")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty content", map[string]any{"content": "   "}},
		{"reserved type", map[string]any{"content": "hi", "type": models.PostTypeJob}},
		{"unknown type", map[string]any{"content": "hi", "type": "rant"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/posts", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp := env.do(t, http.MethodPost, "/api/posts", "", map[string]any{"content": "anon"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostInteractions(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	author, _ := env.signup(t, "author@example.com")
	fan, _ := env.signup(t, "fan@example.com")
	post := env.createPost(t, author, "Hiring soon")
	base := fmt.Sprintf("/api/posts/%d", post.ID)

	resp := env.do(t, http.MethodPost, base+"/like", fan, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	liked := decode[models.Post](t, resp)
	assert.True(t, liked.Liked)
	assert.Equal(t, 1, liked.LikesCount)

	resp = env.do(t, http.MethodGet, base, fan, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.Post](t, resp).Liked)

	resp = env.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.Post](t, resp).Liked, "anonymous viewers never see liked")

	resp = env.do(t, http.MethodPost, base+"/like", fan, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unliked := decode[models.Post](t, resp)
	assert.False(t, unliked.Liked)
	assert.Zero(t, unliked.LikesCount)

	resp = env.do(t, http.MethodPost, base+"/comments", fan, map[string]string{"content": "Count me in"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	commented := decode[service.InteractionResult](t, resp)
	assert.Equal(t, post.ID, commented.PostID)
	assert.Equal(t, 1, commented.Counters.Comments)
	require.NotNil(t, commented.Comment)
	require.NotNil(t, commented.Comment.CommentText)
	assert.Equal(t, "Count me in", *commented.Comment.CommentText)

	resp = env.do(t, http.MethodPost, base+"/comments", fan, map[string]string{"content": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, base+"/comments", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.PostInteraction](t, resp), 1)

	for i := 0; i < 2; i++ {
		resp = env.do(t, http.MethodPost, base+"/share", fan, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	shared := decode[service.InteractionResult](t, resp)
	assert.Equal(t, 2, shared.Counters.Shares, "every share counts")
	assert.Equal(t, 1, shared.Counters.Comments)

	resp = env.do(t, http.MethodPost, "/api/posts/9999/like", fan, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/posts/9999/comments", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	author, _ := env.signup(t, "author@example.com")
	other, _ := env.signup(t, "other@example.com")
	moderator, modID := env.signup(t, "mod@example.com")
	env.makeAdmin(t, modID)

	first := env.createPost(t, author, "first")
	second := env.createPost(t, author, "second")

	resp := env.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", first.ID), other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", first.ID), author, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", second.ID), moderator, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", first.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Post](t, resp))
}

func TestFeedPagination(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	token, _ := env.signup(t, "busy@example.com")
	for i := 0; i < 5; i++ {
		env.createPost(t, token, fmt.Sprintf("post %d", i))
	}

	resp := env.do(t, http.MethodGet, "/api/posts?limit=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[[]models.Post](t, resp)
	require.Len(t, page, 2)
	assert.Equal(t, "post 4", page[0].Content, "newest first")

	resp = env.do(t, http.MethodGet, "/api/posts?limit=2&offset=4", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Post](t, resp), 1)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	admin, adminID := env.signup(t, "admin@example.com")
	user, userID := env.signup(t, "user@example.com")

	resp := env.do(t, http.MethodGet, "/api/admin/admins", user, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	env.makeAdmin(t, adminID)

	resp = env.do(t, http.MethodGet, "/api/admin/admins", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	admins := decode[[]models.User](t, resp)
	require.Len(t, admins, 1)
	assert.Equal(t, adminID, admins[0].ID)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/demote-admin", adminID), admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/promote-admin", userID), admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The promoted user now passes the admin check.
	resp = env.do(t, http.MethodGet, "/api/admin/feature-flags", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/demote-admin", adminID), user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/admin/admins", admin, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/admin/users/9999/promote-admin", user, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/admin/payments?status=lost", user, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
