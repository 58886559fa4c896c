package repository

import (
	"context"
	"testing"

	"chainhire/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPostRepository_ToggleLike(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "ada")
	fan := createUser(t, db, "bob")
	post := createPost(t, db, author.ID, "gm")

	liked, counters, err := repo.ToggleLike(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, counters.Likes)

	ids, err := repo.LikedPostIDs(ctx, fan.ID, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{post.ID}, ids)

	liked, counters, err = repo.ToggleLike(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 0, counters.Likes)

	ids, err = repo.LikedPostIDs(ctx, fan.ID, []uint{post.ID})
	require.NoError(t, err)
	assert.Empty(t, ids)

	var likes int64
	require.NoError(t, db.Model(&models.PostInteraction{}).Where("interaction_type = ?", models.InteractionLike).Count(&likes).Error)
	assert.Zero(t, likes)
}

func TestPostRepository_LikeCountNeverNegative(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "ada")
	post := createPost(t, db, author.ID, "gm")

	require.NoError(t, db.Create(&models.PostInteraction{PostID: post.ID, UserID: author.ID, InteractionType: models.InteractionLike}).Error)

	liked, counters, err := repo.ToggleLike(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 0, counters.Likes)
}

func TestPostRepository_CommentsAndShares(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "ada")
	fan := createUser(t, db, "bob")
	post := createPost(t, db, author.ID, "shipping v2")

	for _, text := range []string{"first", "second"} {
		body := text
		counters, err := repo.AddComment(ctx, &models.PostInteraction{PostID: post.ID, UserID: fan.ID, CommentText: &body})
		require.NoError(t, err)
		assert.Positive(t, counters.Comments)
	}

	counters, err := repo.AddShare(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, Counters{Likes: 0, Comments: 2, Shares: 1}, counters)

	comments, err := repo.ListComments(ctx, post.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", *comments[0].CommentText)
	require.NotNil(t, comments[0].Author)
	assert.Equal(t, "bob", comments[0].Author.Name)

	page, err := repo.ListComments(ctx, post.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "second", *page[0].CommentText)
}

func TestPostRepository_MissingPost(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "ada")

	_, _, err := repo.ToggleLike(ctx, 404, u.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.AddShare(ctx, 404, u.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var rows int64
	require.NoError(t, db.Model(&models.PostInteraction{}).Count(&rows).Error)
	assert.Zero(t, rows)

	assert.ErrorIs(t, repo.Delete(ctx, 404), gorm.ErrRecordNotFound)
}

func TestPostRepository_ListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	u := createUser(t, db, "ada")

	job := newJob(u.ID, "Indexer engineer", models.JobStatusActive)
	require.NoError(t, NewJobRepository(db).Publish(ctx, job, nil, &models.Post{
		UserID:  u.ID,
		Content: "🚀 New job posted: Indexer engineer",
		Type:    models.PostTypeJob,
	}))
	older := createPost(t, db, u.ID, "older")
	newer := createPost(t, db, u.ID, "newer")

	posts, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, newer.ID, posts[0].ID)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "ada", posts[0].Author.Name)

	jobPost := posts[2]
	require.NotNil(t, jobPost.Job)
	assert.Equal(t, "Indexer engineer", jobPost.Job.Title)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.GetByID(ctx, older.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	posts, err = repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}
