package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chainhire/internal/models"
	"chainhire/internal/notifications"
	"chainhire/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn       func(context.Context, *models.Post) error
	getByIDFn      func(context.Context, uint) (*models.Post, error)
	listFn         func(context.Context, int, int) ([]*models.Post, error)
	deleteFn       func(context.Context, uint) error
	likedPostIDsFn func(context.Context, uint, []uint) ([]uint, error)
	toggleLikeFn   func(context.Context, uint, uint) (bool, repository.Counters, error)
	addCommentFn   func(context.Context, *models.PostInteraction) (repository.Counters, error)
	addShareFn     func(context.Context, uint, uint) (repository.Counters, error)
	listCommentsFn func(context.Context, uint, int, int) ([]*models.PostInteraction, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	return s.likedPostIDsFn(ctx, userID, postIDs)
}
func (s *postRepoStub) ToggleLike(ctx context.Context, postID, userID uint) (bool, repository.Counters, error) {
	return s.toggleLikeFn(ctx, postID, userID)
}
func (s *postRepoStub) AddComment(ctx context.Context, comment *models.PostInteraction) (repository.Counters, error) {
	return s.addCommentFn(ctx, comment)
}
func (s *postRepoStub) AddShare(ctx context.Context, postID, userID uint) (repository.Counters, error) {
	return s.addShareFn(ctx, postID, userID)
}
func (s *postRepoStub) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.PostInteraction, error) {
	return s.listCommentsFn(ctx, postID, limit, offset)
}

func TestListFeed_DefaultsAndLikedFlags(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &postRepoStub{
		listFn: func(_ context.Context, limit, offset int) ([]*models.Post, error) {
			gotLimit, gotOffset = limit, offset
			return []*models.Post{{ID: 1}, {ID: 2}, {ID: 3}}, nil
		},
		likedPostIDsFn: func(_ context.Context, userID uint, ids []uint) ([]uint, error) {
			assert.Equal(t, uint(9), userID)
			assert.Equal(t, []uint{1, 2, 3}, ids)
			return []uint{2}, nil
		},
	}
	svc := NewFeedService(repo, nil, nil)

	posts, err := svc.ListFeed(context.Background(), 0, -5, 9)
	require.NoError(t, err)
	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 0, gotOffset)
	assert.False(t, posts[0].Liked)
	assert.True(t, posts[1].Liked)
	assert.False(t, posts[2].Liked)

	_, err = svc.ListFeed(context.Background(), 1000, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
	assert.Equal(t, 10, gotOffset)
}

func TestCreatePost_Validation(t *testing.T) {
	repo := &postRepoStub{
		createFn: func(context.Context, *models.Post) error {
			t.Fatal("Create should not be called")
			return nil
		},
	}
	svc := NewFeedService(repo, nil, nil)

	tests := []struct {
		name string
		in   CreatePostInput
		want string
	}{
		{"empty content", CreatePostInput{UserID: 1, Content: "   "}, "content is required"},
		{"too long", CreatePostInput{UserID: 1, Content: strings.Repeat("a", maxPostLen+1)}, "too long"},
		{"job type reserved", CreatePostInput{UserID: 1, Content: "hi", Type: models.PostTypeJob}, "type must be one of"},
		{"unknown type", CreatePostInput{UserID: 1, Content: "hi", Type: "poll"}, "type must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePost(context.Background(), tc.in)
			assertValidationError(t, err, tc.want)
		})
	}
}

func TestCreatePost_NormalizesAndBroadcasts(t *testing.T) {
	var created *models.Post
	repo := &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 41
			created = p
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			assert.Equal(t, uint(41), id)
			return created, nil
		},
	}
	events := &recordingEvents{}
	svc := NewFeedService(repo, nil, events)

	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		UserID:  3,
		Content: "  Shipped our L2 bridge!  ",
		Tags:    []string{"L2", " l2 ", "Bridges"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Shipped our L2 bridge!", post.Content)
	assert.Equal(t, models.PostTypeUpdate, post.Type)
	assert.Equal(t, models.StringList{"L2", "Bridges"}, post.Tags)
	assert.Equal(t, []string{notifications.EventPostCreated}, events.types())
}

func TestDeletePost_Authorization(t *testing.T) {
	deleted := 0
	repo := &postRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			if id == 404 {
				return nil, gorm.ErrRecordNotFound
			}
			return &models.Post{ID: id, UserID: 1}, nil
		},
		deleteFn: func(context.Context, uint) error {
			deleted++
			return nil
		},
	}
	isAdmin := func(_ context.Context, userID uint) (bool, error) {
		return userID == 99, nil
	}
	svc := NewFeedService(repo, isAdmin, nil)
	ctx := context.Background()

	assertAppError(t, svc.DeletePost(ctx, 2, 10), models.CodeForbidden)
	assertAppError(t, svc.DeletePost(ctx, 1, 404), models.CodeNotFound)
	require.NoError(t, svc.DeletePost(ctx, 1, 10))
	require.NoError(t, svc.DeletePost(ctx, 99, 10))
	assert.Equal(t, 2, deleted)
}

func TestToggleLike_ReturnsUpdatedPost(t *testing.T) {
	repo := &postRepoStub{
		toggleLikeFn: func(_ context.Context, postID, userID uint) (bool, repository.Counters, error) {
			if postID == 404 {
				return false, repository.Counters{}, gorm.ErrRecordNotFound
			}
			return true, repository.Counters{Likes: 4, Comments: 1, Shares: 2}, nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, LikesCount: 3}, nil
		},
	}
	events := &recordingEvents{}
	svc := NewFeedService(repo, nil, events)

	post, err := svc.ToggleLike(context.Background(), 5, 7)
	require.NoError(t, err)
	assert.True(t, post.Liked)
	assert.Equal(t, 4, post.LikesCount)
	assert.Equal(t, 2, post.SharesCount)
	assert.Equal(t, []string{notifications.EventPostReactionUpdated}, events.types())
	assert.Equal(t, 4, events.events[0].payload["likes_count"])

	_, err = svc.ToggleLike(context.Background(), 5, 404)
	assertAppError(t, err, models.CodeNotFound)
}

func TestCommentAndShare(t *testing.T) {
	repo := &postRepoStub{
		addCommentFn: func(_ context.Context, c *models.PostInteraction) (repository.Counters, error) {
			require.NotNil(t, c.CommentText)
			assert.Equal(t, "gm", *c.CommentText)
			return repository.Counters{Comments: 1}, nil
		},
		addShareFn: func(_ context.Context, postID, userID uint) (repository.Counters, error) {
			return repository.Counters{Comments: 1, Shares: 1}, nil
		},
	}
	events := &recordingEvents{}
	svc := NewFeedService(repo, nil, events)
	ctx := context.Background()

	_, err := svc.Comment(ctx, 1, 2, "   ")
	assertValidationError(t, err, "Comment text is required")
	_, err = svc.Comment(ctx, 1, 2, strings.Repeat("x", maxCommentLen+1))
	assertValidationError(t, err, "too long")

	res, err := svc.Comment(ctx, 1, 2, " gm ")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counters.Comments)
	require.NotNil(t, res.Comment)

	res, err = svc.Share(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counters.Shares)

	assert.Equal(t, []string{notifications.EventCommentCreated, notifications.EventPostShared}, events.types())
}

func TestListComments_MissingPost(t *testing.T) {
	repo := &postRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Post, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := NewFeedService(repo, nil, nil)

	_, err := svc.ListComments(context.Background(), 8, 10, 0)
	assertAppError(t, err, models.CodeNotFound)
}

func TestFeedService_PropagatesRepositoryErrors(t *testing.T) {
	boom := errors.New("db down")
	repo := &postRepoStub{
		listFn: func(context.Context, int, int) ([]*models.Post, error) { return nil, boom },
		addShareFn: func(context.Context, uint, uint) (repository.Counters, error) {
			return repository.Counters{}, boom
		},
	}
	svc := NewFeedService(repo, nil, nil)

	_, err := svc.ListFeed(context.Background(), 10, 0, 1)
	assert.ErrorIs(t, err, boom)
	_, err = svc.Share(context.Background(), 1, 1)
	assert.ErrorIs(t, err, boom)
}
