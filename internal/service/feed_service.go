package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"chainhire/internal/models"
	"chainhire/internal/notifications"
	"chainhire/internal/observability"
	"chainhire/internal/repository"
	"chainhire/internal/validation"

	"gorm.io/gorm"
)

const (
	maxPostLen    = 5000
	maxCommentLen = 2000
	maxPostTags   = 20
)

type FeedService struct {
	postRepo repository.PostRepository
	isAdmin  AdminChecker
	events   EventPublisher
}

type CreatePostInput struct {
	UserID  uint
	Content string
	Type    string
	Tags    []string
}

// InteractionResult is the state of a post after a like, comment or share.
type InteractionResult struct {
	PostID   uint                    `json:"post_id"`
	Counters repository.Counters     `json:"counters"`
	Comment  *models.PostInteraction `json:"comment,omitempty"`
}

func NewFeedService(postRepo repository.PostRepository, isAdmin AdminChecker, events EventPublisher) *FeedService {
	return &FeedService{
		postRepo: postRepo,
		isAdmin:  isAdmin,
		events:   eventsOrNoop(events),
	}
}

// ListFeed returns the newest posts. viewerID may be 0 for anonymous readers.
func (s *FeedService) ListFeed(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	posts, err := s.postRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, viewerID, posts...); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *FeedService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, viewerID, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *FeedService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Post content is required")
	}
	if utf8.RuneCountInString(content) > maxPostLen {
		return nil, models.NewValidationError("Post content too long (max 5000 characters)")
	}

	postType := in.Type
	if postType == "" {
		postType = models.PostTypeUpdate
	}
	switch postType {
	case models.PostTypeUpdate, models.PostTypeAnnouncement, models.PostTypeMilestone:
	default:
		return nil, models.NewValidationError("type must be one of: update, announcement, milestone")
	}

	tags := validation.NormalizeList(in.Tags)
	if len(tags) > maxPostTags {
		return nil, models.NewValidationError("A post can have at most 20 tags")
	}
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > maxSkillLen {
			return nil, models.NewValidationError("Tags must be at most 50 characters")
		}
	}

	post := &models.Post{
		UserID:  in.UserID,
		Content: content,
		Type:    postType,
		Tags:    models.StringList(tags),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	s.events.PublishBroadcast(ctx, notifications.EventPostCreated, map[string]any{
		"post_id": created.ID,
		"user_id": created.UserID,
		"type":    created.Type,
	})
	return created, nil
}

// DeletePost removes a post. Only its author or an admin may delete it.
func (s *FeedService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		admin := false
		if s.isAdmin != nil {
			if admin, err = s.isAdmin(ctx, userID); err != nil {
				return err
			}
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", postID)
		}
		return err
	}
	s.events.PublishBroadcast(ctx, notifications.EventPostDeleted, map[string]any{"post_id": postID})
	return nil
}

// ToggleLike likes the post, or unlikes it when the user already liked it, and
// returns the post as updated.
func (s *FeedService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	liked, counters, err := s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, s.interactionError(err, postID)
	}
	observability.FeedInteractions.WithLabelValues(models.InteractionLike).Inc()
	s.broadcastCounters(ctx, notifications.EventPostReactionUpdated, postID, userID, counters)

	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	post.Liked = liked
	post.LikesCount = counters.Likes
	post.CommentsCount = counters.Comments
	post.SharesCount = counters.Shares
	return post, nil
}

func (s *FeedService) Comment(ctx context.Context, userID, postID uint, text string) (*InteractionResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 2000 characters)")
	}

	comment := &models.PostInteraction{PostID: postID, UserID: userID, CommentText: &text}
	counters, err := s.postRepo.AddComment(ctx, comment)
	if err != nil {
		return nil, s.interactionError(err, postID)
	}
	observability.FeedInteractions.WithLabelValues(models.InteractionComment).Inc()
	s.broadcastCounters(ctx, notifications.EventCommentCreated, postID, userID, counters)
	return &InteractionResult{PostID: postID, Counters: counters, Comment: comment}, nil
}

func (s *FeedService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.PostInteraction, error) {
	if _, err := s.getPost(ctx, postID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.postRepo.ListComments(ctx, postID, limit, offset)
}

// Share records a share. Repeated shares by one user all count.
func (s *FeedService) Share(ctx context.Context, userID, postID uint) (*InteractionResult, error) {
	counters, err := s.postRepo.AddShare(ctx, postID, userID)
	if err != nil {
		return nil, s.interactionError(err, postID)
	}
	observability.FeedInteractions.WithLabelValues(models.InteractionShare).Inc()
	s.broadcastCounters(ctx, notifications.EventPostShared, postID, userID, counters)
	return &InteractionResult{PostID: postID, Counters: counters}, nil
}

func (s *FeedService) getPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, err
}

func (s *FeedService) markLiked(ctx context.Context, viewerID uint, posts ...*models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	liked, err := s.postRepo.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	set := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	for _, p := range posts {
		_, p.Liked = set[p.ID]
	}
	return nil
}

func (s *FeedService) interactionError(err error, postID uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Post", postID)
	}
	return err
}

func (s *FeedService) broadcastCounters(ctx context.Context, eventType string, postID, actorID uint, c repository.Counters) {
	s.events.PublishBroadcast(ctx, eventType, map[string]any{
		"post_id":        postID,
		"actor_id":       actorID,
		"likes_count":    c.Likes,
		"comments_count": c.Comments,
		"shares_count":   c.Shares,
	})
}
