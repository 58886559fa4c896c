package repository

import (
	"context"

	"chainhire/internal/cache"
	"chainhire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counters are a post's interaction totals after a change.
type Counters struct {
	Likes    int `json:"likes_count"`
	Comments int `json:"comments_count"`
	Shares   int `json:"shares_count"`
}

// PostRepository defines the interface for feed post data operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// List returns the newest posts with author and job summary; pages are cached.
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, id uint) error
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)

	// ToggleLike removes the user's like if present, otherwise adds one. The like row
	// and likes_count change in one transaction.
	ToggleLike(ctx context.Context, postID, userID uint) (liked bool, counters Counters, err error)
	AddComment(ctx context.Context, comment *models.PostInteraction) (Counters, error)
	AddShare(ctx context.Context, postID, userID uint) (Counters, error)
	ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.PostInteraction, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return err
	}
	cache.InvalidatePattern(ctx, cache.FeedPattern)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.withDetails(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := cache.Aside(ctx, "feed", cache.FeedPageKey(limit, offset), &posts, cache.FeedTTL, func() error {
		return r.withDetails(readDB(r.db).WithContext(ctx)).
			Order("created_at DESC").
			Order("id DESC").
			Limit(limit).
			Offset(offset).
			Find(&posts).Error
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Job", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "budget_min", "budget_max", "currency", "location", "job_type", "status")
		})
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidatePattern(ctx, cache.FeedPattern)
	return nil
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if userID == 0 || len(postIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.PostInteraction{}).
		Where("user_id = ? AND interaction_type = ? AND post_id IN ?", userID, models.InteractionLike, postIDs).
		Pluck("post_id", &ids).Error
	return ids, err
}

func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, Counters, error) {
	var liked bool
	counters, err := r.mutate(ctx, postID, func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ? AND interaction_type = ?", postID, userID, models.InteractionLike).
			Delete(&models.PostInteraction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return bump(tx, postID, "likes_count", -1)
		}

		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&models.PostInteraction{
			PostID:          postID,
			UserID:          userID,
			InteractionType: models.InteractionLike,
		})
		if res.Error != nil {
			return res.Error
		}
		liked = true
		if res.RowsAffected == 0 {
			// A concurrent request already liked it.
			return nil
		}
		return bump(tx, postID, "likes_count", 1)
	})
	return liked, counters, err
}

func (r *postRepository) AddComment(ctx context.Context, comment *models.PostInteraction) (Counters, error) {
	comment.InteractionType = models.InteractionComment
	return r.mutate(ctx, comment.PostID, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return err
		}
		return bump(tx, comment.PostID, "comments_count", 1)
	})
}

func (r *postRepository) AddShare(ctx context.Context, postID, userID uint) (Counters, error) {
	return r.mutate(ctx, postID, func(tx *gorm.DB) error {
		share := &models.PostInteraction{PostID: postID, UserID: userID, InteractionType: models.InteractionShare}
		if err := tx.Omit(clause.Associations).Create(share).Error; err != nil {
			return err
		}
		return bump(tx, postID, "shares_count", 1)
	})
}

func (r *postRepository) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.PostInteraction, error) {
	var comments []*models.PostInteraction
	err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("post_id = ? AND interaction_type = ?", postID, models.InteractionComment).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

// mutate runs fn in a transaction after checking the post exists and returns the
// counters as committed.
func (r *postRepository) mutate(ctx context.Context, postID uint, fn func(tx *gorm.DB) error) (Counters, error) {
	var counters Counters
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists models.Post
		if err := tx.Select("id").First(&exists, postID).Error; err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		var post models.Post
		if err := tx.Select("likes_count", "comments_count", "shares_count").First(&post, postID).Error; err != nil {
			return err
		}
		counters = Counters{Likes: post.LikesCount, Comments: post.CommentsCount, Shares: post.SharesCount}
		return nil
	})
	if err != nil {
		return Counters{}, err
	}
	cache.InvalidatePattern(ctx, cache.FeedPattern)
	return counters, nil
}

func bump(tx *gorm.DB, postID uint, column string, delta int) error {
	expr := gorm.Expr(column+" + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
	}
	return tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn(column, expr).Error
}
