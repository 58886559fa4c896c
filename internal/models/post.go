package models

import (
	"time"

	"gorm.io/gorm"
)

// Post types. PostTypeJob is reserved for posts generated from a paid job.
const (
	PostTypeUpdate       = "update"
	PostTypeAnnouncement = "announcement"
	PostTypeMilestone    = "milestone"
	PostTypeJob          = "job"
)

// Interaction types recorded against a post.
const (
	InteractionLike    = "like"
	InteractionComment = "comment"
	InteractionShare   = "share"
)

// Post is a feed item.
type Post struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Type          string         `gorm:"size:32;not null;default:update" json:"type"`
	Tags          StringList     `json:"tags"`
	JobID         *uint          `gorm:"index" json:"job_id,omitempty"`
	LikesCount    int            `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int            `gorm:"not null;default:0" json:"comments_count"`
	SharesCount   int            `gorm:"not null;default:0" json:"shares_count"`
	Liked         bool           `gorm:"-" json:"liked"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Author        *Profile       `gorm:"foreignKey:UserID;references:UserID" json:"author,omitempty"`
	Job           *Job           `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

// PostInteraction is a like, comment or share. A user likes a post at most once.
type PostInteraction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PostID          uint      `gorm:"not null;index;uniqueIndex:idx_post_user_like,where:interaction_type = 'like'" json:"post_id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_post_user_like,where:interaction_type = 'like'" json:"user_id"`
	InteractionType string    `gorm:"size:16;not null" json:"interaction_type"`
	CommentText     *string   `gorm:"type:text" json:"comment_text,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Author          *Profile  `gorm:"foreignKey:UserID;references:UserID" json:"author,omitempty"`
}
