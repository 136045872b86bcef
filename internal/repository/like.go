package repository

import (
	"context"
	"errors"

	"kinship/internal/models"

	"gorm.io/gorm"
)

// LikeRepository defines the interface for like data operations. A like row
// with a nil CommentID marks a post-level like; a populated CommentID marks a
// like on that comment.
type LikeRepository interface {
	Create(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, id uint) error
	GetForPost(ctx context.Context, userID, postID uint) (*models.Like, error)
	GetForComment(ctx context.Context, userID, commentID uint) (*models.Like, error)
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
	DeleteByComments(ctx context.Context, commentIDs []uint) (int64, error)
	DeleteByPosts(ctx context.Context, postIDs []uint) (int64, error)
}

// likeRepository implements LikeRepository
type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Create(like).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *likeRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Like{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetForPost returns the user's post-level like, or nil when they have not
// liked the post.
func (r *likeRepository) GetForPost(ctx context.Context, userID, postID uint) (*models.Like, error) {
	var like models.Like
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ? AND comment_id IS NULL", userID, postID).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &like, nil
}

// GetForComment returns the user's like on the comment, or nil when absent.
func (r *likeRepository) GetForComment(ctx context.Context, userID, commentID uint) (*models.Like, error) {
	var like models.Like
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &like, nil
}

// DeleteByUser removes every like the user issued, on posts and comments
// alike. Safe to re-run.
func (r *likeRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Like{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByComments removes all likes attached to the given comments,
// regardless of who issued them.
func (r *likeRepository) DeleteByComments(ctx context.Context, commentIDs []uint) (int64, error) {
	if len(commentIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("comment_id IN ?", commentIDs).
		Delete(&models.Like{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByPosts removes all likes attached to the given posts, both
// post-level likes and likes on their comments.
func (r *likeRepository) DeleteByPosts(ctx context.Context, postIDs []uint) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Delete(&models.Like{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
