package service

import (
	"context"
	"html"
	"strings"

	"kinship/internal/cache"
	"kinship/internal/models"
	"kinship/internal/repository"
)

const maxCommentTextLen = 10000

// CommentService provides comment business logic. Comment text is stored
// HTML-escaped and unescaped on the way out, so stored rows are inert even
// if some client renders them raw.
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	likeRepo    repository.LikeRepository
}

type AddCommentInput struct {
	UserID uint
	PostID uint
	Text   string
}

type UpdateCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
	Text      string
}

type DeleteCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		likeRepo:    likeRepo,
	}
}

func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewEmptyContentError("text")
	}
	if len(text) > maxCommentTextLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	if _, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID: in.PostID,
		UserID: in.UserID,
		Text:   html.EscapeString(text),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, in.PostID)
	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	created.Text = html.UnescapeString(created.Text)
	return created, nil
}

// ListComments returns the post's comments oldest first, text unescaped.
func (s *CommentService) ListComments(ctx context.Context, postID, currentUserID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, currentUserID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		c.Text = html.UnescapeString(c.Text)
	}
	return comments, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewEmptyContentError("text")
	}
	if len(text) > maxCommentTextLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	// Existence is reported before authorship: a missing comment is 404
	// even for a caller who could not have edited it anyway.
	comment, err := s.getOnPost(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewNotAuthorError("You can only edit your own comments")
	}

	if err := s.commentRepo.UpdateText(ctx, comment.ID, html.EscapeString(text)); err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, in.PostID)
	updated, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	updated.Text = html.UnescapeString(updated.Text)
	return updated, nil
}

// DeleteComment removes the comment and any likes attached to it.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.getOnPost(ctx, in.PostID, in.CommentID)
	if err != nil {
		return err
	}
	if comment.UserID != in.UserID {
		return models.NewNotAuthorError("You can only delete your own comments")
	}

	if _, err := s.likeRepo.DeleteByComments(ctx, []uint{comment.ID}); err != nil {
		return err
	}
	if err := s.commentRepo.Delete(ctx, comment.ID); err != nil {
		return err
	}

	cache.InvalidatePost(ctx, in.PostID)
	return nil
}

// ToggleLike flips the user's like on the comment.
func (s *CommentService) ToggleLike(ctx context.Context, userID, postID, commentID uint) (*models.Comment, error) {
	comment, err := s.getOnPost(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.likeRepo.GetForComment(ctx, userID, commentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.likeRepo.Delete(ctx, existing.ID); err != nil {
			return nil, err
		}
	} else {
		if err := s.likeRepo.Create(ctx, &models.Like{
			UserID:    userID,
			PostID:    comment.PostID,
			CommentID: &comment.ID,
		}); err != nil {
			return nil, err
		}
	}

	cache.InvalidatePost(ctx, postID)
	toggled, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	toggled.Text = html.UnescapeString(toggled.Text)
	return toggled, nil
}

// getOnPost fetches the comment and verifies it belongs to the post.
func (s *CommentService) getOnPost(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.PostID != postID {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return comment, nil
}
