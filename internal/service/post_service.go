package service

import (
	"context"
	"strings"

	"kinship/internal/cache"
	"kinship/internal/models"
	"kinship/internal/repository"
)

const (
	maxPostTextLen  = 50000
	DefaultFeedSize = 20
	MaxFeedSize     = 100
)

type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	likeRepo    repository.LikeRepository
	edgeRepo    repository.EdgeRepository
	lifecycle   *AssetLifecycle
}

type CreatePostInput struct {
	UserID uint
	Text   string
	Image  string
}

type UpdatePostInput struct {
	UserID uint
	PostID uint
	Text   string
	// Image is the replacement asset handle, KeepAsset to retain the
	// current one, or empty to clear it.
	Image string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

type FeedInput struct {
	UserID uint
	Limit  int
	Offset int
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	likeRepo repository.LikeRepository,
	edgeRepo repository.EdgeRepository,
	lifecycle *AssetLifecycle,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		edgeRepo:    edgeRepo,
		lifecycle:   lifecycle,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == "" {
		return nil, models.NewEmptyContentError("text")
	}
	if len(text) > maxPostTextLen {
		return nil, models.NewValidationError("Post text too long (max 50000 characters)")
	}

	post := &models.Post{
		UserID: in.UserID,
		Text:   text,
		Image:  in.Image,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	cache.InvalidateFeed(ctx, in.UserID)
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

func (s *PostService) GetPost(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

// Feed returns posts by the user and their friends, newest first. The first
// default-sized page is served cache-aside under a key scoped to the viewer,
// so a cached page carries liked flags resolved for that viewer and can
// never be served to anyone else.
func (s *PostService) Feed(ctx context.Context, in FeedInput) ([]*models.Post, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultFeedSize
	}
	if limit > MaxFeedSize {
		limit = MaxFeedSize
	}

	friendIDs, err := s.edgeRepo.FriendIDs(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	authorIDs := append(friendIDs, in.UserID)

	var posts []*models.Post
	if in.Offset == 0 && limit == DefaultFeedSize {
		err = cache.Aside(ctx, cache.FeedKey(in.UserID), &posts, cache.FeedTTL, func() error {
			var fetchErr error
			posts, fetchErr = s.postRepo.ListByAuthors(ctx, authorIDs, limit, 0, in.UserID)
			return fetchErr
		})
		return posts, err
	}

	return s.postRepo.ListByAuthors(ctx, authorIDs, limit, in.Offset, in.UserID)
}

// GetUserPosts returns one author's posts, newest first.
func (s *PostService) GetUserPosts(ctx context.Context, authorID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	if limit <= 0 {
		limit = DefaultFeedSize
	}
	return s.postRepo.ListByAuthors(ctx, []uint{authorID}, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewNotAuthorError("You can only update your own posts")
	}

	text := strings.TrimSpace(in.Text)
	resolved, obsolete := s.lifecycle.PlanReplacement(post.Image, in.Image)
	if text == "" && resolved == "" {
		return nil, models.NewEmptyContentError("text")
	}
	if len(text) > maxPostTextLen {
		return nil, models.NewValidationError("Post text too long (max 50000 characters)")
	}

	if err := s.postRepo.UpdateFields(ctx, post.ID, map[string]interface{}{
		"text":  text,
		"image": resolved,
	}); err != nil {
		return nil, err
	}

	// The new handle is committed; only now may the old asset go away.
	s.lifecycle.CommitReplacement(obsolete)

	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidateFeed(ctx, in.UserID)
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// DeletePost removes the post with its comments and likes, then destroys
// the post's asset. The asset goes last: if destruction fails the rows are
// already gone and a retry cannot resurrect them.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if post.UserID != in.UserID {
		return models.NewNotAuthorError("You can only delete your own posts")
	}

	if _, err := s.likeRepo.DeleteByPosts(ctx, []uint{post.ID}); err != nil {
		return err
	}
	if _, err := s.commentRepo.DeleteByPost(ctx, post.ID); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return err
	}

	s.lifecycle.DestroyOwned(ctx, post.Image)

	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidateFeed(ctx, in.UserID)
	return nil
}

// ToggleLike flips the user's like on the post: absent becomes present,
// present becomes absent. Running it twice is a no-op.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, userID); err != nil {
		return nil, err
	}

	existing, err := s.likeRepo.GetForPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.likeRepo.Delete(ctx, existing.ID); err != nil {
			return nil, err
		}
	} else {
		if err := s.likeRepo.Create(ctx, &models.Like{UserID: userID, PostID: postID}); err != nil {
			return nil, err
		}
	}

	cache.InvalidatePost(ctx, postID)
	return s.postRepo.GetByID(ctx, postID, userID)
}
