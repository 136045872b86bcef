package service

import (
	"context"
	"log/slog"

	"kinship/internal/cache"
	"kinship/internal/models"
	"kinship/internal/observability"
	"kinship/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Cascade step names, in execution order. The order is load-bearing: friend
// edges go first so no peer ever sees a friend pointing at a half-deleted
// account, rows that reference other rows go before the rows they reference,
// assets are destroyed while their owning rows still exist, and the user row
// goes last so an interrupted run always leaves a retryable account behind.
const (
	StepFriendEdges    = "friend_edges"
	StepCommentLikes   = "comment_likes"
	StepComments       = "comments"
	StepAuthoredLikes  = "authored_likes"
	StepPostDependents = "post_dependents"
	StepPosts          = "posts"
	StepOwnAssets      = "profile_assets"
	StepUser           = "user"
)

// AccountService coordinates the cascading deletion of a user and
// everything that references them. There are no database-level foreign
// keys or triggers backing this up; the sequence here is the only thing
// keeping the store referentially intact.
type AccountService struct {
	userRepo    repository.UserRepository
	edgeRepo    repository.EdgeRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	likeRepo    repository.LikeRepository
	lifecycle   *AssetLifecycle
	logger      *slog.Logger
}

func NewAccountService(
	userRepo repository.UserRepository,
	edgeRepo repository.EdgeRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	likeRepo repository.LikeRepository,
	lifecycle *AssetLifecycle,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		userRepo:    userRepo,
		edgeRepo:    edgeRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		lifecycle:   lifecycle,
		logger:      logger,
	}
}

// DeleteAccount removes the user and all rows that reference them. Every
// step is idempotent, so a run that failed part-way can simply be retried;
// completed steps degrade to no-ops. Assets are destroyed before the rows
// that name them, so a failed destroy interrupts the cascade while the
// handles are still findable for the retry.
func (s *AccountService) DeleteAccount(ctx context.Context, userID uint) error {
	span, ctx := observability.NewSpan(ctx, "account.delete")
	defer span.End()
	span.AddAttributes(attribute.Int64("user.id", int64(userID)))

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.SetError(err)
		return err
	}

	// Snapshot everything the later bulk deletes will make unfindable.
	commentIDs, err := s.commentRepo.IDsByAuthor(ctx, userID)
	if err != nil {
		return err
	}
	posts, err := s.postRepo.ListByAuthor(ctx, userID)
	if err != nil {
		return err
	}
	postIDs := make([]uint, 0, len(posts))
	postHandles := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		if p.Image != "" {
			postHandles = append(postHandles, p.Image)
		}
	}

	var completed []string
	run := func(step string, fn func() error) error {
		if err := fn(); err != nil {
			span.AddAttributes(attribute.String("deletion.failed_step", step))
			span.SetError(err)
			observability.AccountDeletionFailures.WithLabelValues(step).Inc()
			s.logger.Error("account deletion interrupted",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("step", step),
				slog.Any("error", err))
			return models.NewPartialDeletionError(step, completed, err)
		}
		observability.AccountDeletionSteps.WithLabelValues(step).Inc()
		completed = append(completed, step)
		return nil
	}

	// Edges other users hold toward the actor first, the actor's own after:
	// if this is interrupted, no surviving user still points at a ghost.
	if err := run(StepFriendEdges, func() error {
		if _, err := s.edgeRepo.DeleteReferencingPeer(ctx, userID); err != nil {
			return err
		}
		_, err := s.edgeRepo.DeleteHeldBy(ctx, userID)
		return err
	}); err != nil {
		return err
	}

	// Likes on the actor's comments, then the comments themselves.
	if err := run(StepCommentLikes, func() error {
		_, err := s.likeRepo.DeleteByComments(ctx, commentIDs)
		return err
	}); err != nil {
		return err
	}
	if err := run(StepComments, func() error {
		_, err := s.commentRepo.DeleteByAuthor(ctx, userID)
		return err
	}); err != nil {
		return err
	}

	// Likes the actor issued on anyone's content.
	if err := run(StepAuthoredLikes, func() error {
		_, err := s.likeRepo.DeleteByUser(ctx, userID)
		return err
	}); err != nil {
		return err
	}

	// Other users' likes and comments on the actor's posts, then the posts.
	// Each post's image is reclaimed before the rows go: a failed destroy
	// stops here and the retry can still find every handle.
	if err := run(StepPostDependents, func() error {
		if _, err := s.likeRepo.DeleteByPosts(ctx, postIDs); err != nil {
			return err
		}
		_, err := s.commentRepo.DeleteByPosts(ctx, postIDs)
		return err
	}); err != nil {
		return err
	}
	if err := run(StepPosts, func() error {
		if err := s.lifecycle.ReclaimOwned(ctx, postHandles...); err != nil {
			return err
		}
		_, err := s.postRepo.DeleteByAuthor(ctx, userID)
		return err
	}); err != nil {
		return err
	}

	// The actor's own media, while the user row still names the handles.
	if err := run(StepOwnAssets, func() error {
		return s.lifecycle.ReclaimOwned(ctx, user.ProfileImage, user.BackgroundImage)
	}); err != nil {
		return err
	}

	if err := run(StepUser, func() error {
		return s.userRepo.Delete(ctx, userID)
	}); err != nil {
		return err
	}

	cache.InvalidateUser(ctx, userID)
	cache.InvalidateFeed(ctx, userID)

	s.logger.Info("account deleted",
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("posts", len(postIDs)),
		slog.Int("comments", len(commentIDs)))
	return nil
}
