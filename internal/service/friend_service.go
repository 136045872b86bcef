package service

import (
	"context"

	"kinship/internal/models"
	"kinship/internal/repository"
)

// FriendService provides friend-request and relationship business logic.
//
// Every relationship is stored as a pair of mirrored edges, one held by each
// side. The pair is kept symmetric on every write: an outgoing edge on one
// holder always has a matching incoming edge on the other, and a friends
// edge always has a friends mirror.
type FriendService struct {
	edgeRepo repository.EdgeRepository
	userRepo repository.UserRepository
}

// NewFriendService returns a new FriendService.
func NewFriendService(edgeRepo repository.EdgeRepository, userRepo repository.UserRepository) *FriendService {
	return &FriendService{
		edgeRepo: edgeRepo,
		userRepo: userRepo,
	}
}

// Propose sends a friend request from the actor to the target. The target
// holds the incoming edge, the actor the outgoing one.
func (s *FriendService) Propose(ctx context.Context, actorID, targetID uint) error {
	if actorID == targetID {
		return models.NewSelfReferenceError()
	}

	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return err
	}

	// The target's side is the authoritative duplicate check. Any edge there,
	// whatever its state, blocks a new request.
	existing, err := s.edgeRepo.Get(ctx, targetID, actorID)
	if err != nil {
		return err
	}
	if existing != nil {
		return models.NewAlreadyRelatedError()
	}

	return s.edgeRepo.CreatePair(ctx,
		&models.FriendEdge{
			HolderID: targetID,
			PeerID:   actorID,
			Status:   models.EdgeIncoming,
		},
		&models.FriendEdge{
			HolderID: actorID,
			PeerID:   targetID,
			Status:   models.EdgeOutgoing,
		})
}

// Respond accepts or rejects a pending request between the actor and the
// requester. Accepting promotes both edges to friends; rejecting removes
// the pair entirely.
func (s *FriendService) Respond(ctx context.Context, actorID, requesterID uint, accept bool) error {
	if actorID == requesterID {
		return models.NewSelfReferenceError()
	}

	actorEdge, err := s.edgeRepo.Get(ctx, actorID, requesterID)
	if err != nil {
		return err
	}
	requesterEdge, err := s.edgeRepo.Get(ctx, requesterID, actorID)
	if err != nil {
		return err
	}
	if actorEdge == nil || requesterEdge == nil {
		return models.NewNoSuchRequestError()
	}
	if actorEdge.Status == models.EdgeFriends {
		return models.NewAlreadyFriendsError()
	}

	if !accept {
		return s.edgeRepo.DeletePair(ctx, actorID, requesterID)
	}
	return s.edgeRepo.PromotePair(ctx, actorID, requesterID)
}

// Remove deletes both edges between the actor and the peer regardless of
// their state, so it dissolves a friendship and also cancels a pending
// request from either side.
func (s *FriendService) Remove(ctx context.Context, actorID, peerID uint) error {
	if actorID == peerID {
		return models.NewSelfReferenceError()
	}

	actorEdge, err := s.edgeRepo.Get(ctx, actorID, peerID)
	if err != nil {
		return err
	}
	if actorEdge == nil {
		return models.NewNoSuchRelationError()
	}

	return s.edgeRepo.DeletePair(ctx, actorID, peerID)
}

// ListEdges returns every edge the user holds, peers attached.
func (s *FriendService) ListEdges(ctx context.Context, userID uint) ([]*models.FriendEdge, error) {
	return s.edgeRepo.ListByHolder(ctx, userID)
}

// FriendIDs returns the ids of the user's established friends.
func (s *FriendService) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.edgeRepo.FriendIDs(ctx, userID)
}

// Status reports the actor's view of the relationship with the target:
// "outgoing", "incoming", "friends", or "none".
func (s *FriendService) Status(ctx context.Context, actorID, targetID uint) (string, error) {
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return "", err
	}
	edge, err := s.edgeRepo.Get(ctx, actorID, targetID)
	if err != nil {
		return "", err
	}
	if edge == nil {
		return "none", nil
	}
	return string(edge.Status), nil
}
