// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"time"

	"kinship/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendFriendRequest handles POST /api/friends/requests/:userId
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if proposeErr := s.friendService.Propose(ctx, userID, targetUserID); proposeErr != nil {
		return respondServiceError(c, proposeErr)
	}

	actor, actorErr := s.userRepo.GetByID(ctx, userID)
	target, targetErr := s.userRepo.GetByID(ctx, targetUserID)

	// Notify both users so UI updates immediately.
	if actorErr == nil {
		s.publishUserEvent(targetUserID, EventFriendRequestReceived, map[string]interface{}{
			"from_user":  userSummary(*actor),
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	if targetErr == nil {
		s.publishUserEvent(userID, EventFriendRequestSent, map[string]interface{}{
			"to_user":    userSummary(*target),
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return c.SendStatus(fiber.StatusCreated)
}

// GetPendingRequests handles GET /api/friends/requests
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	return s.listEdgesByStatus(c, models.EdgeIncoming)
}

// GetSentRequests handles GET /api/friends/requests/sent
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	return s.listEdgesByStatus(c, models.EdgeOutgoing)
}

// GetFriends handles GET /api/friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	return s.respondFriendsOf(c, userID)
}

// GetUserFriends handles GET /api/users/:id/friends
func (s *Server) GetUserFriends(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, getErr := s.userRepo.GetByID(c.Context(), targetID); getErr != nil {
		return respondServiceError(c, getErr)
	}
	return s.respondFriendsOf(c, targetID)
}

func (s *Server) respondFriendsOf(c *fiber.Ctx, userID uint) error {
	edges, err := s.friendService.ListEdges(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	friends := make([]models.User, 0, len(edges))
	for _, edge := range edges {
		if edge.Status == models.EdgeFriends {
			friends = append(friends, edge.Peer)
		}
	}

	return c.JSON(friends)
}

func (s *Server) listEdgesByStatus(c *fiber.Ctx, status models.EdgeStatus) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	edges, err := s.friendService.ListEdges(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	matched := make([]*models.FriendEdge, 0, len(edges))
	for _, edge := range edges {
		if edge.Status == status {
			matched = append(matched, edge)
		}
	}

	return c.JSON(matched)
}

// AcceptFriendRequest handles POST /api/friends/requests/:userId/accept
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	requesterID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if respondErr := s.friendService.Respond(ctx, userID, requesterID, true); respondErr != nil {
		return respondServiceError(c, respondErr)
	}

	actor, actorErr := s.userRepo.GetByID(ctx, userID)
	requester, requesterErr := s.userRepo.GetByID(ctx, requesterID)

	if actorErr == nil {
		s.publishUserEvent(requesterID, EventFriendRequestAccepted, map[string]interface{}{
			"friend_user": userSummary(*actor),
			"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	if requesterErr == nil {
		s.publishUserEvent(userID, EventFriendAdded, map[string]interface{}{
			"friend_user": userSummary(*requester),
			"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// RejectFriendRequest handles POST /api/friends/requests/:userId/reject
func (s *Server) RejectFriendRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	requesterID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if respondErr := s.friendService.Respond(ctx, userID, requesterID, false); respondErr != nil {
		return respondServiceError(c, respondErr)
	}

	rejectedAt := time.Now().UTC().Format(time.RFC3339Nano)
	s.publishUserEvent(requesterID, EventFriendRequestRejected, map[string]interface{}{
		"by_user_id":  userID,
		"rejected_at": rejectedAt,
	})
	s.publishUserEvent(userID, EventFriendRequestRejected, map[string]interface{}{
		"by_user_id":  userID,
		"rejected_at": rejectedAt,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// GetFriendshipStatus handles GET /api/friends/status/:userId
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	// Check if target user exists
	if _, getUserErr := s.userRepo.GetByID(ctx, targetUserID); getUserErr != nil {
		return respondServiceError(c, getUserErr)
	}

	status, statusErr := s.friendService.Status(ctx, userID, targetUserID)
	if statusErr != nil {
		return respondServiceError(c, statusErr)
	}

	return c.JSON(fiber.Map{"status": status})
}

// RemoveFriend handles DELETE /api/friends/:userId
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if removeErr := s.friendService.Remove(ctx, userID, targetUserID); removeErr != nil {
		return respondServiceError(c, removeErr)
	}

	removedAt := time.Now().UTC().Format(time.RFC3339Nano)
	s.publishUserEvent(userID, EventFriendRemoved, map[string]interface{}{
		"user_id":    targetUserID,
		"removed_at": removedAt,
	})
	s.publishUserEvent(targetUserID, EventFriendRemoved, map[string]interface{}{
		"user_id":    userID,
		"removed_at": removedAt,
	})

	return c.SendStatus(fiber.StatusOK)
}
