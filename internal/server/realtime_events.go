package server

import (
	"context"
	"encoding/json"
	"log"

	"kinship/internal/models"
	"kinship/internal/observability"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated           = "post_created"
	EventPostReactionUpdated   = "post_reaction_updated"
	EventCommentCreated        = "comment_created"
	EventCommentUpdated        = "comment_updated"
	EventCommentDeleted        = "comment_deleted"
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestSent     = "friend_request_sent"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendAdded           = "friend_added"
	EventFriendRequestRejected = "friend_request_rejected"
	EventFriendRemoved         = "friend_removed"
)

func (s *Server) publishUserEvent(userID uint, eventType string, payload map[string]interface{}) {
	event := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	observability.NotificationEventsTotal.WithLabelValues(eventType).Inc()
	message := string(eventJSON)
	// Redis fan-out reaches local clients through the hub's subscriber, so
	// only broadcast directly when no notifier is wired.
	if s.notifier != nil {
		if err := s.notifier.PublishUser(context.Background(), userID, message); err != nil {
			log.Printf("failed to publish %s event to user %d: %v", eventType, userID, err)
		}
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(userID, message)
	}
}

func (s *Server) publishBroadcastEvent(eventType string, payload map[string]interface{}) {
	event := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}
	observability.NotificationEventsTotal.WithLabelValues(eventType).Inc()
	message := string(eventJSON)
	if s.notifier != nil {
		if err := s.notifier.PublishBroadcast(context.Background(), message); err != nil {
			log.Printf("failed to publish %s broadcast event: %v", eventType, err)
		}
		return
	}
	if s.hub != nil {
		s.hub.BroadcastAll(message)
	}
}

func userSummary(user models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":            user.ID,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"profile_image": user.ProfileImage,
	}
}
