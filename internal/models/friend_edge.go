// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// EdgeStatus is the state of one directed half of a friendship.
type EdgeStatus string

const (
	// EdgeOutgoing marks a request the holder sent to the peer.
	EdgeOutgoing EdgeStatus = "outgoing"
	// EdgeIncoming marks a request the holder received from the peer.
	EdgeIncoming EdgeStatus = "incoming"
	// EdgeFriends marks an accepted friendship.
	EdgeFriends EdgeStatus = "friends"
)

// Complement returns the status the mirror edge must carry for the pair to be
// consistent: outgoing pairs with incoming and friends pairs with friends.
func (s EdgeStatus) Complement() EdgeStatus {
	switch s {
	case EdgeOutgoing:
		return EdgeIncoming
	case EdgeIncoming:
		return EdgeOutgoing
	default:
		return s
	}
}

// FriendEdge is one directed half of a friendship relationship. A friendship
// between users A and B is always two rows: one held by A referencing B and
// one held by B referencing A, with complementary statuses.
type FriendEdge struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	HolderID  uint       `gorm:"not null;index;uniqueIndex:idx_edges_holder_peer" json:"holder_id"`
	PeerID    uint       `gorm:"not null;index;uniqueIndex:idx_edges_holder_peer" json:"peer_id"`
	Status    EdgeStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Peer User `gorm:"foreignKey:PeerID" json:"peer,omitempty"`
}

// TableName specifies the table name for GORM
func (FriendEdge) TableName() string {
	return "friend_edges"
}
