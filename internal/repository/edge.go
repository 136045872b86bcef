package repository

import (
	"context"
	"errors"

	"kinship/internal/models"

	"gorm.io/gorm"
)

// EdgeRepository defines the interface for friend-edge data operations. A
// relationship is always a mirrored pair of edges, so every write touches
// both sides inside one transaction; readers address a single side.
type EdgeRepository interface {
	CreatePair(ctx context.Context, first, second *models.FriendEdge) error
	PromotePair(ctx context.Context, holderA, holderB uint) error
	DeletePair(ctx context.Context, holderA, holderB uint) error
	Get(ctx context.Context, holderID, peerID uint) (*models.FriendEdge, error)
	ListByHolder(ctx context.Context, holderID uint) ([]*models.FriendEdge, error)
	FriendIDs(ctx context.Context, holderID uint) ([]uint, error)
	DeleteReferencingPeer(ctx context.Context, peerID uint) (int64, error)
	DeleteHeldBy(ctx context.Context, holderID uint) (int64, error)
}

// edgeRepository implements EdgeRepository
type edgeRepository struct {
	db *gorm.DB
}

// NewEdgeRepository creates a new friend-edge repository
func NewEdgeRepository(db *gorm.DB) EdgeRepository {
	return &edgeRepository{db: db}
}

// CreatePair inserts both sides of a new relationship. The unique index on
// (holder_id, peer_id) rejects a duplicate side and rolls back the whole
// pair, so a half-written relationship can never be observed.
func (r *edgeRepository) CreatePair(ctx context.Context, first, second *models.FriendEdge) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(first).Error; err != nil {
			return err
		}
		return tx.Create(second).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// PromotePair marks both sides of the relationship between the two users as
// accepted in a single transaction.
func (r *edgeRepository) PromotePair(ctx context.Context, holderA, holderB uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FriendEdge{}).
			Where("holder_id = ? AND peer_id = ?", holderA, holderB).
			Update("status", models.EdgeFriends).Error; err != nil {
			return err
		}
		return tx.Model(&models.FriendEdge{}).
			Where("holder_id = ? AND peer_id = ?", holderB, holderA).
			Update("status", models.EdgeFriends).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeletePair removes both sides of the relationship between the two users in
// a single transaction. Deleting nothing is not an error.
func (r *edgeRepository) DeletePair(ctx context.Context, holderA, holderB uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("holder_id = ? AND peer_id = ?", holderA, holderB).
			Delete(&models.FriendEdge{}).Error; err != nil {
			return err
		}
		return tx.Where("holder_id = ? AND peer_id = ?", holderB, holderA).
			Delete(&models.FriendEdge{}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Get returns the edge held by holderID referencing peerID, or nil when no
// such edge exists.
func (r *edgeRepository) Get(ctx context.Context, holderID, peerID uint) (*models.FriendEdge, error) {
	var edge models.FriendEdge
	if err := r.db.WithContext(ctx).
		Where("holder_id = ? AND peer_id = ?", holderID, peerID).
		First(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &edge, nil
}

// ListByHolder returns the holder's edges in insertion order, each resolved
// with the peer's display data.
func (r *edgeRepository) ListByHolder(ctx context.Context, holderID uint) ([]*models.FriendEdge, error) {
	var edges []*models.FriendEdge
	if err := r.db.WithContext(ctx).
		Where("holder_id = ?", holderID).
		Order("id ASC").
		Preload("Peer").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

// FriendIDs returns the ids of peers the holder has an accepted edge to.
func (r *edgeRepository) FriendIDs(ctx context.Context, holderID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.FriendEdge{}).
		Where("holder_id = ? AND status = ?", holderID, models.EdgeFriends).
		Pluck("peer_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// DeleteReferencingPeer removes every edge other users hold that references
// the given user. Safe to re-run; deleting nothing is not an error.
func (r *edgeRepository) DeleteReferencingPeer(ctx context.Context, peerID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("peer_id = ?", peerID).
		Delete(&models.FriendEdge{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteHeldBy removes every edge the given user holds. Safe to re-run.
func (r *edgeRepository) DeleteHeldBy(ctx context.Context, holderID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("holder_id = ?", holderID).
		Delete(&models.FriendEdge{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
