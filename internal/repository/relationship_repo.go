package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octave-im/octave-api/internal/models"
)

// RelationshipRepository persists directed friend-request and block edges.
type RelationshipRepository interface {
	Get(ctx context.Context, userID, recipientID string) (models.Relationship, error)
	GetOfType(ctx context.Context, userID, recipientID string, relType models.RelationshipType) (models.Relationship, error)
	ListOutgoing(ctx context.Context, userID string) ([]models.Relationship, error)
	ListIncoming(ctx context.Context, recipientID string) ([]models.Relationship, error)
	Upsert(ctx context.Context, relationship *models.Relationship) error
	Delete(ctx context.Context, userID, recipientID string) error
	DeleteOfType(ctx context.Context, userID, recipientID string, relType models.RelationshipType) error
	DeleteNonBlocked(ctx context.Context, userID, recipientID string) error
	CountBlocksAgainst(ctx context.Context, recipientID string, userIDs []string) (int64, error)
}

type relationshipRepository struct {
	db *gorm.DB
}

// NewRelationshipRepository constructs a relationship repository backed by GORM.
func NewRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

func (r *relationshipRepository) Get(ctx context.Context, userID, recipientID string) (models.Relationship, error) {
	var relationship models.Relationship
	err := r.db.WithContext(ctx).
		First(&relationship, "user_id = ? AND recipient_id = ?", userID, recipientID).Error
	if err != nil {
		return models.Relationship{}, err
	}
	return relationship, nil
}

func (r *relationshipRepository) GetOfType(ctx context.Context, userID, recipientID string, relType models.RelationshipType) (models.Relationship, error) {
	var relationship models.Relationship
	err := r.db.WithContext(ctx).
		First(&relationship, "user_id = ? AND recipient_id = ? AND type = ?", userID, recipientID, relType).Error
	if err != nil {
		return models.Relationship{}, err
	}
	return relationship, nil
}

func (r *relationshipRepository) ListOutgoing(ctx context.Context, userID string) ([]models.Relationship, error) {
	var relationships []models.Relationship
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&relationships).Error
	if err != nil {
		return nil, err
	}
	return relationships, nil
}

func (r *relationshipRepository) ListIncoming(ctx context.Context, recipientID string) ([]models.Relationship, error) {
	var relationships []models.Relationship
	err := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Find(&relationships).Error
	if err != nil {
		return nil, err
	}
	return relationships, nil
}

// Upsert writes the edge for the ordered (user, recipient) pair, relying on
// the composite primary key so concurrent requests stay idempotent.
func (r *relationshipRepository) Upsert(ctx context.Context, relationship *models.Relationship) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "recipient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
	}).Create(relationship).Error
}

func (r *relationshipRepository) Delete(ctx context.Context, userID, recipientID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND recipient_id = ?", userID, recipientID).
		Delete(&models.Relationship{}).Error
}

func (r *relationshipRepository) DeleteOfType(ctx context.Context, userID, recipientID string, relType models.RelationshipType) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND recipient_id = ? AND type = ?", userID, recipientID, relType).
		Delete(&models.Relationship{}).Error
}

// DeleteNonBlocked removes any edge for the pair except a block, used when a
// new block must clear the reverse friend edge.
func (r *relationshipRepository) DeleteNonBlocked(ctx context.Context, userID, recipientID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND recipient_id = ? AND type <> ?", userID, recipientID, models.RelationshipBlocked).
		Delete(&models.Relationship{}).Error
}

func (r *relationshipRepository) CountBlocksAgainst(ctx context.Context, recipientID string, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Relationship{}).
		Where("recipient_id = ? AND user_id IN ? AND type = ?", recipientID, userIDs, models.RelationshipBlocked).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
