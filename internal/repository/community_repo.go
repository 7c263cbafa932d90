package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octave-im/octave-api/internal/models"
)

// CommunityRepository persists communities and their membership edges.
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id string) (models.Community, error)
	GetMember(ctx context.Context, communityID, userID string) (models.CommunityMember, error)
	AddMember(ctx context.Context, member *models.CommunityMember) error
	ListIDsByUser(ctx context.Context, userID string) ([]string, error)
	ListGroupIDs(ctx context.Context, communityID string) ([]string, error)
}

type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository constructs a community repository backed by GORM.
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	return r.db.WithContext(ctx).Create(community).Error
}

func (r *communityRepository) GetByID(ctx context.Context, id string) (models.Community, error) {
	var community models.Community
	err := r.db.WithContext(ctx).First(&community, "id = ?", id).Error
	if err != nil {
		return models.Community{}, err
	}
	return community, nil
}

func (r *communityRepository) GetMember(ctx context.Context, communityID, userID string) (models.CommunityMember, error) {
	var member models.CommunityMember
	err := r.db.WithContext(ctx).
		First(&member, "community_id = ? AND user_id = ?", communityID, userID).Error
	if err != nil {
		return models.CommunityMember{}, err
	}
	return member, nil
}

func (r *communityRepository) AddMember(ctx context.Context, member *models.CommunityMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

func (r *communityRepository) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.CommunityMember{}).
		Where("user_id = ?", userID).
		Pluck("community_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *communityRepository) ListGroupIDs(ctx context.Context, communityID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("community_id = ?", communityID).
		Order("position DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
