package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
)

// GroupRepository persists permission groups and their member assignments.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id string) (models.Group, error)
	DeleteWithMembers(ctx context.Context, id string) error
	AssignMember(ctx context.Context, member *models.GroupMember) error
	ListMemberGroups(ctx context.Context, communityID, userID string) ([]models.GroupMember, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs a group repository backed by GORM.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error
	if err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (r *groupRepository) DeleteWithMembers(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, "id = ?", id).Error
	})
}

func (r *groupRepository) AssignMember(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// ListMemberGroups returns a member's group assignments with groups loaded,
// ordered by descending group position.
func (r *groupRepository) ListMemberGroups(ctx context.Context, communityID, userID string) ([]models.GroupMember, error) {
	var memberships []models.GroupMember
	err := r.db.WithContext(ctx).
		Preload("Group").
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("group_members.community_id = ? AND group_members.user_id = ?", communityID, userID).
		Order("groups.position DESC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}
