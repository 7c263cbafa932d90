package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/access"
	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
)

// GroupService covers reads, member assignment and deletion of community
// permission groups.
type GroupService interface {
	Get(ctx context.Context, groupID string) (dto.GroupResponse, error)
	AssignMember(ctx context.Context, groupID, actorID, targetID string) error
	Delete(ctx context.Context, groupID, userID string) error
}

type groupService struct {
	groups repository.GroupRepository
	gate   *access.Gate
	logger zerolog.Logger
}

// NewGroupService builds the group service.
func NewGroupService(groups repository.GroupRepository, gate *access.Gate, logger zerolog.Logger) GroupService {
	return &groupService{
		groups: groups,
		gate:   gate,
		logger: logger.With().Str("component", "group_service").Logger(),
	}
}

func (s *groupService) Get(ctx context.Context, groupID string) (dto.GroupResponse, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, apperr.ErrGroupNotFound
		}
		return dto.GroupResponse{}, err
	}
	return dto.NewGroupResponse(group), nil
}

func (s *groupService) AssignMember(ctx context.Context, groupID, actorID, targetID string) error {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrGroupNotFound
		}
		return err
	}

	if _, err := s.gate.CommunityManage(ctx, group.CommunityID, actorID, models.PermissionManageGroups); err != nil {
		return err
	}

	// Only existing community members can carry a group.
	target, err := s.gate.Memberships().CommunityMember(ctx, group.CommunityID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperr.ErrRecipientMemberNotFound
	}

	s.logger.Info().Str("group_id", groupID).Str("user_id", targetID).Msg("group member assigned")
	return s.groups.AssignMember(ctx, &models.GroupMember{
		GroupID:     groupID,
		UserID:      targetID,
		CommunityID: group.CommunityID,
	})
}

func (s *groupService) Delete(ctx context.Context, groupID, userID string) error {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrGroupNotFound
		}
		return err
	}

	if _, err := s.gate.CommunityManage(ctx, group.CommunityID, userID, models.PermissionManageGroups); err != nil {
		return err
	}

	s.logger.Info().Str("group_id", groupID).Str("community_id", group.CommunityID).Msg("group deleted")
	return s.groups.DeleteWithMembers(ctx, groupID)
}
