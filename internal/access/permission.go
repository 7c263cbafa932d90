package access

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
)

// PermissionResolver computes the effective permission set of a member inside
// a community.
type PermissionResolver struct {
	communities repository.CommunityRepository
	groups      repository.GroupRepository
}

// NewPermissionResolver constructs a permission resolver.
func NewPermissionResolver(communities repository.CommunityRepository, groups repository.GroupRepository) *PermissionResolver {
	return &PermissionResolver{communities: communities, groups: groups}
}

// EffectivePermissions unions the community's base permissions with every
// assigned group's permissions. Groups are retrieved in descending position
// order, but the union itself is order-independent for authorization.
func (p *PermissionResolver) EffectivePermissions(ctx context.Context, community models.Community, userID string) ([]models.Permission, error) {
	memberships, err := p.groups.ListMemberGroups(ctx, community.ID, userID)
	if err != nil {
		return nil, err
	}

	effective := make([]models.Permission, 0, len(community.BasePermissions))
	seen := make(map[models.Permission]struct{})
	add := func(perms []models.Permission) {
		for _, perm := range perms {
			if _, ok := seen[perm]; ok {
				continue
			}
			seen[perm] = struct{}{}
			effective = append(effective, perm)
		}
	}

	add(community.BasePermissions)
	for _, membership := range memberships {
		if membership.Group != nil {
			add(membership.Group.Permissions)
		}
	}

	return effective, nil
}

// HasPermissions reports whether the member may perform an action requiring
// the given permission set. The community owner passes unconditionally, as
// does any member whose effective set contains OWNER or ADMINISTRATOR.
func (p *PermissionResolver) HasPermissions(ctx context.Context, communityID, userID string, required ...models.Permission) (bool, error) {
	community, err := p.communities.GetByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperr.ErrCommunityNotFound
		}
		return false, err
	}

	if community.OwnerID == userID {
		return true, nil
	}

	effective, err := p.EffectivePermissions(ctx, community, userID)
	if err != nil {
		return false, err
	}

	held := make(map[models.Permission]struct{}, len(effective))
	for _, perm := range effective {
		held[perm] = struct{}{}
	}

	if _, ok := held[models.PermissionOwner]; ok {
		return true, nil
	}
	if _, ok := held[models.PermissionAdministrator]; ok {
		return true, nil
	}

	for _, perm := range required {
		if _, ok := held[perm]; !ok {
			return false, nil
		}
	}

	return true, nil
}
