package access

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
)

// Gate composes the resolvers into per-operation authorization decisions.
// Read-path failures collapse to not-found codes so non-members can never
// learn that a channel, conversation or community exists.
type Gate struct {
	channels      repository.ChannelRepository
	conversations repository.ConversationRepository
	communities   repository.CommunityRepository
	relationships *RelationshipResolver
	permissions   *PermissionResolver
	memberships   *MembershipResolver
	logger        zerolog.Logger
}

// NewGate constructs the access gate.
func NewGate(
	channels repository.ChannelRepository,
	conversations repository.ConversationRepository,
	communities repository.CommunityRepository,
	relationships *RelationshipResolver,
	permissions *PermissionResolver,
	memberships *MembershipResolver,
	logger zerolog.Logger,
) *Gate {
	return &Gate{
		channels:      channels,
		conversations: conversations,
		communities:   communities,
		relationships: relationships,
		permissions:   permissions,
		memberships:   memberships,
		logger:        logger.With().Str("component", "access_gate").Logger(),
	}
}

// Relationships exposes the relationship resolver for callers that need raw
// friendship or block queries.
func (g *Gate) Relationships() *RelationshipResolver { return g.relationships }

// Memberships exposes the membership resolver.
func (g *Gate) Memberships() *MembershipResolver { return g.memberships }

// Permissions exposes the permission resolver.
func (g *Gate) Permissions() *PermissionResolver { return g.permissions }

// ChannelRead authorizes reading a channel or listing its messages. Unknown
// channels and non-members surface identically as ChannelNotFound.
func (g *Gate) ChannelRead(ctx context.Context, channelID, userID string) (models.Channel, error) {
	channel, err := g.channels.GetWithContext(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Channel{}, apperr.ErrChannelNotFound
		}
		return models.Channel{}, err
	}

	in, err := g.memberships.InChannel(ctx, &channel, userID)
	if err != nil {
		if errors.Is(err, models.ErrOrphanedChannel) {
			g.logger.Error().Str("channel_id", channelID).Msg("channel row has no owner context")
		}
		return models.Channel{}, err
	}
	if !in {
		return models.Channel{}, apperr.ErrChannelNotFound
	}

	return channel, nil
}

// MessagePost authorizes posting a message. The channel must be TEXT; DM
// conversations with two members additionally require the pair to currently
// be friends, re-checked on every send since friendship may have been revoked
// after the DM was created.
func (g *Gate) MessagePost(ctx context.Context, channelID, userID string) (models.Channel, error) {
	channel, err := g.ChannelRead(ctx, channelID, userID)
	if err != nil {
		return models.Channel{}, err
	}

	if channel.Type != models.ChannelText {
		return models.Channel{}, apperr.ErrWrongChannelType
	}

	if channel.Conversation != nil && channel.Conversation.Type == models.ConversationDM {
		members, err := g.conversations.ListMembers(ctx, channel.Conversation.ID)
		if err != nil {
			return models.Channel{}, err
		}

		if len(members) == 2 {
			friends, err := g.relationships.AreFriends(ctx, members[0].UserID, members[1].UserID)
			if err != nil {
				return models.Channel{}, err
			}
			if !friends {
				return models.Channel{}, apperr.ErrDeliveryFailed
			}
		}
	}

	return channel, nil
}

// VoiceJoin authorizes joining a voice channel. Membership in the owning
// context is the only requirement beyond the channel type.
func (g *Gate) VoiceJoin(ctx context.Context, channelID, userID string) (models.Channel, error) {
	channel, err := g.ChannelRead(ctx, channelID, userID)
	if err != nil {
		return models.Channel{}, err
	}

	if channel.Type != models.ChannelVoice {
		return models.Channel{}, apperr.ErrWrongChannelType
	}

	return channel, nil
}

// ChannelManage authorizes editing or deleting a community channel. Policy
// is literal community ownership; group permissions deliberately do not
// apply here yet.
func (g *Gate) ChannelManage(ctx context.Context, channelID, userID string) (models.Channel, error) {
	channel, err := g.channels.GetWithContext(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Channel{}, apperr.ErrCommunityNotFound
		}
		return models.Channel{}, err
	}

	if channel.Community == nil {
		return models.Channel{}, apperr.ErrCommunityNotFound
	}

	member, err := g.memberships.CommunityMember(ctx, channel.Community.ID, userID)
	if err != nil {
		return models.Channel{}, err
	}
	if member == nil {
		return models.Channel{}, apperr.ErrCommunityNotFound
	}

	if channel.Community.OwnerID != userID {
		return models.Channel{}, apperr.ErrInsufficientPerms
	}

	return channel, nil
}

// CommunityManage authorizes an operation inside a community that requires
// the given permissions (channel or group management). Non-members get
// CommunityNotFound; visible members lacking the permission get
// InsufficientPermissions.
func (g *Gate) CommunityManage(ctx context.Context, communityID, userID string, required ...models.Permission) (models.Community, error) {
	community, err := g.communities.GetByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Community{}, apperr.ErrCommunityNotFound
		}
		return models.Community{}, err
	}

	member, err := g.memberships.CommunityMember(ctx, communityID, userID)
	if err != nil {
		return models.Community{}, err
	}
	if member == nil {
		return models.Community{}, apperr.ErrCommunityNotFound
	}

	allowed, err := g.permissions.HasPermissions(ctx, communityID, userID, required...)
	if err != nil {
		return models.Community{}, err
	}
	if !allowed {
		return models.Community{}, apperr.ErrInsufficientPerms
	}

	return community, nil
}

// CommunityRead authorizes viewing a community. Unknown communities and
// non-members surface identically as CommunityNotFound.
func (g *Gate) CommunityRead(ctx context.Context, communityID, userID string) (models.Community, error) {
	community, err := g.communities.GetByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Community{}, apperr.ErrCommunityNotFound
		}
		return models.Community{}, err
	}

	member, err := g.memberships.CommunityMember(ctx, communityID, userID)
	if err != nil {
		return models.Community{}, err
	}
	if member == nil {
		return models.Community{}, apperr.ErrCommunityNotFound
	}

	return community, nil
}

// MemberGrant authorizes changing a conversation member's permission level.
// Granting ADMINISTRATOR requires the actor to already hold ADMINISTRATOR or
// OWNER; granting OWNER requires OWNER.
func (g *Gate) MemberGrant(actor models.ConversationMember, grant models.ConversationMemberPermission) error {
	switch grant {
	case models.ConversationPermissionAdministrator:
		if actor.Permission != models.ConversationPermissionAdministrator && actor.Permission != models.ConversationPermissionOwner {
			return apperr.ErrMemberPermissions
		}
	case models.ConversationPermissionOwner:
		if actor.Permission != models.ConversationPermissionOwner {
			return apperr.ErrMemberPermissions
		}
	}
	return nil
}

// NewMemberAdd authorizes adding a brand-new member to a GROUP conversation:
// the actor and target must be friends. A block instead hides the target as
// RecipientNotFound.
func (g *Gate) NewMemberAdd(ctx context.Context, actorID, recipientID string) error {
	blocked, err := g.relationships.IsBlocked(ctx, actorID, recipientID)
	if err != nil {
		return err
	}
	if blocked {
		return apperr.ErrRecipientNotFound
	}

	friends, err := g.relationships.AreFriends(ctx, actorID, recipientID)
	if err != nil {
		return err
	}
	if !friends {
		return apperr.ErrNotFriends
	}

	return nil
}

// MemberRemove authorizes removing a conversation member. Owners can never be
// removed; removing an administrator requires the owner; removing a plain
// member requires owner or administrator.
func (g *Gate) MemberRemove(actor, target models.ConversationMember) error {
	switch target.Permission {
	case models.ConversationPermissionOwner:
		return apperr.ErrMemberPermissions
	case models.ConversationPermissionAdministrator:
		if actor.Permission != models.ConversationPermissionOwner {
			return apperr.ErrMemberPermissions
		}
	default:
		if actor.Permission != models.ConversationPermissionOwner && actor.Permission != models.ConversationPermissionAdministrator {
			return apperr.ErrMemberPermissions
		}
	}
	return nil
}
