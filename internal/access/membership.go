package access

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
)

// MembershipResolver answers "is this user a member of that context" for
// conversations, communities and the channels they own.
type MembershipResolver struct {
	conversations repository.ConversationRepository
	communities   repository.CommunityRepository
}

// NewMembershipResolver constructs a membership resolver.
func NewMembershipResolver(conversations repository.ConversationRepository, communities repository.CommunityRepository) *MembershipResolver {
	return &MembershipResolver{conversations: conversations, communities: communities}
}

// ConversationMember fetches a conversation membership record, or nil when
// the user is not a member.
func (m *MembershipResolver) ConversationMember(ctx context.Context, conversationID, userID string) (*models.ConversationMember, error) {
	member, err := m.conversations.GetMember(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// CommunityMember fetches a community membership record, or nil when the user
// is not a member.
func (m *MembershipResolver) CommunityMember(ctx context.Context, communityID, userID string) (*models.CommunityMember, error) {
	member, err := m.communities.GetMember(ctx, communityID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// InChannel resolves the channel's owning context and delegates to the
// matching membership check. A channel without an owner context fails with
// models.ErrOrphanedChannel, which creation invariants make unreachable.
func (m *MembershipResolver) InChannel(ctx context.Context, channel *models.Channel, userID string) (bool, error) {
	owner, err := channel.Owner()
	if err != nil {
		return false, err
	}

	switch owner.Kind {
	case models.OwnerConversation:
		member, err := m.ConversationMember(ctx, owner.ID, userID)
		if err != nil {
			return false, err
		}
		return member != nil, nil
	default:
		member, err := m.CommunityMember(ctx, owner.ID, userID)
		if err != nil {
			return false, err
		}
		return member != nil, nil
	}
}
