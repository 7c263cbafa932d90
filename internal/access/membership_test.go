package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octave-im/octave-api/internal/models"
)

func TestInChannelResolvesConversationOwner(t *testing.T) {
	conversations := newStubConversationRepo()
	communities := newStubCommunityRepo()
	resolver := NewMembershipResolver(conversations, communities)

	conversationID := "conv"
	conversations.conversations[conversationID] = models.Conversation{ID: conversationID, Type: models.ConversationGroup}
	conversations.addMember(conversationID, "member", models.ConversationPermissionMember)

	channel := models.Channel{ID: "ch", Type: models.ChannelText, ConversationID: &conversationID}

	in, err := resolver.InChannel(context.Background(), &channel, "member")
	require.NoError(t, err)
	require.True(t, in)

	in, err = resolver.InChannel(context.Background(), &channel, "stranger")
	require.NoError(t, err)
	require.False(t, in)
}

func TestInChannelResolvesCommunityOwner(t *testing.T) {
	conversations := newStubConversationRepo()
	communities := newStubCommunityRepo()
	resolver := NewMembershipResolver(conversations, communities)

	communityID := "comm"
	communities.communities[communityID] = models.Community{ID: communityID, OwnerID: "owner"}
	communities.addMember(communityID, "member")

	channel := models.Channel{ID: "ch", Type: models.ChannelText, CommunityID: &communityID}

	in, err := resolver.InChannel(context.Background(), &channel, "member")
	require.NoError(t, err)
	require.True(t, in)

	in, err = resolver.InChannel(context.Background(), &channel, "stranger")
	require.NoError(t, err)
	require.False(t, in)
}

func TestInChannelRejectsOrphanedChannel(t *testing.T) {
	resolver := NewMembershipResolver(newStubConversationRepo(), newStubCommunityRepo())

	channel := models.Channel{ID: "ch", Type: models.ChannelText}
	_, err := resolver.InChannel(context.Background(), &channel, "anyone")
	require.ErrorIs(t, err, models.ErrOrphanedChannel)
}
