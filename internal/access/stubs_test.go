package access

import (
	"context"

	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
)

type relKey struct{ user, recipient string }

type stubRelationshipRepo struct {
	edges map[relKey]models.RelationshipType
}

func newStubRelationshipRepo() *stubRelationshipRepo {
	return &stubRelationshipRepo{edges: make(map[relKey]models.RelationshipType)}
}

func (s *stubRelationshipRepo) set(userID, recipientID string, relType models.RelationshipType) {
	s.edges[relKey{userID, recipientID}] = relType
}

func (s *stubRelationshipRepo) Get(ctx context.Context, userID, recipientID string) (models.Relationship, error) {
	if relType, ok := s.edges[relKey{userID, recipientID}]; ok {
		return models.Relationship{UserID: userID, RecipientID: recipientID, Type: relType}, nil
	}
	return models.Relationship{}, gorm.ErrRecordNotFound
}

func (s *stubRelationshipRepo) GetOfType(ctx context.Context, userID, recipientID string, relType models.RelationshipType) (models.Relationship, error) {
	if current, ok := s.edges[relKey{userID, recipientID}]; ok && current == relType {
		return models.Relationship{UserID: userID, RecipientID: recipientID, Type: relType}, nil
	}
	return models.Relationship{}, gorm.ErrRecordNotFound
}

func (s *stubRelationshipRepo) ListOutgoing(ctx context.Context, userID string) ([]models.Relationship, error) {
	var relationships []models.Relationship
	for key, relType := range s.edges {
		if key.user == userID {
			relationships = append(relationships, models.Relationship{UserID: key.user, RecipientID: key.recipient, Type: relType})
		}
	}
	return relationships, nil
}

func (s *stubRelationshipRepo) ListIncoming(ctx context.Context, recipientID string) ([]models.Relationship, error) {
	var relationships []models.Relationship
	for key, relType := range s.edges {
		if key.recipient == recipientID {
			relationships = append(relationships, models.Relationship{UserID: key.user, RecipientID: key.recipient, Type: relType})
		}
	}
	return relationships, nil
}

func (s *stubRelationshipRepo) Upsert(ctx context.Context, relationship *models.Relationship) error {
	s.set(relationship.UserID, relationship.RecipientID, relationship.Type)
	return nil
}

func (s *stubRelationshipRepo) Delete(ctx context.Context, userID, recipientID string) error {
	delete(s.edges, relKey{userID, recipientID})
	return nil
}

func (s *stubRelationshipRepo) DeleteOfType(ctx context.Context, userID, recipientID string, relType models.RelationshipType) error {
	if current, ok := s.edges[relKey{userID, recipientID}]; ok && current == relType {
		delete(s.edges, relKey{userID, recipientID})
	}
	return nil
}

func (s *stubRelationshipRepo) DeleteNonBlocked(ctx context.Context, userID, recipientID string) error {
	if current, ok := s.edges[relKey{userID, recipientID}]; ok && current != models.RelationshipBlocked {
		delete(s.edges, relKey{userID, recipientID})
	}
	return nil
}

func (s *stubRelationshipRepo) CountBlocksAgainst(ctx context.Context, recipientID string, userIDs []string) (int64, error) {
	var count int64
	for _, userID := range userIDs {
		if current, ok := s.edges[relKey{userID, recipientID}]; ok && current == models.RelationshipBlocked {
			count++
		}
	}
	return count, nil
}

type stubConversationRepo struct {
	conversations map[string]models.Conversation
	members       map[string]map[string]models.ConversationMember
}

func newStubConversationRepo() *stubConversationRepo {
	return &stubConversationRepo{
		conversations: make(map[string]models.Conversation),
		members:       make(map[string]map[string]models.ConversationMember),
	}
}

func (s *stubConversationRepo) addMember(conversationID, userID string, permission models.ConversationMemberPermission) {
	if s.members[conversationID] == nil {
		s.members[conversationID] = make(map[string]models.ConversationMember)
	}
	s.members[conversationID][userID] = models.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		Permission:     permission,
	}
}

func (s *stubConversationRepo) Create(ctx context.Context, conversation *models.Conversation) error {
	s.conversations[conversation.ID] = *conversation
	return nil
}

func (s *stubConversationRepo) GetByID(ctx context.Context, id string) (models.Conversation, error) {
	if conversation, ok := s.conversations[id]; ok {
		return conversation, nil
	}
	return models.Conversation{}, gorm.ErrRecordNotFound
}

func (s *stubConversationRepo) UpdateName(ctx context.Context, id, name string) error {
	conversation, ok := s.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	conversation.Name = name
	s.conversations[id] = conversation
	return nil
}

func (s *stubConversationRepo) GetMember(ctx context.Context, conversationID, userID string) (models.ConversationMember, error) {
	if member, ok := s.members[conversationID][userID]; ok {
		return member, nil
	}
	return models.ConversationMember{}, gorm.ErrRecordNotFound
}

func (s *stubConversationRepo) ListMembers(ctx context.Context, conversationID string) ([]models.ConversationMember, error) {
	var members []models.ConversationMember
	for _, member := range s.members[conversationID] {
		members = append(members, member)
	}
	return members, nil
}

func (s *stubConversationRepo) UpsertMember(ctx context.Context, member *models.ConversationMember) error {
	s.addMember(member.ConversationID, member.UserID, member.Permission)
	return nil
}

func (s *stubConversationRepo) CreateMembers(ctx context.Context, members []models.ConversationMember) error {
	for _, member := range members {
		s.addMember(member.ConversationID, member.UserID, member.Permission)
	}
	return nil
}

func (s *stubConversationRepo) DeleteMember(ctx context.Context, conversationID, userID string) error {
	delete(s.members[conversationID], userID)
	return nil
}

func (s *stubConversationRepo) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for conversationID, members := range s.members {
		if _, ok := members[userID]; ok {
			ids = append(ids, conversationID)
		}
	}
	return ids, nil
}

func (s *stubConversationRepo) ListWithChannelsByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	ids, _ := s.ListIDsByUser(ctx, userID)
	var conversations []models.Conversation
	for _, id := range ids {
		conversations = append(conversations, s.conversations[id])
	}
	return conversations, nil
}

func (s *stubConversationRepo) FindDMBetween(ctx context.Context, userID, recipientID string) (models.Conversation, error) {
	for id, conversation := range s.conversations {
		if conversation.Type != models.ConversationDM {
			continue
		}
		_, hasA := s.members[id][userID]
		_, hasB := s.members[id][recipientID]
		if hasA && hasB {
			return conversation, nil
		}
	}
	return models.Conversation{}, gorm.ErrRecordNotFound
}

type stubCommunityRepo struct {
	communities map[string]models.Community
	members     map[string]map[string]models.CommunityMember
}

func newStubCommunityRepo() *stubCommunityRepo {
	return &stubCommunityRepo{
		communities: make(map[string]models.Community),
		members:     make(map[string]map[string]models.CommunityMember),
	}
}

func (s *stubCommunityRepo) addMember(communityID, userID string) {
	if s.members[communityID] == nil {
		s.members[communityID] = make(map[string]models.CommunityMember)
	}
	s.members[communityID][userID] = models.CommunityMember{CommunityID: communityID, UserID: userID}
}

func (s *stubCommunityRepo) Create(ctx context.Context, community *models.Community) error {
	s.communities[community.ID] = *community
	return nil
}

func (s *stubCommunityRepo) GetByID(ctx context.Context, id string) (models.Community, error) {
	if community, ok := s.communities[id]; ok {
		return community, nil
	}
	return models.Community{}, gorm.ErrRecordNotFound
}

func (s *stubCommunityRepo) GetMember(ctx context.Context, communityID, userID string) (models.CommunityMember, error) {
	if member, ok := s.members[communityID][userID]; ok {
		return member, nil
	}
	return models.CommunityMember{}, gorm.ErrRecordNotFound
}

func (s *stubCommunityRepo) AddMember(ctx context.Context, member *models.CommunityMember) error {
	s.addMember(member.CommunityID, member.UserID)
	return nil
}

func (s *stubCommunityRepo) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for communityID, members := range s.members {
		if _, ok := members[userID]; ok {
			ids = append(ids, communityID)
		}
	}
	return ids, nil
}

func (s *stubCommunityRepo) ListGroupIDs(ctx context.Context, communityID string) ([]string, error) {
	return nil, nil
}

type stubGroupRepo struct {
	groups      map[string]models.Group
	assignments []models.GroupMember
}

func newStubGroupRepo() *stubGroupRepo {
	return &stubGroupRepo{groups: make(map[string]models.Group)}
}

func (s *stubGroupRepo) assign(group models.Group, userID string) {
	s.groups[group.ID] = group
	s.assignments = append(s.assignments, models.GroupMember{
		GroupID:     group.ID,
		UserID:      userID,
		CommunityID: group.CommunityID,
	})
}

func (s *stubGroupRepo) Create(ctx context.Context, group *models.Group) error {
	s.groups[group.ID] = *group
	return nil
}

func (s *stubGroupRepo) GetByID(ctx context.Context, id string) (models.Group, error) {
	if group, ok := s.groups[id]; ok {
		return group, nil
	}
	return models.Group{}, gorm.ErrRecordNotFound
}

func (s *stubGroupRepo) DeleteWithMembers(ctx context.Context, id string) error {
	delete(s.groups, id)
	return nil
}

func (s *stubGroupRepo) AssignMember(ctx context.Context, member *models.GroupMember) error {
	s.assignments = append(s.assignments, *member)
	return nil
}

func (s *stubGroupRepo) ListMemberGroups(ctx context.Context, communityID, userID string) ([]models.GroupMember, error) {
	var memberships []models.GroupMember
	for _, assignment := range s.assignments {
		if assignment.CommunityID == communityID && assignment.UserID == userID {
			group := s.groups[assignment.GroupID]
			assignment.Group = &group
			memberships = append(memberships, assignment)
		}
	}
	return memberships, nil
}

type stubChannelRepo struct {
	channels map[string]models.Channel
}

func newStubChannelRepo() *stubChannelRepo {
	return &stubChannelRepo{channels: make(map[string]models.Channel)}
}

func (s *stubChannelRepo) Create(ctx context.Context, channel *models.Channel) error {
	s.channels[channel.ID] = *channel
	return nil
}

func (s *stubChannelRepo) GetByID(ctx context.Context, id string) (models.Channel, error) {
	if channel, ok := s.channels[id]; ok {
		return channel, nil
	}
	return models.Channel{}, gorm.ErrRecordNotFound
}

func (s *stubChannelRepo) GetWithContext(ctx context.Context, id string) (models.Channel, error) {
	return s.GetByID(ctx, id)
}

func (s *stubChannelRepo) UpdateName(ctx context.Context, id, name string) error {
	channel, ok := s.channels[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	channel.Name = name
	s.channels[id] = channel
	return nil
}

func (s *stubChannelRepo) DeleteWithDependents(ctx context.Context, channel *models.Channel) error {
	delete(s.channels, channel.ID)
	return nil
}

func (s *stubChannelRepo) ListIDsByCommunity(ctx context.Context, communityID string) ([]string, error) {
	var ids []string
	for id, channel := range s.channels {
		if channel.CommunityID != nil && *channel.CommunityID == communityID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *stubChannelRepo) GetRead(ctx context.Context, channelID, userID string) (models.Read, error) {
	return models.Read{}, gorm.ErrRecordNotFound
}

func (s *stubChannelRepo) UpsertRead(ctx context.Context, read *models.Read) error {
	return nil
}
