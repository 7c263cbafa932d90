package realtime

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
)

// Synchronizer keeps each live session's room subscriptions equal to the room
// set implied by durable membership, and pushes the change events every
// membership transition carries. Room membership is a projection of storage
// state: joins and leaves here are derived effects, never the source of
// truth.
type Synchronizer struct {
	registry      *Registry
	broker        *Broker
	conversations repository.ConversationRepository
	logger        zerolog.Logger
}

// NewSynchronizer creates the room membership synchronizer.
func NewSynchronizer(registry *Registry, broker *Broker, conversations repository.ConversationRepository, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		registry:      registry,
		broker:        broker,
		conversations: conversations,
		logger:        logger.With().Str("component", "room_synchronizer").Logger(),
	}
}

// RoomsForConversation projects a conversation (with channels loaded) onto
// its broadcast rooms.
func RoomsForConversation(conversation *models.Conversation) []string {
	rooms := []string{ConversationRoom(conversation.ID)}
	if text := conversation.TextChannel(); text != nil {
		rooms = append(rooms, ChannelRoom(text.ID), ChannelMessagesRoom(text.ID))
	}
	if voice := conversation.VoiceChannel(); voice != nil {
		rooms = append(rooms, VoiceChannelRoom(voice.ID))
	}
	return rooms
}

// RoomsForUser recomputes the full room set for a user from durable
// membership: the personal room plus the rooms of every conversation they
// belong to.
func (s *Synchronizer) RoomsForUser(ctx context.Context, userID string) ([]string, error) {
	conversations, err := s.conversations.ListWithChannelsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	rooms := []string{UserRoom(userID)}
	for i := range conversations {
		rooms = append(rooms, RoomsForConversation(&conversations[i])...)
	}
	return rooms, nil
}

// Connect registers a session and joins it to its recomputed room set. The
// set is always resolved fresh here, which is what heals sessions that opened
// mid-transition and missed a join. Cached last messages are replayed to the
// new session only.
func (s *Synchronizer) Connect(ctx context.Context, session *Session) error {
	rooms, err := s.RoomsForUser(ctx, session.UserID)
	if err != nil {
		return err
	}

	s.registry.Register(session)
	s.registry.Join(session, rooms...)

	for _, room := range rooms {
		if !strings.HasPrefix(room, "channel/messages:") {
			continue
		}
		if last := s.broker.LastEvent(ctx, room); last != nil {
			if !session.Push(*last) {
				s.logger.Debug().Str("room", room).Msg("dropping cached event for slow session")
			}
		}
	}

	return nil
}

// Disconnect removes a session from the registry and all its rooms.
func (s *Synchronizer) Disconnect(session *Session) {
	s.registry.Unregister(session)
}

// ConversationCreated joins every initial member's live sessions to the new
// conversation's rooms and notifies each member's personal room.
func (s *Synchronizer) ConversationCreated(ctx context.Context, conversation *models.Conversation) {
	rooms := RoomsForConversation(conversation)
	payload := map[string]string{"id": conversation.ID}
	for _, member := range conversation.Members {
		s.registry.JoinUser(member.UserID, rooms...)
		s.broker.Emit(ctx, UserRoom(member.UserID), Event{Name: EventConversationCreate, Data: payload})
	}
}

// ConversationUpdated broadcasts a rename to everyone in the conversation.
func (s *Synchronizer) ConversationUpdated(ctx context.Context, conversationID, name, authorID string) {
	s.broker.Emit(ctx, ConversationRoom(conversationID), Event{Name: EventConversationUpdate, Data: map[string]string{
		"id":        conversationID,
		"name":      name,
		"author_id": authorID,
	}})
}

// MemberAdded reconciles rooms for an added member. A brand-new member's live
// sessions join the conversation rooms and receive CONVERSATION_CREATE on
// their personal room; the conversation room sees MEMBER_ADD, or
// MEMBER_UPDATE when the membership record already existed.
func (s *Synchronizer) MemberAdded(ctx context.Context, conversation *models.Conversation, member models.ConversationMember, authorID string, existing bool) {
	event := EventMemberAdd
	if existing {
		event = EventMemberUpdate
	} else {
		s.registry.JoinUser(member.UserID, RoomsForConversation(conversation)...)
		s.broker.Emit(ctx, UserRoom(member.UserID), Event{Name: EventConversationCreate, Data: map[string]string{"id": conversation.ID}})
	}

	s.broker.Emit(ctx, ConversationRoom(conversation.ID), Event{Name: event, Data: map[string]string{
		"id":         conversation.ID,
		"user_id":    member.UserID,
		"author_id":  authorID,
		"permission": string(member.Permission),
	}})
}

// MemberRemoved reconciles rooms for a departing member: their live sessions
// leave the conversation rooms and the conversation room hears MEMBER_REMOVE,
// or MEMBER_LEAVE for voluntary exits. Removed users additionally get a
// targeted notice on their personal room.
func (s *Synchronizer) MemberRemoved(ctx context.Context, conversation *models.Conversation, userID, authorID string, left bool) {
	s.registry.LeaveUser(userID, RoomsForConversation(conversation)...)

	if left {
		s.broker.Emit(ctx, ConversationRoom(conversation.ID), Event{Name: EventMemberLeave, Data: map[string]string{
			"id":      conversation.ID,
			"user_id": userID,
		}})
		return
	}

	s.broker.Emit(ctx, ConversationRoom(conversation.ID), Event{Name: EventMemberRemove, Data: map[string]string{
		"id":        conversation.ID,
		"user_id":   userID,
		"author_id": authorID,
	}})
	s.broker.Emit(ctx, UserRoom(userID), Event{Name: EventMemberRemove, Data: map[string]string{
		"id":      conversation.ID,
		"user_id": userID,
	}})
}

// MessagePosted broadcasts a stored message to the channel's messages room.
func (s *Synchronizer) MessagePosted(ctx context.Context, channelID string, message any) {
	s.broker.Emit(ctx, ChannelMessagesRoom(channelID), Event{Name: EventNewMessage, Data: map[string]any{
		"channel_id": channelID,
		"message":    message,
	}})
}

// IncomingCall rings the conversation when a voice room goes from empty to
// occupied.
func (s *Synchronizer) IncomingCall(ctx context.Context, conversationID, channelID, userID string) {
	s.broker.Emit(ctx, ConversationRoom(conversationID), Event{Name: EventIncomingCall, Data: map[string]string{
		"id":         conversationID,
		"user_id":    userID,
		"channel_id": channelID,
	}})
}

// VoiceUserJoined broadcasts a voice join to the voice channel's room.
func (s *Synchronizer) VoiceUserJoined(ctx context.Context, channelID, roomID, userID string) {
	s.broker.Emit(ctx, VoiceChannelRoom(channelID), Event{Name: EventMemberVoiceJoin, Data: map[string]string{
		"id":      channelID,
		"user_id": userID,
		"room_id": roomID,
	}})
}

// VoiceUserLeft broadcasts a voice leave to the voice channel's room.
func (s *Synchronizer) VoiceUserLeft(ctx context.Context, channelID, roomID, userID string) {
	s.broker.Emit(ctx, VoiceChannelRoom(channelID), Event{Name: EventMemberVoiceLeave, Data: map[string]string{
		"id":      channelID,
		"user_id": userID,
		"room_id": roomID,
	}})
}
