package dto

import (
	"encoding/json"
	"time"

	"github.com/octave-im/octave-api/internal/models"
)

// CreateChannelRequest creates a community channel. Type defaults to TEXT.
type CreateChannelRequest struct {
	Name string             `json:"name" validate:"required,min=1,max=32"`
	Type models.ChannelType `json:"type" validate:"omitempty,oneof=TEXT VOICE CATEGORY"`
}

// PatchChannelRequest renames a community channel.
type PatchChannelRequest struct {
	Name string `json:"name" validate:"required,min=1,max=32"`
}

// CreateMessageRequest carries the opaque message payload: either a
// plaintext {content} document or an encrypted envelope.
type CreateMessageRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// AckRequest moves the caller's read watermark. An empty message ID means
// "latest".
type AckRequest struct {
	MessageID string `json:"message_id" validate:"omitempty,uuid4"`
}

// ChannelResponse is the client view of a channel, enriched with the
// caller's read watermark, the channel tail and live voice occupants.
type ChannelResponse struct {
	ID                string             `json:"id"`
	Type              models.ChannelType `json:"type"`
	Name              string             `json:"name,omitempty"`
	ConversationID    *string            `json:"conversation_id,omitempty"`
	CommunityID       *string            `json:"community_id,omitempty"`
	LastReadMessageID string             `json:"last_read_message_id,omitempty"`
	LastMessageID     string             `json:"last_message_id,omitempty"`
	LastMessageDate   *time.Time         `json:"last_message_date,omitempty"`
	VoiceUsers        []string           `json:"voice_users,omitempty"`
}

// MessageResponse is one stored message.
type MessageResponse struct {
	ID        string          `json:"id"`
	ChannelID string          `json:"channel_id"`
	AuthorID  string          `json:"author_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ChannelCreatedResponse returns the new channel's identifier.
type ChannelCreatedResponse struct {
	ID string `json:"id"`
}

// MessageCreatedResponse returns the new message's identifier.
type MessageCreatedResponse struct {
	ID string `json:"id"`
}

// VoiceJoinResponse hands the client everything it needs to join the media
// room: the room, the media server socket address and a short-lived token.
type VoiceJoinResponse struct {
	RoomID string `json:"room_id"`
	Socket string `json:"socket"`
	Token  string `json:"token"`
}

// NewChannelResponse builds the base channel view; callers fill in the
// watermark, tail and voice occupants.
func NewChannelResponse(channel models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:             channel.ID,
		Type:           channel.Type,
		Name:           channel.Name,
		ConversationID: channel.ConversationID,
		CommunityID:    channel.CommunityID,
	}
}

// NewMessageResponse converts a stored message for transport.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:        message.ID,
		ChannelID: message.ChannelID,
		AuthorID:  message.AuthorID,
		Payload:   json.RawMessage(message.Payload),
		CreatedAt: message.CreatedAt,
		UpdatedAt: message.UpdatedAt,
	}
}

// NewMessageResponseSlice converts a page of messages for transport.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	responses := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		responses = append(responses, NewMessageResponse(message))
	}
	return responses
}
