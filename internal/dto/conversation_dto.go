package dto

import "github.com/octave-im/octave-api/internal/models"

// CreateConversationRequest is a tagged union: DM conversations carry a
// single recipient, GROUP conversations a recipient list.
type CreateConversationRequest struct {
	Type       models.ConversationType `json:"type" validate:"required,oneof=DM GROUP"`
	Recipient  string                  `json:"recipient" validate:"required_if=Type DM,omitempty,uuid4"`
	Recipients []string                `json:"recipients" validate:"required_if=Type GROUP,omitempty,min=1,dive,uuid4"`
	Name       string                  `json:"name" validate:"omitempty,min=1,max=32"`
}

// PatchConversationRequest renames a group conversation.
type PatchConversationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=32"`
}

// PutConversationMemberRequest adds a member or changes their permission.
type PutConversationMemberRequest struct {
	Permission models.ConversationMemberPermission `json:"permission" validate:"omitempty,oneof=MEMBER ADMINISTRATOR OWNER"`
}

// ConversationCreatedResponse returns the new conversation's identifier.
type ConversationCreatedResponse struct {
	ID string `json:"id"`
}

// ConversationResponse is the client view of a conversation, with its two
// fixed channels flattened out.
type ConversationResponse struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name,omitempty"`
	Type           models.ConversationType `json:"type"`
	ChannelID      string                  `json:"channel_id"`
	VoiceChannelID string                  `json:"voice_channel_id"`
}

// ConversationMemberResponse is one membership row.
type ConversationMemberResponse struct {
	UserID     string                              `json:"user_id"`
	Permission models.ConversationMemberPermission `json:"permission"`
}

// NewConversationResponse flattens a conversation and its preloaded channels.
func NewConversationResponse(conversation models.Conversation) ConversationResponse {
	response := ConversationResponse{
		ID:   conversation.ID,
		Name: conversation.Name,
		Type: conversation.Type,
	}
	if text := conversation.TextChannel(); text != nil {
		response.ChannelID = text.ID
	}
	if voice := conversation.VoiceChannel(); voice != nil {
		response.VoiceChannelID = voice.ID
	}
	return response
}

// NewConversationMemberResponseSlice converts membership rows for transport.
func NewConversationMemberResponseSlice(members []models.ConversationMember) []ConversationMemberResponse {
	responses := make([]ConversationMemberResponse, 0, len(members))
	for _, member := range members {
		responses = append(responses, ConversationMemberResponse{
			UserID:     member.UserID,
			Permission: member.Permission,
		})
	}
	return responses
}
