package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationType discriminates direct messages from group chats.
type ConversationType string

// Conversation types.
const (
	ConversationDM    ConversationType = "DM"
	ConversationGroup ConversationType = "GROUP"
)

// ConversationMemberPermission is the per-member permission level inside a
// conversation.
type ConversationMemberPermission string

// Conversation member permission levels.
const (
	ConversationPermissionMember        ConversationMemberPermission = "MEMBER"
	ConversationPermissionAdministrator ConversationMemberPermission = "ADMINISTRATOR"
	ConversationPermissionOwner         ConversationMemberPermission = "OWNER"
)

// Conversation is a DM or GROUP chat context. Every conversation owns exactly
// one TEXT and one VOICE channel, created alongside it.
type Conversation struct {
	ID        string               `gorm:"primaryKey;size:36" json:"id"`
	Type      ConversationType     `gorm:"size:16;not null" json:"type"`
	Name      string               `gorm:"size:32" json:"name"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Members   []ConversationMember `json:"members,omitempty"`
	Channels  []Channel            `json:"channels,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// TextChannel returns the conversation's TEXT channel if loaded.
func (c *Conversation) TextChannel() *Channel {
	return c.channelOfType(ChannelText)
}

// VoiceChannel returns the conversation's VOICE channel if loaded.
func (c *Conversation) VoiceChannel() *Channel {
	return c.channelOfType(ChannelVoice)
}

func (c *Conversation) channelOfType(t ChannelType) *Channel {
	for i := range c.Channels {
		if c.Channels[i].Type == t {
			return &c.Channels[i]
		}
	}
	return nil
}

// ConversationMember is the membership edge between a conversation and a
// user. DM conversations always hold exactly two OWNER members.
type ConversationMember struct {
	ConversationID string                       `gorm:"primaryKey;size:36" json:"conversation_id"`
	UserID         string                       `gorm:"primaryKey;size:36" json:"user_id"`
	Permission     ConversationMemberPermission `gorm:"size:16;not null" json:"permission"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}
