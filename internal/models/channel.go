package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChannelType discriminates text, voice and category channels.
type ChannelType string

// Channel types.
const (
	ChannelText     ChannelType = "TEXT"
	ChannelVoice    ChannelType = "VOICE"
	ChannelCategory ChannelType = "CATEGORY"
)

// ErrOrphanedChannel marks a channel row with neither a conversation nor a
// community owner. Creation invariants make this unreachable, so callers
// treat it as data corruption rather than a normal branch.
var ErrOrphanedChannel = errors.New("channel has no owning conversation or community")

// ChannelOwnerKind tags the owning context of a channel.
type ChannelOwnerKind string

// Channel owner kinds.
const (
	OwnerConversation ChannelOwnerKind = "conversation"
	OwnerCommunity    ChannelOwnerKind = "community"
)

// ChannelOwner is the tagged owner of a channel: a conversation or a
// community, never both.
type ChannelOwner struct {
	Kind ChannelOwnerKind
	ID   string
}

// Channel is a message or voice context owned by exactly one conversation or
// community.
type Channel struct {
	ID             string                          `gorm:"primaryKey;size:36" json:"id"`
	Type           ChannelType                     `gorm:"size:16;not null" json:"type"`
	Name           string                          `gorm:"size:32" json:"name"`
	ConversationID *string                         `gorm:"size:36;index" json:"conversation_id,omitempty"`
	CommunityID    *string                         `gorm:"size:36;index" json:"community_id,omitempty"`
	ParentID       *string                         `gorm:"size:36" json:"parent_id,omitempty"`
	Position       int                             `gorm:"not null;default:0" json:"position"`
	BaseAllow      datatypes.JSONSlice[Permission] `gorm:"type:json" json:"base_allow"`
	BaseDeny       datatypes.JSONSlice[Permission] `gorm:"type:json" json:"base_deny"`
	CreatedAt      time.Time                       `json:"created_at"`
	UpdatedAt      time.Time                       `json:"updated_at"`
	Conversation   *Conversation                   `json:"conversation,omitempty"`
	Community      *Community                      `json:"community,omitempty"`
	VoiceRoom      *VoiceRoom                      `json:"voice_room,omitempty"`
}

// NewConversationChannel builds a channel owned by a conversation.
func NewConversationChannel(conversationID string, channelType ChannelType) Channel {
	return Channel{Type: channelType, ConversationID: &conversationID}
}

// NewCommunityChannel builds a named channel owned by a community.
func NewCommunityChannel(communityID, name string, channelType ChannelType) Channel {
	return Channel{Type: channelType, Name: name, CommunityID: &communityID}
}

// Owner resolves the channel's owning context. Exactly one of the two owner
// columns must be set.
func (c *Channel) Owner() (ChannelOwner, error) {
	switch {
	case c.ConversationID != nil && c.CommunityID != nil:
		return ChannelOwner{}, ErrOrphanedChannel
	case c.ConversationID != nil:
		return ChannelOwner{Kind: OwnerConversation, ID: *c.ConversationID}, nil
	case c.CommunityID != nil:
		return ChannelOwner{Kind: OwnerCommunity, ID: *c.CommunityID}, nil
	default:
		return ChannelOwner{}, ErrOrphanedChannel
	}
}

// BeforeCreate assigns a UUID primary key and rejects rows that would break
// the single-owner invariant.
func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, err := c.Owner(); err != nil {
		return err
	}
	return nil
}

// Message belongs to a TEXT channel. The payload is an opaque JSON union:
// either {content} plaintext or an encrypted envelope the server never
// inspects.
type Message struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	ChannelID string         `gorm:"size:36;index;not null" json:"channel_id"`
	AuthorID  string         `gorm:"size:36;index;not null" json:"author_id"`
	Payload   datatypes.JSON `gorm:"type:json" json:"payload"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Read is the per (channel, user) read watermark.
type Read struct {
	ChannelID         string    `gorm:"primaryKey;size:36" json:"channel_id"`
	UserID            string    `gorm:"primaryKey;size:36" json:"user_id"`
	LastReadMessageID string    `gorm:"size:36" json:"last_read_message_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// VoiceRoom is the live media room bound to a VOICE channel. At most one
// exists per channel; it tracks the assigned media server and connected users.
type VoiceRoom struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ChannelID string    `gorm:"size:36;uniqueIndex;not null" json:"channel_id"`
	ServerID  string    `gorm:"size:64;index;not null" json:"server_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Users     []User    `gorm:"many2many:voice_room_users" json:"users,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (v *VoiceRoom) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
