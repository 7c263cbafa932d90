package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Permission is a named capability inside a community.
type Permission string

// Community permissions. OWNER and ADMINISTRATOR supersede every other
// permission during authorization.
const (
	PermissionReadMessages    Permission = "READ_MESSAGES"
	PermissionSendMessages    Permission = "SEND_MESSAGES"
	PermissionEmbedLinks      Permission = "EMBED_LINKS"
	PermissionMentionMembers  Permission = "MENTION_MEMBERS"
	PermissionMentionGroups   Permission = "MENTION_GROUPS"
	PermissionMentionEveryone Permission = "MENTION_EVERYONE"
	PermissionCreateInvites   Permission = "CREATE_INVITES"
	PermissionKickMembers     Permission = "KICK_MEMBERS"
	PermissionBanMembers      Permission = "BAN_MEMBERS"
	PermissionManageInvites   Permission = "MANAGE_INVITES"
	PermissionManageMessages  Permission = "MANAGE_MESSAGES"
	PermissionManageGroups    Permission = "MANAGE_GROUPS"
	PermissionManageChannels  Permission = "MANAGE_CHANNELS"
	PermissionManageCommunity Permission = "MANAGE_COMMUNITY"
	PermissionManageProducts  Permission = "MANAGE_PRODUCTS"
	PermissionAdministrator   Permission = "ADMINISTRATOR"
	PermissionOwner           Permission = "OWNER"
)

// AllPermissions lists every assignable permission, used for input validation.
var AllPermissions = []Permission{
	PermissionReadMessages, PermissionSendMessages, PermissionEmbedLinks,
	PermissionMentionMembers, PermissionMentionGroups, PermissionMentionEveryone,
	PermissionCreateInvites, PermissionKickMembers, PermissionBanMembers,
	PermissionManageInvites, PermissionManageMessages, PermissionManageGroups,
	PermissionManageChannels, PermissionManageCommunity, PermissionManageProducts,
	PermissionAdministrator, PermissionOwner,
}

// Community is a persistent group workspace with an owner, channels, groups
// and members. The owner implicitly holds every permission.
type Community struct {
	ID              string                          `gorm:"primaryKey;size:36" json:"id"`
	Name            string                          `gorm:"size:32;not null" json:"name"`
	OwnerID         string                          `gorm:"size:36;index;not null" json:"owner_id"`
	Icon            string                          `gorm:"size:512" json:"icon"`
	Banner          string                          `gorm:"size:512" json:"banner"`
	Description     string                          `gorm:"size:512" json:"description"`
	Flags           int64                           `gorm:"not null;default:0" json:"flags"`
	BasePermissions datatypes.JSONSlice[Permission] `gorm:"type:json" json:"base_permissions"`
	CreatedAt       time.Time                       `json:"created_at"`
	UpdatedAt       time.Time                       `json:"updated_at"`
	Members         []CommunityMember               `json:"members,omitempty"`
	Groups          []Group                         `json:"groups,omitempty"`
	Channels        []Channel                       `json:"channels,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (c *Community) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CommunityMember is the membership edge between a community and a user.
// Existence of the row means "in community".
type CommunityMember struct {
	CommunityID string    `gorm:"primaryKey;size:36" json:"community_id"`
	UserID      string    `gorm:"primaryKey;size:36" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Group is a named permission bundle scoped to a community, ordered by
// position for presentation.
type Group struct {
	ID          string                          `gorm:"primaryKey;size:36" json:"id"`
	CommunityID string                          `gorm:"size:36;index;not null" json:"community_id"`
	Name        string                          `gorm:"size:32;not null" json:"name"`
	Color       string                          `gorm:"size:16" json:"color"`
	Position    int                             `gorm:"not null;default:0" json:"position"`
	Permissions datatypes.JSONSlice[Permission] `gorm:"type:json" json:"permissions"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// GroupMember assigns a community member to a group.
type GroupMember struct {
	GroupID     string    `gorm:"primaryKey;size:36" json:"group_id"`
	UserID      string    `gorm:"primaryKey;size:36" json:"user_id"`
	CommunityID string    `gorm:"size:36;index;not null" json:"community_id"`
	CreatedAt   time.Time `json:"created_at"`
	Group       *Group    `json:"group,omitempty"`
}
