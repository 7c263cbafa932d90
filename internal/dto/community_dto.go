package dto

import "github.com/octave-im/octave-api/internal/models"

// CreateCommunityRequest creates a community owned by the caller.
type CreateCommunityRequest struct {
	Name string `json:"name" validate:"required,min=6,max=32"`
}

// CreateGroupRequest creates a permission group inside a community.
type CreateGroupRequest struct {
	Name        string              `json:"name" validate:"required,min=1,max=32"`
	Permissions []models.Permission `json:"permissions" validate:"omitempty,dive,required"`
}

// CommunityCreatedResponse returns the new community's identifier.
type CommunityCreatedResponse struct {
	ID string `json:"id"`
}

// GroupCreatedResponse returns the new group's identifier.
type GroupCreatedResponse struct {
	ID string `json:"id"`
}

// CommunityResponse is the member view of a community.
type CommunityResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerID     string `json:"owner_id"`
	Icon        string `json:"icon,omitempty"`
	Banner      string `json:"banner,omitempty"`
	Description string `json:"description,omitempty"`
	Flags       int64  `json:"flags"`
}

// GroupResponse is one permission group.
type GroupResponse struct {
	ID          string              `json:"id"`
	CommunityID string              `json:"community_id"`
	Name        string              `json:"name"`
	Color       string              `json:"color,omitempty"`
	Position    int                 `json:"position"`
	Permissions []models.Permission `json:"permissions"`
}

// NewCommunityResponse converts a community for transport.
func NewCommunityResponse(community models.Community) CommunityResponse {
	return CommunityResponse{
		ID:          community.ID,
		Name:        community.Name,
		OwnerID:     community.OwnerID,
		Icon:        community.Icon,
		Banner:      community.Banner,
		Description: community.Description,
		Flags:       community.Flags,
	}
}

// NewGroupResponse converts a group for transport.
func NewGroupResponse(group models.Group) GroupResponse {
	return GroupResponse{
		ID:          group.ID,
		CommunityID: group.CommunityID,
		Name:        group.Name,
		Color:       group.Color,
		Position:    group.Position,
		Permissions: group.Permissions,
	}
}

// NewGroupResponseSlice converts a community's group list.
func NewGroupResponseSlice(groups []models.Group) []GroupResponse {
	responses := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, NewGroupResponse(group))
	}
	return responses
}
