package dto

import (
	"encoding/json"
	"time"

	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/pkg/signing"
)

// RegisterUserRequest creates an account together with its key material. The
// keychain documents are opaque to the server and stored as-is.
type RegisterUserRequest struct {
	Username          string          `json:"username" validate:"required,min=3,max=32,username"`
	Email             string          `json:"email" validate:"required,email"`
	Salt              json.RawMessage `json:"salt" validate:"required"`
	EncryptedKeychain json.RawMessage `json:"encryptedKeychain" validate:"required"`
	PublicKeychain    json.RawMessage `json:"publicKeychain" validate:"required"`
}

// ChallengeRequest starts the login handshake.
type ChallengeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChallengeResponse hands the client everything it needs to sign the
// challenge: the short-lived token plus its own encrypted key material.
type ChallengeResponse struct {
	Challenge         string          `json:"challenge"`
	EncryptedKeychain json.RawMessage `json:"encrypted_keychain"`
	Salt              json.RawMessage `json:"salt"`
}

// LoginRequest exchanges a signed challenge for a user token.
type LoginRequest struct {
	Email           string                `json:"email" validate:"required,email"`
	SignedChallenge signing.SignedMessage `json:"signedChallenge" validate:"required"`
}

// TokenResponse carries a freshly issued user token.
type TokenResponse struct {
	Token string `json:"token"`
}

// PatchUserRequest updates mutable profile fields.
type PatchUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=32,username"`
	State    *string `json:"state" validate:"omitempty,oneof=ONLINE IDLE DND OFFLINE"`
	Status   *string `json:"status" validate:"omitempty,min=3,max=128"`
}

// FindUserQuery looks a user up by username#discriminator.
type FindUserQuery struct {
	Username      string `query:"username" validate:"required"`
	Discriminator int    `query:"discriminator" validate:"required,min=1,max=9999"`
}

// PutRelationshipRequest creates or replaces a relationship edge.
type PutRelationshipRequest struct {
	Type models.RelationshipType `json:"type" validate:"required,oneof=OUTGOING BLOCKED"`
}

// RelationshipsResponse partitions a user's relationship edges into the four
// client-facing buckets.
type RelationshipsResponse struct {
	Friends  []string `json:"friends"`
	Outgoing []string `json:"outgoing"`
	Incoming []string `json:"incoming"`
	Blocked  []string `json:"blocked"`
}

// MeResponse is the private view of the requesting user, keychain included.
type MeResponse struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Username      string          `json:"username"`
	Discriminator int             `json:"discriminator"`
	Avatar        string          `json:"avatar,omitempty"`
	Status        string          `json:"status,omitempty"`
	State         models.UserState `json:"state"`
	Badges        []string        `json:"badges"`
	Flags         int64           `json:"flags"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Keychain      *KeychainView   `json:"keychain,omitempty"`
}

// KeychainView is the full keychain relayed back to its owner.
type KeychainView struct {
	EncryptedKeychain json.RawMessage `json:"encrypted_keychain"`
	PublicKeychain    json.RawMessage `json:"public_keychain"`
	Salt              json.RawMessage `json:"salt"`
}

// PublicKeychainView exposes only the public half of a keychain.
type PublicKeychainView struct {
	PublicKeychain json.RawMessage `json:"public_keychain"`
}

// UserResponse is the public view of another user.
type UserResponse struct {
	ID            string              `json:"id"`
	Username      string              `json:"username"`
	Discriminator int                 `json:"discriminator"`
	Avatar        string              `json:"avatar,omitempty"`
	Status        string              `json:"status,omitempty"`
	State         models.UserState    `json:"state"`
	Badges        []string            `json:"badges"`
	Flags         int64               `json:"flags"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Keychain      *PublicKeychainView `json:"keychain,omitempty"`
}

// AvatarResponse carries the stored avatar URL after an upload.
type AvatarResponse struct {
	Avatar string `json:"avatar"`
}

// NewMeResponse builds the private profile view.
func NewMeResponse(user models.User) MeResponse {
	response := MeResponse{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		Avatar:        user.Avatar,
		Status:        user.Status,
		State:         user.State,
		Badges:        user.Badges,
		Flags:         user.Flags,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
	if user.Keychain != nil {
		response.Keychain = &KeychainView{
			EncryptedKeychain: json.RawMessage(user.Keychain.EncryptedKeychain),
			PublicKeychain:    json.RawMessage(user.Keychain.PublicKeychain),
			Salt:              json.RawMessage(user.Keychain.Salt),
		}
	}
	return response
}

// NewUserResponse builds the public profile view. The state argument allows
// callers to substitute live presence for the stored state.
func NewUserResponse(user models.User, state models.UserState) UserResponse {
	response := UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		Avatar:        user.Avatar,
		Status:        user.Status,
		State:         state,
		Badges:        user.Badges,
		Flags:         user.Flags,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
	if user.Keychain != nil {
		response.Keychain = &PublicKeychainView{
			PublicKeychain: json.RawMessage(user.Keychain.PublicKeychain),
		}
	}
	return response
}
