package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserState describes the presence state advertised by a user.
type UserState string

// Presence states.
const (
	UserStateOnline  UserState = "ONLINE"
	UserStateIdle    UserState = "IDLE"
	UserStateDND     UserState = "DND"
	UserStateOffline UserState = "OFFLINE"
)

// User represents a registered account.
type User struct {
	ID            string                      `gorm:"primaryKey;size:36" json:"id"`
	Email         string                      `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username      string                      `gorm:"size:32;not null;uniqueIndex:idx_users_username_discriminator" json:"username"`
	Discriminator int                         `gorm:"not null;uniqueIndex:idx_users_username_discriminator" json:"discriminator"`
	Avatar        string                      `gorm:"size:512" json:"avatar"`
	Status        string                      `gorm:"size:128" json:"status"`
	State         UserState                   `gorm:"size:16;default:ONLINE" json:"state"`
	Flags         int64                       `gorm:"not null;default:0" json:"flags"`
	Badges        datatypes.JSONSlice[string] `gorm:"type:json" json:"badges"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	Keychain      *Keychain                   `json:"keychain,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Keychain stores a user's encrypted key material and public keys.
// The contents are opaque to the server; it only relays them to clients.
type Keychain struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            string         `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	EncryptedKeychain datatypes.JSON `gorm:"type:json" json:"encrypted_keychain"`
	PublicKeychain    datatypes.JSON `gorm:"type:json" json:"public_keychain"`
	Salt              datatypes.JSON `gorm:"type:json" json:"salt"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
