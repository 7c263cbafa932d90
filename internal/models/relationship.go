package models

import "time"

// RelationshipType discriminates friend-request edges from blocks.
type RelationshipType string

// Relationship edge types. Friendship is two reciprocal OUTGOING edges.
const (
	RelationshipOutgoing RelationshipType = "OUTGOING"
	RelationshipBlocked  RelationshipType = "BLOCKED"
)

// Relationship is a directed edge between two users. At most one row exists
// per ordered (UserID, RecipientID) pair.
type Relationship struct {
	UserID      string           `gorm:"primaryKey;size:36" json:"user_id"`
	RecipientID string           `gorm:"primaryKey;size:36" json:"recipient_id"`
	Type        RelationshipType `gorm:"size:16;not null" json:"type"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
