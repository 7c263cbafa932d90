// Package access implements the authorization engine: relationship,
// permission and membership resolvers composed into the access gate that
// every channel, conversation and community operation passes through.
package access

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
)

// RelationshipResolver answers friendship and block queries between users.
// All queries are read-only.
type RelationshipResolver struct {
	relationships repository.RelationshipRepository
}

// NewRelationshipResolver constructs a relationship resolver.
func NewRelationshipResolver(relationships repository.RelationshipRepository) *RelationshipResolver {
	return &RelationshipResolver{relationships: relationships}
}

// IsBlocked reports whether other has a BLOCKED edge towards user. Blocks are
// one-directional rows but suppress interaction both ways at the gate.
func (r *RelationshipResolver) IsBlocked(ctx context.Context, userID, otherID string) (bool, error) {
	_, err := r.relationships.GetOfType(ctx, otherID, userID, models.RelationshipBlocked)
	return exists(err)
}

// AreFriends reports whether reciprocal OUTGOING edges exist in both
// directions. The relation is symmetric.
func (r *RelationshipResolver) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	outgoing, err := exists2(r.relationships.GetOfType(ctx, userID, otherID, models.RelationshipOutgoing))
	if err != nil || !outgoing {
		return false, err
	}

	return exists2(r.relationships.GetOfType(ctx, otherID, userID, models.RelationshipOutgoing))
}

// AnyBlocks reports whether any of the given users holds a BLOCKED edge
// towards user. Used when fanning a group invite out over many recipients.
func (r *RelationshipResolver) AnyBlocks(ctx context.Context, userID string, otherIDs []string) (bool, error) {
	count, err := r.relationships.CountBlocksAgainst(ctx, userID, otherIDs)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func exists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func exists2(_ models.Relationship, err error) (bool, error) {
	return exists(err)
}
