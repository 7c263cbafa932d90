package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octave-im/octave-api/internal/models"
)

// ConversationRepository persists conversations and their membership edges.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (models.Conversation, error)
	UpdateName(ctx context.Context, id, name string) error
	GetMember(ctx context.Context, conversationID, userID string) (models.ConversationMember, error)
	ListMembers(ctx context.Context, conversationID string) ([]models.ConversationMember, error)
	UpsertMember(ctx context.Context, member *models.ConversationMember) error
	CreateMembers(ctx context.Context, members []models.ConversationMember) error
	DeleteMember(ctx context.Context, conversationID, userID string) error
	ListIDsByUser(ctx context.Context, userID string) ([]string, error)
	ListWithChannelsByUser(ctx context.Context, userID string) ([]models.Conversation, error)
	FindDMBetween(ctx context.Context, userID, recipientID string) (models.Conversation, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Channels").
		First(&conversation, "id = ?", id).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) UpdateName(ctx context.Context, id, name string) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).Update("name", name).Error
}

func (r *conversationRepository) GetMember(ctx context.Context, conversationID, userID string) (models.ConversationMember, error) {
	var member models.ConversationMember
	err := r.db.WithContext(ctx).
		First(&member, "conversation_id = ? AND user_id = ?", conversationID, userID).Error
	if err != nil {
		return models.ConversationMember{}, err
	}
	return member, nil
}

func (r *conversationRepository) ListMembers(ctx context.Context, conversationID string) ([]models.ConversationMember, error) {
	var members []models.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// UpsertMember adds or re-grades a member, keyed on the composite primary key
// so duplicate concurrent adds collapse into one row.
func (r *conversationRepository) UpsertMember(ctx context.Context, member *models.ConversationMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission", "updated_at"}),
	}).Create(member).Error
}

func (r *conversationRepository) CreateMembers(ctx context.Context, members []models.ConversationMember) error {
	if len(members) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
}

func (r *conversationRepository) DeleteMember(ctx context.Context, conversationID, userID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.ConversationMember{}).Error
}

func (r *conversationRepository) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ConversationMember{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *conversationRepository) ListWithChannelsByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	ids, err := r.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var conversations []models.Conversation
	err = r.db.WithContext(ctx).
		Preload("Channels").
		Where("id IN ?", ids).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// FindDMBetween returns an existing DM whose member set is exactly the two
// given users.
func (r *conversationRepository) FindDMBetween(ctx context.Context, userID, recipientID string) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_members cm_a ON cm_a.conversation_id = conversations.id AND cm_a.user_id = ?", userID).
		Joins("JOIN conversation_members cm_b ON cm_b.conversation_id = conversations.id AND cm_b.user_id = ?", recipientID).
		Where("conversations.type = ?", models.ConversationDM).
		First(&conversation).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}
