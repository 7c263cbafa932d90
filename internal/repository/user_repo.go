package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
)

// UserRepository persists user accounts and their keychains.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string, discriminator int) (models.User, error)
	ListDiscriminators(ctx context.Context, username string) ([]int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistAll(ctx context.Context, ids []string) (bool, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Keychain").First(&user, "id = ?", id).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Keychain").First(&user, "email = ?", email).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string, discriminator int) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Keychain").
		First(&user, "username = ? AND discriminator = ?", username, discriminator).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ListDiscriminators(ctx context.Context, username string) ([]int, error) {
	var taken []int
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Pluck("discriminator", &taken).Error
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) ExistAll(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == int64(len(ids)), nil
}

func (r *userRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}
