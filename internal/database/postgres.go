package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate applies the schema for every persisted entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Keychain{},
		&models.Relationship{},
		&models.Community{},
		&models.CommunityMember{},
		&models.Group{},
		&models.GroupMember{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.Channel{},
		&models.Message{},
		&models.Read{},
		&models.VoiceRoom{},
	)
}
