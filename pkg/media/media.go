// Package media stores user-uploaded images on Cloudinary. Uploads are
// sniffed for their real content type first; anything that is not an image is
// rejected before leaving the process.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// ErrNotAnImage is returned when the uploaded bytes are not a supported
// image format.
var ErrNotAnImage = errors.New("upload is not an image")

const maxAvatarBytes = 5 << 20

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Uploader stores avatar images and returns their public URLs.
type Uploader interface {
	UploadAvatar(ctx context.Context, userID string, data []byte) (string, error)
}

type service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary-backed uploader.
func New(cfg Config, logger zerolog.Logger) (Uploader, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "media").Logger(),
	}, nil
}

// UploadAvatar validates and stores an avatar image, returning its URL.
func (s *service) UploadAvatar(ctx context.Context, userID string, data []byte) (string, error) {
	if err := ValidateImage(data); err != nil {
		return "", err
	}

	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     fmt.Sprintf("avatar-%s-%d", userID, time.Now().Unix()),
		ResourceType: "image",
	}

	result, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("user_id", userID).Msg("avatar uploaded")

	return result.SecureURL, nil
}

// ValidateImage sniffs the payload and rejects non-image or oversized data.
func ValidateImage(data []byte) error {
	if len(data) == 0 || len(data) > maxAvatarBytes {
		return ErrNotAnImage
	}

	kind := mimetype.Detect(data)
	if !strings.HasPrefix(kind.String(), "image/") {
		return fmt.Errorf("%w: detected %s", ErrNotAnImage, kind.String())
	}
	return nil
}
