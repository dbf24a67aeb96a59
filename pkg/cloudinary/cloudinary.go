package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Asset describes a stored file.
type Asset struct {
	URL      string
	PublicID string
}

// Service stores item attachments on Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Store uploads the file under the configured folder plus subfolder.
func (s *Service) Store(ctx context.Context, subfolder, name string, reader io.Reader) (Asset, error) {
	params := uploader.UploadParams{
		Folder:       path.Join(s.folder, strings.Trim(subfolder, "/")),
		PublicID:     buildPublicID(name, time.Now()),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("item file uploaded")

	return Asset{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

// Remove deletes a stored asset.
func (s *Service) Remove(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if _, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("failed to remove asset: %w", err)
	}
	s.logger.Info().Str("public_id", publicID).Msg("item file removed")
	return nil
}

func buildPublicID(name string, now time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "item-file"
	}

	return fmt.Sprintf("%s-%d", base, now.Unix())
}
