package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
	"github.com/noah-isme/gema-feedback-api/pkg/cloudinary"
)

// ErrFileTooLarge indicates an attachment above the size limit.
var ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

var attachmentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// AttachmentStorage stores the binary content of item attachments.
type AttachmentStorage interface {
	Store(ctx context.Context, subfolder, name string, reader io.Reader) (cloudinary.Asset, error)
	Remove(ctx context.Context, publicID string) error
}

// AttachmentService manages images and documents shown with items.
type AttachmentService interface {
	List(ctx context.Context, itemID uint) ([]dto.ItemFileResponse, error)
	Add(ctx context.Context, itemID uint, file *multipart.FileHeader) (dto.ItemFileResponse, error)
	Remove(ctx context.Context, itemID, fileID uint) error
}

type attachmentService struct {
	items   repository.ItemRepository
	files   repository.ItemFileRepository
	storage AttachmentStorage
	maxSize int64
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewAttachmentService builds the attachment service. storage may be nil when
// no file backend is configured.
func NewAttachmentService(stores Stores, storage AttachmentStorage, maxSizeMB int, logger zerolog.Logger) AttachmentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &attachmentService{
		items:   stores.Items,
		files:   stores.Files,
		storage: storage,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		logger:  logger.With().Str("component", "attachment_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/gema-feedback-api/internal/service/attachment"),
	}
}

func (s *attachmentService) item(ctx context.Context, itemID uint) (models.Item, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Item{}, ErrItemNotFound
		}
		return models.Item{}, err
	}
	return item, nil
}

func (s *attachmentService) List(ctx context.Context, itemID uint) ([]dto.ItemFileResponse, error) {
	if _, err := s.item(ctx, itemID); err != nil {
		return nil, err
	}
	files, err := s.files.ListByItems(ctx, []uint{itemID})
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ItemFileResponse, 0, len(files))
	for _, file := range files {
		responses = append(responses, dto.NewItemFileResponse(file))
	}
	return responses, nil
}

func (s *attachmentService) Add(ctx context.Context, itemID uint, file *multipart.FileHeader) (dto.ItemFileResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attachment.add", trace.WithAttributes(attribute.Int64("item.id", int64(itemID))))
	defer span.End()

	if s.storage == nil {
		return dto.ItemFileResponse{}, ErrStorageUnavailable
	}
	item, err := s.item(ctx, itemID)
	if err != nil {
		return dto.ItemFileResponse{}, err
	}
	if file == nil {
		return dto.ItemFileResponse{}, fmt.Errorf("%w: file is required", ErrInvalidRequest)
	}
	if file.Size > s.maxSize {
		return dto.ItemFileResponse{}, ErrFileTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.ItemFileResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.ItemFileResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.ItemFileResponse{}, ErrFileTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	mime := strings.ToLower(strings.TrimSpace(strings.Split(detected.String(), ";")[0]))
	span.SetAttributes(attribute.String("attachment.mime", mime))
	if !attachmentTypes[mime] {
		span.SetStatus(codes.Error, "type not allowed")
		return dto.ItemFileResponse{}, ErrUnsupportedFile
	}

	name := attachmentName(file.Filename, detected.Extension())
	asset, err := s.storage.Store(ctx, fmt.Sprintf("feedback-%d", item.FeedbackID), name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.ItemFileResponse{}, err
	}

	record := models.ItemFile{
		ItemID:    item.ID,
		URL:       asset.URL,
		PublicID:  asset.PublicID,
		Filename:  name,
		MimeType:  mime,
		SizeBytes: int64(buf.Len()),
	}
	if err := s.files.Create(ctx, &record); err != nil {
		span.RecordError(err)
		if removeErr := s.storage.Remove(ctx, asset.PublicID); removeErr != nil {
			s.logger.Warn().Err(removeErr).Str("public_id", asset.PublicID).Msg("failed to remove orphaned asset")
		}
		return dto.ItemFileResponse{}, err
	}

	s.logger.Info().Uint("item_id", item.ID).Uint("file_id", record.ID).Msg("item file attached")
	return dto.NewItemFileResponse(record), nil
}

func (s *attachmentService) Remove(ctx context.Context, itemID, fileID uint) error {
	record, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	if record.ItemID != itemID {
		return ErrFileNotFound
	}
	if err := s.files.Delete(ctx, fileID); err != nil {
		return err
	}

	// Templates copy file rows, so the asset stays while another row uses it.
	remaining, err := s.files.CountByPublicID(ctx, record.PublicID)
	if err != nil {
		return err
	}
	if remaining == 0 && s.storage != nil {
		if err := s.storage.Remove(ctx, record.PublicID); err != nil {
			s.logger.Warn().Err(err).Str("public_id", record.PublicID).Msg("failed to remove asset")
		}
	}
	return nil
}

func attachmentName(original, extension string) string {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "attachment"
	}
	return base + extension
}

// attachmentLoader decorates item responses with their files.
type attachmentLoader struct {
	files repository.ItemFileRepository
}

func (l *attachmentLoader) withFiles(ctx context.Context, responses []dto.ItemResponse) ([]dto.ItemResponse, error) {
	if l == nil || l.files == nil || len(responses) == 0 {
		return responses, nil
	}
	ids := make([]uint, 0, len(responses))
	for _, response := range responses {
		ids = append(ids, response.ID)
	}
	files, err := l.files.ListByItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	byItem := make(map[uint][]dto.ItemFileResponse, len(files))
	for _, file := range files {
		byItem[file.ItemID] = append(byItem[file.ItemID], dto.NewItemFileResponse(file))
	}
	for i := range responses {
		if attached, ok := byItem[responses[i].ID]; ok {
			responses[i].Files = attached
		}
	}
	return responses, nil
}
