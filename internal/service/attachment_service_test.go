package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/pkg/cloudinary"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

type memoryStorage struct {
	stored  map[string][]byte
	removed []string
}

func (m *memoryStorage) Store(_ context.Context, subfolder, name string, reader io.Reader) (cloudinary.Asset, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return cloudinary.Asset{}, err
	}
	if m.stored == nil {
		m.stored = map[string][]byte{}
	}
	publicID := subfolder + "/" + name
	m.stored[publicID] = content
	return cloudinary.Asset{URL: fmt.Sprintf("https://cdn.test/%s", publicID), PublicID: publicID}, nil
}

func (m *memoryStorage) Remove(_ context.Context, publicID string) error {
	m.removed = append(m.removed, publicID)
	delete(m.stored, publicID)
	return nil
}

func formFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="` + filename + `"`},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	require.Len(t, form.File["file"], 1)
	return form.File["file"][0]
}

func TestAttachmentServiceStoresImages(t *testing.T) {
	f := newFixture(t)
	storage := &memoryStorage{}
	svc := NewAttachmentService(f.stores, storage, 1, testLogger())
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 2})
	item := f.items(t, feedback.ID, textfield())[0]

	attached, err := svc.Add(ctx, item.ID, formFile(t, "My Photo.PNG", pngHeader))
	require.NoError(t, err)
	require.Equal(t, "my-photo.png", attached.Filename)
	require.Equal(t, "image/png", attached.MimeType)
	require.Equal(t, fmt.Sprintf("https://cdn.test/feedback-%d/my-photo.png", feedback.ID), attached.URL)
	require.Len(t, storage.stored, 1)

	files, err := svc.List(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)

	itemSvc := NewItemService(f.stores, f.validate, nil, nil, testLogger())
	withFiles, err := itemSvc.Get(ctx, feedback.ID, item.ID)
	require.NoError(t, err)
	require.Len(t, withFiles.Files, 1)
	require.Equal(t, attached.ID, withFiles.Files[0].ID)
}

func TestAttachmentServiceRejectsInvalidFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	feedback := f.feedback(t, models.Feedback{CourseID: 2})
	item := f.items(t, feedback.ID, textfield())[0]

	unavailable := NewAttachmentService(f.stores, nil, 1, testLogger())
	_, err := unavailable.Add(ctx, item.ID, formFile(t, "a.png", pngHeader))
	require.ErrorIs(t, err, ErrStorageUnavailable)

	storage := &memoryStorage{}
	svc := NewAttachmentService(f.stores, storage, 1, testLogger())

	_, err = svc.Add(ctx, item.ID, formFile(t, "notes.txt", []byte("plain text")))
	require.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = svc.Add(ctx, item.ID, formFile(t, "huge.pdf", bytes.Repeat([]byte("a"), 2*1024*1024)))
	require.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Add(ctx, item.ID, nil)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Add(ctx, 999, formFile(t, "a.png", pngHeader))
	require.ErrorIs(t, err, ErrItemNotFound)

	require.Empty(t, storage.stored)
}

func TestAttachmentServiceKeepsSharedAssets(t *testing.T) {
	f := newFixture(t)
	storage := &memoryStorage{}
	svc := NewAttachmentService(f.stores, storage, 1, testLogger())
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 2})
	list := f.items(t, feedback.ID, textfield(), numericItem())

	attached, err := svc.Add(ctx, list[0].ID, formFile(t, "chart.png", pngHeader))
	require.NoError(t, err)
	var original models.ItemFile
	require.NoError(t, f.db.First(&original, attached.ID).Error)
	shared := original
	shared.ID = 0
	shared.ItemID = list[1].ID
	f.create(t, &shared)

	require.ErrorIs(t, svc.Remove(ctx, list[1].ID, attached.ID), ErrFileNotFound)

	require.NoError(t, svc.Remove(ctx, list[0].ID, attached.ID))
	require.Empty(t, storage.removed)

	require.NoError(t, svc.Remove(ctx, list[1].ID, shared.ID))
	require.Equal(t, []string{original.PublicID}, storage.removed)

	require.ErrorIs(t, svc.Remove(ctx, list[1].ID, shared.ID), ErrFileNotFound)
}
