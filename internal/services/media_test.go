package services_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/services"
)

func uploadedFile(t *testing.T, name, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="media"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["media"][0]
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func TestLocalMediaStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := services.NewLocalMediaStore(dir, "/uploads/")

	url, err := store.Save(ctx, services.UserFolder("user-1", "reviews"), uploadedFile(t, "a.png", "image/png", pngBytes))
	require.NoError(t, err)
	assert.Regexp(t, `^/uploads/users/[0-9a-f]{32}/reviews/\d+\.png$`, url)

	id, ok := store.PublicID(url)
	require.True(t, ok)
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(id)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(id)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, "https://cdn.example.com/x.png"))

	_, err = store.Save(ctx, "misc", uploadedFile(t, "a.exe", "application/octet-stream", []byte("x")))
	assert.ErrorIs(t, err, services.ErrUnsupportedMedia)
}

func TestLocalMediaStoreSniffsContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := services.NewLocalMediaStore(dir, "/uploads")

	// Declared as an image but the bytes are a script.
	_, err := store.Save(ctx, "misc", uploadedFile(t, "a.png", "image/png", []byte("#!/bin/sh\nrm -rf /\n")))
	assert.ErrorIs(t, err, services.ErrUnsupportedMedia)

	// Declared as octet-stream but the bytes are a PNG; the extension follows the content.
	url, err := store.Save(ctx, "misc", uploadedFile(t, "a.bin", "application/octet-stream", pngBytes))
	require.NoError(t, err)
	assert.Regexp(t, `\.png$`, url)

	entries, err := os.ReadDir(filepath.Join(dir, "misc"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCloudinaryPublicID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url          string
		resourceType string
		publicID     string
		ok           bool
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712345/users/ab/avatar/media-1.png", "image", "users/ab/avatar/media-1", true},
		{"https://res.cloudinary.com/demo/image/upload/reviews/media-2.jpg", "image", "reviews/media-2", true},
		{"https://res.cloudinary.com/demo/video/upload/v3/reviews/clip.mp4", "video", "reviews/clip", true},
		{"https://cdn.example.com/demo/image/upload/v1/a.png", "", "", false},
		{"https://res.cloudinary.com/demo/image/fetch/a.png", "", "", false},
		{"/uploads/a.png", "", "", false},
	}

	for _, tc := range cases {
		resourceType, publicID, ok := services.CloudinaryPublicID(tc.url)
		assert.Equal(t, tc.ok, ok, tc.url)
		assert.Equal(t, tc.resourceType, resourceType, tc.url)
		assert.Equal(t, tc.publicID, publicID, tc.url)
	}
}

func TestPublicIDRejectsTraversal(t *testing.T) {
	store := services.NewLocalMediaStore(t.TempDir(), "/uploads")

	id, ok := store.PublicID("/uploads/../../etc/passwd")
	require.True(t, ok)
	assert.Equal(t, "etc/passwd", id)

	_, ok = store.PublicID("/elsewhere/a.png")
	assert.False(t, ok)
}
