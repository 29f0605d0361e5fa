package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const maxMediaSize = 50 << 20

var (
	ErrUnsupportedMedia = errors.New("unsupported file type")
	ErrMediaTooLarge    = errors.New("file is too large")
)

var allowedMedia = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
}

// MediaStore keeps uploaded review media and avatars.
type MediaStore interface {
	Save(ctx context.Context, folder string, file *multipart.FileHeader) (string, error)
	Delete(ctx context.Context, url string) error
}

// UserFolder derives a per-user storage folder without exposing the user id.
func UserFolder(userID, kind string) string {
	sum := md5.Sum([]byte(userID))
	return path.Join("users", hex.EncodeToString(sum[:]), kind)
}

// openMedia checks the upload's size and sniffed content type, and returns
// the file rewound to its start with the extension for that type. The
// client-declared Content-Type is ignored.
func openMedia(file *multipart.FileHeader) (multipart.File, string, error) {
	if file.Size > maxMediaSize {
		return nil, "", ErrMediaTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		src.Close()
		return nil, "", fmt.Errorf("detect media type: %w", err)
	}
	ext, ok := allowedMedia[mtype.String()]
	if !ok {
		src.Close()
		return nil, "", ErrUnsupportedMedia
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		src.Close()
		return nil, "", fmt.Errorf("rewind upload: %w", err)
	}
	return src, ext, nil
}

// LocalMediaStore writes files under dir and serves them from baseURL.
type LocalMediaStore struct {
	dir     string
	baseURL string
	now     func() time.Time
}

func NewLocalMediaStore(dir, baseURL string) *LocalMediaStore {
	return &LocalMediaStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Save stores file under folder and returns its public URL.
func (s *LocalMediaStore) Save(_ context.Context, folder string, file *multipart.FileHeader) (string, error) {
	src, ext, err := openMedia(file)
	if err != nil {
		return "", err
	}
	defer src.Close()

	folder = path.Clean("/" + folder)[1:]
	targetDir := filepath.Join(s.dir, filepath.FromSlash(folder))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := fmt.Sprintf("%d%s", s.now().UnixNano(), ext)
	target := filepath.Join(targetDir, name)
	if err := writeMedia(target, src); err != nil {
		return "", err
	}

	return s.baseURL + "/" + path.Join(folder, name), nil
}

// writeMedia copies src into a new file at target. A partially written
// file is removed on failure.
func writeMedia(target string, src io.Reader) error {
	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return fmt.Errorf("write media file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return fmt.Errorf("close media file: %w", err)
	}
	return nil
}

// Delete removes the file behind a URL previously returned by Save.
// URLs from elsewhere are ignored.
func (s *LocalMediaStore) Delete(_ context.Context, url string) error {
	id, ok := s.PublicID(url)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(id)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// PublicID extracts the storage-relative path from a media URL.
func (s *LocalMediaStore) PublicID(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	id := path.Clean("/" + strings.TrimPrefix(url, prefix))[1:]
	if id == "" {
		return "", false
	}
	return id, true
}
