package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var (
	errUnsupportedImage = errors.New("Only image files are allowed (jpg, jpeg, png, gif, webp)")
	errImageTooLarge    = errors.New("Image is too large")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Uploader stores product images on local disk.
type Uploader struct {
	dir      string
	maxBytes int64
}

func NewUploader(dir string, maxBytes int64) *Uploader {
	return &Uploader{dir: dir, maxBytes: maxBytes}
}

// Save writes file under the upload directory and returns its public path.
// The stored name is derived from label so uploads stay readable on disk.
func (u *Uploader) Save(c *gin.Context, file *multipart.FileHeader, label string) (string, error) {
	if u.dir == "" {
		return "", errors.New("uploads are disabled")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !imageExtensions[ext] {
		return "", errUnsupportedImage
	}
	if u.maxBytes > 0 && file.Size > u.maxBytes {
		return "", errImageTooLarge
	}

	if err := os.MkdirAll(u.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	base := slug.Make(label)
	if base == "" {
		base = "product"
	}
	name := fmt.Sprintf("%s-%s%s", base, uuid.New().String(), ext)
	if err := c.SaveUploadedFile(file, filepath.Join(u.dir, name)); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return "/uploads/" + name, nil
}

// Remove deletes an image previously returned by Save. Paths outside the
// upload directory are ignored.
func (u *Uploader) Remove(url string) error {
	name := strings.TrimPrefix(url, "/uploads/")
	if u.dir == "" || name == url || name != filepath.Base(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(u.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// imageFromForm returns the optional "image" part of a multipart request.
func imageFromForm(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	return file, err
}
