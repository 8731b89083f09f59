package repository

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrUnsupportedPhotoFormat is returned for photos outside AllowedPhotoExtensions.
var ErrUnsupportedPhotoFormat = errors.New("unsupported photo format")

// AllowedPhotoExtensions lists the accepted photo file extensions, without dots.
var AllowedPhotoExtensions = []string{"jpg", "jpeg", "png", "gif"}

// MaxPhotoDimension bounds the longest side of stored photos, in pixels.
const MaxPhotoDimension = 1600

// DefaultUploadDir is used when no upload directory is configured.
const DefaultUploadDir = "uploads"

// PhotoRepository stores uploaded report photos
type PhotoRepository interface {
	Save(filename string, data []byte) (string, error)
	Remove(ref string) error
}

// FilePhotoRepository stores photos on the local filesystem
type FilePhotoRepository struct {
	dir    string
	logger logrus.FieldLogger
}

// NewFilePhotoRepository creates the upload directory if needed
func NewFilePhotoRepository(dir string, logger logrus.FieldLogger) (*FilePhotoRepository, error) {
	if dir == "" {
		dir = DefaultUploadDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FilePhotoRepository{dir: dir, logger: logger}, nil
}

// PhotoExtension returns the lowercased extension of filename without the dot.
func PhotoExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsAllowedPhoto reports whether filename has an accepted extension.
func IsAllowedPhoto(filename string) bool {
	ext := PhotoExtension(filename)
	for _, allowed := range AllowedPhotoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Save writes the photo under a random name and returns its path. Images
// larger than MaxPhotoDimension are downscaled; bytes that do not decode as
// an image are written unchanged.
func (r *FilePhotoRepository) Save(filename string, data []byte) (string, error) {
	if !IsAllowedPhoto(filename) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPhotoFormat, filename)
	}

	path := filepath.Join(r.dir, uuid.New().String()+"."+PhotoExtension(filename))
	log := r.logger.WithField("path", path)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		log.WithError(err).Debug("Photo is not decodable, storing original bytes")
	} else if b := img.Bounds(); b.Dx() > MaxPhotoDimension || b.Dy() > MaxPhotoDimension {
		resized := imaging.Fit(img, MaxPhotoDimension, MaxPhotoDimension, imaging.Lanczos)
		if err := imaging.Save(resized, path); err != nil {
			return "", fmt.Errorf("failed to save resized photo: %w", err)
		}
		log.WithFields(logrus.Fields{"width": b.Dx(), "height": b.Dy()}).Info("Photo downscaled and saved")
		return path, nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	log.Info("Photo saved")
	return path, nil
}

// Remove deletes a previously saved photo. Missing files are not an error.
func (r *FilePhotoRepository) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	if err := os.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove photo %s: %w", ref, err)
	}
	r.logger.WithField("path", ref).Info("Photo removed")
	return nil
}
