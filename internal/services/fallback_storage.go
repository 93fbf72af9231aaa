package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStoragePrefix is the URL path under which local files are served
const LocalStoragePrefix = "/uploads"

// LocalStorageService stores files on local disk. It serves as the
// fallback when no bucket is configured or the bucket is unreachable.
type LocalStorageService struct {
	basePath string
	baseURL  string
	logger   *logrus.Logger
}

// NewLocalStorageService creates a new local storage service
func NewLocalStorageService(basePath, baseURL string, logger *logrus.Logger) *LocalStorageService {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logger.WithError(err).WithField("path", basePath).Warn("failed to create storage directory")
	}

	return &LocalStorageService{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
	}
}

// BasePath is the directory files are written to
func (f *LocalStorageService) BasePath() string {
	return f.basePath
}

// resolve maps a key to a path inside basePath, rejecting traversal.
func (f *LocalStorageService) resolve(key string) (string, string, error) {
	key = strings.TrimPrefix(key, "/")
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", "", fmt.Errorf("invalid storage key %q", key)
	}
	return key, filepath.Join(f.basePath, clean), nil
}

// Upload saves a file to local storage
func (f *LocalStorageService) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) (string, error) {
	key, fullPath, err := f.resolve(key)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}

	if written != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", size, written)
	}

	f.logger.WithContext(ctx).WithField("path", fullPath).Debug("local storage: saved file")

	return f.GetURL(key), nil
}

// Delete removes a file from local storage
func (f *LocalStorageService) Delete(ctx context.Context, key string) error {
	_, fullPath, err := f.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}

	f.cleanupEmptyDirs(filepath.Dir(fullPath))

	return nil
}

// GetURL returns the public URL for a file
func (f *LocalStorageService) GetURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return fmt.Sprintf("%s%s/%s", f.baseURL, LocalStoragePrefix, key)
}

// Exists checks if a file exists in local storage
func (f *LocalStorageService) Exists(ctx context.Context, key string) (bool, error) {
	_, fullPath, err := f.resolve(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if file exists: %w", err)
	}

	return true, nil
}

// cleanupEmptyDirs removes empty directories up to the base path
func (f *LocalStorageService) cleanupEmptyDirs(dir string) {
	if dir == filepath.Clean(f.basePath) || dir == "." || dir == "/" {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}

	if err := os.Remove(dir); err == nil {
		f.cleanupEmptyDirs(filepath.Dir(dir))
	}
}

// StorageServiceWithFallback wraps a primary storage service with a fallback
type StorageServiceWithFallback struct {
	primary  StorageService
	fallback StorageService
	logger   *logrus.Logger
}

// NewStorageServiceWithFallback creates a storage service with fallback capability
func NewStorageServiceWithFallback(primary, fallback StorageService, logger *logrus.Logger) *StorageServiceWithFallback {
	return &StorageServiceWithFallback{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Upload tries primary storage first and falls back on error. The reader
// must be seekable for the fallback to be attempted.
func (s *StorageServiceWithFallback) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) (string, error) {
	url, err := s.primary.Upload(ctx, key, reader, contentType, size)
	if err == nil {
		return url, nil
	}

	s.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("primary storage failed, using fallback")

	seeker, ok := reader.(io.Seeker)
	if !ok {
		return "", fmt.Errorf("primary storage failed and cannot reset reader for fallback: %w", err)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind reader for fallback: %w", err)
	}

	return s.fallback.Upload(ctx, key, reader, contentType, size)
}

// Delete removes the file from both storages
func (s *StorageServiceWithFallback) Delete(ctx context.Context, key string) error {
	primaryErr := s.primary.Delete(ctx, key)
	fallbackErr := s.fallback.Delete(ctx, key)

	if primaryErr != nil && fallbackErr != nil {
		return fmt.Errorf("both storages failed - primary: %v, fallback: %v", primaryErr, fallbackErr)
	}

	return nil
}

// GetURL returns URL from primary storage
func (s *StorageServiceWithFallback) GetURL(key string) string {
	return s.primary.GetURL(key)
}

// Exists checks both storages
func (s *StorageServiceWithFallback) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.primary.Exists(ctx, key)
	if err == nil && exists {
		return true, nil
	}

	return s.fallback.Exists(ctx, key)
}
