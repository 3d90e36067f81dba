package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"lms-assessment/internal/config"
	"lms-assessment/internal/domain"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrInvalidPath is returned for empty paths or paths escaping the store root.
var ErrInvalidPath = errors.New("invalid storage path")

// cleanKey normalizes a slash separated key and rejects traversal.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return cleaned, nil
}

// NewFileStorage builds the store selected by the storage driver.
func NewFileStorage(ctx context.Context, cfg config.StorageConfig) (domain.FileStorage, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "fs":
		return NewFSFileStorage(cfg.BasePath)
	case "gcs":
		return NewGCSFileStorage(ctx, cfg.Bucket, cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// FSFileStorage stores files under a local base directory.
type FSFileStorage struct {
	base string
}

func NewFSFileStorage(base string) (*FSFileStorage, error) {
	if base == "" {
		base = "./data/answers"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", base, err)
	}
	return &FSFileStorage{base: base}, nil
}

func (s *FSFileStorage) resolve(key string) (string, string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.base, filepath.FromSlash(cleaned)), nil
}

// Store writes to a temporary file first so readers never see a partial file.
func (s *FSFileStorage) Store(ctx context.Context, key string, r io.Reader) (string, error) {
	cleaned, dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", cleaned, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", cleaned, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", cleaned, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", cleaned, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", cleaned, err)
	}
	return cleaned, nil
}

func (s *FSFileStorage) Delete(_ context.Context, key string) error {
	cleaned, dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", cleaned, err)
	}
	return nil
}

func (s *FSFileStorage) Exists(_ context.Context, key string) (bool, error) {
	_, dst, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// GCSFileStorage stores files as objects of one bucket.
type GCSFileStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSFileStorage connects to GCS, or to an emulator when endpoint is set.
func NewGCSFileStorage(ctx context.Context, bucket, endpoint string) (*GCSFileStorage, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required for the gcs driver")
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if endpoint != "" {
		opts = []option.ClientOption{option.WithEndpoint(endpoint), option.WithoutAuthentication()}
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSFileStorage{client: client, bucket: bucket}, nil
}

func (s *GCSFileStorage) Store(ctx context.Context, key string, r io.Reader) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(cleaned).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return cleaned, nil
}

func (s *GCSFileStorage) Delete(ctx context.Context, key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err = s.client.Bucket(s.bucket).Object(cleaned).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", cleaned, s.bucket, err)
	}
	return nil
}

func (s *GCSFileStorage) Exists(ctx context.Context, key string) (bool, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.Bucket(s.bucket).Object(cleaned).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat GCS object %q: %w", cleaned, err)
	}
	return true, nil
}

// Close releases the GCS client.
func (s *GCSFileStorage) Close() error {
	return s.client.Close()
}
