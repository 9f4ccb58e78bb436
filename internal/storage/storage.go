package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront-hq/backoffice/config"
)

const productImagePrefix = "products/"

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// Object is an opened stored object.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Backend defines common object operations across storage providers.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
	Close() error
}

// Storage keeps product images in a Backend under generated keys.
type Storage struct {
	backend Backend
}

// NewStorage constructs a Storage for the provided backend.
func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// NewFromConfig builds the configured backend and makes sure its bucket exists.
// It returns nil when no backend is configured.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		backend, err = NewMinioBackend(cfg.Minio)
	case "gcs":
		backend, err = NewGCSBackend(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// Close releases the backend's client. It is safe on a nil Storage.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	return s.backend.Close()
}

// PutImage uploads a product image and returns its key.
func (s *Storage) PutImage(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := productImagePrefix + uuid.NewString() + imageExtension(filename, contentType)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// DeleteImage removes a product image. Missing objects are not an error.
func (s *Storage) DeleteImage(ctx context.Context, key string) error {
	if !ValidImageKey(key) {
		return nil
	}
	err := s.backend.Delete(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

// OpenImage opens a product image for reading.
func (s *Storage) OpenImage(ctx context.Context, key string) (Object, error) {
	if !ValidImageKey(key) {
		return Object{}, ErrObjectNotFound
	}
	obj, err := s.backend.Open(ctx, key)
	if err != nil {
		return Object{}, err
	}
	if obj.ContentType == "" {
		obj.ContentType = mime.TypeByExtension(path.Ext(key))
	}
	return obj, nil
}

// ValidImageKey reports whether key names a product image. Keys never contain
// parent references so they cannot escape the products prefix.
func ValidImageKey(key string) bool {
	if !strings.HasPrefix(key, productImagePrefix) || len(key) == len(productImagePrefix) {
		return false
	}
	return path.Clean(key) == key && !strings.Contains(key, "..")
}

func imageExtension(filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
