// Package storage writes uploaded media to the filesystem or an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/workdesk-hq/platform/internal/config"
)

var (
	ErrInvalidConfig = errors.New("storage: invalid configuration")
	ErrInvalidPath   = errors.New("storage: invalid path")
	ErrEmptyName     = errors.New("storage: empty file name")
)

// Object is a stored upload.
type Object struct {
	URL string
	Key string
}

// Store persists uploaded files.
type Store interface {
	Put(ctx context.Context, name string, size int64, r io.Reader) (Object, error)
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Driver)
	}
}

// ObjectKey returns a unique key for name, keeping its extension.
func ObjectKey(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", ErrEmptyName
	}
	ext := strings.ToLower(path.Ext(base))
	if len(ext) > 16 || strings.ContainsAny(ext, " /") {
		ext = ""
	}
	return "media/" + uuid.NewString() + ext, nil
}

func joinURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + key
}
