package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes uploads below a base directory.
type LocalStore struct {
	baseDir string
	baseURL string
}

// NewLocalStore resolves baseDir and creates it when missing.
func NewLocalStore(baseDir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, ErrInvalidConfig
	}
	abs, errAbs := filepath.Abs(baseDir)
	if errAbs != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", baseDir, errAbs)
	}
	if errMkdir := os.MkdirAll(abs, 0o755); errMkdir != nil {
		return nil, fmt.Errorf("storage: create %s: %w", abs, errMkdir)
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "/uploads/"
	}
	return &LocalStore{baseDir: abs, baseURL: baseURL}, nil
}

// BaseDir returns the absolute upload directory.
func (s *LocalStore) BaseDir() string { return s.baseDir }

// Put copies r into a new file. Partial files are removed on failure.
func (s *LocalStore) Put(ctx context.Context, name string, size int64, r io.Reader) (Object, error) {
	if errCtx := ctx.Err(); errCtx != nil {
		return Object{}, errCtx
	}
	key, errKey := ObjectKey(name)
	if errKey != nil {
		return Object{}, errKey
	}
	target, errPath := s.resolve(key)
	if errPath != nil {
		return Object{}, errPath
	}
	if errMkdir := os.MkdirAll(filepath.Dir(target), 0o755); errMkdir != nil {
		return Object{}, fmt.Errorf("storage: create dir: %w", errMkdir)
	}
	dst, errCreate := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errCreate != nil {
		return Object{}, fmt.Errorf("storage: create file: %w", errCreate)
	}
	src := r
	if size > 0 {
		src = io.LimitReader(r, size)
	}
	_, errCopy := io.Copy(dst, &ctxReader{ctx: ctx, r: src})
	errClose := dst.Close()
	if errCopy != nil || errClose != nil {
		_ = os.Remove(target)
		if errCopy != nil {
			return Object{}, fmt.Errorf("storage: write file: %w", errCopy)
		}
		return Object{}, fmt.Errorf("storage: close file: %w", errClose)
	}
	return Object{URL: joinURL(s.baseURL, key), Key: key}, nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	target := filepath.Join(s.baseDir, filepath.FromSlash(key))
	rel, errRel := filepath.Rel(s.baseDir, target)
	if errRel != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return target, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if errCtx := c.ctx.Err(); errCtx != nil {
		return 0, errCtx
	}
	return c.r.Read(p)
}
