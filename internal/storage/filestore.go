// Package storage writes ticket attachments to local disk and returns their public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// FileStore persists attachment bytes and returns an addressable URL.
type FileStore interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
	Remove(ctx context.Context, url string) error
}

// PublicPrefix is the route under which stored files are served.
const PublicPrefix = "/uploads"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalFileStore writes files under a directory served statically at PublicPrefix.
type LocalFileStore struct {
	dir     string
	baseURL string
}

// NewLocalFileStore creates dir if needed.
func NewLocalFileStore(dir, publicBaseURL string) (*LocalFileStore, error) {
	if dir == "" {
		return nil, errors.New("storage: upload dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload dir: %w", err)
	}
	return &LocalFileStore{dir: dir, baseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *LocalFileStore) Dir() string {
	return s.dir
}

// Store writes data as "<7 hex chars>-<sanitized name>" and returns its URL.
func (s *LocalFileStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fileName := uuid.NewString()[:7] + "-" + SanitizeName(name)
	if err := os.WriteFile(filepath.Join(s.dir, fileName), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", fileName, err)
	}
	return s.baseURL + PublicPrefix + "/" + fileName, nil
}

// Remove deletes a file previously returned by Store. A missing file is not an error.
func (s *LocalFileStore) Remove(_ context.Context, url string) error {
	idx := strings.LastIndex(url, PublicPrefix+"/")
	if idx < 0 {
		return fmt.Errorf("storage: %s was not issued by this store", url)
	}
	fileName := url[idx+len(PublicPrefix)+1:]
	if fileName == "" || fileName != filepath.Base(fileName) {
		return fmt.Errorf("storage: %s was not issued by this store", url)
	}
	if err := os.Remove(filepath.Join(s.dir, fileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", fileName, err)
	}
	return nil
}

// SanitizeName drops any directory part and replaces characters outside [A-Za-z0-9._-].
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if clean == "" {
		return "file"
	}
	return clean
}
