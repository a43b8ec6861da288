package proofs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BlobStore persists uploaded proof files and yields a public URL for each.
type BlobStore interface {
	Put(key string, contentType string, r io.Reader, maxBytes int64) (url string, size int64, err error)
	Remove(key string) error
}

// DiskStore writes proof files under a local directory and serves them
// from a static public base path.
type DiskStore struct {
	dir        string
	publicBase string
}

// NewDiskStore builds a disk-backed blob store rooted at dir.
func NewDiskStore(dir, publicBase string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory required")
	}
	if publicBase == "" {
		return nil, fmt.Errorf("public base path required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &DiskStore{dir: dir, publicBase: publicBase}, nil
}

func (s *DiskStore) Put(key string, contentType string, r io.Reader, maxBytes int64) (string, int64, error) {
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", 0, fmt.Errorf("create proof directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", 0, fmt.Errorf("create proof file: %w", err)
	}

	// One extra byte so an oversize upload is detected rather than
	// silently truncated.
	written, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", 0, fmt.Errorf("write proof file: %w", err)
	}
	if written > maxBytes {
		_ = os.Remove(dst)
		return "", 0, errTooLarge
	}

	return s.publicBase + "/" + key, written, nil
}

func (s *DiskStore) Remove(key string) error {
	return os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
}

var errTooLarge = fmt.Errorf("file exceeds upload limit")
