package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiskStore saves blobs under a base directory, one subdirectory per bucket.
type DiskStore struct {
	basePath string
}

// NewDiskStore creates the base and bucket directories if missing.
func NewDiskStore(basePath string, buckets ...string) (*DiskStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	for _, bucket := range buckets {
		if err := os.MkdirAll(filepath.Join(basePath, bucket), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket dir %s: %w", bucket, err)
		}
	}
	return &DiskStore{basePath: basePath}, nil
}

// Put writes the stream under a generated unique name. O_EXCL guards
// against ever overwriting an existing blob.
func (d *DiskStore) Put(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := path.Join(bucket, UniqueName(name))
	target := filepath.Join(d.basePath, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(target)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("close blob: %w", err)
	}
	return ref, nil
}

// Delete removes the referenced blob. A missing blob yields ErrNotFound.
func (d *DiskStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidRef(ref) {
		return ErrNotFound
	}
	err := os.Remove(filepath.Join(d.basePath, filepath.FromSlash(ref)))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// Open resolves a reference to its byte stream.
func (d *DiskStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidRef(ref) {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(d.basePath, filepath.FromSlash(ref)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
