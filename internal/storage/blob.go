package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bucket names, one per entity kind so size/type policy can differ.
const (
	BucketTasks       = "tasks"
	BucketSubmissions = "submissions"
)

// ErrNotFound indicates the reference does not resolve to a blob.
var ErrNotFound = errors.New("blob not found")

// BlobStore persists opaque uploaded byte streams. Put returns a relative
// reference of the form "<bucket>/<name>" that later resolves without any
// relational lookup. Delete of a missing reference returns ErrNotFound;
// callers treat that as a warning, not a failure.
type BlobStore interface {
	Put(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// UniqueName builds a collision-free object name from a suggested filename:
// millisecond timestamp, a random fragment, and the sanitized original.
func UniqueName(suggested string) string {
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), uuid.NewString()[:8], SanitizeFilename(suggested))
}

// SanitizeFilename replaces every byte outside [A-Za-z0-9.] with an underscore.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// ValidRef reports whether a reference is a clean relative path that stays
// inside the store.
func ValidRef(ref string) bool {
	if ref == "" || path.IsAbs(ref) {
		return false
	}
	cleaned := path.Clean(ref)
	return cleaned == ref && !strings.HasPrefix(cleaned, "..")
}
