package app

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"courseportal/internal/session"
	"courseportal/internal/storage"
	"courseportal/internal/store"
	"courseportal/pkg/domain"
)

type testEnv struct {
	app       *App
	store     *store.MemoryStore
	sessions  *session.Manager
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewDiskStore(dir, storage.BucketTasks, storage.BucketSubmissions)
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	sessions, err := session.NewManager("test-secret", time.Hour, session.NewMemoryRevoker())
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	mem := store.NewMemoryStore()
	a, err := New(Config{Store: mem, Blobs: blobs, Sessions: sessions})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &testEnv{app: a, store: mem, sessions: sessions, uploadDir: dir}
}

func (e *testEnv) mustCreateUser(t *testing.T, email, name string, role domain.UserRole) domain.User {
	t.Helper()
	u, err := e.app.CreateUser(CreateUserInput{Email: email, Name: name, Role: role, Password: "secret123"})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func upload(name, content string) Upload {
	return Upload{
		Name:        name,
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Reader:      strings.NewReader(content),
	}
}

func (e *testEnv) resolvable(t *testing.T, ref string) bool {
	t.Helper()
	rc, err := e.app.OpenBlob(context.Background(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false
		}
		t.Fatalf("open blob %s: %v", ref, err)
	}
	rc.Close()
	return true
}

func (e *testEnv) countBlobs(t *testing.T, bucket string) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(filepath.Join(e.uploadDir, bucket), func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk upload dir: %v", err)
	}
	return count
}
