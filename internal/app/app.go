package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"courseportal/internal/config"
	"courseportal/internal/session"
	"courseportal/internal/store"
	"courseportal/internal/storage"
)

// Config holds runtime configuration for the core application.
// Store, Blobs, and Sessions may be pre-built (tests do this); otherwise
// they are constructed from the remaining fields.
type Config struct {
	DatabaseURL    string
	UploadDir      string
	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	JWTSecret      string
	SessionTTL     time.Duration
	Revoker        session.Revoker

	Store    store.Store
	Blobs    storage.BlobStore
	Sessions *session.Manager
}

// App wires the record services to their storage dependencies.
type App struct {
	store    store.Store
	blobs    storage.BlobStore
	sessions *session.Manager
}

// New constructs the application with relational, blob, and session storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	blobs := cfg.Blobs
	if blobs == nil {
		var err error
		switch cfg.StorageBackend {
		case config.BackendMinio:
			blobs, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
			if err != nil {
				return nil, fmt.Errorf("init minio blob store: %w", err)
			}
		default:
			blobs, err = storage.NewDiskStore(cfg.UploadDir, storage.BucketTasks, storage.BucketSubmissions)
			if err != nil {
				return nil, fmt.Errorf("init disk blob store: %w", err)
			}
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		var err error
		sessions, err = session.NewManager(cfg.JWTSecret, cfg.SessionTTL, cfg.Revoker)
		if err != nil {
			return nil, fmt.Errorf("init session manager: %w", err)
		}
	}

	return &App{
		store:    dataStore,
		blobs:    blobs,
		sessions: sessions,
	}, nil
}

// SessionTTL exposes the session lifetime for cookie max-age.
func (a *App) SessionTTL() time.Duration {
	return a.sessions.TTL()
}

// OpenBlob resolves a blob reference to its byte stream, without touching
// the relational store.
func (a *App) OpenBlob(ctx context.Context, ref string) (io.ReadCloser, error) {
	return a.blobs.Open(ctx, ref)
}

// removeBlob deletes a blob during cleanup or replacement. Misses and
// failures are logged as warnings and never fail the surrounding operation;
// the relational row is the source of truth.
func (a *App) removeBlob(ctx context.Context, ref string) {
	err := a.blobs.Delete(ctx, ref)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		slog.Warn("blob already missing on delete", "ref", ref)
	default:
		slog.Warn("failed to delete blob", "ref", ref, "err", err)
	}
}
