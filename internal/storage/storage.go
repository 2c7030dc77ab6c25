// Package storage persists uploaded images in an S3-compatible bucket, or
// under a local directory when no bucket is configured.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"

	"bazaar/internal/config"
	"bazaar/internal/middleware"
	"bazaar/internal/observability"
)

// ErrInvalidKey is returned for empty keys and keys escaping the store root.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore stores public objects addressed by slash-separated keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	// KeyFromURL recovers the key of an object this store produced.
	KeyFromURL(url string) (string, bool)
}

// New picks the S3 store when a bucket and credentials are configured,
// otherwise the local filesystem store.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	if cfg.S3Enabled() {
		s, err := NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		middleware.Logger.Info("Object storage: S3", slog.String("bucket", cfg.S3Bucket), slog.String("endpoint", cfg.S3Endpoint))
		return s, nil
	}

	middleware.Logger.Warn("S3 is not configured, storing uploads on local disk", slog.String("dir", cfg.UploadDir))
	return NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
}

// CleanKey validates key and returns it in canonical form.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidKey
		}
	}
	return path.Clean(key), nil
}

func keyUnder(base, url string) (string, bool) {
	if base == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(url, base+"/")
	if !ok || strings.ContainsAny(rest, "?#") {
		return "", false
	}
	key, err := CleanKey(rest)
	if err != nil {
		return "", false
	}
	return key, true
}

func record(backend, op string, err error) {
	observability.StorageOperations.WithLabelValues(backend, op, observability.Outcome(err)).Inc()
}
