// Package storage holds the durable object store media files are uploaded to after download
// and read back from during analysis.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/wiktor-jurek/stewthius/internal/config"
	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// Store is a durable key/value object store
type Store interface {
	// Put stores data under key and returns the key to persist. Get(key) reads it back.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get returns the bytes stored under key. A missing object is a NOT_FOUND AppError.
	Get(ctx context.Context, key string) ([]byte, error)
}

// New returns the GCS store when a bucket is configured and the local store otherwise
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if cfg.Bucket != "" {
		return NewGCSStore(ctx, cfg)
	}
	if cfg.LocalDir != "" {
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	}
	return nil, apperrors.FatalConfig("either STORAGE_BUCKET or STORAGE_LOCAL_DIR is required")
}

// DefaultMIMEType is assumed for media files with an unknown extension
const DefaultMIMEType = "video/mp4"

// MIMEType returns the media type implied by the extension of name
func MIMEType(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch path.Ext(s) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".json":
		return "application/json"
	default:
		return DefaultMIMEType
	}
}

// objectName joins prefix and key without doubling slashes
func objectName(prefix, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return key
	}
	return strings.TrimRight(prefix, "/") + "/" + key
}
