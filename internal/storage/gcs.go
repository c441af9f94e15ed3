package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wiktor-jurek/stewthius/internal/config"
	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// GCSStore stores objects in a Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a bucket-backed store. When an emulator host is configured the client
// talks to it without authentication.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.FatalConfig("STORAGE_BUCKET is required for the GCS store")
	}

	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFatalConfig, "failed to create storage client")
	}

	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put uploads data to the prefixed object name and returns key
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	name := objectName(s.prefix, key)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = MIMEType(name)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", classifyGCSError(err, "failed to write object "+name)
	}
	if err := w.Close(); err != nil {
		return "", classifyGCSError(err, "failed to finalize object "+name)
	}

	return key, nil
}

// Get downloads the object stored under key
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	name := objectName(s.prefix, key)
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, classifyGCSError(err, "failed to open object "+name)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classifyGCSError(err, "failed to read object "+name)
	}
	return data, nil
}

// Close releases the underlying client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func classifyGCSError(err error, message string) *apperrors.AppError {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return apperrors.Wrap(err, apperrors.CodeNotFound, message)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return apperrors.Wrap(err, apperrors.CodeNotFound, message)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return apperrors.Transient(err, message)
		}
	}
	return apperrors.Wrap(err, apperrors.CodeExternal, message)
}
