package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// LocalStore keeps objects as files under a root directory
type LocalStore struct {
	root   string
	prefix string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root, prefix string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFatalConfig, "invalid local storage directory")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFatalConfig, "failed to create local storage directory")
	}
	return &LocalStore{root: abs, prefix: prefix}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(objectName(s.prefix, key)))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", apperrors.Newf(apperrors.CodeInvalidArg, "object key %q escapes the storage root", key)
	}
	return p, nil
}

// Put writes data to the file for key and returns key
func (s *LocalStore) Put(_ context.Context, key string, data []byte) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to create object directory")
	}

	tmp := p + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to write object "+key)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to move object "+key)
	}
	return key, nil
}

// Get reads the file for key
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "object "+key+" not found")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to read object "+key)
	}
	return data, nil
}
