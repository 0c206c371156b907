// Package storage abstracts blob persistence for generated media.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatlyhq/chatly/internal/config"
	"go.uber.org/fx"
)

// Store persists generated files (voice replies, downloaded media) and maps
// them to paths servable by the HTTP layer.
type Store interface {
	// Put writes the content under name and returns the storage path.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// URL maps a storage path to the public path served by the file route.
	URL(path string) string
}

type localStore struct {
	dir string
}

// NewLocalStore keeps files on the local disk under cfg.StorageDir.
func NewLocalStore(cfg config.Config) (Store, error) {
	dir := cfg.StorageDir
	if dir == "" {
		dir = "storage"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Put(_ context.Context, name string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	full := filepath.Join(s.dir, name)
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return full, nil
}

func (s *localStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (s *localStore) URL(path string) string {
	return "/files/" + strings.TrimPrefix(filepath.Base(path), "/")
}

// Dir exposes the backing directory for the static file route.
func Dir(cfg config.Config) string {
	if cfg.StorageDir == "" {
		return "storage"
	}
	return cfg.StorageDir
}

var Module = fx.Module("storage",
	fx.Provide(NewLocalStore),
)
