package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"filevault/internal/common"
	"filevault/internal/filex"
)

// DiskStore keeps blobs as a flat directory of opaquely-named files under a
// configured root. The root is created on demand.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	dir, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("blob root: %w", err)
	}
	return &DiskStore{root: dir}, nil
}

// Root returns the directory blobs are stored under.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.root, key)
}

// Save writes via a temp file and rename so a concurrent Open never sees a
// partially written blob.
func (s *DiskStore) Save(ctx context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, key+".tmp*")
	if err != nil {
		return fmt.Errorf("blob save %s: %w", key, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("blob save %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("blob save %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("blob save %s: %w", key, err)
	}

	return nil
}

func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("blob open %s: %w", key, err)
	}
	return f, nil
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob delete %s: %w", key, err)
	}
	return nil
}
