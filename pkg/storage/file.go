package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matzehuels/sheetblocks/pkg/errors"
)

const tmpSuffix = ".tmp"

// FileStore keeps one file per key below a root directory. The key's
// slashes become subdirectories, so the tree is readable by hand:
//
//	<dir>/layouts/3f2a..._report.xlsx_layout.json
type FileStore struct {
	dir string
}

// NewFileStore creates a file-based store in the given directory.
// The directory will be created if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "create data directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Get reads the file for key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeStorage, err, "read %s", key)
	}
	return data, true, nil
}

// Put writes data to a temp file and renames it over the target, so a
// reader never sees a partial record.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "write %s", key)
	}

	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "write %s", key)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeStorage, err, "write %s", key)
	}
	return nil
}

// Exists reports whether the file for key is present.
func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeStorage, err, "stat %s", key)
	}
	return !info.IsDir(), nil
}

// Delete removes the file for key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(errors.ErrCodeStorage, err, "delete %s", key)
}

// List walks the tree and returns keys starting with prefix.
// Leftover temp files from interrupted writes are skipped.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, tmpSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "list %s", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every record but keeps the root directory.
func (s *FileStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "read %s", s.dir)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "remove %s", e.Name())
		}
	}
	return nil
}

// Close does nothing for the file store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(key string) (string, error) {
	if err := errors.ValidatePath(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
