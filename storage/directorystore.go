package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

/*
DirectoryStore is a storage provider backed by a local directory. Object IDs
map to file paths under the root.

Atomicity is provided by staging writes in a hidden temp directory on the same
filesystem and publishing them with rename (Put) or hard link (PutIfAbsent).
link(2) fails with EEXIST if the target exists, which is exactly the atomic
create-if-absent primitive the transaction log requires, and it works on NFS.
*/

////////////////////////////////////////////////////////////////////////////////

const tmpdir = ".tmp"

// DirectoryStore is a local directory-backed storage provider.
type DirectoryStore struct {
	root string
}

// NewDirectoryStore creates a new DirectoryStore rooted at the given path.
func NewDirectoryStore(root string) (*DirectoryStore, error) {
	if err := os.MkdirAll(filepath.Join(root, tmpdir), 0750); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &DirectoryStore{root: root}, nil
}

func (d *DirectoryStore) stage(data []byte) (string, error) {
	tmp := filepath.Join(d.root, tmpdir, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp, nil
}

func (d *DirectoryStore) target(id string) (string, error) {
	path := filepath.Join(d.root, filepath.FromSlash(id))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create parent directory: %w", err)
	}
	return path, nil
}

// Put stores an object in the directory.
func (d *DirectoryStore) Put(_ context.Context, id string, data []byte) error {
	tmp, err := d.stage(data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	path, err := d.target(id)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish object: %w", err)
	}
	return nil
}

// PutIfAbsent stores an object only if it does not already exist.
func (d *DirectoryStore) PutIfAbsent(_ context.Context, id string, data []byte) error {
	tmp, err := d.stage(data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	path, err := d.target(id)
	if err != nil {
		return err
	}
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrObjectExists
		}
		return fmt.Errorf("failed to publish object: %w", err)
	}
	return nil
}

// Get retrieves an object from the directory.
func (d *DirectoryStore) Get(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(id)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// List returns the IDs of objects under the given prefix in lexicographic
// order.
func (d *DirectoryStore) List(_ context.Context, prefix string) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == tmpdir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize path: %w", err)
		}
		id := filepath.ToSlash(rel)
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes an object from the directory.
func (d *DirectoryStore) Delete(_ context.Context, id string) error {
	err := os.Remove(filepath.Join(d.root, filepath.FromSlash(id)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deletion failure: %w", err)
	}
	return nil
}

func (d *DirectoryStore) String() string {
	return fmt.Sprintf("directory(%s)", d.root)
}
