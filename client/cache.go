package client

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"skyshelf/services"
)

// Cache is an on-disk store of downloaded source files, keyed by file
// UUID so that renamed products never collide. Layout is one directory
// per UUID containing the file under its original base name.
type Cache struct {
	Dir string

	httpClient *http.Client
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &Cache{Dir: dir, httpClient: http.DefaultClient}, nil
}

// DefaultCacheDir returns the per-user cache location.
func DefaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache directory: %w", err)
	}
	return filepath.Join(base, "shelfctl"), nil
}

func (c *Cache) path(uuid, name string) string {
	return filepath.Join(c.Dir, uuid, filepath.Base(name))
}

// Cached reports whether a file is already present, and its path if so.
func (c *Cache) Cached(file services.PostUploadFile) (string, bool) {
	path := c.path(file.UUID, file.Name)
	info, err := os.Stat(path)
	if err != nil || info.Size() != file.Size {
		return "", false
	}
	return path, true
}

// Fetch downloads a file into the cache if it is not already present
// and returns the local path. Downloads go through a temporary file so
// a partial transfer never looks cached.
func (c *Cache) Fetch(file services.PostUploadFile) (string, error) {
	if path, ok := c.Cached(file); ok {
		return path, nil
	}
	if file.URL == nil {
		return "", fmt.Errorf("file %s has no download URL; has it been uploaded?", file.Name)
	}

	target := c.path(file.UUID, file.Name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating cache entry for %s: %w", file.UUID, err)
	}

	resp, err := c.httpClient.Get(*file.URL)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", file.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: HTTP %d", file.Name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", file.Name, err)
	}
	if written != file.Size {
		return "", fmt.Errorf("downloaded %d bytes for %s, expected %d", written, file.Name, file.Size)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("moving %s into cache: %w", file.Name, err)
	}
	return target, nil
}

// Remove evicts one file's cache entry. Missing entries are not an
// error.
func (c *Cache) Remove(uuid string) error {
	if err := os.RemoveAll(filepath.Join(c.Dir, uuid)); err != nil {
		return fmt.Errorf("removing cache entry %s: %w", uuid, err)
	}
	return nil
}

// Clear evicts the whole cache.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return fmt.Errorf("listing cache directory: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.Dir, entry.Name())); err != nil {
			return fmt.Errorf("removing cache entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}
