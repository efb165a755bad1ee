package client

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyshelf/services"
)

func testFile(t *testing.T, url string, body string) services.PostUploadFile {
	t.Helper()
	return services.PostUploadFile{
		UUID:      "file-uuid",
		Name:      "map.fits",
		Size:      int64(len(body)),
		Available: true,
		URL:       &url,
	}
}

func TestCacheFetchAndHit(t *testing.T) {
	const body = "fake fits bytes"

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(body))
	}))
	defer server.Close()

	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	file := testFile(t, server.URL, body)

	path, err := cache.Fetch(file)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(content))

	// Second fetch must come from disk.
	again, err := cache.Fetch(file)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, hits)
}

func TestCacheFetchSizeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer server.Close()

	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	file := testFile(t, server.URL, "much longer expected body")

	_, err = cache.Fetch(file)
	require.Error(t, err)

	// A failed download must not look cached.
	_, ok := cache.Cached(file)
	assert.False(t, ok)
}

func TestCacheFetchWithoutURL(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	_, err = cache.Fetch(services.PostUploadFile{UUID: "u", Name: "f", Size: 1})
	assert.Error(t, err)
}

func TestCacheRemoveAndClear(t *testing.T) {
	const body = "bytes"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)

	file := testFile(t, server.URL, body)
	_, err = cache.Fetch(file)
	require.NoError(t, err)

	require.NoError(t, cache.Remove(file.UUID))
	_, ok := cache.Cached(file)
	assert.False(t, ok)

	// Removing a missing entry is fine.
	require.NoError(t, cache.Remove("never-cached"))

	_, err = cache.Fetch(file)
	require.NoError(t, err)
	require.NoError(t, cache.Clear())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The cache directory itself survives a clear.
	_, err = os.Stat(filepath.Clean(dir))
	assert.NoError(t, err)
}
