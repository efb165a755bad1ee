package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	s := &StorageService{}

	tests := []struct {
		name     string
		filename string
		uploader string
		uuid     string
		want     string
	}{
		{
			"plain name",
			"map.fits", "alice", "u-1",
			"alice/u-1/map.fits",
		},
		{
			"path components are stripped",
			"../../etc/passwd", "alice", "u-2",
			"alice/u-2/passwd",
		},
		{
			"nested path keeps only the base",
			"maps/coadd/map.fits", "bob", "u-3",
			"bob/u-3/map.fits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ObjectName(tt.filename, tt.uploader, tt.uuid))
		})
	}
}

func TestPartETag(t *testing.T) {
	etag, ok := partETag(map[string]string{"ETag": `"abc"`})
	assert.True(t, ok)
	assert.Equal(t, `"abc"`, etag)

	etag, ok = partETag(map[string]string{"Etag": `"def"`})
	assert.True(t, ok)
	assert.Equal(t, `"def"`, etag)

	etag, ok = partETag(map[string]string{"etag": `"ghi"`})
	assert.True(t, ok)
	assert.Equal(t, `"ghi"`, etag)

	_, ok = partETag(map[string]string{"Content-Length": "10"})
	assert.False(t, ok)

	_, ok = partETag(map[string]string{"ETag": ""})
	assert.False(t, ok)
}
