package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildMetadataFiltersEnum(t *testing.T) {
	filters, err := BuildMetadataFilters("mapset", map[string]string{
		"pixelisation": "healpix",
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"metadata.pixelisation": "healpix"}, filters)
}

func TestBuildMetadataFiltersArray(t *testing.T) {
	filters, err := BuildMetadataFilters("mapset", map[string]string{
		"tags": "cmb, lensing ,act",
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"metadata.tags": bson.M{"$in": []string{"cmb", "lensing", "act"}},
	}, filters)
}

func TestBuildMetadataFiltersNumberRange(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bson.M
	}{
		{"closed range", "1.5,10", bson.M{"$gte": 1.5, "$lte": 10.0}},
		{"open lower bound", "undefined,10", bson.M{"$lte": 10.0}},
		{"open upper bound", "1.5,", bson.M{"$gte": 1.5}},
		{"open upper bound undefined", "1.5,undefined", bson.M{"$gte": 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters, err := BuildMetadataFilters("numeric", map[string]string{"value": tt.value})
			require.NoError(t, err)
			assert.Equal(t, bson.M{"metadata.value": tt.want}, filters)
		})
	}
}

// A number field constraint without a comma falls back to substring
// matching.
func TestBuildMetadataFiltersNumberWithoutComma(t *testing.T) {
	filters, err := BuildMetadataFilters("numeric", map[string]string{"value": "42"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"metadata.value": bson.M{"$regex": "42", "$options": "i"},
	}, filters)
}

func TestBuildMetadataFiltersBothBoundsOpen(t *testing.T) {
	_, err := BuildMetadataFilters("numeric", map[string]string{"value": "undefined,undefined"})
	assert.Error(t, err)
}

func TestBuildMetadataFiltersStringFallback(t *testing.T) {
	filters, err := BuildMetadataFilters("mapset", map[string]string{
		"telescope": "ACT",
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"metadata.telescope": bson.M{"$regex": "ACT", "$options": "i"},
	}, filters)
}

// Unknown fields are still searchable with the substring fallback.
func TestBuildMetadataFiltersUnknownField(t *testing.T) {
	filters, err := BuildMetadataFilters("mapset", map[string]string{
		"observer": "someone",
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"metadata.observer": bson.M{"$regex": "someone", "$options": "i"},
	}, filters)
}

func TestBuildMetadataFiltersSkipsEmptyAndDiscriminator(t *testing.T) {
	filters, err := BuildMetadataFilters("mapset", map[string]string{
		"metadata_type": "mapset",
		"telescope":     "",
		"release":       "dr6",
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"metadata.release": bson.M{"$regex": "dr6", "$options": "i"},
	}, filters)
}

func TestBuildMetadataFiltersUnknownType(t *testing.T) {
	_, err := BuildMetadataFilters("spectrum", map[string]string{"telescope": "ACT"})
	assert.Error(t, err)
}
