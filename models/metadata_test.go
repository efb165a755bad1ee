package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMetadataJSONDecodeByDiscriminator(t *testing.T) {
	payload := []byte(`{
		"metadata_type": "mapset",
		"pixelisation": "healpix",
		"maps": {
			"coadd": {"map_type": "coadd", "filename": "map.fits"}
		},
		"telescope": "ACT",
		"tags": ["cmb", "dr6"]
	}`)

	var m Metadata
	require.NoError(t, json.Unmarshal(payload, &m))

	mapset, ok := m.Variant.(*MapSet)
	require.True(t, ok, "expected a *MapSet, got %T", m.Variant)
	assert.Equal(t, MetadataMapSet, mapset.MetadataType)
	assert.Equal(t, "healpix", mapset.Pixelisation)
	require.NotNil(t, mapset.Telescope)
	assert.Equal(t, "ACT", *mapset.Telescope)
	assert.Equal(t, []string{"cmb", "dr6"}, mapset.Tags)
	assert.Equal(t, "map.fits", mapset.Maps["coadd"].Filename)
}

func TestMetadataJSONDecodeNumeric(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"metadata_type": "numeric", "value": 3.5}`), &m))

	numeric, ok := m.Variant.(*NumericMetadata)
	require.True(t, ok)
	assert.Equal(t, 3.5, numeric.Value)
}

func TestMetadataJSONUnknownType(t *testing.T) {
	var m Metadata
	err := json.Unmarshal([]byte(`{"metadata_type": "spectrum"}`), &m)
	assert.Error(t, err)
}

func TestMetadataJSONNull(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Nil(t, m.Variant)

	encoded, err := json.Marshal(Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(encoded))
}

func TestMetadataJSONRoundTrip(t *testing.T) {
	release := "dr6"
	original := Metadata{Variant: &CatalogMetadata{
		MetadataType: MetadataCatalog,
		FileType:     "fits",
		ColumnDescription: map[string]string{
			"ra":  "right ascension",
			"dec": "declination",
		},
		Release: &release,
	}}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Metadata
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	catalog, ok := decoded.Variant.(*CatalogMetadata)
	require.True(t, ok)
	assert.Equal(t, "fits", catalog.FileType)
	assert.Equal(t, "right ascension", catalog.ColumnDescription["ra"])
	require.NotNil(t, catalog.Release)
	assert.Equal(t, release, *catalog.Release)
}

// Metadata must round-trip through BSON inside a containing document,
// the way products store it.
func TestMetadataBSONRoundTrip(t *testing.T) {
	type doc struct {
		Metadata Metadata `bson:"metadata"`
	}

	telescope := "SO"
	original := doc{Metadata: Metadata{Variant: &MapSet{
		MetadataType: MetadataMapSet,
		Pixelisation: "car",
		Maps: map[string]MapSetMap{
			"ivar": {MapType: "ivar", Filename: "ivar.fits"},
		},
		Telescope: &telescope,
	}}}

	encoded, err := bson.Marshal(original)
	require.NoError(t, err)

	var decoded doc
	require.NoError(t, bson.Unmarshal(encoded, &decoded))

	mapset, ok := decoded.Metadata.Variant.(*MapSet)
	require.True(t, ok, "expected a *MapSet, got %T", decoded.Metadata.Variant)
	assert.Equal(t, "car", mapset.Pixelisation)
	assert.Equal(t, "ivar.fits", mapset.Maps["ivar"].Filename)
	require.NotNil(t, mapset.Telescope)
	assert.Equal(t, telescope, *mapset.Telescope)
}

func TestMetadataBSONNull(t *testing.T) {
	type doc struct {
		Metadata Metadata `bson:"metadata"`
	}

	encoded, err := bson.Marshal(doc{})
	require.NoError(t, err)

	var decoded doc
	require.NoError(t, bson.Unmarshal(encoded, &decoded))
	assert.Nil(t, decoded.Metadata.Variant)
}

func TestMetadataSearchFields(t *testing.T) {
	fields, ok := MetadataSearchFields(MetadataMapSet)
	require.True(t, ok)
	assert.Equal(t, FieldEnum, fields["pixelisation"])
	assert.Equal(t, FieldArray, fields["tags"])
	assert.Equal(t, FieldString, fields["telescope"])

	fields, ok = MetadataSearchFields(MetadataNumeric)
	require.True(t, ok)
	assert.Equal(t, FieldNumber, fields["value"])

	_, ok = MetadataSearchFields("spectrum")
	assert.False(t, ok)
}
