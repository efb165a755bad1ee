package models

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Metadata type discriminators.
const (
	MetadataMapSet  = "mapset"
	MetadataCatalog = "catalog"
	MetadataBeam    = "beam"
	MetadataNumeric = "numeric"
	MetadataSimple  = "simple"
)

// MetadataVariant is one of the discriminated metadata payload shapes a
// product can carry. The discriminator is serialized as the
// "metadata_type" field of the payload.
type MetadataVariant interface {
	MetadataKind() string
}

// FieldKind describes how a metadata field is matched by the structured
// metadata search.
type FieldKind int

const (
	// Case-insensitive substring match (also the fallback).
	FieldString FieldKind = iota
	// Exact match against a fixed set of values.
	FieldEnum
	// Set membership over comma-separated values.
	FieldArray
	// Open or closed numeric range.
	FieldNumber
)

// MapSetMap describes one map within a map set.
type MapSetMap struct {
	MapType  string  `bson:"map_type" json:"map_type"`
	Filename string  `bson:"filename" json:"filename"`
	Units    *string `bson:"units,omitempty" json:"units,omitempty"`
}

// MapSet is a set of maps corresponding to the same observation, e.g. a
// coadd map packaged with its associated ivar map.
type MapSet struct {
	MetadataType string               `bson:"metadata_type" json:"metadata_type"`
	Maps         map[string]MapSetMap `bson:"maps" json:"maps"`
	Pixelisation string               `bson:"pixelisation" json:"pixelisation"`

	Telescope              *string  `bson:"telescope,omitempty" json:"telescope,omitempty"`
	Instrument             *string  `bson:"instrument,omitempty" json:"instrument,omitempty"`
	Release                *string  `bson:"release,omitempty" json:"release,omitempty"`
	Season                 *string  `bson:"season,omitempty" json:"season,omitempty"`
	Patch                  *string  `bson:"patch,omitempty" json:"patch,omitempty"`
	Frequency              *string  `bson:"frequency,omitempty" json:"frequency,omitempty"`
	PolarizationConvention *string  `bson:"polarization_convention,omitempty" json:"polarization_convention,omitempty"`
	Tags                   []string `bson:"tags,omitempty" json:"tags,omitempty"`
}

func (MapSet) MetadataKind() string { return MetadataMapSet }

// CatalogMetadata describes a catalog, potentially of resolved sources.
type CatalogMetadata struct {
	MetadataType      string            `bson:"metadata_type" json:"metadata_type"`
	FileType          string            `bson:"file_type" json:"file_type"`
	ColumnDescription map[string]string `bson:"column_description" json:"column_description"`

	Telescope  *string `bson:"telescope,omitempty" json:"telescope,omitempty"`
	Instrument *string `bson:"instrument,omitempty" json:"instrument,omitempty"`
	Release    *string `bson:"release,omitempty" json:"release,omitempty"`
}

func (CatalogMetadata) MetadataKind() string { return MetadataCatalog }

// BeamMetadata describes a beam object.
type BeamMetadata struct {
	MetadataType string `bson:"metadata_type" json:"metadata_type"`
}

func (BeamMetadata) MetadataKind() string { return MetadataBeam }

// NumericMetadata carries a single numeric value.
type NumericMetadata struct {
	MetadataType string  `bson:"metadata_type" json:"metadata_type"`
	Value        float64 `bson:"value" json:"value"`
}

func (NumericMetadata) MetadataKind() string { return MetadataNumeric }

// SimpleMetadata carries no domain fields beyond the discriminator.
type SimpleMetadata struct {
	MetadataType string `bson:"metadata_type" json:"metadata_type"`
}

func (SimpleMetadata) MetadataKind() string { return MetadataSimple }

// metadataSearchFields maps each metadata type to the search kind of
// every queryable field. Fields not listed fall back to substring
// matching.
var metadataSearchFields = map[string]map[string]FieldKind{
	MetadataMapSet: {
		"pixelisation":            FieldEnum,
		"telescope":               FieldString,
		"instrument":              FieldString,
		"release":                 FieldString,
		"season":                  FieldString,
		"patch":                   FieldString,
		"frequency":               FieldString,
		"polarization_convention": FieldString,
		"tags":                    FieldArray,
	},
	MetadataCatalog: {
		"file_type":  FieldEnum,
		"telescope":  FieldString,
		"instrument": FieldString,
		"release":    FieldString,
	},
	MetadataBeam:   {},
	MetadataNumeric: {
		"value": FieldNumber,
	},
	MetadataSimple: {},
}

// MetadataSearchFields returns the queryable fields and their kinds for
// a metadata type. The second return is false for unknown types.
func MetadataSearchFields(metadataType string) (map[string]FieldKind, bool) {
	fields, ok := metadataSearchFields[metadataType]
	return fields, ok
}

func newVariant(metadataType string) (MetadataVariant, error) {
	switch metadataType {
	case MetadataMapSet:
		return &MapSet{}, nil
	case MetadataCatalog:
		return &CatalogMetadata{}, nil
	case MetadataBeam:
		return &BeamMetadata{}, nil
	case MetadataNumeric:
		return &NumericMetadata{}, nil
	case MetadataSimple:
		return &SimpleMetadata{}, nil
	default:
		return nil, fmt.Errorf("unknown metadata type %q", metadataType)
	}
}

// Metadata wraps a MetadataVariant so products can carry any payload
// shape through JSON and BSON. A nil variant round-trips as null.
type Metadata struct {
	Variant MetadataVariant
}

func (m Metadata) Kind() string {
	if m.Variant == nil {
		return ""
	}
	return m.Variant.MetadataKind()
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.Variant == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.Variant)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.Variant = nil
		return nil
	}

	var peek struct {
		MetadataType string `json:"metadata_type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return fmt.Errorf("reading metadata discriminator: %w", err)
	}

	variant, err := newVariant(peek.MetadataType)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, variant); err != nil {
		return fmt.Errorf("decoding %s metadata: %w", peek.MetadataType, err)
	}

	m.Variant = variant
	return nil
}

func (m Metadata) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if m.Variant == nil {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(m.Variant)
}

func (m *Metadata) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null {
		m.Variant = nil
		return nil
	}
	if t != bsontype.EmbeddedDocument {
		return fmt.Errorf("metadata must be a document, got %s", t)
	}

	raw := bson.Raw(data)
	tag, err := raw.LookupErr("metadata_type")
	if err != nil {
		return fmt.Errorf("metadata document missing metadata_type: %w", err)
	}
	metadataType, ok := tag.StringValueOK()
	if !ok {
		return fmt.Errorf("metadata_type must be a string")
	}

	variant, err := newVariant(metadataType)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(raw, variant); err != nil {
		return fmt.Errorf("decoding %s metadata: %w", metadataType, err)
	}

	m.Variant = variant
	return nil
}
