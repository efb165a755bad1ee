package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Visibility string

const (
	// Accessible to everyone, authenticated or not.
	VisibilityPublic Visibility = "public"
	// Accessible to any authenticated user.
	VisibilityCollaboration Visibility = "collaboration"
	// Accessible only to the owner and privileged users.
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityCollaboration, VisibilityPrivate:
		return true
	}
	return false
}

// CollectionPolicy controls what happens to a collection membership when
// the product is revised.
type CollectionPolicy string

const (
	// Every past and future version stays a member.
	PolicyAll CollectionPolicy = "all"
	// Versions created after the add stay members; older ones do not.
	PolicyNew CollectionPolicy = "new"
	// Only the current version is ever a member; membership migrates
	// forward on every revision.
	PolicyCurrent CollectionPolicy = "current"
	// Membership is pinned to the version active at add time.
	PolicyFixed CollectionPolicy = "fixed"
)

func (p CollectionPolicy) Valid() bool {
	switch p {
	case PolicyAll, PolicyNew, PolicyCurrent, PolicyFixed:
		return true
	}
	return false
}

// CollectionMembership ties a product version to a collection together
// with the retention policy for that membership.
type CollectionMembership struct {
	CollectionID primitive.ObjectID `bson:"collection_id" json:"collection_id"`
	Policy       CollectionPolicy   `bson:"policy" json:"policy"`
}

// Product is one immutable version of a named data product. Versions of
// the same lineage are chained through the Replaces back-pointer; the
// head of the chain is the single row with Current=true.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Metadata    Metadata           `bson:"metadata" json:"metadata"`

	Uploaded time.Time `bson:"uploaded" json:"uploaded"`
	Updated  time.Time `bson:"updated" json:"updated"`

	Current bool   `bson:"current" json:"current"`
	Version string `bson:"version" json:"version"`

	// Sources are denormalized File snapshots; the files collection
	// remains the source of truth for availability.
	Sources []File `bson:"sources" json:"sources"`

	OwnerID    primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	OwnerName  string             `bson:"owner_name" json:"owner_name"`
	Visibility Visibility         `bson:"visibility" json:"visibility"`

	// Replaces points at the immediately preceding version, nil for the
	// root of the chain. The forward direction is discovered by querying
	// for the row whose Replaces equals this row's id.
	Replaces *primitive.ObjectID `bson:"replaces,omitempty" json:"replaces,omitempty"`

	// ChildOf holds the products this version is derived from. The
	// parent_of view is computed, never stored. Child relationships are
	// not inherited by newer versions.
	ChildOf []primitive.ObjectID `bson:"child_of" json:"child_of"`

	Collections []CollectionMembership `bson:"collections" json:"collections"`
}

// SourceNameSet returns the set of source file names on this version.
func (p *Product) SourceNameSet() map[string]struct{} {
	names := make(map[string]struct{}, len(p.Sources))
	for _, s := range p.Sources {
		names[s.Name] = struct{}{}
	}
	return names
}

// SourceUUIDSet returns the set of backing-file UUIDs on this version.
func (p *Product) SourceUUIDSet() map[string]struct{} {
	uuids := make(map[string]struct{}, len(p.Sources))
	for _, s := range p.Sources {
		uuids[s.UUID] = struct{}{}
	}
	return uuids
}

// ProductSnapshot is the flattened, reference-free view of a single
// product version returned over the API.
type ProductSnapshot struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Metadata    Metadata           `json:"metadata"`

	Uploaded time.Time `json:"uploaded"`
	Updated  time.Time `json:"updated"`

	Current bool   `json:"current"`
	Version string `json:"version"`

	Sources []File `json:"sources"`
	Owner   string `json:"owner"`

	// Replaces is the version string of the predecessor, nil for the
	// first version.
	Replaces *string `json:"replaces,omitempty"`

	ChildOf     []primitive.ObjectID `json:"child_of"`
	ParentOf    []primitive.ObjectID `json:"parent_of"`
	Collections []primitive.ObjectID `json:"collections"`

	Visibility Visibility `json:"visibility"`
}

// Snapshot flattens the product into its API view. The replaced
// version string and the computed parent_of list are supplied by the
// caller since both require lookups.
func (p *Product) Snapshot(replacesVersion *string, parentOf []primitive.ObjectID) ProductSnapshot {
	collections := make([]primitive.ObjectID, 0, len(p.Collections))
	for _, m := range p.Collections {
		collections = append(collections, m.CollectionID)
	}
	if parentOf == nil {
		parentOf = []primitive.ObjectID{}
	}
	childOf := p.ChildOf
	if childOf == nil {
		childOf = []primitive.ObjectID{}
	}

	return ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Metadata:    p.Metadata,
		Uploaded:    p.Uploaded,
		Updated:     p.Updated,
		Current:     p.Current,
		Version:     p.Version,
		Sources:     p.Sources,
		Owner:       p.OwnerName,
		Replaces:    replacesVersion,
		ChildOf:     childOf,
		ParentOf:    parentOf,
		Collections: collections,
		Visibility:  p.Visibility,
	}
}
