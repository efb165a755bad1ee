package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection is a named grouping of products. Collections can be
// nested; ChildCollections holds the forward links and the parent view
// is computed by querying for collections that reference this one.
// Product membership lives on the product side (with its retention
// policy), so the member list here is also computed.
type Collection struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`

	ChildCollections []primitive.ObjectID `bson:"child_collections" json:"child_collections"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CollectionSnapshot is the API view of a collection with its computed
// member and parent lists resolved.
type CollectionSnapshot struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`

	Products          []ProductSnapshot    `json:"products"`
	ChildCollections  []primitive.ObjectID `json:"child_collections"`
	ParentCollections []primitive.ObjectID `json:"parent_collections"`
}
