package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File is one physical object in the backing store. A File starts out
// with Available=false and is only flipped to true once the client has
// pushed the bytes through the pre-signed URL and the object store
// confirms the object exists.
type File struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UUID        string             `bson:"uuid" json:"uuid"`
	Name        string             `bson:"name" json:"name"`
	Description *string            `bson:"description,omitempty" json:"description,omitempty"`
	Uploader    string             `bson:"uploader" json:"uploader"`
	Bucket      string             `bson:"bucket" json:"bucket"`
	Size        int64              `bson:"size" json:"size"`
	// Checksum is algorithm-tagged, e.g. "xxh64:<hex>".
	Checksum  string `bson:"checksum" json:"checksum"`
	Available bool   `bson:"available" json:"available"`

	// Multi-part upload bookkeeping. UploadID is the storage-side
	// multipart session; MultipartClosed is true once the session has
	// been finalized (and trivially true for single-shot uploads).
	Multipart       bool    `bson:"multipart" json:"multipart"`
	NumberOfParts   int     `bson:"number_of_parts" json:"number_of_parts"`
	UploadID        *string `bson:"upload_id,omitempty" json:"upload_id,omitempty"`
	MultipartClosed bool    `bson:"multipart_closed" json:"multipart_closed"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
