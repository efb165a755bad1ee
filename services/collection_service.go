package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"skyshelf/models"
	"skyshelf/utils"
)

// CollectionService manages collections: named groupings of products
// that can themselves be nested into parent/child trees. Product
// membership is stored on the product side, so member listings here are
// computed queries.
type CollectionService struct {
	collections *mongo.Collection
	products    *mongo.Collection
}

func NewCollectionService(db *mongo.Database) *CollectionService {
	return &CollectionService{
		collections: db.Collection("collections"),
		products:    db.Collection("products"),
	}
}

func (s *CollectionService) Create(ctx context.Context, name, description string) (*models.Collection, error) {
	now := utils.CurrentUTCTime()
	collection := &models.Collection{
		ID:               primitive.NewObjectID(),
		Name:             name,
		Description:      description,
		ChildCollections: []primitive.ObjectID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.collections.InsertOne(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return collection, nil
}

func (s *CollectionService) Read(ctx context.Context, id primitive.ObjectID) (*models.Collection, error) {
	var collection models.Collection
	err := s.collections.FindOne(ctx, bson.M{"_id": id}).Decode(&collection)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", id.Hex(), err)
	}
	return &collection, nil
}

func (s *CollectionService) ReadMostRecent(ctx context.Context, maximum int64) ([]models.Collection, error) {
	cursor, err := s.collections.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(maximum))
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer cursor.Close(ctx)

	var collections []models.Collection
	if err := cursor.All(ctx, &collections); err != nil {
		return nil, fmt.Errorf("failed to decode collections: %w", err)
	}
	return collections, nil
}

// Update edits a collection's description.
func (s *CollectionService) Update(ctx context.Context, id primitive.ObjectID, description *string) (*models.Collection, error) {
	collection, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}

	if description != nil {
		now := utils.CurrentUTCTime()
		if _, err := s.collections.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"description": *description, "updated_at": now}},
		); err != nil {
			return nil, fmt.Errorf("failed to update collection %s: %w", id.Hex(), err)
		}
		collection.Description = *description
		collection.UpdatedAt = now
	}

	return collection, nil
}

// AddChild links a child collection under a parent.
func (s *CollectionService) AddChild(ctx context.Context, parentID, childID primitive.ObjectID) (*models.Collection, error) {
	if _, err := s.Read(ctx, childID); err != nil {
		return nil, err
	}

	_, err := s.collections.UpdateOne(ctx,
		bson.M{"_id": parentID},
		bson.M{"$addToSet": bson.M{"child_collections": childID}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add child collection %s to %s: %w", childID.Hex(), parentID.Hex(), err)
	}
	return s.Read(ctx, parentID)
}

// RemoveChild unlinks a child collection from a parent.
func (s *CollectionService) RemoveChild(ctx context.Context, parentID, childID primitive.ObjectID) (*models.Collection, error) {
	_, err := s.collections.UpdateOne(ctx,
		bson.M{"_id": parentID},
		bson.M{"$pull": bson.M{"child_collections": childID}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to remove child collection %s from %s: %w", childID.Hex(), parentID.Hex(), err)
	}
	return s.Read(ctx, parentID)
}

// Parents computes the parent view: every collection listing this one
// as a child.
func (s *CollectionService) Parents(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := s.collections.Find(ctx,
		bson.M{"child_collections": id},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to look up parents of collection %s: %w", id.Hex(), err)
	}
	defer cursor.Close(ctx)

	parents := []primitive.ObjectID{}
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode parent collection reference: %w", err)
		}
		parents = append(parents, row.ID)
	}
	return parents, cursor.Err()
}

// Products lists the collection's member products visible to the
// viewer. Each member is independently visibility-checked; invisible
// members are pruned.
func (s *CollectionService) Products(ctx context.Context, id primitive.ObjectID, viewer *models.User) ([]models.Product, error) {
	cursor, err := s.products.Find(ctx, bson.M{"collections.collection_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to list members of collection %s: %w", id.Hex(), err)
	}
	defer cursor.Close(ctx)

	var members []models.Product
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode members of collection %s: %w", id.Hex(), err)
	}

	return filterVisible(members, viewer), nil
}

// HasVisibleContent reports whether at least one member survives
// visibility pruning for this viewer.
func (s *CollectionService) HasVisibleContent(ctx context.Context, id primitive.ObjectID, viewer *models.User) (bool, error) {
	members, err := s.Products(ctx, id, viewer)
	if err != nil {
		return false, err
	}
	return len(members) > 0, nil
}

// SearchByName searches collections by case-insensitive substring over
// name and description.
func (s *CollectionService) SearchByName(ctx context.Context, text string) ([]models.Collection, error) {
	if text == "" {
		return []models.Collection{}, nil
	}

	searchRegex := bson.M{"$regex": text, "$options": "i"}
	cursor, err := s.collections.Find(ctx, bson.M{
		"$or": []bson.M{
			{"name": searchRegex},
			{"description": searchRegex},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search collections: %w", err)
	}
	defer cursor.Close(ctx)

	var collections []models.Collection
	if err := cursor.All(ctx, &collections); err != nil {
		return nil, fmt.Errorf("failed to decode collection search results: %w", err)
	}
	return collections, nil
}

// Delete removes a collection outright. Memberships held on products
// and links held by other collections are cleaned up so nothing dangles.
func (s *CollectionService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.Read(ctx, id); err != nil {
		return err
	}

	if _, err := s.products.UpdateMany(ctx,
		bson.M{"collections.collection_id": id},
		bson.M{"$pull": bson.M{"collections": bson.M{"collection_id": id}}},
	); err != nil {
		return fmt.Errorf("failed to remove memberships of collection %s: %w", id.Hex(), err)
	}

	if _, err := s.collections.UpdateMany(ctx,
		bson.M{"child_collections": id},
		bson.M{"$pull": bson.M{"child_collections": id}},
	); err != nil {
		return fmt.Errorf("failed to unlink collection %s from parents: %w", id.Hex(), err)
	}

	if _, err := s.collections.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", id.Hex(), err)
	}
	return nil
}
