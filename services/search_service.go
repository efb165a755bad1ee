package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"skyshelf/models"
)

// SearchService is the catalog query layer: free-text name search over
// current products and collections, and structured metadata-field
// search. Visibility is applied per result item since the check depends
// on ownership.
type SearchService struct {
	products    *mongo.Collection
	collections *mongo.Collection
}

func NewSearchService(db *mongo.Database) *SearchService {
	return &SearchService{
		products:    db.Collection("products"),
		collections: db.Collection("collections"),
	}
}

// SearchProductsByName performs a case-insensitive substring search
// over current-version products.
func (s *SearchService) SearchProductsByName(ctx context.Context, text string, user *models.User) ([]models.Product, error) {
	if text == "" {
		return []models.Product{}, nil
	}

	searchRegex := bson.M{"$regex": text, "$options": "i"}
	filter := bson.M{
		"current": true,
		"$or": []bson.M{
			{"name": searchRegex},
			{"description": searchRegex},
		},
	}

	cursor, err := s.products.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode product search results: %w", err)
	}

	return filterVisible(products, user), nil
}

// BuildMetadataFilters translates field constraints into query
// predicates according to each field's search kind: enum fields match
// exactly, array fields match any of a comma-separated value list,
// numeric fields take open or closed "min,max" ranges, and everything
// else (including unknown fields) falls back to case-insensitive
// substring matching.
func BuildMetadataFilters(metadataType string, constraints map[string]string) (bson.M, error) {
	fields, ok := models.MetadataSearchFields(metadataType)
	if !ok {
		return nil, fmt.Errorf("unknown metadata type %q", metadataType)
	}

	filters := bson.M{}
	for key, value := range constraints {
		if key == "metadata_type" || value == "" {
			continue
		}

		field := "metadata." + key
		kind := fields[key]

		switch kind {
		case models.FieldEnum:
			filters[field] = value
		case models.FieldArray:
			parts := strings.Split(value, ",")
			values := make([]string, 0, len(parts))
			for _, p := range parts {
				if trimmed := strings.TrimSpace(p); trimmed != "" {
					values = append(values, trimmed)
				}
			}
			filters[field] = bson.M{"$in": values}
		case models.FieldNumber:
			if !strings.Contains(value, ",") {
				filters[field] = bson.M{"$regex": value, "$options": "i"}
				continue
			}
			bounds := strings.SplitN(value, ",", 2)
			rangeFilter := bson.M{}
			if min, err := parseBound(bounds[0]); err == nil {
				rangeFilter["$gte"] = min
			}
			if max, err := parseBound(bounds[1]); err == nil {
				rangeFilter["$lte"] = max
			}
			if len(rangeFilter) == 0 {
				return nil, fmt.Errorf("invalid numeric range %q for field %q", value, key)
			}
			filters[field] = rangeFilter
		default:
			filters[field] = bson.M{"$regex": value, "$options": "i"}
		}
	}

	return filters, nil
}

func parseBound(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "undefined" {
		return 0, fmt.Errorf("open bound")
	}
	return strconv.ParseFloat(s, 64)
}

// SearchProductsByMetadata searches current products of one metadata
// type by structured field constraints.
func (s *SearchService) SearchProductsByMetadata(ctx context.Context, metadataType string, constraints map[string]string, user *models.User) ([]models.Product, error) {
	filters, err := BuildMetadataFilters(metadataType, constraints)
	if err != nil {
		return nil, err
	}

	filters["metadata.metadata_type"] = metadataType
	filters["current"] = true

	cursor, err := s.products.Find(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search products by metadata: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode metadata search results: %w", err)
	}

	return filterVisible(products, user), nil
}

// SearchCollectionsByName performs a case-insensitive substring search
// over collections.
func (s *SearchService) SearchCollectionsByName(ctx context.Context, text string) ([]models.Collection, error) {
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

// CreateSearchIndexes sets up the text and lookup indexes the query
// layer relies on. Index creation is idempotent.
func (s *SearchService) CreateSearchIndexes(ctx context.Context) error {
	productIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}, {Key: "current", Value: 1}}},
		{Keys: bson.D{{Key: "replaces", Value: 1}}},
		{Keys: bson.D{{Key: "updated", Value: -1}}},
		{Keys: bson.D{{Key: "collections.collection_id", Value: 1}}},
		{Keys: bson.D{{Key: "child_of", Value: 1}}},
	}
	if _, err := s.products.Indexes().CreateMany(ctx, productIndexes); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	collectionIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "child_collections", Value: 1}}},
	}
	if _, err := s.collections.Indexes().CreateMany(ctx, collectionIndexes); err != nil {
		return fmt.Errorf("failed to create collection indexes: %w", err)
	}
	return nil
}
