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

// InitialVersion is the version every new product lineage starts at.
const InitialVersion = "1.0.0"

// RelationshipChild is the only supported product relationship type.
const RelationshipChild = "child"

// ProductService is the product lifecycle manager: it creates products,
// revises them into new immutable versions, mutates source sets with
// rollback, walks the version chain and deletes versions or whole trees
// with reference-counted file cleanup.
type ProductService struct {
	products    *mongo.Collection
	files       *mongo.Collection
	users       *mongo.Collection
	collections *mongo.Collection
	storage     *StorageService
}

func NewProductService(db *mongo.Database, storage *StorageService) *ProductService {
	return &ProductService{
		products:    db.Collection("products"),
		files:       db.Collection("files"),
		users:       db.Collection("users"),
		collections: db.Collection("collections"),
		storage:     storage,
	}
}

// PreUploadFile describes a source file before its bytes exist in the
// store.
type PreUploadFile struct {
	Name        string  `json:"name" binding:"required"`
	Size        int64   `json:"size" binding:"required"`
	Checksum    string  `json:"checksum" binding:"required"`
	Description *string `json:"description,omitempty"`
}

// PostUploadFile is the download-side view of a source file.
type PostUploadFile struct {
	UUID        string  `json:"uuid"`
	Name        string  `json:"name"`
	Size        int64   `json:"size"`
	Checksum    string  `json:"checksum"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
	ObjectName  *string `json:"object_name,omitempty"`
	Available   bool    `json:"available"`
}

// Exists checks whether any version of a product with this name exists.
// Product names are unique per lineage but this cannot be enforced at
// the database level because versioning stores multiple rows per name.
func (s *ProductService) Exists(ctx context.Context, name string) (bool, error) {
	count, err := s.products.CountDocuments(ctx, bson.M{"name": name})
	if err != nil {
		return false, fmt.Errorf("failed to count products named %q: %w", name, err)
	}
	return count > 0, nil
}

func (s *ProductService) presignUploads(ctx context.Context, sources []PreUploadFile, uploader string) ([]models.File, map[string][]string, error) {
	presigned := make(map[string][]string, len(sources))
	slots := make([]models.File, 0, len(sources))

	for _, source := range sources {
		file, urls, err := s.storage.CreateFileSlot(ctx, source.Name, source.Description, uploader, source.Size, source.Checksum)
		if err != nil {
			return nil, nil, err
		}

		file.ID = primitive.NewObjectID()
		if _, err := s.files.InsertOne(ctx, file); err != nil {
			return nil, nil, fmt.Errorf("failed to record file slot %s: %w", source.Name, err)
		}

		presigned[source.Name] = urls
		slots = append(slots, file)
	}

	return slots, presigned, nil
}

// Create makes a new product at version 1.0.0 with pre-signed upload
// slots for every source. The returned map goes from source name to the
// upload URL(s) the client must PUT the bytes to.
func (s *ProductService) Create(ctx context.Context, name, description string, metadata models.Metadata, sources []PreUploadFile, owner *models.User, visibility models.Visibility) (*models.Product, map[string][]string, error) {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, fmt.Errorf("%w: %q", ErrProductExists, name)
	}

	slots, presigned, err := s.presignUploads(ctx, sources, owner.Name)
	if err != nil {
		return nil, nil, err
	}

	now := utils.CurrentUTCTime()
	product := &models.Product{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: description,
		Metadata:    metadata,
		Uploaded:    now,
		Updated:     now,
		Current:     true,
		Version:     InitialVersion,
		Sources:     slots,
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		Visibility:  visibility,
		Replaces:    nil,
		ChildOf:     []primitive.ObjectID{},
		Collections: []models.CollectionMembership{},
	}

	if _, err := s.products.InsertOne(ctx, product); err != nil {
		return nil, nil, fmt.Errorf("failed to create product %q: %w", name, err)
	}

	return product, presigned, nil
}

// readRaw fetches a product without any visibility filtering. Internal
// chain maintenance must see every row.
func (s *ProductService) readRaw(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read product %s: %w", id.Hex(), err)
	}
	return &product, nil
}

// ReadByID fetches a single product version, enforcing visibility.
func (s *ProductService) ReadByID(ctx context.Context, id primitive.ObjectID, user *models.User) (*models.Product, error) {
	product, err := s.readRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CheckVisibilityAccess(product, user) {
		// Indistinguishable from absent, to avoid revealing that a
		// private product exists.
		return nil, fmt.Errorf("%w: product %s", ErrNotAuthorized, id.Hex())
	}
	return product, nil
}

// ReadByName fetches a product by name. A nil version pins to the
// current head; otherwise the named version is returned.
func (s *ProductService) ReadByName(ctx context.Context, name string, version *string, user *models.User) (*models.Product, error) {
	filter := bson.M{"name": name}
	if version == nil {
		filter["current"] = true
	} else {
		filter["version"] = *version
	}

	var product models.Product
	err := s.products.FindOne(ctx, filter).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %q", ErrProductNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read product %q: %w", name, err)
	}

	if !CheckVisibilityAccess(&product, user) {
		return nil, fmt.Errorf("%w: product %q", ErrNotAuthorized, name)
	}
	return &product, nil
}

// ReadMostRecent lists the most recently updated product versions.
func (s *ProductService) ReadMostRecent(ctx context.Context, currentOnly bool, maximum int64, user *models.User) ([]models.Product, error) {
	filter := bson.M{}
	if currentOnly {
		filter["current"] = true
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "updated", Value: -1}}).
		SetLimit(maximum)

	cursor, err := s.products.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode recent products: %w", err)
	}

	return filterVisible(products, user), nil
}

// ParentsOf computes the parent_of back-reference: every product that
// lists the given id in its child_of.
func (s *ProductService) ParentsOf(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := s.products.Find(ctx, bson.M{"child_of": id},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to look up parents of %s: %w", id.Hex(), err)
	}
	defer cursor.Close(ctx)

	parents := []primitive.ObjectID{}
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode parent reference: %w", err)
		}
		parents = append(parents, row.ID)
	}
	return parents, cursor.Err()
}

// Snapshot resolves the lookups a ProductSnapshot needs: the version
// string of the predecessor and the computed parent_of list.
func (s *ProductService) Snapshot(ctx context.Context, product *models.Product) (models.ProductSnapshot, error) {
	var replacesVersion *string
	if product.Replaces != nil {
		predecessor, err := s.readRaw(ctx, *product.Replaces)
		if err != nil {
			return models.ProductSnapshot{}, err
		}
		replacesVersion = &predecessor.Version
	}

	parents, err := s.ParentsOf(ctx, product.ID)
	if err != nil {
		return models.ProductSnapshot{}, err
	}

	return product.Snapshot(replacesVersion, parents), nil
}

// Confirm asks the store whether every source object exists and records
// per-file availability. It returns true only when all sources are
// confirmed; it is safe to call repeatedly while uploads trickle in.
func (s *ProductService) Confirm(ctx context.Context, product *models.Product) (bool, error) {
	all := true

	for i, source := range product.Sources {
		ok, err := s.storage.Confirm(ctx, source.Name, source.Uploader, source.UUID, source.Bucket)
		if err != nil {
			return false, err
		}
		if !ok {
			all = false
			continue
		}
		if source.Available {
			continue
		}
		if err := s.markFileAvailable(ctx, product.ID, source.UUID); err != nil {
			return false, err
		}
		product.Sources[i].Available = true
	}

	return all, nil
}

func (s *ProductService) markFileAvailable(ctx context.Context, productID primitive.ObjectID, fileUUID string) error {
	if _, err := s.files.UpdateOne(ctx,
		bson.M{"uuid": fileUUID},
		bson.M{"$set": bson.M{"available": true}},
	); err != nil {
		return fmt.Errorf("failed to mark file %s available: %w", fileUUID, err)
	}

	// Keep the embedded snapshot in step with the files collection.
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{"$set": bson.M{"sources.$[f].available": true}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"f.uuid": fileUUID}},
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to update embedded source %s: %w", fileUUID, err)
	}
	return nil
}

// FinalizeMultipart closes a multipart upload session for one source
// using the part response headers and sizes the client collected.
func (s *ProductService) FinalizeMultipart(ctx context.Context, product *models.Product, sourceName string, headers []map[string]string, sizes []int64) error {
	for i, source := range product.Sources {
		if source.Name != sourceName {
			continue
		}
		if !source.Multipart || source.UploadID == nil {
			return fmt.Errorf("source %q is not a multipart upload", sourceName)
		}
		if source.MultipartClosed {
			return nil
		}

		if err := s.storage.CompleteMultipart(ctx, source.Name, source.Uploader, source.UUID, source.Bucket, *source.UploadID, headers, sizes); err != nil {
			return err
		}

		if _, err := s.files.UpdateOne(ctx,
			bson.M{"uuid": source.UUID},
			bson.M{"$set": bson.M{"multipart_closed": true}},
		); err != nil {
			return fmt.Errorf("failed to record multipart close for %s: %w", source.UUID, err)
		}
		if _, err := s.products.UpdateOne(ctx,
			bson.M{"_id": product.ID},
			bson.M{"$set": bson.M{"sources.$[f].multipart_closed": true}},
			options.Update().SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"f.uuid": source.UUID}},
			}),
		); err != nil {
			return fmt.Errorf("failed to update embedded source %s: %w", source.UUID, err)
		}
		product.Sources[i].MultipartClosed = true
		return nil
	}

	return fmt.Errorf("%w: %q", ErrFileNotFound, sourceName)
}

// ReadFiles returns the download-side view of a product's sources, with
// pre-signed GET URLs for the files that are available.
func (s *ProductService) ReadFiles(ctx context.Context, product *models.Product) ([]PostUploadFile, error) {
	out := make([]PostUploadFile, 0, len(product.Sources))

	for _, source := range product.Sources {
		post := PostUploadFile{
			UUID:        source.UUID,
			Name:        source.Name,
			Size:        source.Size,
			Checksum:    source.Checksum,
			Description: source.Description,
			Available:   source.Available,
		}
		if source.Available {
			url, err := s.storage.Get(ctx, source.Name, source.Uploader, source.UUID, source.Bucket)
			if err != nil {
				return nil, err
			}
			objectName := s.storage.ObjectName(source.Name, source.Uploader, source.UUID)
			post.URL = &url
			post.ObjectName = &objectName
		}
		out = append(out, post)
	}

	return out, nil
}

// WalkToCurrent follows forward links from any version to the head of
// the chain. The chain stores only backward pointers, so each hop is a
// reverse lookup. A non-current version with no forward link means the
// chain is corrupt, which is fatal rather than a domain error.
func (s *ProductService) WalkToCurrent(ctx context.Context, product *models.Product, user *models.User) (*models.Product, error) {
	// Re-read in case the caller is holding a stale row.
	product, err := s.ReadByID(ctx, product.ID, user)
	if err != nil {
		return nil, err
	}

	for !product.Current {
		var next models.Product
		err := s.products.FindOne(ctx, bson.M{"replaces": product.ID}).Decode(&next)
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.LogError(fmt.Sprintf(
				"version chain broken: product %s (%s version %s) is not current and nothing replaces it",
				product.ID.Hex(), product.Name, product.Version), nil)
			return nil, fmt.Errorf("%w: no forward link from %s", ErrChainCorrupt, product.ID.Hex())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk forward from %s: %w", product.ID.Hex(), err)
		}
		product = &next
	}

	return product, nil
}

// WalkHistory follows the replaces chain backward from the given
// version, returning every visited version's snapshot keyed by version
// string. Walk to the current head first to get the whole history.
func (s *ProductService) WalkHistory(ctx context.Context, product *models.Product) (map[string]models.ProductSnapshot, error) {
	versions := make(map[string]models.ProductSnapshot)

	for {
		snapshot, err := s.Snapshot(ctx, product)
		if err != nil {
			return nil, err
		}
		versions[product.Version] = snapshot

		if product.Replaces == nil {
			return versions, nil
		}
		product, err = s.readRaw(ctx, *product.Replaces)
		if err != nil {
			return nil, err
		}
	}
}

// UpdateMetadataOptions carries the optional field overrides for a
// metadata revision. Nil fields keep the old version's values.
type UpdateMetadataOptions struct {
	Name        *string
	Description *string
	Metadata    *models.Metadata
	Owner       *models.User
	Visibility  *models.Visibility
	Level       RevisionLevel
}

// Policies kept on the new head versus the superseded row. CURRENT
// memberships migrate forward; FIXED memberships stay pinned behind.
var (
	newHeadPolicies       = []models.CollectionPolicy{models.PolicyAll, models.PolicyNew, models.PolicyCurrent}
	supersededRowPolicies = []models.CollectionPolicy{models.PolicyAll, models.PolicyNew, models.PolicyFixed}
)

func filterMembershipsByPolicy(memberships []models.CollectionMembership, keep []models.CollectionPolicy) []models.CollectionMembership {
	kept := make([]models.CollectionMembership, 0, len(memberships))
	for _, m := range memberships {
		for _, policy := range keep {
			if m.Policy == policy {
				kept = append(kept, m)
				break
			}
		}
	}
	return kept
}

// UpdateVisibility changes a product's visibility in place. Visibility
// changes never produce a new version row.
func (s *ProductService) UpdateVisibility(ctx context.Context, product *models.Product, visibility models.Visibility) error {
	now := utils.CurrentUTCTime()
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": product.ID},
		bson.M{"$set": bson.M{"visibility": visibility, "updated": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to update visibility of %s: %w", product.ID.Hex(), err)
	}
	product.Visibility = visibility
	product.Updated = now
	return nil
}

// UpdateMetadata revises a product: a new immutable version row is
// created at the revised version, linked to its predecessor through
// replaces, and the old head is demoted. Collection memberships are
// filtered by their retention policies on both rows. Child
// relationships never carry forward. A visibility-only level is applied
// in place without a new row.
func (s *ProductService) UpdateMetadata(ctx context.Context, product *models.Product, opts UpdateMetadataOptions) (*models.Product, error) {
	if opts.Level == RevisionVisibility {
		if opts.Visibility != nil {
			if err := s.UpdateVisibility(ctx, product, *opts.Visibility); err != nil {
				return nil, err
			}
		}
		return product, nil
	}

	if !product.Current {
		return nil, &VersioningError{
			Msg: fmt.Sprintf("product %s version %s is not current; changes must be made to the head of the chain",
				product.ID.Hex(), product.Version),
		}
	}

	version, err := ReviseVersion(product.Version, opts.Level)
	if err != nil {
		return nil, err
	}

	next := *product
	next.ID = primitive.NewObjectID()
	next.Updated = utils.CurrentUTCTime()
	next.Current = true
	next.Version = version
	next.Replaces = &product.ID
	// A product is a child of nothing until it is told it is; child
	// relationships only stick around for a single version.
	next.ChildOf = []primitive.ObjectID{}
	next.Collections = filterMembershipsByPolicy(product.Collections, newHeadPolicies)

	if opts.Name != nil {
		next.Name = *opts.Name
	}
	if opts.Description != nil {
		next.Description = *opts.Description
	}
	if opts.Metadata != nil {
		next.Metadata = *opts.Metadata
	}
	if opts.Owner != nil {
		next.OwnerID = opts.Owner.ID
		next.OwnerName = opts.Owner.Name
	}
	if opts.Visibility != nil {
		next.Visibility = *opts.Visibility
	}

	if _, err := s.products.InsertOne(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to insert revised product %q: %w", next.Name, err)
	}

	_, err = s.products.UpdateOne(ctx,
		bson.M{"_id": product.ID},
		bson.M{"$set": bson.M{
			"current":     false,
			"collections": filterMembershipsByPolicy(product.Collections, supersededRowPolicies),
		}},
	)
	if err != nil {
		// Compensate: remove the new head so the lineage keeps exactly
		// one current row.
		if _, deleteErr := s.products.DeleteOne(ctx, bson.M{"_id": next.ID}); deleteErr != nil {
			utils.LogError(fmt.Sprintf("failed to roll back revised product %s", next.ID.Hex()), deleteErr)
		}
		return nil, fmt.Errorf("failed to demote old head %s: %w", product.ID.Hex(), err)
	}

	return &next, nil
}

func nameSet(sources []PreUploadFile) map[string]struct{} {
	names := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		names[s.Name] = struct{}{}
	}
	return names
}

func intersectionSize(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

// symmetricDifference returns the elements present in an odd number of
// the given sets.
func symmetricDifference(sets ...map[string]struct{}) map[string]struct{} {
	counts := make(map[string]int)
	for _, set := range sets {
		for k := range set {
			counts[k]++
		}
	}
	out := make(map[string]struct{})
	for k, n := range counts {
		if n%2 == 1 {
			out[k] = struct{}{}
		}
	}
	return out
}

// retainedSources computes the sources kept across an update: everything
// not being replaced or dropped.
func retainedSources(existing []models.File, replaceNames, dropNames map[string]struct{}) []models.File {
	existingNames := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		existingNames[f.Name] = struct{}{}
	}
	keepNames := symmetricDifference(existingNames, replaceNames, dropNames)

	kept := make([]models.File, 0, len(existing))
	for _, f := range existing {
		if _, ok := keepNames[f.Name]; ok {
			kept = append(kept, f)
		}
	}
	return kept
}

// UpdateSources mutates a product's source set: new sources must not
// collide with existing names, replacements must match existing names
// and drops must exist. Upload slots are allocated for new and
// replacement sources and the product's source list becomes the new
// slots plus the retained files.
func (s *ProductService) UpdateSources(ctx context.Context, product *models.Product, newSources, replaceSources []PreUploadFile, drop []string) (*models.Product, map[string][]string, error) {
	existingNames := product.SourceNameSet()
	newNames := nameSet(newSources)
	replaceNames := nameSet(replaceSources)
	dropNames := make(map[string]struct{}, len(drop))
	for _, name := range drop {
		dropNames[name] = struct{}{}
	}

	if n := intersectionSize(existingNames, newNames); n != 0 {
		return nil, nil, fmt.Errorf("%w: %d new source(s) collide with existing names", ErrFileExists, n)
	}
	if intersectionSize(existingNames, replaceNames) != len(replaceNames) {
		return nil, nil, fmt.Errorf("%w: replacement sources must match existing names", ErrFileNotFound)
	}
	if intersectionSize(existingNames, dropNames) != len(dropNames) {
		return nil, nil, fmt.Errorf("%w: dropped sources must match existing names", ErrFileNotFound)
	}

	newSlots, presignedNew, err := s.presignUploads(ctx, newSources, product.OwnerName)
	if err != nil {
		return nil, nil, err
	}
	replaceSlots, presignedReplace, err := s.presignUploads(ctx, replaceSources, product.OwnerName)
	if err != nil {
		return nil, nil, err
	}

	presigned := make(map[string][]string, len(presignedNew)+len(presignedReplace))
	for name, urls := range presignedNew {
		presigned[name] = urls
	}
	for name, urls := range presignedReplace {
		presigned[name] = urls
	}

	slots := append(newSlots, replaceSlots...)
	kept := retainedSources(product.Sources, replaceNames, dropNames)

	expected := len(product.Sources) - len(drop) + len(newSources)
	if len(kept)+len(slots) != expected {
		return nil, nil, fmt.Errorf("source bookkeeping mismatch on %s: kept %d + allocated %d != expected %d",
			product.ID.Hex(), len(kept), len(slots), expected)
	}

	product.Sources = append(slots, kept...)
	product.Updated = utils.CurrentUTCTime()

	_, err = s.products.UpdateOne(ctx,
		bson.M{"_id": product.ID},
		bson.M{"$set": bson.M{"sources": product.Sources, "updated": product.Updated}},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist source update on %s: %w", product.ID.Hex(), err)
	}

	return product, presigned, nil
}

// Update performs a metadata revision and, if requested, a source-set
// update on the freshly created version. If the source update fails,
// the new version row is rolled back (without touching backing files,
// since none were confirmed) and the original error is returned.
func (s *ProductService) Update(ctx context.Context, product *models.Product, opts UpdateMetadataOptions, newSources, replaceSources []PreUploadFile, drop []string) (*models.Product, map[string][]string, error) {
	revised, err := s.UpdateMetadata(ctx, product, opts)
	if err != nil {
		return nil, nil, err
	}

	if len(newSources) == 0 && len(replaceSources) == 0 && len(drop) == 0 {
		return revised, map[string][]string{}, nil
	}

	updated, presigned, err := s.UpdateSources(ctx, revised, newSources, replaceSources, drop)
	if err != nil {
		// Roll back the just-created version row so the failed source
		// update does not leave a dangling version in the chain. Its
		// upload slots were never confirmed, so no backing data is
		// removed. The caller sees the original cause. A
		// visibility-only level never created a row, so there is
		// nothing to roll back.
		if opts.Level != RevisionVisibility {
			if deleteErr := s.DeleteOne(ctx, revised, false); deleteErr != nil {
				utils.LogError(fmt.Sprintf("failed to roll back product version %s", revised.ID.Hex()), deleteErr)
			}
		}
		return nil, nil, err
	}

	return updated, presigned, nil
}

// deletionCandidates returns the file UUIDs that exist only on the
// version being deleted and not on either immediate neighbour.
func deletionCandidates(current, predecessor, successor map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(current))
	for uuid := range current {
		if _, ok := predecessor[uuid]; ok {
			continue
		}
		if _, ok := successor[uuid]; ok {
			continue
		}
		out[uuid] = struct{}{}
	}
	return out
}

// DeleteOne removes exactly one version, repairing the chain around it.
// Backing files are physically removed only when data is true and only
// when no immediate neighbour still references them.
func (s *ProductService) DeleteOne(ctx context.Context, product *models.Product, data bool) error {
	var predecessor, successor *models.Product

	if product.Replaces != nil {
		p, err := s.readRaw(ctx, *product.Replaces)
		if err != nil {
			return err
		}
		predecessor = p
	}

	if !product.Current {
		var next models.Product
		err := s.products.FindOne(ctx, bson.M{"replaces": product.ID}).Decode(&next)
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.LogError(fmt.Sprintf(
				"version chain broken: product %s (%s version %s) is not current and nothing replaces it",
				product.ID.Hex(), product.Name, product.Version), nil)
			return fmt.Errorf("%w: no forward link from %s", ErrChainCorrupt, product.ID.Hex())
		}
		if err != nil {
			return fmt.Errorf("failed to find successor of %s: %w", product.ID.Hex(), err)
		}
		successor = &next
	}

	predecessorUUIDs := map[string]struct{}{}
	if predecessor != nil {
		predecessorUUIDs = predecessor.SourceUUIDSet()
	}
	successorUUIDs := map[string]struct{}{}
	if successor != nil {
		successorUUIDs = successor.SourceUUIDSet()
	}
	candidates := deletionCandidates(product.SourceUUIDSet(), predecessorUUIDs, successorUUIDs)

	if data {
		for _, source := range product.Sources {
			if _, ok := candidates[source.UUID]; !ok {
				continue
			}
			if err := s.storage.Delete(ctx, source.Name, source.Uploader, source.UUID, source.Bucket); err != nil {
				return err
			}
			if _, err := s.files.DeleteOne(ctx, bson.M{"uuid": source.UUID}); err != nil {
				return fmt.Errorf("failed to delete file record %s: %w", source.UUID, err)
			}
		}
	}

	// Rewire the chain: the successor skips over the deleted row, and
	// if we are deleting the head its predecessor becomes current.
	if successor != nil {
		update := bson.M{}
		if product.Replaces != nil {
			update["$set"] = bson.M{"replaces": *product.Replaces}
		} else {
			update["$unset"] = bson.M{"replaces": ""}
		}
		if _, err := s.products.UpdateOne(ctx, bson.M{"_id": successor.ID}, update); err != nil {
			return fmt.Errorf("failed to re-link successor %s: %w", successor.ID.Hex(), err)
		}
	} else if predecessor != nil {
		if _, err := s.products.UpdateOne(ctx,
			bson.M{"_id": predecessor.ID},
			bson.M{"$set": bson.M{"current": true}},
		); err != nil {
			return fmt.Errorf("failed to promote predecessor %s: %w", predecessor.ID.Hex(), err)
		}
	}

	if _, err := s.products.DeleteOne(ctx, bson.M{"_id": product.ID}); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", product.ID.Hex(), err)
	}
	return nil
}

// DeleteTree removes an entire lineage from the current head back to
// the root. Every unique backing file is deleted exactly once when data
// is true.
func (s *ProductService) DeleteTree(ctx context.Context, product *models.Product, data bool) error {
	if !product.Current {
		return &VersioningError{
			Msg: fmt.Sprintf("cannot delete the tree starting from non-current product %s version %s",
				product.ID.Hex(), product.Version),
		}
	}

	seenUUIDs := make(map[string]struct{})
	var filesToDelete []models.File
	var ids []primitive.ObjectID

	for {
		ids = append(ids, product.ID)
		for _, source := range product.Sources {
			if _, ok := seenUUIDs[source.UUID]; ok {
				continue
			}
			seenUUIDs[source.UUID] = struct{}{}
			filesToDelete = append(filesToDelete, source)
		}

		if product.Replaces == nil {
			break
		}
		next, err := s.readRaw(ctx, *product.Replaces)
		if err != nil {
			return err
		}
		product = next
	}

	if data {
		for _, source := range filesToDelete {
			if err := s.storage.Delete(ctx, source.Name, source.Uploader, source.UUID, source.Bucket); err != nil {
				return err
			}
			if _, err := s.files.DeleteOne(ctx, bson.M{"uuid": source.UUID}); err != nil {
				return fmt.Errorf("failed to delete file record %s: %w", source.UUID, err)
			}
		}
	}

	if _, err := s.products.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete product tree: %w", err)
	}
	return nil
}

// AddRelationship records that source is derived from destination.
func (s *ProductService) AddRelationship(ctx context.Context, source, destination *models.Product, relType string) error {
	if relType != RelationshipChild {
		return fmt.Errorf("unknown relationship type %q", relType)
	}
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": source.ID},
		bson.M{"$addToSet": bson.M{"child_of": destination.ID}},
	)
	if err != nil {
		return fmt.Errorf("failed to add relationship %s -> %s: %w", source.ID.Hex(), destination.ID.Hex(), err)
	}
	return nil
}

// RemoveRelationship removes a derived-from link.
func (s *ProductService) RemoveRelationship(ctx context.Context, source, destination *models.Product, relType string) error {
	if relType != RelationshipChild {
		return fmt.Errorf("unknown relationship type %q", relType)
	}
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": source.ID},
		bson.M{"$pull": bson.M{"child_of": destination.ID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove relationship %s -> %s: %w", source.ID.Hex(), destination.ID.Hex(), err)
	}
	return nil
}

// AddCollection adds this product version to a collection under the
// given retention policy. Only this version's membership list changes.
func (s *ProductService) AddCollection(ctx context.Context, product *models.Product, collection *models.Collection, policy models.CollectionPolicy) error {
	membership := models.CollectionMembership{CollectionID: collection.ID, Policy: policy}
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": product.ID},
		bson.M{"$push": bson.M{"collections": membership}},
	)
	if err != nil {
		return fmt.Errorf("failed to add %s to collection %s: %w", product.ID.Hex(), collection.ID.Hex(), err)
	}
	return nil
}

// RemoveCollection removes this product version from a collection.
func (s *ProductService) RemoveCollection(ctx context.Context, product *models.Product, collection *models.Collection) error {
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": product.ID},
		bson.M{"$pull": bson.M{"collections": bson.M{"collection_id": collection.ID}}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove %s from collection %s: %w", product.ID.Hex(), collection.ID.Hex(), err)
	}
	return nil
}

// CheckVisibilityAccess reports whether a user may see a product:
// public is visible to anyone, collaboration to any authenticated user,
// private only to the owner or holders of a product privilege.
func CheckVisibilityAccess(product *models.Product, user *models.User) bool {
	if product.Visibility == models.VisibilityPublic {
		return true
	}
	if user == nil {
		return false
	}
	switch product.Visibility {
	case models.VisibilityCollaboration:
		return true
	case models.VisibilityPrivate:
		return user.ID == product.OwnerID || user.HasAnyPrivilege(
			models.PrivilegeReadProduct,
			models.PrivilegeUpdateProduct,
			models.PrivilegeDeleteProduct,
		)
	}
	return false
}

func filterVisible(products []models.Product, user *models.User) []models.Product {
	visible := make([]models.Product, 0, len(products))
	for i := range products {
		if CheckVisibilityAccess(&products[i], user) {
			visible = append(visible, products[i])
		}
	}
	return visible
}
