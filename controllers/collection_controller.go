package controllers

import (
	"github.com/gin-gonic/gin"

	"skyshelf/middleware"
	"skyshelf/models"
	"skyshelf/services"
	"skyshelf/utils"
)

type CollectionController struct {
	collectionService *services.CollectionService
	productService    *services.ProductService
}

func NewCollectionController(collectionService *services.CollectionService, productService *services.ProductService) *CollectionController {
	return &CollectionController{
		collectionService: collectionService,
		productService:    productService,
	}
}

type CreateCollectionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type UpdateCollectionRequest struct {
	Description *string `json:"description,omitempty"`
}

type AddProductRequest struct {
	Policy models.CollectionPolicy `json:"policy"`
}

type SetMemberVisibilityRequest struct {
	Visibility models.Visibility `json:"visibility" binding:"required"`
}

func (cc *CollectionController) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	collection, err := cc.collectionService.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.CreatedResponse(c, "Collection created", collection)
}

// ReadCollection returns the collection with its member products
// resolved, pruned to those visible to the caller.
func (cc *CollectionController) ReadCollection(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	collection, err := cc.collectionService.Read(ctx, id)
	if err != nil {
		respondProductError(c, err)
		return
	}

	members, err := cc.collectionService.Products(ctx, id, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	parents, err := cc.collectionService.Parents(ctx, id)
	if err != nil {
		respondProductError(c, err)
		return
	}

	snapshots := make([]models.ProductSnapshot, 0, len(members))
	for i := range members {
		snapshot, err := cc.productService.Snapshot(ctx, &members[i])
		if err != nil {
			respondProductError(c, err)
			return
		}
		snapshots = append(snapshots, snapshot)
	}

	utils.SuccessResponse(c, "Collection retrieved", models.CollectionSnapshot{
		ID:                collection.ID,
		Name:              collection.Name,
		Description:       collection.Description,
		Products:          snapshots,
		ChildCollections:  collection.ChildCollections,
		ParentCollections: parents,
	})
}

func (cc *CollectionController) ReadRecentCollections(c *gin.Context) {
	collections, err := cc.collectionService.ReadMostRecent(c.Request.Context(), 16)
	if err != nil {
		respondProductError(c, err)
		return
	}
	utils.SuccessResponse(c, "Recent collections retrieved", collections)
}

func (cc *CollectionController) UpdateCollection(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var req UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	collection, err := cc.collectionService.Update(c.Request.Context(), id, req.Description)
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Collection updated", collection)
}

func (cc *CollectionController) DeleteCollection(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	if err := cc.collectionService.Delete(c.Request.Context(), id); err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Collection deleted", nil)
}

// AddProduct adds a product to a collection under a retention policy
// that controls how the membership follows future revisions.
func (cc *CollectionController) AddProduct(c *gin.Context) {
	collectionID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	productID, ok := parseObjectID(c, "product_id")
	if !ok {
		return
	}

	var req AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	policy := req.Policy
	if policy == "" {
		policy = models.PolicyAll
	}
	if !policy.Valid() {
		utils.BadRequestResponse(c, "Invalid collection policy: "+string(policy), nil)
		return
	}

	ctx := c.Request.Context()
	collection, err := cc.collectionService.Read(ctx, collectionID)
	if err != nil {
		respondProductError(c, err)
		return
	}
	product, err := cc.productService.ReadByID(ctx, productID, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	if err := cc.productService.AddCollection(ctx, product, collection, policy); err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Product added to collection", nil)
}

func (cc *CollectionController) RemoveProduct(c *gin.Context) {
	collectionID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	productID, ok := parseObjectID(c, "product_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	collection, err := cc.collectionService.Read(ctx, collectionID)
	if err != nil {
		respondProductError(c, err)
		return
	}
	product, err := cc.productService.ReadByID(ctx, productID, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	if err := cc.productService.RemoveCollection(ctx, product, collection); err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Product removed from collection", nil)
}

func (cc *CollectionController) AddChild(c *gin.Context) {
	parentID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	childID, ok := parseObjectID(c, "child_id")
	if !ok {
		return
	}

	collection, err := cc.collectionService.AddChild(c.Request.Context(), parentID, childID)
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Child collection added", collection)
}

func (cc *CollectionController) RemoveChild(c *gin.Context) {
	parentID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	childID, ok := parseObjectID(c, "child_id")
	if !ok {
		return
	}

	collection, err := cc.collectionService.RemoveChild(c.Request.Context(), parentID, childID)
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Child collection removed", collection)
}

// SetMemberVisibility applies a visibility level to every member
// product the caller can see. Members are updated in place; failures
// are reported per product.
func (cc *CollectionController) SetMemberVisibility(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var req SetMemberVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}
	if !req.Visibility.Valid() {
		utils.BadRequestResponse(c, "Invalid visibility: "+string(req.Visibility), nil)
		return
	}

	ctx := c.Request.Context()
	members, err := cc.collectionService.Products(ctx, id, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	updated := 0
	failed := []string{}
	for i := range members {
		if err := cc.productService.UpdateVisibility(ctx, &members[i], req.Visibility); err != nil {
			utils.LogError("Failed to update visibility of product "+members[i].ID.Hex(), err)
			failed = append(failed, members[i].ID.Hex())
			continue
		}
		updated++
	}

	utils.SuccessResponse(c, "Visibility updated", gin.H{
		"updated": updated,
		"failed":  failed,
	})
}
