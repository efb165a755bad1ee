package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"skyshelf/middleware"
	"skyshelf/models"
	"skyshelf/services"
	"skyshelf/utils"
)

type ProductController struct {
	productService *services.ProductService
	userService    *services.UserService
}

func NewProductController(productService *services.ProductService, userService *services.UserService) *ProductController {
	return &ProductController{
		productService: productService,
		userService:    userService,
	}
}

type CreateProductRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description" binding:"required"`
	Metadata    models.Metadata          `json:"metadata"`
	Sources     []services.PreUploadFile `json:"sources"`
	Visibility  models.Visibility        `json:"visibility"`
}

type CreateProductResponse struct {
	ID         primitive.ObjectID  `json:"id"`
	UploadURLs map[string][]string `json:"upload_urls"`
}

// MultipartCompletion carries the client-collected part responses for
// one multipart source.
type MultipartCompletion struct {
	Headers []map[string]string `json:"headers"`
	Sizes   []int64             `json:"sizes"`
}

type ConfirmProductRequest struct {
	// Keyed by source name; only multipart sources need entries.
	Multipart map[string]MultipartCompletion `json:"multipart,omitempty"`
}

type ReadProductResponse struct {
	CurrentPresent bool                              `json:"current_present"`
	Current        *string                           `json:"current,omitempty"`
	Requested      string                            `json:"requested"`
	Versions       map[string]models.ProductSnapshot `json:"versions"`
}

type UpdateProductRequest struct {
	Name        *string                  `json:"name,omitempty"`
	Description *string                  `json:"description,omitempty"`
	Metadata    *models.Metadata         `json:"metadata,omitempty"`
	Owner       *string                  `json:"owner,omitempty"`
	Visibility  *models.Visibility       `json:"visibility,omitempty"`
	NewSources  []services.PreUploadFile `json:"new_sources"`
	Replace     []services.PreUploadFile `json:"replace_sources"`
	Drop        []string                 `json:"drop_sources"`
	Level       string                   `json:"level" binding:"required"`
}

type UpdateProductResponse struct {
	ID         primitive.ObjectID  `json:"id"`
	Version    string              `json:"version"`
	UploadURLs map[string][]string `json:"upload_urls"`
}

// respondProductError maps the domain error taxonomy onto HTTP statuses.
func respondProductError(c *gin.Context, err error) {
	var versioningErr *services.VersioningError

	switch {
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrCollectionNotFound),
		errors.Is(err, services.ErrUserNotFound):
		utils.NotFoundResponse(c, err.Error())
	case errors.Is(err, services.ErrProductExists),
		errors.Is(err, services.ErrFileExists):
		utils.ConflictResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrFileNotFound):
		utils.NotFoundResponse(c, err.Error())
	case errors.Is(err, services.ErrNotAuthorized):
		utils.ForbiddenResponse(c, "Not authorized to access this product")
	case errors.As(err, &versioningErr):
		utils.BadRequestResponse(c, versioningErr.Msg, nil)
	case errors.Is(err, services.ErrInvalidVersionFormat),
		errors.Is(err, services.ErrInvalidRevisionLevel):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrChainCorrupt):
		utils.InternalServerErrorResponse(c, "Internal catalog state error", nil)
	default:
		utils.InternalServerErrorResponse(c, err.Error(), nil)
	}
}

func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid id: "+c.Param(param), nil)
		return primitive.NilObjectID, false
	}
	return id, true
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityCollaboration
	}
	if !visibility.Valid() {
		utils.BadRequestResponse(c, "Invalid visibility: "+string(visibility), nil)
		return
	}

	user := middleware.CallingUser(c)
	product, presigned, err := pc.productService.Create(
		c.Request.Context(), req.Name, req.Description, req.Metadata, req.Sources, user, visibility)
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.LogInfo("Created product " + product.Name + " (" + product.ID.Hex() + ") for " + user.Name)
	c.JSON(http.StatusCreated, CreateProductResponse{ID: product.ID, UploadURLs: presigned})
}

func (pc *ProductController) ReadProduct(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	product, err := pc.productService.ReadByID(c.Request.Context(), id, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	snapshot, err := pc.productService.Snapshot(c.Request.Context(), product)
	if err != nil {
		respondProductError(c, err)
		return
	}

	response := ReadProductResponse{
		CurrentPresent: product.Current,
		Requested:      product.Version,
		Versions:       map[string]models.ProductSnapshot{product.Version: snapshot},
	}
	if product.Current {
		response.Current = &product.Version
	}

	c.JSON(http.StatusOK, response)
}

// ReadTree returns a product's entire version history, keyed by
// version string.
func (pc *ProductController) ReadTree(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user := middleware.CallingUser(c)

	requested, err := pc.productService.ReadByID(ctx, id, user)
	if err != nil {
		respondProductError(c, err)
		return
	}

	head, err := pc.productService.WalkToCurrent(ctx, requested, user)
	if err != nil {
		respondProductError(c, err)
		return
	}

	history, err := pc.productService.WalkHistory(ctx, head)
	if err != nil {
		respondProductError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReadProductResponse{
		CurrentPresent: true,
		Current:        &head.Version,
		Requested:      requested.Version,
		Versions:       history,
	})
}

func (pc *ProductController) ReadFiles(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	product, err := pc.productService.ReadByID(ctx, id, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	files, err := pc.productService.ReadFiles(ctx, product)
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Files retrieved", files)
}

// ConfirmProduct finalizes any multipart sources and then verifies all
// source objects exist in the store. Retryable; a 424 means the client
// still has uploads outstanding.
func (pc *ProductController) ConfirmProduct(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var req ConfirmProductRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	ctx := c.Request.Context()
	product, err := pc.productService.ReadByID(ctx, id, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	for name, completion := range req.Multipart {
		if err := pc.productService.FinalizeMultipart(ctx, product, name, completion.Headers, completion.Sizes); err != nil {
			respondProductError(c, err)
			return
		}
	}

	confirmed, err := pc.productService.Confirm(ctx, product)
	if err != nil {
		respondProductError(c, err)
		return
	}
	if !confirmed {
		utils.FailedDependencyResponse(c, "Not all sources have been uploaded")
		return
	}

	utils.SuccessResponse(c, "All sources confirmed", gin.H{"confirmed": true})
}

func (pc *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	level, err := services.ParseRevisionLevel(req.Level)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}
	if req.Visibility != nil && !req.Visibility.Valid() {
		utils.BadRequestResponse(c, "Invalid visibility: "+string(*req.Visibility), nil)
		return
	}

	ctx := c.Request.Context()
	user := middleware.CallingUser(c)

	product, err := pc.productService.ReadByID(ctx, id, user)
	if err != nil {
		respondProductError(c, err)
		return
	}

	opts := services.UpdateMetadataOptions{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
		Visibility:  req.Visibility,
		Level:       level,
	}
	if req.Owner != nil {
		owner, err := pc.userService.Read(ctx, *req.Owner)
		if err != nil {
			respondProductError(c, err)
			return
		}
		opts.Owner = owner
	}

	updated, presigned, err := pc.productService.Update(ctx, product, opts, req.NewSources, req.Replace, req.Drop)
	if err != nil {
		respondProductError(c, err)
		return
	}

	c.JSON(http.StatusOK, UpdateProductResponse{
		ID:         updated.ID,
		Version:    updated.Version,
		UploadURLs: presigned,
	})
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	pc.delete(c, false)
}

func (pc *ProductController) DeleteTree(c *gin.Context) {
	pc.delete(c, true)
}

func (pc *ProductController) delete(c *gin.Context, tree bool) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	data := c.Query("data") == "true"

	ctx := c.Request.Context()
	product, err := pc.productService.ReadByID(ctx, id, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	if tree {
		err = pc.productService.DeleteTree(ctx, product, data)
	} else {
		err = pc.productService.DeleteOne(ctx, product, data)
	}
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.SuccessResponse(c, "Product deleted", nil)
}

// ReadRecentProducts lists the most recently updated current products.
func (pc *ProductController) ReadRecentProducts(c *gin.Context) {
	products, err := pc.productService.ReadMostRecent(c.Request.Context(), true, 16, middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}
	utils.SuccessResponse(c, "Recent products retrieved", products)
}
