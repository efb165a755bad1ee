package controllers

import (
	"github.com/gin-gonic/gin"

	"skyshelf/middleware"
	"skyshelf/models"
	"skyshelf/services"
	"skyshelf/utils"
)

type SearchController struct {
	searchService  *services.SearchService
	productService *services.ProductService
}

func NewSearchController(searchService *services.SearchService, productService *services.ProductService) *SearchController {
	return &SearchController{
		searchService:  searchService,
		productService: productService,
	}
}

type MetadataSearchRequest struct {
	MetadataType string            `json:"metadata_type" binding:"required"`
	Constraints  map[string]string `json:"constraints"`
}

func (sc *SearchController) snapshots(c *gin.Context, products []models.Product) ([]models.ProductSnapshot, bool) {
	snapshots := make([]models.ProductSnapshot, 0, len(products))
	for i := range products {
		snapshot, err := sc.productService.Snapshot(c.Request.Context(), &products[i])
		if err != nil {
			respondProductError(c, err)
			return nil, false
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, true
}

// SearchProducts searches current products by name or description
// substring.
func (sc *SearchController) SearchProducts(c *gin.Context) {
	products, err := sc.searchService.SearchProductsByName(
		c.Request.Context(), c.Param("text"), middleware.CallingUser(c))
	if err != nil {
		respondProductError(c, err)
		return
	}

	snapshots, ok := sc.snapshots(c, products)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "Products retrieved", snapshots)
}

// SearchProductsByMetadata searches current products of one metadata
// type by structured field constraints.
func (sc *SearchController) SearchProductsByMetadata(c *gin.Context) {
	var req MetadataSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	products, err := sc.searchService.SearchProductsByMetadata(
		c.Request.Context(), req.MetadataType, req.Constraints, middleware.CallingUser(c))
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	snapshots, ok := sc.snapshots(c, products)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "Products retrieved", snapshots)
}

func (sc *SearchController) SearchCollections(c *gin.Context) {
	collections, err := sc.searchService.SearchCollectionsByName(c.Request.Context(), c.Param("text"))
	if err != nil {
		respondProductError(c, err)
		return
	}
	utils.SuccessResponse(c, "Collections retrieved", collections)
}
