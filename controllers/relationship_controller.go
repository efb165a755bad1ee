package controllers

import (
	"github.com/gin-gonic/gin"

	"skyshelf/middleware"
	"skyshelf/services"
	"skyshelf/utils"
)

// RelationshipController manages the cross-lineage product graph:
// child links between otherwise independent products.
type RelationshipController struct {
	productService *services.ProductService
}

func NewRelationshipController(productService *services.ProductService) *RelationshipController {
	return &RelationshipController{productService: productService}
}

func (rc *RelationshipController) AddChild(c *gin.Context) {
	rc.mutate(c, true)
}

func (rc *RelationshipController) RemoveChild(c *gin.Context) {
	rc.mutate(c, false)
}

func (rc *RelationshipController) mutate(c *gin.Context, add bool) {
	parentID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	childID, ok := parseObjectID(c, "child_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user := middleware.CallingUser(c)

	parent, err := rc.productService.ReadByID(ctx, parentID, user)
	if err != nil {
		respondProductError(c, err)
		return
	}
	child, err := rc.productService.ReadByID(ctx, childID, user)
	if err != nil {
		respondProductError(c, err)
		return
	}

	// The child carries the derived-from link to its parent.
	if add {
		err = rc.productService.AddRelationship(ctx, child, parent, services.RelationshipChild)
	} else {
		err = rc.productService.RemoveRelationship(ctx, child, parent, services.RelationshipChild)
	}
	if err != nil {
		respondProductError(c, err)
		return
	}

	if add {
		utils.SuccessResponse(c, "Child relationship added", nil)
	} else {
		utils.SuccessResponse(c, "Child relationship removed", nil)
	}
}
