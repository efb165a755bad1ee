package routes

import (
	"skyshelf/controllers"
	"skyshelf/middleware"
	"skyshelf/models"

	"github.com/gin-gonic/gin"
)

func RegisterRelationshipRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	relationshipController := controllers.NewRelationshipController(container.ProductService)

	relationships := rg.Group("/relationships")
	relationships.Use(middleware.AuthMiddleware(container.UserService, container.JWTSecret))
	{
		relationships.PUT("/product/:id/child/:child_id",
			middleware.RequirePrivilege(models.PrivilegeCreateRelationship),
			relationshipController.AddChild)
		relationships.DELETE("/product/:id/child/:child_id",
			middleware.RequirePrivilege(models.PrivilegeDeleteRelationship),
			relationshipController.RemoveChild)
	}
}
