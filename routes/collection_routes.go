package routes

import (
	"skyshelf/controllers"
	"skyshelf/middleware"
	"skyshelf/models"

	"github.com/gin-gonic/gin"
)

func RegisterCollectionRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	collectionController := controllers.NewCollectionController(container.CollectionService, container.ProductService)

	requireAuth := middleware.AuthMiddleware(container.UserService, container.JWTSecret)
	optionalAuth := middleware.OptionalAuthMiddleware(container.UserService, container.JWTSecret)

	read := rg.Group("/collection")
	read.Use(optionalAuth)
	{
		read.GET("/:id", collectionController.ReadCollection) // GET /collection/:id
	}

	write := rg.Group("/collection")
	write.Use(requireAuth)
	{
		write.PUT("/new", middleware.RequirePrivilege(models.PrivilegeCreateCollection), collectionController.CreateCollection)
		write.POST("/:id", middleware.RequirePrivilege(models.PrivilegeUpdateCollection), collectionController.UpdateCollection)
		write.DELETE("/:id", middleware.RequirePrivilege(models.PrivilegeDeleteCollection), collectionController.DeleteCollection)

		write.PUT("/:id/product/:product_id", middleware.RequirePrivilege(models.PrivilegeUpdateCollection), collectionController.AddProduct)
		write.DELETE("/:id/product/:product_id", middleware.RequirePrivilege(models.PrivilegeUpdateCollection), collectionController.RemoveProduct)

		write.PUT("/:id/child/:child_id", middleware.RequirePrivilege(models.PrivilegeUpdateCollection), collectionController.AddChild)
		write.DELETE("/:id/child/:child_id", middleware.RequirePrivilege(models.PrivilegeUpdateCollection), collectionController.RemoveChild)

		write.POST("/:id/visibility", middleware.RequirePrivilege(models.PrivilegeUpdateProduct), collectionController.SetMemberVisibility)
	}

	collections := rg.Group("/collections")
	collections.Use(optionalAuth)
	{
		collections.GET("/recent", collectionController.ReadRecentCollections) // GET /collections/recent
	}
}
