package routes

import (
	"skyshelf/controllers"
	"skyshelf/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterSearchRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	searchController := controllers.NewSearchController(container.SearchService, container.ProductService)

	optionalAuth := middleware.OptionalAuthMiddleware(container.UserService, container.JWTSecret)

	products := rg.Group("/products")
	products.Use(optionalAuth)
	{
		products.GET("/search/:text", searchController.SearchProducts)          // GET /products/search/:text
		products.POST("/searchmetadata", searchController.SearchProductsByMetadata) // POST /products/searchmetadata
	}

	collections := rg.Group("/collections")
	collections.Use(optionalAuth)
	{
		collections.GET("/search/:text", searchController.SearchCollections) // GET /collections/search/:text
	}
}
