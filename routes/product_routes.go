package routes

import (
	"skyshelf/controllers"
	"skyshelf/middleware"
	"skyshelf/models"

	"github.com/gin-gonic/gin"
)

func RegisterProductRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	productController := controllers.NewProductController(container.ProductService, container.UserService)

	requireAuth := middleware.AuthMiddleware(container.UserService, container.JWTSecret)
	optionalAuth := middleware.OptionalAuthMiddleware(container.UserService, container.JWTSecret)

	// Read routes allow anonymous access so public products stay
	// reachable without credentials.
	read := rg.Group("/product")
	read.Use(optionalAuth)
	{
		read.GET("/:id", productController.ReadProduct)       // GET /product/:id
		read.GET("/:id/tree", productController.ReadTree)     // GET /product/:id/tree
		read.GET("/:id/files", productController.ReadFiles)   // GET /product/:id/files
	}

	write := rg.Group("/product")
	write.Use(requireAuth)
	{
		write.PUT("/new", middleware.RequirePrivilege(models.PrivilegeCreateProduct), productController.CreateProduct)
		write.POST("/:id/confirm", productController.ConfirmProduct)
		write.POST("/:id/update", middleware.RequirePrivilege(models.PrivilegeUpdateProduct), productController.UpdateProduct)
		write.DELETE("/:id", middleware.RequirePrivilege(models.PrivilegeDeleteProduct), productController.DeleteProduct)
		write.DELETE("/:id/tree", middleware.RequirePrivilege(models.PrivilegeDeleteProduct), productController.DeleteTree)
	}

	products := rg.Group("/products")
	products.Use(optionalAuth)
	{
		products.GET("/recent", productController.ReadRecentProducts) // GET /products/recent
	}
}
