package routes

import (
	"skyshelf/controllers"
	"skyshelf/middleware"
	"skyshelf/models"

	"github.com/gin-gonic/gin"
)

func RegisterUserRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	userController := controllers.NewUserController(container.UserService)

	requireAuth := middleware.AuthMiddleware(container.UserService, container.JWTSecret)

	// Login is the only unauthenticated account route.
	rg.POST("/users/login", userController.Login)

	users := rg.Group("/users")
	users.Use(requireAuth)
	{
		users.GET("/me", userController.Me)
		users.PUT("/new", middleware.RequirePrivilege(models.PrivilegeCreateUser), userController.CreateUser)
		users.GET("/:name", middleware.RequirePrivilege(models.PrivilegeReadUser), userController.ReadUser)
		users.POST("/:name", middleware.RequirePrivilege(models.PrivilegeUpdateUser), userController.UpdateUser)
		users.DELETE("/:name", middleware.RequirePrivilege(models.PrivilegeDeleteUser), userController.DeleteUser)
	}
}
