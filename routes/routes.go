// routes/routes.go
package routes

import (
	"context"

	"skyshelf/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// ServiceContainer holds all services and shared dependencies.
type ServiceContainer struct {
	DB                *mongo.Database
	JWTSecret         string
	StorageService    *services.StorageService
	ProductService    *services.ProductService
	CollectionService *services.CollectionService
	SearchService     *services.SearchService
	UserService       *services.UserService
}

// NewServiceContainer creates a service container with all dependencies
// initialized. The storage service is created first since the product
// service needs it for pre-signed uploads.
func NewServiceContainer(ctx context.Context, db *mongo.Database, jwtSecret string, storageConfig services.StorageConfig) (*ServiceContainer, error) {
	storageService, err := services.NewStorageService(ctx, storageConfig)
	if err != nil {
		return nil, err
	}

	return &ServiceContainer{
		DB:                db,
		JWTSecret:         jwtSecret,
		StorageService:    storageService,
		ProductService:    services.NewProductService(db, storageService),
		CollectionService: services.NewCollectionService(db),
		SearchService:     services.NewSearchService(db),
		UserService:       services.NewUserService(db),
	}, nil
}

// SetupRoutes configures all API routes for the application.
// This function is called from main.go after middleware is already set up.
func SetupRoutes(api *gin.RouterGroup, container *ServiceContainer) {
	RegisterUserRoutes(api, container)
	RegisterProductRoutes(api, container)
	RegisterCollectionRoutes(api, container)
	RegisterRelationshipRoutes(api, container)
	RegisterSearchRoutes(api, container)
}
