package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"skyshelf/models"
	"skyshelf/services"
	"skyshelf/utils"
)

const userContextKey = "callingUser"

// AuthMiddleware authenticates requests from either a long-lived API
// key (X-API-Key, used by the CLI) or a short-lived bearer JWT (used by
// web sessions), and stores the resolved user in the request context.
func AuthMiddleware(userService *services.UserService, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := resolveUser(c, userService, jwtSecret)
		if user == nil {
			utils.UnauthorizedResponse(c, "Authentication required")
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the calling user when credentials are
// present but lets unauthenticated requests through. Read paths use it
// so public products stay reachable without credentials.
func OptionalAuthMiddleware(userService *services.UserService, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := resolveUser(c, userService, jwtSecret); user != nil {
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

func resolveUser(c *gin.Context, userService *services.UserService, jwtSecret string) *models.User {
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		user, err := userService.UserFromAPIKey(c.Request.Context(), apiKey)
		if err == nil {
			return user
		}
		return nil
	}

	if token := extractBearerToken(c); token != "" {
		claims, err := utils.VerifyJWTToken(token, jwtSecret)
		if err != nil {
			return nil
		}
		user, err := userService.Read(c.Request.Context(), claims.Name)
		if err != nil {
			return nil
		}
		return user
	}

	return nil
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

// CallingUser returns the authenticated user stored by the auth
// middleware, or nil for anonymous requests.
func CallingUser(c *gin.Context) *models.User {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// RequirePrivilege rejects authenticated requests whose user does not
// hold the given privilege.
func RequirePrivilege(priv models.Privilege) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CallingUser(c)
		if user == nil {
			utils.UnauthorizedResponse(c, "Authentication required")
			c.Abort()
			return
		}
		if !user.HasPrivilege(priv) {
			utils.ForbiddenResponse(c, "Insufficient privileges")
			c.Abort()
			return
		}
		c.Next()
	}
}
