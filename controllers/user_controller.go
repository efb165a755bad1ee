package controllers

import (
	"github.com/gin-gonic/gin"

	"skyshelf/config"
	"skyshelf/middleware"
	"skyshelf/models"
	"skyshelf/services"
	"skyshelf/utils"
)

type UserController struct {
	userService *services.UserService
}

func NewUserController(userService *services.UserService) *UserController {
	return &UserController{userService: userService}
}

type CreateUserRequest struct {
	Name       string                        `json:"name" binding:"required"`
	Password   string                        `json:"password" binding:"required,min=8"`
	Privileges []models.Privilege            `json:"privileges"`
	Compliance *models.ComplianceInformation `json:"compliance,omitempty"`
}

type UpdateUserRequest struct {
	Password   *string            `json:"password,omitempty"`
	Privileges []models.Privilege `json:"privileges,omitempty"`
	RefreshKey bool               `json:"refresh_key"`
}

type LoginRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserView is the externally visible account shape. Secrets never
// leave the service; the API key is only returned on creation and
// refresh.
type UserView struct {
	Name       string                        `json:"name"`
	Email      *string                       `json:"email,omitempty"`
	AvatarURL  *string                       `json:"avatar_url,omitempty"`
	Privileges []models.Privilege            `json:"privileges"`
	Compliance *models.ComplianceInformation `json:"compliance,omitempty"`
}

func userView(user *models.User) UserView {
	return UserView{
		Name:       user.Name,
		Email:      user.Email,
		AvatarURL:  user.AvatarURL,
		Privileges: user.Privileges,
		Compliance: user.Compliance,
	}
}

func (uc *UserController) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if _, err := uc.userService.Read(c.Request.Context(), req.Name); err == nil {
		utils.ConflictResponse(c, "User already exists: "+req.Name, nil)
		return
	}

	user, err := uc.userService.Create(c.Request.Context(), req.Name, req.Password, req.Privileges, req.Compliance)
	if err != nil {
		respondProductError(c, err)
		return
	}

	utils.LogInfo("Created user " + user.Name)
	utils.CreatedResponse(c, "User created", gin.H{
		"user":    userView(user),
		"api_key": user.APIKey,
	})
}

func (uc *UserController) ReadUser(c *gin.Context) {
	user, err := uc.userService.Read(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondProductError(c, err)
		return
	}
	utils.SuccessResponse(c, "User retrieved", userView(user))
}

func (uc *UserController) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	user, err := uc.userService.Update(c.Request.Context(), c.Param("name"), req.Password, req.Privileges, req.RefreshKey)
	if err != nil {
		respondProductError(c, err)
		return
	}

	response := gin.H{"user": userView(user)}
	if req.RefreshKey {
		response["api_key"] = user.APIKey
	}
	utils.SuccessResponse(c, "User updated", response)
}

func (uc *UserController) DeleteUser(c *gin.Context) {
	if err := uc.userService.Delete(c.Request.Context(), c.Param("name")); err != nil {
		respondProductError(c, err)
		return
	}
	utils.SuccessResponse(c, "User deleted", nil)
}

// Login verifies a password and issues a session token. Bad name and
// bad password produce the same response.
func (uc *UserController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	user, err := uc.userService.VerifyPassword(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		utils.UnauthorizedResponse(c, "Invalid credentials")
		return
	}

	token, err := utils.GenerateJWTToken(user.Name, config.AppConfig.JWTSecret, config.AppConfig.JWTExpiration)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to issue session token", nil)
		return
	}

	utils.SuccessResponse(c, "Login successful", gin.H{
		"token": token,
		"user":  userView(user),
	})
}

// Me returns the calling user's own account.
func (uc *UserController) Me(c *gin.Context) {
	user := middleware.CallingUser(c)
	utils.SuccessResponse(c, "User retrieved", userView(user))
}
