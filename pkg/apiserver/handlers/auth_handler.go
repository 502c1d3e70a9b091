package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/apiserver/middleware"
	"github.com/prototrack/prototrack/pkg/auth"
	"github.com/prototrack/prototrack/pkg/authz"
	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

type AuthHandler struct {
	users  *postgres.UserRepository
	tokens *auth.TokenManager
	perms  *authz.Service
	logger *zap.Logger
}

func NewAuthHandler(users *postgres.UserRepository, tokens *auth.TokenManager, perms *authz.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, perms: perms, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	DepartmentID string   `json:"department_id,omitempty"`
	Role         string   `json:"role,omitempty"`
	Permissions  []string `json:"permissions"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("failed to load user for login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if !user.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  h.mapUser(c, user),
	})
}

type registerRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	DepartmentID string `json:"department_id" binding:"required"`
}

// Register creates an account with no role: the new user can work
// protocols addressed to them but holds no management capability until
// an administrator assigns one.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	departmentID, err := uuid.Parse(req.DepartmentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department_id"})
		return
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		DepartmentID: &departmentID,
	}
	if err := user.SetPassword(req.Password); err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, h.mapUser(c, user))
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword updates the caller's own password after re-checking
// the current one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := middleware.Principal(c)

	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if !user.CheckPassword(req.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is wrong"})
		return
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change password"})
		return
	}
	if err := h.users.Update(c.Request.Context(), user); err != nil {
		h.logger.Error("failed to store new password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.Principal(c)
	c.JSON(http.StatusOK, h.mapUser(c, user))
}

func (h *AuthHandler) mapUser(c *gin.Context, user *model.User) userResponse {
	response := userResponse{
		ID:          user.ID.String(),
		Name:        user.Name,
		Email:       user.Email,
		Permissions: h.perms.Permissions(c.Request.Context(), user),
	}
	if user.DepartmentID != nil {
		response.DepartmentID = user.DepartmentID.String()
	}
	if user.Role != nil {
		response.Role = user.Role.Name
	}
	if response.Permissions == nil {
		response.Permissions = []string{}
	}
	return response
}
