package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/authz"
	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

type UserHandler struct {
	users  *postgres.UserRepository
	roles  *postgres.RoleRepository
	perms  *authz.Service
	logger *zap.Logger
}

func NewUserHandler(users *postgres.UserRepository, roles *postgres.RoleRepository, perms *authz.Service, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, roles: roles, perms: perms, logger: logger}
}

type userCreateRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	DepartmentID string `json:"department_id" binding:"required"`
	RoleID       string `json:"role_id"`
}

type userUpdateRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password"`
	DepartmentID string `json:"department_id" binding:"required"`
	RoleID       string `json:"role_id"`
}

type userListItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DepartmentID string `json:"department_id"`
	RoleID       string `json:"role_id,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (h *UserHandler) Create(c *gin.Context) {
	var req userCreateRequest
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
	if req.RoleID != "" {
		roleID, err := uuid.Parse(req.RoleID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role_id"})
			return
		}
		user.RoleID = &roleID
	}
	if err := user.SetPassword(req.Password); err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, mapUserItem(user))
}

func (h *UserHandler) List(c *gin.Context) {
	var (
		users []model.User
		err   error
	)
	if raw := c.Query("department_id"); raw != "" {
		departmentID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department_id"})
			return
		}
		users, err = h.users.ListByDepartment(c.Request.Context(), departmentID)
	} else {
		users, err = h.users.List(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	response := make([]userListItem, 0, len(users))
	for i := range users {
		response = append(response, mapUserItem(&users[i]))
	}
	c.JSON(http.StatusOK, response)
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}
	c.JSON(http.StatusOK, mapUserItem(user))
}

func (h *UserHandler) Update(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	departmentID, err := uuid.Parse(req.DepartmentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department_id"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("failed to load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
		return
	}

	user.Name = req.Name
	user.Email = req.Email
	user.DepartmentID = &departmentID
	user.RoleID = nil
	if req.RoleID != "" {
		roleID, err := uuid.Parse(req.RoleID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role_id"})
			return
		}
		user.RoleID = &roleID
	}
	if req.Password != "" {
		if err := user.SetPassword(req.Password); err != nil {
			h.logger.Error("failed to hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
			return
		}
	}

	if err := h.users.Update(c.Request.Context(), user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error("failed to update user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
		return
	}

	// Role may have changed; the cached capability set is stale.
	h.perms.InvalidateUser(c.Request.Context(), user.ID)

	c.JSON(http.StatusOK, mapUserItem(user))
}

func (h *UserHandler) Delete(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.users.Delete(c.Request.Context(), userID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, postgres.ErrInUse):
			c.JSON(http.StatusConflict, gin.H{"error": "user has protocol history"})
		default:
			h.logger.Error("failed to delete user", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		}
		return
	}

	h.perms.InvalidateUser(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type roleRequest struct {
	Name          string   `json:"name" binding:"required"`
	PermissionIDs []string `json:"permission_ids"`
}

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (h *UserHandler) CreateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	permissionIDs, ok := parsePermissionIDs(c, req.PermissionIDs)
	if !ok {
		return
	}

	role := &model.Role{ID: uuid.New(), Name: req.Name}
	if err := h.roles.Create(c.Request.Context(), role, permissionIDs); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "role name already exists"})
			return
		}
		h.logger.Error("failed to create role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create role"})
		return
	}

	c.JSON(http.StatusCreated, mapRole(role))
}

func (h *UserHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list roles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list roles"})
		return
	}

	response := make([]roleResponse, 0, len(roles))
	for i := range roles {
		response = append(response, mapRole(&roles[i]))
	}
	c.JSON(http.StatusOK, response)
}

func (h *UserHandler) UpdateRole(c *gin.Context) {
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role id"})
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	permissionIDs, ok := parsePermissionIDs(c, req.PermissionIDs)
	if !ok {
		return
	}

	role, err := h.roles.GetByID(c.Request.Context(), roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
			return
		}
		h.logger.Error("failed to load role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update role"})
		return
	}

	role.Name = req.Name
	if err := h.roles.Update(c.Request.Context(), role, permissionIDs); err != nil {
		h.logger.Error("failed to update role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update role"})
		return
	}

	// Everyone holding the role needs a fresh capability set.
	h.perms.InvalidateRole(c.Request.Context(), roleID)

	updated, err := h.roles.GetByID(c.Request.Context(), roleID)
	if err != nil {
		h.logger.Error("failed to reload role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update role"})
		return
	}
	c.JSON(http.StatusOK, mapRole(updated))
}

func (h *UserHandler) DeleteRole(c *gin.Context) {
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role id"})
		return
	}

	if err := h.roles.Delete(c.Request.Context(), roleID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		case errors.Is(err, postgres.ErrInUse):
			c.JSON(http.StatusConflict, gin.H{"error": "role is still assigned to users"})
		default:
			h.logger.Error("failed to delete role", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete role"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *UserHandler) ListPermissions(c *gin.Context) {
	permissions, err := h.roles.ListPermissions(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list permissions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list permissions"})
		return
	}

	response := make([]gin.H, 0, len(permissions))
	for _, permission := range permissions {
		response = append(response, gin.H{"id": permission.ID.String(), "name": permission.Name})
	}
	c.JSON(http.StatusOK, response)
}

func parsePermissionIDs(c *gin.Context, raw []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permission id"})
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func mapUserItem(user *model.User) userListItem {
	item := userListItem{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
	}
	if user.DepartmentID != nil {
		item.DepartmentID = user.DepartmentID.String()
	}
	if user.RoleID != nil {
		item.RoleID = user.RoleID.String()
	}
	if user.Role != nil {
		item.Role = user.Role.Name
	}
	return item
}

func mapRole(role *model.Role) roleResponse {
	response := roleResponse{
		ID:          role.ID.String(),
		Name:        role.Name,
		Permissions: make([]string, 0, len(role.Permissions)),
	}
	for _, permission := range role.Permissions {
		response.Permissions = append(response.Permissions, permission.Name)
	}
	return response
}
