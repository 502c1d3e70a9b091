package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

type DepartmentHandler struct {
	departments *postgres.DepartmentRepository
	logger      *zap.Logger
}

func NewDepartmentHandler(departments *postgres.DepartmentRepository, logger *zap.Logger) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, logger: logger}
}

type departmentRequest struct {
	Name string `json:"name" binding:"required"`
}

type departmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *DepartmentHandler) Create(c *gin.Context) {
	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	department := &model.Department{ID: uuid.New(), Name: req.Name}
	if err := h.departments.Create(c.Request.Context(), department); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "department name already exists"})
			return
		}
		h.logger.Error("failed to create department", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create department"})
		return
	}

	c.JSON(http.StatusCreated, departmentResponse{ID: department.ID.String(), Name: department.Name})
}

func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.departments.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list departments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list departments"})
		return
	}

	response := make([]departmentResponse, 0, len(departments))
	for _, department := range departments {
		response = append(response, departmentResponse{ID: department.ID.String(), Name: department.Name})
	}
	c.JSON(http.StatusOK, response)
}

func (h *DepartmentHandler) Get(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department id"})
		return
	}

	department, err := h.departments.GetByID(c.Request.Context(), departmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "department not found"})
			return
		}
		h.logger.Error("failed to get department", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get department"})
		return
	}
	c.JSON(http.StatusOK, departmentResponse{ID: department.ID.String(), Name: department.Name})
}

func (h *DepartmentHandler) Update(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department id"})
		return
	}

	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	department := &model.Department{ID: departmentID, Name: req.Name}
	if err := h.departments.Update(c.Request.Context(), department); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "department not found"})
		case errors.Is(err, gorm.ErrDuplicatedKey):
			c.JSON(http.StatusConflict, gin.H{"error": "department name already exists"})
		default:
			h.logger.Error("failed to update department", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update department"})
		}
		return
	}

	c.JSON(http.StatusOK, departmentResponse{ID: departmentID.String(), Name: req.Name})
}

func (h *DepartmentHandler) Delete(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department id"})
		return
	}

	if err := h.departments.Delete(c.Request.Context(), departmentID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "department not found"})
		case errors.Is(err, postgres.ErrInUse):
			c.JSON(http.StatusConflict, gin.H{"error": "department has employees or protocols"})
		default:
			h.logger.Error("failed to delete department", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete department"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
