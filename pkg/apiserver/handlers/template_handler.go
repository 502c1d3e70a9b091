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

type TemplateHandler struct {
	templates *postgres.TemplateRepository
	logger    *zap.Logger
}

func NewTemplateHandler(templates *postgres.TemplateRepository, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger}
}

type templateRequest struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	OwnerDepartmentID string `json:"owner_department_id" binding:"required"`
	RowCheckEnabled   bool   `json:"row_check_enabled"`
}

type templateResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	OwnerDepartmentID string          `json:"owner_department_id"`
	RowCheckEnabled   bool            `json:"row_check_enabled"`
	Fields            []fieldResponse `json:"fields"`
}

type fieldRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Required bool   `json:"required"`
}

type fieldResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Order    int    `json:"order"`
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	ownerID, err := uuid.Parse(req.OwnerDepartmentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_department_id"})
		return
	}

	template := &model.Template{
		ID:                uuid.New(),
		Name:              req.Name,
		Description:       req.Description,
		OwnerDepartmentID: ownerID,
		RowCheckEnabled:   req.RowCheckEnabled,
	}
	if err := h.templates.Create(c.Request.Context(), template); err != nil {
		h.logger.Error("failed to create template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, mapTemplate(template))
}

func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list templates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list templates"})
		return
	}

	response := make([]templateResponse, 0, len(templates))
	for i := range templates {
		response = append(response, mapTemplate(&templates[i]))
	}
	c.JSON(http.StatusOK, response)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	template, err := h.templates.GetByID(c.Request.Context(), templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		h.logger.Error("failed to get template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get template"})
		return
	}
	c.JSON(http.StatusOK, mapTemplate(template))
}

func (h *TemplateHandler) Update(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	ownerID, err := uuid.Parse(req.OwnerDepartmentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_department_id"})
		return
	}

	template, err := h.templates.GetByID(c.Request.Context(), templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		h.logger.Error("failed to load template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update template"})
		return
	}

	template.Name = req.Name
	template.Description = req.Description
	template.OwnerDepartmentID = ownerID
	template.RowCheckEnabled = req.RowCheckEnabled
	if err := h.templates.Update(c.Request.Context(), template); err != nil {
		h.logger.Error("failed to update template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update template"})
		return
	}

	c.JSON(http.StatusOK, mapTemplate(template))
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	if err := h.templates.Delete(c.Request.Context(), templateID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		case errors.Is(err, postgres.ErrInUse):
			c.JSON(http.StatusConflict, gin.H{"error": "template is referenced by protocols"})
		default:
			h.logger.Error("failed to delete template", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete template"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *TemplateHandler) AddField(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	fieldType := model.FieldType(req.Type)
	if !fieldType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field type"})
		return
	}

	field := &model.TemplateField{
		ID:       uuid.New(),
		Name:     req.Name,
		Type:     fieldType,
		Required: req.Required,
	}
	if err := h.templates.AddField(c.Request.Context(), templateID, field); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		h.logger.Error("failed to add field", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add field"})
		return
	}

	c.JSON(http.StatusCreated, mapField(field))
}

func (h *TemplateHandler) UpdateField(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	fieldID, err := uuid.Parse(c.Param("fieldID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field id"})
		return
	}

	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	fieldType := model.FieldType(req.Type)
	if !fieldType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field type"})
		return
	}

	field := &model.TemplateField{
		ID:         fieldID,
		TemplateID: templateID,
		Name:       req.Name,
		Type:       fieldType,
		Required:   req.Required,
	}
	if err := h.templates.UpdateField(c.Request.Context(), field); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "field not found"})
			return
		}
		h.logger.Error("failed to update field", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update field"})
		return
	}

	c.JSON(http.StatusOK, mapField(field))
}

func (h *TemplateHandler) DeleteField(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	fieldID, err := uuid.Parse(c.Param("fieldID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field id"})
		return
	}

	if err := h.templates.DeleteField(c.Request.Context(), templateID, fieldID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "field not found"})
			return
		}
		h.logger.Error("failed to delete field", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete field"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type reorderRequest struct {
	FieldIDs []string `json:"field_ids" binding:"required"`
}

func (h *TemplateHandler) ReorderFields(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	orderedIDs := make([]uuid.UUID, 0, len(req.FieldIDs))
	for _, raw := range req.FieldIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field id in ordering"})
			return
		}
		orderedIDs = append(orderedIDs, id)
	}

	if err := h.templates.ReorderFields(c.Request.Context(), templateID, orderedIDs); err != nil {
		switch {
		case errors.Is(err, postgres.ErrBadPermutation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "ordering must list every field exactly once"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		default:
			h.logger.Error("failed to reorder fields", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reorder fields"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reordered"})
}

func mapTemplate(t *model.Template) templateResponse {
	response := templateResponse{
		ID:                t.ID.String(),
		Name:              t.Name,
		Description:       t.Description,
		OwnerDepartmentID: t.OwnerDepartmentID.String(),
		RowCheckEnabled:   t.RowCheckEnabled,
		Fields:            make([]fieldResponse, 0, len(t.Fields)),
	}
	for i := range t.Fields {
		response.Fields = append(response.Fields, mapField(&t.Fields[i]))
	}
	return response
}

func mapField(f *model.TemplateField) fieldResponse {
	return fieldResponse{
		ID:       f.ID.String(),
		Name:     f.Name,
		Type:     string(f.Type),
		Required: f.Required,
		Order:    f.Order,
	}
}
