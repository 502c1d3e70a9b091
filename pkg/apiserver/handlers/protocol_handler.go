package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/apiserver/middleware"
	"github.com/prototrack/prototrack/pkg/eventbus"
	"github.com/prototrack/prototrack/pkg/lifecycle"
	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/report"
	"github.com/prototrack/prototrack/pkg/storage"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

// Form keys with fixed meaning on protocol creation; everything else
// in the multipart form is treated as template row data.
var reservedFormKeys = map[string]bool{
	"subject":                   true,
	"description":               true,
	"destination_department_id": true,
	"destination_user_id":       true,
	"template_id":               true,
	"due_date":                  true,
	"external":                  true,
	"supplier_code":             true,
	"supplier_name":             true,
}

const maxUploadBytes = 32 << 20

type ProtocolHandler struct {
	engine *lifecycle.Engine
	db     *postgres.Store
	files  *storage.Store
	bus    *eventbus.Bus
	logger *zap.Logger
}

func NewProtocolHandler(engine *lifecycle.Engine, db *postgres.Store, files *storage.Store, bus *eventbus.Bus, logger *zap.Logger) *ProtocolHandler {
	return &ProtocolHandler{engine: engine, db: db, files: files, bus: bus, logger: logger}
}

type protocolResponse struct {
	ID                      string  `json:"id"`
	Number                  string  `json:"number"`
	Subject                 string  `json:"subject"`
	Description             string  `json:"description,omitempty"`
	Status                  string  `json:"status"`
	DueDate                 *string `json:"due_date,omitempty"`
	External                bool    `json:"external"`
	SupplierCode            string  `json:"supplier_code,omitempty"`
	SupplierName            string  `json:"supplier_name,omitempty"`
	CreatedByID             string  `json:"created_by_id"`
	CreatedByName           string  `json:"created_by_name,omitempty"`
	DestinationDepartmentID string  `json:"destination_department_id"`
	DestinationDepartment   string  `json:"destination_department,omitempty"`
	DestinationUserID       *string `json:"destination_user_id,omitempty"`
	TemplateID              *string `json:"template_id,omitempty"`
	CreatedAt               string  `json:"created_at"`
}

type protocolDetailResponse struct {
	protocolResponse
	Rows        model.RowSet         `json:"rows"`
	History     []auditResponse      `json:"history"`
	Attachments []attachmentResponse `json:"attachments"`
}

type auditResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name,omitempty"`
	Text       string `json:"text"`
	OccurredAt string `json:"occurred_at"`
}

type attachmentResponse struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
}

func (h *ProtocolHandler) Create(c *gin.Context) {
	user := middleware.Principal(c)

	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form", "details": err.Error()})
		return
	}
	form := c.Request.MultipartForm

	input := lifecycle.CreateInput{
		Subject:      formValue(form.Value, "subject"),
		Description:  formValue(form.Value, "description"),
		External:     formValue(form.Value, "external") == "true",
		SupplierCode: formValue(form.Value, "supplier_code"),
		SupplierName: formValue(form.Value, "supplier_name"),
	}

	departmentID, err := uuid.Parse(formValue(form.Value, "destination_department_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid destination_department_id"})
		return
	}
	input.DestinationDepartmentID = departmentID

	if raw := formValue(form.Value, "destination_user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid destination_user_id"})
			return
		}
		input.DestinationUserID = &id
	}
	if raw := formValue(form.Value, "template_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template_id"})
			return
		}
		input.TemplateID = &id
	}
	if raw := formValue(form.Value, "due_date"); raw != "" {
		due, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date, want YYYY-MM-DD"})
			return
		}
		input.DueDate = &due
	}

	input.RowForm = make(map[string]string)
	for key, values := range form.Value {
		if reservedFormKeys[key] || len(values) == 0 {
			continue
		}
		input.RowForm[key] = values[0]
	}

	for _, header := range form.File["attachments"] {
		content, err := readUpload(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read upload %s", header.Filename)})
			return
		}
		input.Attachments = append(input.Attachments, lifecycle.AttachmentUpload{
			FileName: filepath.Base(header.Filename),
			Content:  content,
		})
	}

	protocol, err := h.engine.Create(c.Request.Context(), user, input)
	if err != nil {
		if !lifecycle.IsValidation(err) {
			h.logger.Error("failed to create protocol", zap.Error(err))
		}
		respondLifecycleError(c, err, "failed to create protocol")
		return
	}

	c.JSON(http.StatusCreated, mapProtocol(protocol))
}

func (h *ProtocolHandler) List(c *gin.Context) {
	user := middleware.Principal(c)

	filter, ok := parseProtocolFilter(c)
	if !ok {
		return
	}
	limit := parseLimit(c.Query("limit"), 20)
	offset := parseOffset(c.Query("offset"))

	repo := postgres.NewProtocolRepository(h.db.DB())
	scope := h.engine.Scope(c.Request.Context(), user)
	protocols, total, err := repo.List(c.Request.Context(), scope, filter, limit, offset)
	if err != nil {
		h.logger.Error("failed to list protocols", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list protocols"})
		return
	}

	response := make([]protocolResponse, 0, len(protocols))
	for i := range protocols {
		response = append(response, mapProtocol(&protocols[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"protocols": response,
		"total":     total,
	})
}

func (h *ProtocolHandler) Get(c *gin.Context) {
	user := middleware.Principal(c)

	protocolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
		return
	}

	protocol, err := h.engine.Get(c.Request.Context(), user, protocolID)
	if err != nil {
		if err != lifecycle.ErrNotFound && err != lifecycle.ErrForbidden {
			h.logger.Error("failed to get protocol", zap.Error(err))
		}
		respondLifecycleError(c, err, "failed to get protocol")
		return
	}

	c.JSON(http.StatusOK, mapProtocolDetail(protocol))
}

type transitionRequest struct {
	Status   string `json:"status" binding:"required"`
	Despacho string `json:"despacho"`
	// Via marks board-driven transitions; "kanban" allows an empty
	// despacho and gets an auto-generated audit entry.
	Via string `json:"via"`
}

func (h *ProtocolHandler) Transition(c *gin.Context) {
	user := middleware.Principal(c)

	protocolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	protocol, err := h.engine.Transition(c.Request.Context(), user, protocolID, model.ProtocolStatus(req.Status), req.Despacho, req.Via)
	if err != nil {
		if !lifecycle.IsValidation(err) && err != lifecycle.ErrNotFound && err != lifecycle.ErrForbidden {
			h.logger.Error("failed to transition protocol", zap.Error(err))
		}
		respondLifecycleError(c, err, "failed to transition protocol")
		return
	}

	c.JSON(http.StatusOK, mapProtocol(protocol))
}

func (h *ProtocolHandler) ToggleRow(c *gin.Context) {
	user := middleware.Principal(c)

	protocolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
		return
	}
	rowIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil || rowIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row index"})
		return
	}

	checked, err := h.engine.ToggleRowChecked(c.Request.Context(), user, protocolID, rowIndex)
	if err != nil {
		if err != lifecycle.ErrNotFound && err != lifecycle.ErrForbidden {
			h.logger.Error("failed to toggle row", zap.Error(err))
		}
		respondLifecycleError(c, err, "failed to toggle row")
		return
	}

	c.JSON(http.StatusOK, gin.H{"index": rowIndex, "checked": checked})
}

// DownloadPDF renders the protocol as a printable document. The same
// access predicate as Get applies.
func (h *ProtocolHandler) DownloadPDF(c *gin.Context) {
	user := middleware.Principal(c)

	protocolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
		return
	}

	protocol, err := h.engine.Get(c.Request.Context(), user, protocolID)
	if err != nil {
		respondLifecycleError(c, err, "failed to load protocol")
		return
	}

	var buf bytes.Buffer
	if err := report.WritePDF(&buf, protocol); err != nil {
		h.logger.Error("failed to render protocol pdf", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render pdf"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", protocol.Number+".pdf"))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *ProtocolHandler) DownloadAttachment(c *gin.Context) {
	user := middleware.Principal(c)

	protocolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
		return
	}
	attachmentID, err := uuid.Parse(c.Param("attachmentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
		return
	}

	// Access check rides on loading the protocol.
	if _, err := h.engine.Get(c.Request.Context(), user, protocolID); err != nil {
		respondLifecycleError(c, err, "failed to load protocol")
		return
	}

	var attachment model.Attachment
	if err := h.db.DB().WithContext(c.Request.Context()).
		First(&attachment, "id = ? AND protocol_id = ?", attachmentID, protocolID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
			return
		}
		h.logger.Error("failed to load attachment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load attachment"})
		return
	}

	content, err := h.files.Read(attachment.StoredKey)
	if err != nil {
		h.logger.Error("failed to read attachment file", zap.Error(err), zap.String("key", attachment.StoredKey))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read attachment"})
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(attachment.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	c.Data(http.StatusOK, contentType, content)
}

// Events streams one protocol's events over SSE until the client hangs
// up. The access predicate applies before the stream opens.
func (h *ProtocolHandler) Events(c *gin.Context) {
	user := middleware.Principal(c)

	protocolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
		return
	}
	if h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}

	if _, err := h.engine.Get(c.Request.Context(), user, protocolID); err != nil {
		respondLifecycleError(c, err, "failed to load protocol")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	wanted := protocolID.String()
	events := h.bus.Subscribe(c.Request.Context(), eventbus.ChannelProtocol)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			var payload eventbus.ProtocolEvent
			if err := json.Unmarshal(event.Data, &payload); err != nil || payload.ProtocolID != wanted {
				continue
			}
			c.SSEvent(event.Type, payload)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func parseProtocolFilter(c *gin.Context) (postgres.ProtocolFilter, bool) {
	filter := postgres.ProtocolFilter{
		Term: strings.TrimSpace(c.Query("term")),
	}

	if statusValue := strings.TrimSpace(c.Query("status")); statusValue != "" {
		status := model.ProtocolStatus(statusValue)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return filter, false
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(c.Query("template_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template_id"})
			return filter, false
		}
		filter.TemplateID = &id
	}
	if raw := strings.TrimSpace(c.Query("date_from")); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_from, want YYYY-MM-DD"})
			return filter, false
		}
		filter.DateFrom = &from
	}
	if raw := strings.TrimSpace(c.Query("date_to")); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_to, want YYYY-MM-DD"})
			return filter, false
		}
		filter.DateTo = &to
	}

	return filter, true
}

func formValue(values map[string][]string, key string) string {
	if list := values[key]; len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func mapProtocol(p *model.Protocol) protocolResponse {
	response := protocolResponse{
		ID:                      p.ID.String(),
		Number:                  p.Number,
		Subject:                 p.Subject,
		Description:             p.Description,
		Status:                  string(p.Status),
		External:                p.External,
		SupplierCode:            p.SupplierCode,
		SupplierName:            p.SupplierName,
		CreatedByID:             p.CreatedByID.String(),
		DestinationDepartmentID: p.DestinationDepartmentID.String(),
		CreatedAt:               p.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
	if p.DueDate != nil {
		formatted := p.DueDate.Format("2006-01-02")
		response.DueDate = &formatted
	}
	if p.CreatedBy != nil {
		response.CreatedByName = p.CreatedBy.Name
	}
	if p.DestinationDepartment != nil {
		response.DestinationDepartment = p.DestinationDepartment.Name
	}
	if p.DestinationUserID != nil {
		id := p.DestinationUserID.String()
		response.DestinationUserID = &id
	}
	if p.TemplateID != nil {
		id := p.TemplateID.String()
		response.TemplateID = &id
	}
	return response
}

func mapProtocolDetail(p *model.Protocol) protocolDetailResponse {
	detail := protocolDetailResponse{
		protocolResponse: mapProtocol(p),
		Rows:             p.Rows,
		History:          make([]auditResponse, 0, len(p.History)),
		Attachments:      make([]attachmentResponse, 0, len(p.Attachments)),
	}
	if detail.Rows == nil {
		detail.Rows = model.RowSet{}
	}
	for _, entry := range p.History {
		item := auditResponse{
			ID:         entry.ID.String(),
			ActorID:    entry.ActorID.String(),
			Text:       entry.Text,
			OccurredAt: entry.OccurredAt.UTC().Format(timeRFC3339Nano),
		}
		if entry.Actor != nil {
			item.ActorName = entry.Actor.Name
		}
		detail.History = append(detail.History, item)
	}
	for _, attachment := range p.Attachments {
		detail.Attachments = append(detail.Attachments, attachmentResponse{
			ID:       attachment.ID.String(),
			FileName: attachment.FileName,
		})
	}
	return detail
}
