package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/supplier"
)

type SupplierHandler struct {
	directory *supplier.Directory
	logger    *zap.Logger
}

func NewSupplierHandler(directory *supplier.Directory, logger *zap.Logger) *SupplierHandler {
	return &SupplierHandler{directory: directory, logger: logger}
}

func (h *SupplierHandler) Search(c *gin.Context) {
	if h.directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "supplier directory not configured"})
		return
	}

	suppliers, err := h.directory.Search(c.Request.Context(), c.Query("term"))
	if err != nil {
		if errors.Is(err, supplier.ErrTermTooShort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "search term must have at least 2 characters"})
			return
		}
		h.logger.Error("supplier search failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "supplier directory unavailable"})
		return
	}

	if suppliers == nil {
		suppliers = []supplier.Supplier{}
	}
	c.JSON(http.StatusOK, suppliers)
}
