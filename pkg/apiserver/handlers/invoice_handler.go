package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/invoice"
)

type InvoiceHandler struct {
	client *invoice.Client
	logger *zap.Logger
}

func NewInvoiceHandler(client *invoice.Client, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{client: client, logger: logger}
}

// Lookup streams the raw NF-e XML document for an access key.
func (h *InvoiceHandler) Lookup(c *gin.Context) {
	key := c.Param("key")
	body, ok := h.fetch(c, func() ([]byte, error) {
		return h.client.Lookup(c.Request.Context(), key)
	})
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key+".xml"))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

// Danfe streams the printable DANFE rendering for an access key.
func (h *InvoiceHandler) Danfe(c *gin.Context) {
	key := c.Param("key")
	body, ok := h.fetch(c, func() ([]byte, error) {
		return h.client.Danfe(c.Request.Context(), key)
	})
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key+".pdf"))
	c.Data(http.StatusOK, "application/pdf", body)
}

func (h *InvoiceHandler) fetch(c *gin.Context, load func() ([]byte, error)) ([]byte, bool) {
	if h.client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "invoice lookup not configured"})
		return nil, false
	}

	body, err := load()
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": "access key must be exactly 44 digits"})
		case errors.Is(err, invoice.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		case errors.Is(err, invoice.ErrUpstreamUnavailable):
			h.logger.Warn("invoice upstream unavailable", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "invoice service unavailable"})
		default:
			h.logger.Error("invoice lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invoice lookup failed"})
		}
		return nil, false
	}
	return body, true
}
