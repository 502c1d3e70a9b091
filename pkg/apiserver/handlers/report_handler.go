package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/apiserver/middleware"
	"github.com/prototrack/prototrack/pkg/lifecycle"
	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/report"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	reports *report.Service
	engine  *lifecycle.Engine
	logger  *zap.Logger
}

func NewReportHandler(reports *report.Service, engine *lifecycle.Engine, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, engine: engine, logger: logger}
}

func (h *ReportHandler) Kanban(c *gin.Context) {
	user := middleware.Principal(c)

	filter, ok := parseProtocolFilter(c)
	if !ok {
		return
	}

	scope := h.engine.Scope(c.Request.Context(), user)
	board, err := h.reports.Kanban(c.Request.Context(), scope, filter)
	if err != nil {
		h.logger.Error("failed to build kanban board", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build board"})
		return
	}

	c.JSON(http.StatusOK, board)
}

func (h *ReportHandler) Summary(c *gin.Context) {
	user := middleware.Principal(c)

	scope := h.engine.Scope(c.Request.Context(), user)
	summary, err := h.reports.Summarize(c.Request.Context(), user, scope, time.Now())
	if err != nil {
		h.logger.Error("failed to build summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Aggregates serves one of the three count breakdowns by path suffix.
func (h *ReportHandler) Aggregates(c *gin.Context) {
	ctx := c.Request.Context()
	switch c.Param("dimension") {
	case "status":
		counts, err := h.reports.AggregateByStatus(ctx)
		if err != nil {
			h.logger.Error("failed to aggregate by status", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate"})
			return
		}
		c.JSON(http.StatusOK, counts)
	case "department":
		counts, err := h.reports.AggregateByDepartment(ctx)
		if err != nil {
			h.logger.Error("failed to aggregate by department", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate"})
			return
		}
		c.JSON(http.StatusOK, counts)
	case "month":
		counts, err := h.reports.AggregateByMonth(ctx, time.Now().AddDate(-1, 0, 0))
		if err != nil {
			h.logger.Error("failed to aggregate by month", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate"})
			return
		}
		c.JSON(http.StatusOK, counts)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown aggregate dimension"})
	}
}

// Audit serves the cross-protocol audit trail, newest first.
func (h *ReportHandler) Audit(c *gin.Context) {
	filter := postgres.AuditFilter{
		Number: strings.TrimSpace(c.Query("number")),
		Actor:  strings.TrimSpace(c.Query("actor")),
	}
	if raw := strings.TrimSpace(c.Query("date_from")); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_from, want YYYY-MM-DD"})
			return
		}
		filter.DateFrom = &from
	}
	if raw := strings.TrimSpace(c.Query("date_to")); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_to, want YYYY-MM-DD"})
			return
		}
		filter.DateTo = &to
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	entries, total, err := h.reports.AuditTrail(c.Request.Context(), filter, limit, offset)
	if err != nil {
		h.logger.Error("failed to list audit entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}

	items := make([]gin.H, 0, len(entries))
	for i := range entries {
		items = append(items, mapAuditEntry(&entries[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": items,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func mapAuditEntry(entry *model.AuditEntry) gin.H {
	item := gin.H{
		"id":          entry.ID.String(),
		"text":        entry.Text,
		"occurred_at": entry.OccurredAt.Format(timeRFC3339Nano),
	}
	if entry.Protocol != nil {
		item["protocol_number"] = entry.Protocol.Number
	}
	if entry.Actor != nil {
		item["actor"] = entry.Actor.Name
	}
	return item
}

func (h *ReportHandler) Export(c *gin.Context) {
	user := middleware.Principal(c)

	filter, ok := parseProtocolFilter(c)
	if !ok {
		return
	}

	// Buffer the workbook so a late failure becomes a clean JSON error
	// instead of a truncated download.
	var buf bytes.Buffer
	scope := h.engine.Scope(c.Request.Context(), user)
	if err := h.reports.Export(c.Request.Context(), &buf, scope, filter); err != nil {
		h.logger.Error("failed to export protocols", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export protocols"})
		return
	}

	filename := fmt.Sprintf("protocols-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
