package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/export"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
)

type AnalyticsHandler struct {
	query       *service.QueryService
	actions     *service.ActionService
	exportLimit int
}

func NewAnalyticsHandler(query *service.QueryService, actions *service.ActionService, exportLimit int) *AnalyticsHandler {
	if exportLimit <= 0 {
		exportLimit = 5000
	}
	return &AnalyticsHandler{query: query, actions: actions, exportLimit: exportLimit}
}

func (h *AnalyticsHandler) GetStockAnalytics(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, "invalid filter", err)
		return
	}
	page, err := h.query.StockAnalytics(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "failed to fetch stock analytics", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AnalyticsHandler) GetReorder(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, "invalid filter", err)
		return
	}
	page, err := h.query.Reorder(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "failed to fetch reorder recommendations", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AnalyticsHandler) GetUsageStats(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, "invalid filter", err)
		return
	}
	page, err := h.query.UsageStats(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "failed to fetch usage stats", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	from, err := queryDate(c, "from")
	if err != nil {
		respondError(c, "invalid date range", err)
		return
	}
	to, err := queryDate(c, "to")
	if err != nil {
		respondError(c, "invalid date range", err)
		return
	}
	rows, err := h.query.Summary(c.Request.Context(), from, to, queryList(c, "organization"))
	if err != nil {
		respondError(c, "failed to fetch summary", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": rows})
}

func (h *AnalyticsHandler) GetHistory(c *gin.Context) {
	key, err := groupKey(c)
	if err != nil {
		respondError(c, "invalid group", err)
		return
	}
	days, err := queryInt(c, "days", 7)
	if err != nil {
		respondError(c, "invalid days", err)
		return
	}
	history, err := h.query.History(c.Request.Context(), key, days)
	if err != nil {
		respondError(c, "failed to fetch history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *AnalyticsHandler) GetTopActions(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, "invalid filter", err)
		return
	}
	n, err := queryInt(c, "n", 5)
	if err != nil {
		respondError(c, "invalid n", err)
		return
	}
	rows, err := h.query.TopActions(c.Request.Context(), filter, n)
	if err != nil {
		respondError(c, "failed to fetch top actions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": rows})
}

func (h *AnalyticsHandler) GetWhatIf(c *gin.Context) {
	key, err := groupKey(c)
	if err != nil {
		respondError(c, "invalid group", err)
		return
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(c.Query("qty")), 10, 64)
	if err != nil {
		respondError(c, "invalid quantity", fmt.Errorf("%w: qty must be an integer", errBadParam))
		return
	}
	result, err := h.query.WhatIf(key, qty)
	if err != nil {
		respondError(c, "failed to project order", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AnalyticsHandler) GetCriticality(c *gin.Context) {
	c.JSON(http.StatusOK, h.query.Criticality())
}

// ExportReorder streams the filtered recommendations as xlsx or csv.
func (h *AnalyticsHandler) ExportReorder(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseFilter(c)
		if err != nil {
			respondError(c, "invalid filter", err)
			return
		}
		if filter.Limit == 0 || filter.Limit > h.exportLimit {
			filter.Limit = h.exportLimit
		}

		page, err := h.query.Reorder(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "failed to fetch reorder recommendations", err)
			return
		}

		var (
			buf         bytes.Buffer
			contentType = export.ContentTypeCSV
		)
		if format == "xlsx" {
			contentType = export.ContentTypeXLSX
			err = export.WriteXLSX(&buf, page.Rows)
		} else {
			err = export.WriteCSV(&buf, page.Rows)
		}
		if err != nil {
			respondError(c, "failed to render export", err)
			return
		}

		if h.actions != nil {
			h.actions.RecordExport(c.Request.Context(), actorOf(c), format, len(page.Rows))
		}
		filename := fmt.Sprintf("reorder-%s.%s", page.RefreshedAt.Format(domain.DateLayout), format)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, contentType, buf.Bytes())
	}
}
