package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
)

type AlertHandler struct {
	query   *service.QueryService
	actions *service.ActionService
}

func NewAlertHandler(query *service.QueryService, actions *service.ActionService) *AlertHandler {
	return &AlertHandler{query: query, actions: actions}
}

func (h *AlertHandler) ListAlerts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, "invalid filter", err)
		return
	}
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

	af := domain.AlertFilter{AnalyticsFilter: filter, From: from, To: to}
	if raw := c.Query("alert_type"); raw != "" {
		switch t := domain.AlertType(raw); t {
		case domain.AlertHighRisk, domain.AlertCriticalRisk, domain.AlertReorderNeeded:
			af.AlertType = t
		default:
			respondError(c, "invalid filter", fmt.Errorf("%w: alert_type %q", errBadParam, raw))
			return
		}
	}

	alerts, err := h.query.Alerts(c.Request.Context(), af)
	if err != nil {
		respondError(c, "failed to fetch alerts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *AlertHandler) Acknowledge(c *gin.Context) {
	alert, err := h.actions.AcknowledgeAlert(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, "failed to acknowledge alert", err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
