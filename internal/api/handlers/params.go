package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/pipeline"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
)

var errBadParam = errors.New("invalid query parameter")

// queryList supports both repeated params and comma-separated values:
//
//	?item=A&item=B
//	?item=A,B
func queryList(c *gin.Context, param string) []string {
	var out []string
	for _, v := range c.QueryArray(param) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryInt(c *gin.Context, param string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(param))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadParam, param)
	}
	return n, nil
}

func queryDate(c *gin.Context, param string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(param))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadParam, param)
	}
	return t, nil
}

func queryBool(c *gin.Context, param string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.Query(param)))
	return v
}

// parseFilter reads the shared analytics filter. Unknown enum labels are
// rejected rather than silently matching nothing.
func parseFilter(c *gin.Context) (domain.AnalyticsFilter, error) {
	filter := domain.AnalyticsFilter{
		Organizations:  queryList(c, "organization"),
		Locations:      queryList(c, "location"),
		Items:          queryList(c, "item"),
		ExcludeOrdered: queryBool(c, "exclude_ordered"),
	}

	if raw := c.Query("risk_status"); raw != "" {
		v, ok := domain.ParseRiskStatus(raw)
		if !ok {
			return filter, fmt.Errorf("%w: risk_status %q", errBadParam, raw)
		}
		filter.RiskStatus = v
	}
	if raw := c.Query("urgency_level"); raw != "" {
		v, ok := domain.ParseUrgencyLevel(raw)
		if !ok {
			return filter, fmt.Errorf("%w: urgency_level %q", errBadParam, raw)
		}
		filter.UrgencyLevel = v
	}
	if raw := c.Query("trend_direction"); raw != "" {
		v, ok := domain.ParseTrendDirection(raw)
		if !ok {
			return filter, fmt.Errorf("%w: trend_direction %q", errBadParam, raw)
		}
		filter.TrendDirection = v
	}
	if raw := c.Query("demand_pattern"); raw != "" {
		v, ok := domain.ParseDemandPattern(raw)
		if !ok {
			return filter, fmt.Errorf("%w: demand_pattern %q", errBadParam, raw)
		}
		filter.DemandPattern = v
	}

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

func groupKey(c *gin.Context) (domain.GroupKey, error) {
	key := domain.GroupKey{
		Organization: strings.TrimSpace(c.Query("organization")),
		Location:     strings.TrimSpace(c.Query("location")),
		Item:         strings.TrimSpace(c.Query("item")),
	}
	if key.Organization == "" || key.Location == "" || key.Item == "" {
		return key, fmt.Errorf("%w: organization, location and item are required", errBadParam)
	}
	return key, nil
}

func actorOf(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-Actor"))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadParam),
		errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidBatch):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, pipeline.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrTaskRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrImportDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error", "details"}; server-side failures are logged.
func respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}
