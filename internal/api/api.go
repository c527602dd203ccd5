package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/api/handlers"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/api/middleware"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
)

type Services struct {
	Query       *service.QueryService
	Actions     *service.ActionService
	Tasks       *service.TaskService
	Ingest      *service.IngestService
	ExportLimit int
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Actor", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if services == nil {
		return router
	}

	if services.Query != nil {
		analyticsHandler := handlers.NewAnalyticsHandler(services.Query, services.Actions, services.ExportLimit)
		analyticsGroup := apiGroup.Group("/analytics")
		{
			analyticsGroup.GET("/stock", analyticsHandler.GetStockAnalytics)
			analyticsGroup.GET("/reorder", analyticsHandler.GetReorder)
			analyticsGroup.GET("/usage", analyticsHandler.GetUsageStats)
			analyticsGroup.GET("/summary", analyticsHandler.GetSummary)
			analyticsGroup.GET("/history", analyticsHandler.GetHistory)
			analyticsGroup.GET("/actions/top", analyticsHandler.GetTopActions)
			analyticsGroup.GET("/whatif", analyticsHandler.GetWhatIf)
			analyticsGroup.GET("/criticality", analyticsHandler.GetCriticality)
		}
		apiGroup.GET("/export/reorder.xlsx", analyticsHandler.ExportReorder("xlsx"))
		apiGroup.GET("/export/reorder.csv", analyticsHandler.ExportReorder("csv"))

		if services.Actions != nil {
			alertHandler := handlers.NewAlertHandler(services.Query, services.Actions)
			alertGroup := apiGroup.Group("/alerts")
			{
				alertGroup.GET("", alertHandler.ListAlerts)
				alertGroup.POST("/:id/ack", alertHandler.Acknowledge)
			}
		}
	}

	if services.Actions != nil {
		actionHandler := handlers.NewActionHandler(services.Actions, services.Ingest)
		apiGroup.POST("/orders", actionHandler.PlaceOrder)
		apiGroup.GET("/orders", actionHandler.ListOrders)
		apiGroup.GET("/actions", actionHandler.ListActions)

		if services.Ingest != nil {
			ledgerGroup := apiGroup.Group("/ledger")
			{
				ledgerGroup.POST("", actionHandler.IngestLedger)
				ledgerGroup.POST("/upload", actionHandler.UploadLedger)
				ledgerGroup.POST("/import", actionHandler.ImportLedger)
			}
		}
	}

	if services.Tasks != nil {
		taskHandler := handlers.NewTaskHandler(services.Tasks)
		taskGroup := apiGroup.Group("/tasks")
		{
			taskGroup.GET("", taskHandler.ListTasks)
			taskGroup.GET("/logs", taskHandler.GetLogs)
			taskGroup.GET("/performance", taskHandler.GetPerformance)
			taskGroup.POST("/:name/run", taskHandler.RunTask)
			taskGroup.POST("/:name/suspend", taskHandler.SuspendTask)
			taskGroup.POST("/:name/resume", taskHandler.ResumeTask)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
