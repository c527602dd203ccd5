package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
)

type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.tasks.Overview())
}

func (h *TaskHandler) GetLogs(c *gin.Context) {
	since, err := queryDate(c, "since")
	if err != nil {
		respondError(c, "invalid since", err)
		return
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		respondError(c, "invalid limit", err)
		return
	}
	filter := domain.TaskLogFilter{
		TaskName: strings.TrimSpace(c.Query("task")),
		Status:   domain.TaskStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Since:    since,
		Limit:    limit,
	}
	logs, err := h.tasks.Logs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "failed to fetch task logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *TaskHandler) GetPerformance(c *gin.Context) {
	days, err := queryInt(c, "days", 7)
	if err != nil {
		respondError(c, "invalid days", err)
		return
	}
	perf, err := h.tasks.Performance(c.Request.Context(), days)
	if err != nil {
		respondError(c, "failed to fetch task performance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "tasks": perf})
}

func (h *TaskHandler) RunTask(c *gin.Context) {
	name := c.Param("name")
	if err := h.tasks.Run(c.Request.Context(), name, actorOf(c)); err != nil {
		respondError(c, "failed to trigger task", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": name, "status": "triggered"})
}

func (h *TaskHandler) SuspendTask(c *gin.Context) {
	name := c.Param("name")
	if err := h.tasks.Suspend(name); err != nil {
		respondError(c, "failed to suspend task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": name, "suspended": true})
}

func (h *TaskHandler) ResumeTask(c *gin.Context) {
	name := c.Param("name")
	if err := h.tasks.Resume(name); err != nil {
		respondError(c, "failed to resume task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": name, "suspended": false})
}
