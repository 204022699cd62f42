package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type createTasksRequest struct {
	Configuration domain.TaskConfiguration `json:"configuration"`
	Payloads      []domain.PayloadBody     `json:"payloads"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreateAlgorithm(c *gin.Context) {
	var algorithm domain.MonitoringAlgorithm
	if err := c.ShouldBindJSON(&algorithm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	switch algorithm.Type {
	case domain.AlgorithmPeriodic:
		if algorithm.Timeout <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "periodic algorithm needs a positive timeout"})
			return
		}
	case domain.AlgorithmSingle:
		// empty timeouts means a single open-ended interval: run once, forever
		for _, timeout := range algorithm.Timeouts {
			if timeout <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "single algorithm timeouts must be positive"})
				return
			}
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown algorithm type"})
		return
	}

	created, err := s.store.CreateAlgorithm(c.Request.Context(), algorithm)
	if err != nil {
		s.fail(c, "create algorithm", err)
		return
	}
	s.logger.Info("created %s algorithm %d", created.Type, created.ID)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetAlgorithm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	algorithm, err := s.store.GetAlgorithm(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "get algorithm", err)
		return
	}
	c.JSON(http.StatusOK, algorithm)
}

func (s *Server) handleCreateTasks(c *gin.Context) {
	var req createTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Configuration.GroupName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_name is required"})
		return
	}
	if req.Configuration.MonitoringAlgorithmID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "monitoring_algorithm_id is required"})
		return
	}
	if len(req.Payloads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one payload is required"})
		return
	}
	if _, err := s.store.GetAlgorithm(c.Request.Context(), req.Configuration.MonitoringAlgorithmID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "monitoring algorithm does not exist"})
			return
		}
		s.fail(c, "check algorithm", err)
		return
	}

	tasks, err := s.store.CreateTasks(c.Request.Context(), req.Payloads, req.Configuration, s.now())
	if err != nil {
		s.fail(c, "create tasks", err)
		return
	}
	s.logger.Info("created %d tasks in group %s", len(tasks), req.Configuration.GroupName)
	c.JSON(http.StatusCreated, gin.H{"tasks": tasks})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "get task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleGetTaskRun(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	run, err := s.store.GetTaskRun(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "get task run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleListTaskRuns(c *gin.Context) {
	var filters []store.Filter
	if status := c.Query("status"); status != "" {
		if !domain.TaskRunStatus(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + status})
			return
		}
		filters = append(filters, store.EQ("status", status))
	}
	if rawTaskID := c.Query("task_id"); rawTaskID != "" {
		taskID, err := strconv.ParseInt(rawTaskID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task_id must be an integer"})
			return
		}
		filters = append(filters, store.EQ("task_id", taskID))
	}

	limit, ok := queryInt(c, "limit", defaultListLimit)
	if !ok {
		return
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	orders := []store.Order{{Field: "status_updated_at", Desc: true}, {Field: "id", Desc: true}}
	runs, err := s.store.ListTaskRuns(c.Request.Context(), filters, orders, limit, offset)
	if err != nil {
		s.fail(c, "list task runs", err)
		return
	}
	if runs == nil {
		runs = []domain.TaskRun{}
	}
	c.JSON(http.StatusOK, gin.H{"task_runs": runs})
}

func (s *Server) fail(c *gin.Context, action string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	s.logger.Error("%s: %v", action, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return value, true
}
