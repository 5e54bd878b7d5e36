package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health statuses.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

type healthResponse struct {
	Status  string                 `json:"status"`
	Checks  map[string]string      `json:"checks,omitempty"`
	Workers map[string]interface{} `json:"workers,omitempty"`
}

// GetLiveness handles GET /api/health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: healthOK})
}

// GetReadiness handles GET /api/health/ready.
func (s *Server) GetReadiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	// Database check.
	if s.pool == nil {
		checks["database"] = "unconfigured"
		allHealthy = false
	} else if err := s.pool.Ping(c.Request.Context()); err != nil {
		checks["database"] = "error"
		allHealthy = false
	} else {
		checks["database"] = healthOK
	}

	resp := healthResponse{Status: healthOK, Checks: checks}
	if s.pools != nil {
		resp.Workers = s.pools.Metrics()
	}
	httpStatus := http.StatusOK
	if !allHealthy {
		resp.Status = healthDegraded
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}
