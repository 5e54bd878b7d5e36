package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/repository"
)

// GetDashboard handles GET /api/dashboard.
func (s *Server) GetDashboard(c *gin.Context) {
	d, err := s.queries.Dashboard(c.Request.Context(), s.now())
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	c.JSON(http.StatusOK, d)
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type auditLogResponse struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Actor        string         `json:"actor"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

func newAuditLogResponse(r *repository.AuditLogRow) auditLogResponse {
	return auditLogResponse{
		ID:           r.ID,
		Action:       r.Action,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		Actor:        r.Actor,
		Details:      r.Details,
		CreatedAt:    r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// ListAuditLogs handles GET /api/audit-logs?limit=N (newest first).
func (s *Server) ListAuditLogs(c *gin.Context) {
	limit := defaultAuditLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			_ = c.Error(apperrors.ErrInvalidRequestf("limit must be a positive integer"))
			return
		}
		limit = min(n, maxAuditLimit)
	}
	rows, err := s.queries.ListAuditLogs(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	out := make([]auditLogResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, newAuditLogResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
